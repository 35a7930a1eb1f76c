package resource_manager

import (
	"context"
	"sync"
	"time"

	"media-balancer/core/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// DefaultProbeTimeout bounds a single health probe
const DefaultProbeTimeout = 5 * time.Second

// Prober fetches the capability report of a backend server
type Prober interface {
	Probe(ctx context.Context, baseURL string) (*models.Capabilities, error)
}

// OfflineHook is invoked with the id of a server whose probe just failed
type OfflineHook func(serverID string)

// ServerPool is the registry of known backend servers.
// Servers are created on their first successful probe and never removed.
type ServerPool struct {
	servers      map[string]*models.Server
	byURL        map[string]string
	order        []string
	mu           sync.RWMutex
	prober       Prober
	probeTimeout time.Duration
	onOffline    OfflineHook
}

// NewServerPool creates an empty server pool
func NewServerPool(prober Prober, probeTimeout time.Duration) *ServerPool {
	if probeTimeout <= 0 {
		probeTimeout = DefaultProbeTimeout
	}
	return &ServerPool{
		servers:      make(map[string]*models.Server),
		byURL:        make(map[string]string),
		prober:       prober,
		probeTimeout: probeTimeout,
	}
}

// SetOfflineHook registers the failover callback
func (sp *ServerPool) SetOfflineHook(hook OfflineHook) {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	sp.onOffline = hook
}

// ProbeAll probes every configured URL in order and applies each outcome
// before moving to the next one. A failing URL never aborts the cycle.
// It returns the number of failed probes.
func (sp *ServerPool) ProbeAll(ctx context.Context, urls []string) int {
	failed := 0
	for _, u := range urls {
		if ctx.Err() != nil {
			return failed
		}

		probeCtx, cancel := context.WithTimeout(ctx, sp.probeTimeout)
		caps, err := sp.prober.Probe(probeCtx, u)
		cancel()

		if err != nil {
			log.WithFields(log.Fields{"url": u}).Warnf("Health probe failed: %v", err)
			failed++
			sp.markOffline(u)
			continue
		}
		sp.markOnline(u, caps)
	}
	return failed
}

func (sp *ServerPool) markOnline(url string, caps *models.Capabilities) {
	sp.mu.Lock()
	defer sp.mu.Unlock()

	if id, ok := sp.byURL[url]; ok {
		server := sp.servers[id]
		if server.Status != models.ServerStatusOnline {
			log.WithFields(log.Fields{"server": id, "url": url}).Info("Server back online")
		}
		server.Status = models.ServerStatusOnline
		return
	}

	server := &models.Server{
		ID:           uuid.New().String(),
		URL:          url,
		Capabilities: normalize(caps),
		Status:       models.ServerStatusOnline,
	}
	sp.servers[server.ID] = server
	sp.byURL[url] = server.ID
	sp.order = append(sp.order, server.ID)

	log.WithFields(log.Fields{
		"server": server.ID,
		"url":    url,
		"models": len(server.Capabilities.Models),
		"train":  server.Capabilities.TrainAPI != "",
	}).Info("Registered server")
}

func (sp *ServerPool) markOffline(url string) {
	sp.mu.Lock()
	id, ok := sp.byURL[url]
	if !ok {
		sp.mu.Unlock()
		return
	}
	server := sp.servers[id]
	if server.Status != models.ServerStatusOffline {
		log.WithFields(log.Fields{"server": id, "url": url}).Warn("Server went offline")
	}
	server.Status = models.ServerStatusOffline
	hook := sp.onOffline
	sp.mu.Unlock()

	// The hook reads the pool, so it runs without the lock held.
	if hook != nil {
		hook(id)
	}
}

// FindEligible returns the online servers that satisfy req, in registration order
func (sp *ServerPool) FindEligible(req models.Requirement) []models.Server {
	sp.mu.RLock()
	defer sp.mu.RUnlock()

	var eligible []models.Server
	for _, id := range sp.order {
		server := sp.servers[id]
		if server.Status != models.ServerStatusOnline {
			continue
		}
		if !server.Capabilities.Satisfies(req) {
			continue
		}
		eligible = append(eligible, copyServer(server))
	}
	return eligible
}

// Get returns the server with the given id
func (sp *ServerPool) Get(id string) (models.Server, bool) {
	sp.mu.RLock()
	defer sp.mu.RUnlock()

	server, ok := sp.servers[id]
	if !ok {
		return models.Server{}, false
	}
	return copyServer(server), true
}

// List returns every known server in registration order
func (sp *ServerPool) List() []models.Server {
	sp.mu.RLock()
	defer sp.mu.RUnlock()

	servers := make([]models.Server, 0, len(sp.order))
	for _, id := range sp.order {
		servers = append(servers, copyServer(sp.servers[id]))
	}
	return servers
}

// Count returns the number of known servers
func (sp *ServerPool) Count() int {
	sp.mu.RLock()
	defer sp.mu.RUnlock()
	return len(sp.order)
}

// OnlineCount returns the number of servers currently online
func (sp *ServerPool) OnlineCount() int {
	sp.mu.RLock()
	defer sp.mu.RUnlock()

	n := 0
	for _, server := range sp.servers {
		if server.Status == models.ServerStatusOnline {
			n++
		}
	}
	return n
}

func normalize(caps *models.Capabilities) models.Capabilities {
	if caps == nil {
		caps = &models.Capabilities{}
	}
	out := *caps
	out.Models = cloneStrings(caps.Models)
	out.Loras = cloneStrings(caps.Loras)
	out.ControlNets = cloneStrings(caps.ControlNets)
	return out
}

func copyServer(s *models.Server) models.Server {
	out := *s
	out.Capabilities = normalize(&s.Capabilities)
	return out
}

func cloneStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
