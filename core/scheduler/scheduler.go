package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"media-balancer/core/models"
	"media-balancer/core/monitoring"
	"media-balancer/core/repository"
	"media-balancer/core/resource_manager"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// ErrNoEligibleServer is returned when no online server satisfies a requirement
var ErrNoEligibleServer = errors.New("no eligible server")

// ErrInvalidOperationType is returned for submissions with an unknown type
var ErrInvalidOperationType = errors.New("invalid operation type")

// Intervals used when Options leaves them unset
const (
	DefaultHealthCheckInterval = 10 * time.Second
	DefaultScheduleInterval    = 100 * time.Millisecond
)

// URLSource yields the backend URLs to probe on each health-check cycle
type URLSource func(ctx context.Context) []string

// StaticURLs returns a URLSource that always yields urls
func StaticURLs(urls []string) URLSource {
	return func(context.Context) []string {
		return urls
	}
}

// Options tunes the scheduler; zero values fall back to defaults
type Options struct {
	HealthCheckInterval time.Duration
	ScheduleInterval    time.Duration
	Events              repository.EventSink
	Metrics             *monitoring.Metrics
	Clock               func() time.Time
}

// Scheduler places operations on servers, admits queued work, enforces
// execution timeouts and reassigns queued work away from failed servers.
type Scheduler struct {
	servers          *resource_manager.ServerPool
	ledger           *repository.OperationLedger
	urls             URLSource
	events           repository.EventSink
	metrics          *monitoring.Metrics
	now              func() time.Time
	healthInterval   time.Duration
	scheduleInterval time.Duration

	// mu serializes every compound read-modify-write across both registries
	mu       sync.Mutex
	stopOnce sync.Once
	stopChan chan struct{}
}

// NewScheduler creates a scheduler and registers it as the pool's failover hook
func NewScheduler(
	servers *resource_manager.ServerPool,
	ledger *repository.OperationLedger,
	urls URLSource,
	opts Options,
) *Scheduler {
	s := &Scheduler{
		servers:          servers,
		ledger:           ledger,
		urls:             urls,
		events:           opts.Events,
		metrics:          opts.Metrics,
		now:              opts.Clock,
		healthInterval:   opts.HealthCheckInterval,
		scheduleInterval: opts.ScheduleInterval,
		stopChan:         make(chan struct{}),
	}
	if s.urls == nil {
		s.urls = StaticURLs(nil)
	}
	if s.events == nil {
		s.events = repository.NopEventSink{}
	}
	if s.metrics == nil {
		s.metrics = monitoring.NewMetrics()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.healthInterval <= 0 {
		s.healthInterval = DefaultHealthCheckInterval
	}
	if s.scheduleInterval <= 0 {
		s.scheduleInterval = DefaultScheduleInterval
	}

	servers.SetOfflineHook(s.failover)
	return s
}

// Start runs an initial health check, then drives the health-check and
// scheduling timers until ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.RunHealthCheck(ctx)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.healthLoop(ctx)
	}()

	ticker := time.NewTicker(s.scheduleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case <-s.stopChan:
			wg.Wait()
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}

func (s *Scheduler) healthLoop(ctx context.Context) {
	ticker := time.NewTicker(s.healthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.RunHealthCheck(ctx)
		}
	}
}

// Stop stops the scheduler timers
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}

// RunHealthCheck probes every backend once. Probes run without the scheduler
// lock so submissions and ticks are never blocked on network I/O.
func (s *Scheduler) RunHealthCheck(ctx context.Context) {
	urls := s.urls(ctx)
	failed := s.servers.ProbeAll(ctx, urls)
	online := s.servers.OnlineCount()

	s.metrics.Set(monitoring.ServersOnline, int64(online))
	for i := 0; i < failed; i++ {
		s.metrics.Inc(monitoring.ProbeFailures)
	}
	log.WithFields(log.Fields{"urls": len(urls), "online": online, "failed": failed}).Debug("Health check complete")
}

// Tick runs one scheduling pass: timeout enforcement, then admission
func (s *Scheduler) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.enforceTimeouts(now)
	s.admit(now)
	s.metrics.Set(monitoring.OperationsActive, int64(s.activeCount()))
}

// Submit places a new operation on the least loaded eligible server.
// When nothing is eligible it probes the fleet once and retries.
func (s *Scheduler) Submit(ctx context.Context, req models.Requirement) (models.OperationView, error) {
	if !req.Type.Valid() {
		return models.OperationView{}, fmt.Errorf("%w: %q", ErrInvalidOperationType, req.Type)
	}

	view, err := s.trySubmit(req)
	if errors.Is(err, ErrNoEligibleServer) {
		log.WithFields(log.Fields{"type": req.Type, "model": req.Model}).
			Info("No eligible server, running health check before retry")
		s.RunHealthCheck(ctx)
		view, err = s.trySubmit(req)
	}
	if err != nil {
		s.metrics.Inc(monitoring.OperationsRejected)
		return models.OperationView{}, err
	}
	return view, nil
}

func (s *Scheduler) trySubmit(req models.Requirement) (models.OperationView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	server, err := s.selectOptimalServer(req)
	if err != nil {
		return models.OperationView{}, err
	}

	op := models.Operation{
		ID:          uuid.New().String(),
		Requirement: req,
		Status:      models.OperationStatusWaiting,
		ServerID:    server.ID,
		CreatedAt:   s.now(),
	}
	s.ledger.Append(op)
	s.metrics.Inc(monitoring.OperationsSubmitted)
	s.record(op, nil, op.Status, models.ReasonSubmitted)

	log.WithFields(log.Fields{
		"operation": op.ID,
		"type":      req.Type,
		"server":    server.ID,
	}).Info("Operation submitted")

	return s.view(op), nil
}

// MarkTerminal finishes an operation. It reports false when the operation is
// unknown or already terminal; terminal statuses are final.
func (s *Scheduler) MarkTerminal(id string, status models.OperationStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.markTerminal(id, status, models.ReasonFinished)
}

func (s *Scheduler) markTerminal(id string, status models.OperationStatus, reason string) (bool, error) {
	prev, ok := s.ledger.Get(id)
	changed, err := s.ledger.MarkTerminal(id, status, s.now())
	if err != nil {
		return false, err
	}
	if !changed {
		if ok {
			log.WithFields(log.Fields{"operation": id, "status": prev.Status}).
				Debug("Ignoring transition of terminal operation")
		}
		return false, nil
	}

	s.metrics.Inc(monitoring.OperationsTerminal)
	from := prev.Status
	s.record(prev, &from, status, reason)
	return true, nil
}

// GetOperation returns the full view of an operation
func (s *Scheduler) GetOperation(id string) (models.OperationView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	op, ok := s.ledger.Get(id)
	if !ok {
		return models.OperationView{}, false
	}
	return s.view(op), true
}

// ListOperations returns every operation in submission order
func (s *Scheduler) ListOperations(status *models.OperationStatus) []models.Operation {
	return s.ledger.List(status)
}

// ListServers returns every known server
func (s *Scheduler) ListServers() []models.Server {
	return s.servers.List()
}

// GetServer returns the server with the given id
func (s *Scheduler) GetServer(id string) (models.Server, bool) {
	return s.servers.Get(id)
}

// Stats summarises the registries
type Stats struct {
	ServerCount    int `json:"serverCount"`
	OperationCount int `json:"operationCount"`
}

// Stats returns registry sizes
func (s *Scheduler) Stats() Stats {
	return Stats{
		ServerCount:    s.servers.Count(),
		OperationCount: s.ledger.Count(),
	}
}

// Metrics returns the scheduler's metrics set
func (s *Scheduler) Metrics() *monitoring.Metrics {
	return s.metrics
}

func (s *Scheduler) view(op models.Operation) models.OperationView {
	v := models.OperationView{
		Operation:     op,
		QueuePosition: s.ledger.QueuePosition(op.ID),
	}
	if server, ok := s.servers.Get(op.ServerID); ok {
		v.Endpoints = server.Endpoints(op.Type())
	}
	return v
}

func (s *Scheduler) record(op models.Operation, from *models.OperationStatus, to models.OperationStatus, reason string) {
	s.events.Record(models.OperationEvent{
		OperationID: op.ID,
		At:          s.now(),
		FromStatus:  from,
		ToStatus:    to,
		ServerID:    op.ServerID,
		Reason:      reason,
	})
}

func (s *Scheduler) activeCount() int {
	n := 0
	for _, op := range s.ledger.List(nil) {
		if op.Status.IsActive() {
			n++
		}
	}
	return n
}
