package handlers

import (
	"net/http"

	"media-balancer/core/scheduler"

	"github.com/gorilla/mux"
)

// ServerHandler exposes the server registry and scheduler statistics
type ServerHandler struct {
	scheduler *scheduler.Scheduler
}

// NewServerHandler creates a new server handler
func NewServerHandler(sched *scheduler.Scheduler) *ServerHandler {
	return &ServerHandler{scheduler: sched}
}

// ListServers handles GET /v1/servers
func (h *ServerHandler) ListServers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items": h.scheduler.ListServers(),
	})
}

// GetServer handles GET /v1/servers/{id}
func (h *ServerHandler) GetServer(w http.ResponseWriter, r *http.Request) {
	server, ok := h.scheduler.GetServer(mux.Vars(r)["id"])
	if !ok {
		http.Error(w, "Server not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, server)
}

// GetStats handles GET /v1/stats
func (h *ServerHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.scheduler.Stats())
}

// GetMetrics handles GET /v1/metrics
func (h *ServerHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	h.scheduler.Metrics().WriteJSON(w)
}
