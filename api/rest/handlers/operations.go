package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"media-balancer/core/models"
	"media-balancer/core/repository"
	"media-balancer/core/scheduler"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

// OperationHandler handles operation-related HTTP requests
type OperationHandler struct {
	scheduler *scheduler.Scheduler
	events    repository.EventReader
}

// NewOperationHandler creates a new operation handler
func NewOperationHandler(sched *scheduler.Scheduler, events repository.EventReader) *OperationHandler {
	if events == nil {
		events = repository.NopEventSink{}
	}
	return &OperationHandler{
		scheduler: sched,
		events:    events,
	}
}

// SubmitOperationRequest represents the request to submit an operation
type SubmitOperationRequest struct {
	Type       models.OperationType `json:"type"`
	Model      string               `json:"model"`
	Lora       string               `json:"lora"`
	ControlNet string               `json:"controlnet"`
}

// CompleteOperationRequest represents the request to finish an operation
type CompleteOperationRequest struct {
	Status models.OperationStatus `json:"status"`
}

// SubmitOperation handles POST /v1/operations
func (h *OperationHandler) SubmitOperation(w http.ResponseWriter, r *http.Request) {
	var req SubmitOperationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	view, err := h.scheduler.Submit(r.Context(), models.Requirement{
		Type:       req.Type,
		Model:      req.Model,
		Lora:       req.Lora,
		ControlNet: req.ControlNet,
	})
	switch {
	case errors.Is(err, scheduler.ErrInvalidOperationType):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, scheduler.ErrNoEligibleServer):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	case err != nil:
		http.Error(w, "Failed to submit operation: "+err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, view)
}

// GetOperation handles GET /v1/operations/{id}
func (h *OperationHandler) GetOperation(w http.ResponseWriter, r *http.Request) {
	view, ok := h.scheduler.GetOperation(mux.Vars(r)["id"])
	if !ok {
		http.Error(w, "Operation not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// ListOperations handles GET /v1/operations
func (h *OperationHandler) ListOperations(w http.ResponseWriter, r *http.Request) {
	var status *models.OperationStatus
	if statusParam := r.URL.Query().Get("status"); statusParam != "" {
		s := models.OperationStatus(statusParam)
		status = &s
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items": h.scheduler.ListOperations(status),
	})
}

// CompleteOperation handles POST /v1/operations/{id}/complete
func (h *OperationHandler) CompleteOperation(w http.ResponseWriter, r *http.Request) {
	var req CompleteOperationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	h.finish(w, mux.Vars(r)["id"], req.Status)
}

// CancelOperation handles POST /v1/operations/{id}/cancel
func (h *OperationHandler) CancelOperation(w http.ResponseWriter, r *http.Request) {
	h.finish(w, mux.Vars(r)["id"], models.OperationStatusCanceledByClient)
}

func (h *OperationHandler) finish(w http.ResponseWriter, id string, status models.OperationStatus) {
	if _, ok := h.scheduler.GetOperation(id); !ok {
		http.Error(w, "Operation not found", http.StatusNotFound)
		return
	}

	changed, err := h.scheduler.MarkTerminal(id, status)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !changed {
		http.Error(w, "Operation already finished", http.StatusConflict)
		return
	}

	view, _ := h.scheduler.GetOperation(id)
	writeJSON(w, http.StatusOK, view)
}

// GetOperationEvents handles GET /v1/operations/{id}/events
func (h *OperationHandler) GetOperationEvents(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, ok := h.scheduler.GetOperation(id); !ok {
		http.Error(w, "Operation not found", http.StatusNotFound)
		return
	}

	events, err := h.events.GetOperationEvents(r.Context(), id, 100)
	if err != nil {
		http.Error(w, "Failed to fetch events: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items": events,
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Errorf("Failed to encode response: %v", err)
	}
}
