package routes

import (
	"net/http"

	"media-balancer/api/rest/handlers"
	"media-balancer/core/repository"
	"media-balancer/core/scheduler"

	"github.com/gorilla/mux"
)

// SetupRoutes configures all API routes
func SetupRoutes(r *mux.Router, sched *scheduler.Scheduler, events repository.EventReader) {
	operationHandler := handlers.NewOperationHandler(sched, events)
	serverHandler := handlers.NewServerHandler(sched)

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	api := r.PathPrefix("/v1").Subrouter()

	// Operation endpoints
	api.HandleFunc("/operations", operationHandler.SubmitOperation).Methods("POST")
	api.HandleFunc("/operations", operationHandler.ListOperations).Methods("GET")
	api.HandleFunc("/operations/{id}", operationHandler.GetOperation).Methods("GET")
	api.HandleFunc("/operations/{id}/complete", operationHandler.CompleteOperation).Methods("POST")
	api.HandleFunc("/operations/{id}/cancel", operationHandler.CancelOperation).Methods("POST")
	api.HandleFunc("/operations/{id}/events", operationHandler.GetOperationEvents).Methods("GET")

	// Server endpoints
	api.HandleFunc("/servers", serverHandler.ListServers).Methods("GET")
	api.HandleFunc("/servers/{id}", serverHandler.GetServer).Methods("GET")
	api.HandleFunc("/stats", serverHandler.GetStats).Methods("GET")
	api.HandleFunc("/metrics", serverHandler.GetMetrics).Methods("GET")
}
