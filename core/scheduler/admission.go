package scheduler

import (
	"time"

	"media-balancer/core/models"
	"media-balancer/core/monitoring"

	log "github.com/sirupsen/logrus"
)

// enforceTimeouts cancels IN_PROGRESS operations that ran past their type's limit
func (s *Scheduler) enforceTimeouts(now time.Time) {
	running := models.OperationStatusInProgress
	for _, op := range s.ledger.List(&running) {
		if op.StartTime == nil {
			continue
		}
		elapsed := now.Sub(*op.StartTime)
		if elapsed <= op.Type().MaxExecutionTime() {
			continue
		}

		changed, _ := s.markTerminal(op.ID, models.OperationStatusCanceledByBalancer, models.ReasonTimedOut)
		if !changed {
			continue
		}
		s.metrics.Inc(monitoring.OperationsTimedOut)
		log.WithFields(log.Fields{
			"operation": op.ID,
			"type":      op.Type(),
			"server":    op.ServerID,
			"elapsed":   elapsed.Round(time.Second),
		}).Info("Operation exceeded execution time, canceled by balancer")
	}
}

// admit promotes the oldest WAITING operation on every online server that has
// nothing IN_PROGRESS. Each server runs at most one operation at a time,
// regardless of category.
func (s *Scheduler) admit(now time.Time) {
	for _, server := range s.servers.List() {
		if server.Status != models.ServerStatusOnline {
			continue
		}

		var next *models.Operation
		busy := false
		for _, op := range s.ledger.ActiveOnServer(server.ID) {
			if op.Status == models.OperationStatusInProgress {
				busy = true
				break
			}
			if next == nil {
				op := op
				next = &op
			}
		}
		if busy || next == nil {
			continue
		}

		if !s.ledger.Promote(next.ID, now) {
			continue
		}
		s.metrics.Inc(monitoring.OperationsPromoted)
		from := models.OperationStatusWaiting
		s.record(*next, &from, models.OperationStatusInProgress, models.ReasonPromoted)

		log.WithFields(log.Fields{
			"operation": next.ID,
			"type":      next.Type(),
			"server":    server.ID,
		}).Debug("Operation admitted")
	}
}
