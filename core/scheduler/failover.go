package scheduler

import (
	"media-balancer/core/models"
	"media-balancer/core/monitoring"

	log "github.com/sirupsen/logrus"
)

// failover moves the WAITING operations of a failed server to the least loaded
// eligible server. IN_PROGRESS operations stay where they are; operations with
// no eligible target stay queued on the failed server.
func (s *Scheduler) failover(serverID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, op := range s.ledger.ActiveOnServer(serverID) {
		if op.Status != models.OperationStatusWaiting {
			continue
		}

		fields := log.Fields{"operation": op.ID, "type": op.Type(), "from": serverID}

		target, err := s.selectOptimalServer(op.Requirement)
		if err != nil {
			s.metrics.Inc(monitoring.FailoverStranded)
			log.WithFields(fields).Warn("No eligible server for failover, operation stays queued")
			continue
		}

		if !s.ledger.Reassign(op.ID, target.ID) {
			continue
		}
		s.metrics.Inc(monitoring.FailoverReassigned)
		op.ServerID = target.ID
		from := op.Status
		s.record(op, &from, op.Status, models.ReasonReassigned)

		fields["to"] = target.ID
		log.WithFields(fields).Info("Operation reassigned after server failure")
	}
}
