package scheduler

import (
	"media-balancer/core/models"
)

// SelectOptimalServer returns the eligible server with the smallest active weight
func (s *Scheduler) SelectOptimalServer(req models.Requirement) (models.Server, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectOptimalServer(req)
}

// selectOptimalServer picks the least loaded eligible server. Ties go to the
// server registered first. Callers must hold s.mu.
func (s *Scheduler) selectOptimalServer(req models.Requirement) (models.Server, error) {
	eligible := s.servers.FindEligible(req)
	if len(eligible) == 0 {
		return models.Server{}, ErrNoEligibleServer
	}

	best := eligible[0]
	bestWeight := s.ledger.ActiveWeight(best.ID)
	for _, server := range eligible[1:] {
		if w := s.ledger.ActiveWeight(server.ID); w < bestWeight {
			best, bestWeight = server, w
		}
	}
	return best, nil
}
