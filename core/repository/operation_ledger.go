package repository

import (
	"sync"
	"time"

	"media-balancer/core/models"
)

// OperationLedger stores every submitted operation in insertion order.
// Insertion order is the queue order; there is no separate priority.
type OperationLedger struct {
	ops   map[string]*models.Operation
	order []string
	mu    sync.RWMutex
}

// NewOperationLedger creates an empty ledger
func NewOperationLedger() *OperationLedger {
	return &OperationLedger{
		ops: make(map[string]*models.Operation),
	}
}

// Append inserts op at the end of the ledger
func (l *OperationLedger) Append(op models.Operation) {
	l.mu.Lock()
	defer l.mu.Unlock()

	stored := op
	l.ops[op.ID] = &stored
	l.order = append(l.order, op.ID)
}

// Get returns the operation with the given id
func (l *OperationLedger) Get(id string) (models.Operation, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	op, ok := l.ops[id]
	if !ok {
		return models.Operation{}, false
	}
	return copyOperation(op), true
}

// List returns operations in insertion order, optionally filtered by status
func (l *OperationLedger) List(status *models.OperationStatus) []models.Operation {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ops := make([]models.Operation, 0, len(l.order))
	for _, id := range l.order {
		op := l.ops[id]
		if status != nil && op.Status != *status {
			continue
		}
		ops = append(ops, copyOperation(op))
	}
	return ops
}

// Count returns the number of operations ever appended
func (l *OperationLedger) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.order)
}

// ActiveOnServer returns the WAITING and IN_PROGRESS operations assigned to serverID in queue order
func (l *OperationLedger) ActiveOnServer(serverID string) []models.Operation {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var ops []models.Operation
	for _, id := range l.order {
		op := l.ops[id]
		if op.ServerID == serverID && op.Status.IsActive() {
			ops = append(ops, copyOperation(op))
		}
	}
	return ops
}

// ActiveWeight sums the type weights of the server's active operations,
// plus a flat penalty when at least one of them is a training job.
func (l *OperationLedger) ActiveWeight(serverID string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	weight := 0
	training := false
	for _, op := range l.ops {
		if op.ServerID != serverID || !op.Status.IsActive() {
			continue
		}
		weight += op.Type().Weight()
		if op.Type().IsTraining() {
			training = true
		}
	}
	if training {
		weight += models.TrainingPenalty
	}
	return weight
}

// QueuePosition returns the zero-based position of the operation among the active
// operations of the same server and category. A running operation comes first,
// then WAITING operations in insertion order. It returns -1 for unknown or
// terminal operations.
func (l *OperationLedger) QueuePosition(id string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	target, ok := l.ops[id]
	if !ok || !target.Status.IsActive() {
		return -1
	}

	running := target.Status == models.OperationStatusInProgress
	pos := 0
	seen := false
	for _, oid := range l.order {
		if oid == id {
			seen = true
			continue
		}
		op := l.ops[oid]
		if op.ServerID != target.ServerID || !op.Status.IsActive() {
			continue
		}
		if op.Type().IsTraining() != target.Type().IsTraining() {
			continue
		}
		inProgress := op.Status == models.OperationStatusInProgress
		switch {
		case running && inProgress && !seen:
			pos++
		case !running && inProgress:
			pos++
		case !running && !seen:
			pos++
		}
	}
	return pos
}

// Promote moves a WAITING operation to IN_PROGRESS and stamps its start time
func (l *OperationLedger) Promote(id string, at time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	op, ok := l.ops[id]
	if !ok || op.Status != models.OperationStatusWaiting {
		return false
	}
	op.Status = models.OperationStatusInProgress
	op.StartTime = &at
	return true
}

// Reassign points a WAITING operation at another server
func (l *OperationLedger) Reassign(id, serverID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	op, ok := l.ops[id]
	if !ok || op.Status != models.OperationStatusWaiting {
		return false
	}
	op.ServerID = serverID
	return true
}

// MarkTerminal finishes an operation. It reports false without mutating anything
// when the operation is unknown or already terminal.
func (l *OperationLedger) MarkTerminal(id string, status models.OperationStatus, at time.Time) (bool, error) {
	if !status.IsTerminal() {
		return false, models.ErrInvalidTerminalStatus
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	op, ok := l.ops[id]
	if !ok || op.Status.IsTerminal() {
		return false, nil
	}
	op.Status = status
	op.EndTime = &at
	return true, nil
}

func copyOperation(op *models.Operation) models.Operation {
	out := *op
	if op.StartTime != nil {
		t := *op.StartTime
		out.StartTime = &t
	}
	if op.EndTime != nil {
		t := *op.EndTime
		out.EndTime = &t
	}
	return out
}
