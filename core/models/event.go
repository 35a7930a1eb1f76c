package models

import "time"

// OperationEvent represents a state transition of an operation
type OperationEvent struct {
	ID          int64            `json:"id,omitempty"`
	OperationID string           `json:"operation_id"`
	At          time.Time        `json:"at"`
	FromStatus  *OperationStatus `json:"from_status,omitempty"`
	ToStatus    OperationStatus  `json:"to_status"`
	ServerID    string           `json:"server_id"`
	Reason      string           `json:"reason"`
}

// Event reasons recorded in the journal
const (
	ReasonSubmitted  = "submitted"
	ReasonPromoted   = "promoted"
	ReasonReassigned = "failover_reassigned"
	ReasonTimedOut   = "execution_timeout"
	ReasonFinished   = "finished"
)
