package models

import (
	"errors"
	"time"
)

// ErrInvalidTerminalStatus is returned when a non-terminal status is used to finish an operation
var ErrInvalidTerminalStatus = errors.New("status is not terminal")

// OperationType represents the kind of generative job
type OperationType string

const (
	OperationTextToImage  OperationType = "TEXT_TO_IMAGE"
	OperationImageToImage OperationType = "IMAGE_TO_IMAGE"
	OperationTextToImages OperationType = "TEXT_TO_IMAGES"
	OperationTrain        OperationType = "TRAIN"
)

// OperationStatus represents the lifecycle status of an operation
type OperationStatus string

const (
	OperationStatusWaiting            OperationStatus = "WAITING"
	OperationStatusInProgress         OperationStatus = "IN_PROGRESS"
	OperationStatusSuccess            OperationStatus = "SUCCESS"
	OperationStatusError              OperationStatus = "ERROR"
	OperationStatusCanceledByClient   OperationStatus = "CANCELED_BY_CLIENT"
	OperationStatusCanceledByBalancer OperationStatus = "CANCELED_BY_BALANCER"
)

// TrainingPenalty is added once to a server's weight when it holds any active training job
const TrainingPenalty = 10

// operationWeights is the relative resource cost of each operation type
var operationWeights = map[OperationType]int{
	OperationTextToImage:  1,
	OperationImageToImage: 2,
	OperationTextToImages: 4,
	OperationTrain:        0,
}

// maxExecutionTimes bounds how long an operation may stay IN_PROGRESS
var maxExecutionTimes = map[OperationType]time.Duration{
	OperationTextToImage:  120 * time.Second,
	OperationImageToImage: 120 * time.Second,
	OperationTextToImages: 120 * time.Second,
	OperationTrain:        1200 * time.Second,
}

// Valid reports whether t is a known operation type
func (t OperationType) Valid() bool {
	_, ok := operationWeights[t]
	return ok
}

// Weight returns the cost of a single operation of this type
func (t OperationType) Weight() int {
	return operationWeights[t]
}

// MaxExecutionTime returns the longest an operation of this type may run
func (t OperationType) MaxExecutionTime() time.Duration {
	return maxExecutionTimes[t]
}

// IsTraining reports whether the type belongs to the training category
func (t OperationType) IsTraining() bool {
	return t == OperationTrain
}

// IsTerminal reports whether no further transition is allowed from s
func (s OperationStatus) IsTerminal() bool {
	switch s {
	case OperationStatusSuccess, OperationStatusError,
		OperationStatusCanceledByClient, OperationStatusCanceledByBalancer:
		return true
	}
	return false
}

// IsActive reports whether an operation in status s counts toward server load
func (s OperationStatus) IsActive() bool {
	return s == OperationStatusWaiting || s == OperationStatusInProgress
}

// Requirement describes what a server must offer to accept an operation
type Requirement struct {
	Type       OperationType `json:"type"`
	Model      string        `json:"model,omitempty"`
	Lora       string        `json:"lora,omitempty"`
	ControlNet string        `json:"controlnet,omitempty"`
}

// Endpoints are the backend addresses a client talks to for an operation
type Endpoints struct {
	HTTP   string `json:"http"`
	Stream string `json:"stream"`
	Train  string `json:"train,omitempty"`
}

// Operation represents a generative job tracked by the balancer
type Operation struct {
	ID          string          `json:"id"`
	Requirement Requirement     `json:"requirement"`
	Status      OperationStatus `json:"status"`
	ServerID    string          `json:"server_id"`
	CreatedAt   time.Time       `json:"created_at"`
	StartTime   *time.Time      `json:"start_time,omitempty"`
	EndTime     *time.Time      `json:"end_time,omitempty"`
}

// Type is a shorthand for the requirement's operation type
func (o Operation) Type() OperationType {
	return o.Requirement.Type
}

// OperationView is the full caller-facing view of an operation
type OperationView struct {
	Operation
	Endpoints     Endpoints `json:"endpoints"`
	QueuePosition int       `json:"queue_position"`
}
