package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"media-balancer/core/models"

	log "github.com/sirupsen/logrus"
)

// DefaultEventBuffer is the number of events held before new ones are dropped
const DefaultEventBuffer = 1024

// DrainTimeout bounds how long Start keeps flushing buffered events after its context ends
const DrainTimeout = 5 * time.Second

// EventSink receives operation lifecycle events. Record must not block.
type EventSink interface {
	Record(event models.OperationEvent)
}

// EventReader returns recorded events for an operation
type EventReader interface {
	GetOperationEvents(ctx context.Context, operationID string, limit int) ([]models.OperationEvent, error)
}

// NopEventSink discards every event
type NopEventSink struct{}

// Record implements EventSink
func (NopEventSink) Record(models.OperationEvent) {}

// GetOperationEvents implements EventReader
func (NopEventSink) GetOperationEvents(context.Context, string, int) ([]models.OperationEvent, error) {
	return []models.OperationEvent{}, nil
}

type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// EventRepository journals operation events to Postgres.
// Writes are buffered and flushed by the worker started with Start.
type EventRepository struct {
	db     execQuerier
	events chan models.OperationEvent
	done   chan struct{}
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *DB, buffer int) *EventRepository {
	return newEventRepository(db, buffer)
}

func newEventRepository(db execQuerier, buffer int) *EventRepository {
	if buffer <= 0 {
		buffer = DefaultEventBuffer
	}
	return &EventRepository{
		db:     db,
		events: make(chan models.OperationEvent, buffer),
		done:   make(chan struct{}),
	}
}

// Record queues an event for writing, dropping it when the buffer is full
func (r *EventRepository) Record(event models.OperationEvent) {
	select {
	case r.events <- event:
	default:
		log.WithFields(log.Fields{"operation": event.OperationID, "status": event.ToStatus}).
			Warn("Event journal buffer full, dropping event")
	}
}

// Start writes queued events to the database until ctx is done, then flushes
// what is still buffered within DrainTimeout. Done is closed when it returns.
func (r *EventRepository) Start(ctx context.Context) {
	defer close(r.done)
	for {
		select {
		case <-ctx.Done():
			r.drain()
			return
		case event := <-r.events:
			r.write(ctx, event)
		}
	}
}

// Done is closed once Start has flushed the buffer and returned
func (r *EventRepository) Done() <-chan struct{} {
	return r.done
}

func (r *EventRepository) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), DrainTimeout)
	defer cancel()

	written, dropped := 0, 0
	for {
		select {
		case event := <-r.events:
			if ctx.Err() != nil {
				dropped++
				continue
			}
			r.write(ctx, event)
			written++
		default:
			fields := log.Fields{"written": written, "dropped": dropped}
			if dropped > 0 {
				log.WithFields(fields).Warn("Event journal stopped before flushing every buffered event")
			} else if written > 0 {
				log.WithFields(fields).Info("Event journal flushed on shutdown")
			}
			return
		}
	}
}

func (r *EventRepository) write(ctx context.Context, event models.OperationEvent) {
	if err := r.CreateOperationEvent(ctx, event); err != nil {
		log.WithFields(log.Fields{"operation": event.OperationID}).Errorf("Failed to journal event: %v", err)
	}
}

// CreateOperationEvent inserts a single event
func (r *EventRepository) CreateOperationEvent(ctx context.Context, event models.OperationEvent) error {
	query := `
		INSERT INTO operation_events (operation_id, at, from_status, to_status, server_id, reason)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	var fromStatus sql.NullString
	if event.FromStatus != nil {
		fromStatus = sql.NullString{String: string(*event.FromStatus), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, query,
		event.OperationID,
		event.At,
		fromStatus,
		event.ToStatus,
		event.ServerID,
		event.Reason,
	)
	if err != nil {
		return fmt.Errorf("insert operation event: %w", err)
	}
	return nil
}

// GetOperationEvents retrieves events for an operation, oldest first
func (r *EventRepository) GetOperationEvents(ctx context.Context, operationID string, limit int) ([]models.OperationEvent, error) {
	query := `
		SELECT id, operation_id, at, from_status, to_status, server_id, reason
		FROM operation_events
		WHERE operation_id = $1
		ORDER BY at ASC, id ASC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, operationID, limit)
	if err != nil {
		return nil, fmt.Errorf("query operation events: %w", err)
	}
	defer rows.Close()

	events := []models.OperationEvent{}
	for rows.Next() {
		var event models.OperationEvent
		var fromStatus sql.NullString

		err := rows.Scan(
			&event.ID,
			&event.OperationID,
			&event.At,
			&fromStatus,
			&event.ToStatus,
			&event.ServerID,
			&event.Reason,
		)
		if err != nil {
			return nil, fmt.Errorf("scan operation event: %w", err)
		}

		if fromStatus.Valid {
			status := models.OperationStatus(fromStatus.String)
			event.FromStatus = &status
		}
		events = append(events, event)
	}
	return events, rows.Err()
}
