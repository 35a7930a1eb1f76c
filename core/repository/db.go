package repository

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// DB wraps the Postgres connection used for the operation event journal
type DB struct {
	*sql.DB
}

// NewDB opens and verifies a Postgres connection
func NewDB(databaseURL string) (*DB, error) {
	conn, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &DB{DB: conn}, nil
}

// Migrate creates the journal table if it does not exist
func (db *DB) Migrate(ctx context.Context) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS operation_events (
			id           BIGSERIAL PRIMARY KEY,
			operation_id TEXT NOT NULL,
			at           TIMESTAMPTZ NOT NULL,
			from_status  TEXT,
			to_status    TEXT NOT NULL,
			server_id    TEXT NOT NULL,
			reason       TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS operation_events_operation_id_idx
			ON operation_events (operation_id, at);
	`)
	if err != nil {
		return fmt.Errorf("migrate operation_events: %w", err)
	}
	return nil
}
