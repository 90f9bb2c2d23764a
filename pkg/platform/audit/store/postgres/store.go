// Package postgres persists audit events in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	audit "hive/pkg/platform/audit"
	txcontext "hive/pkg/platform/tx"
)

// Store implements audit.Store on top of an append-only audit_events table.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL-backed audit store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Append writes one event. The table carries no updatable columns; the trail
// is immutable by construction.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	query := `
		INSERT INTO audit_events
			(id, occurred_at, action, entity_type, entity_id, actor_id, sync_run_id, request_id, old_state, new_state)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		event.ID,
		event.Timestamp,
		string(event.Action),
		event.EntityType,
		event.EntityID,
		nullable(event.ActorID),
		nullable(event.SyncRunID),
		nullable(event.RequestID),
		nullableJSON(event.OldState),
		nullableJSON(event.NewState),
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListByEntity returns all events for one entity, oldest first.
func (s *Store) ListByEntity(ctx context.Context, entityType, entityID string) ([]audit.Event, error) {
	query := `
		SELECT id, occurred_at, action, entity_type, entity_id,
		       COALESCE(actor_id, ''), COALESCE(sync_run_id, ''), COALESCE(request_id, ''),
		       old_state, new_state
		FROM audit_events
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY occurred_at ASC
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var event audit.Event
		var action string
		if err := rows.Scan(
			&event.ID, &event.Timestamp, &action, &event.EntityType, &event.EntityID,
			&event.ActorID, &event.SyncRunID, &event.RequestID,
			&event.OldState, &event.NewState,
		); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.Action = audit.Action(action)
		events = append(events, event)
	}
	return events, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
