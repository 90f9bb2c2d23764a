// Package postgres persists sync run ledger entries in PostgreSQL.
//
// Mutual exclusion of Running entries is enforced by the partial unique
// index sync_runs_single_running: the INSERT of a second Running row fails
// with a unique violation regardless of which process instance issues it.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"hive/internal/dirsync/models"
	id "hive/pkg/domain"
	"hive/pkg/platform/sentinel"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

const runColumns = `id, status, initiator, started_at, completed_at, error_message,
	groups_processed, members_added, members_updated, members_removed,
	memberships_added, memberships_removed, requests_created, items_skipped`

func scanRun(row interface{ Scan(...any) error }) (*models.SyncRun, error) {
	var run models.SyncRun
	var status string
	var completedAt sql.NullTime
	err := row.Scan(
		&run.ID, &status, &run.Initiator, &run.StartedAt, &completedAt, &run.ErrorMessage,
		&run.Counters.GroupsProcessed, &run.Counters.MembersAdded, &run.Counters.MembersUpdated,
		&run.Counters.MembersRemoved, &run.Counters.MembershipsAdded, &run.Counters.MembershipsRemoved,
		&run.Counters.RequestsCreated, &run.Counters.ItemsSkipped,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan sync run: %w", err)
	}
	run.Status = models.RunStatus(status)
	if completedAt.Valid {
		t := completedAt.Time
		run.CompletedAt = &t
	}
	return &run, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func (s *Store) Create(ctx context.Context, run *models.SyncRun) error {
	query := `
		INSERT INTO sync_runs (` + runColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := s.db.ExecContext(ctx, query,
		run.ID, string(run.Status), run.Initiator, run.StartedAt, run.CompletedAt, run.ErrorMessage,
		run.Counters.GroupsProcessed, run.Counters.MembersAdded, run.Counters.MembersUpdated,
		run.Counters.MembersRemoved, run.Counters.MembershipsAdded, run.Counters.MembershipsRemoved,
		run.Counters.RequestsCreated, run.Counters.ItemsSkipped,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert sync run: %w", err)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, run *models.SyncRun) error {
	query := `
		UPDATE sync_runs
		SET status = $2, completed_at = $3, error_message = $4,
		    groups_processed = $5, members_added = $6, members_updated = $7,
		    members_removed = $8, memberships_added = $9, memberships_removed = $10,
		    requests_created = $11, items_skipped = $12
		WHERE id = $1
	`
	result, err := s.db.ExecContext(ctx, query,
		run.ID, string(run.Status), run.CompletedAt, run.ErrorMessage,
		run.Counters.GroupsProcessed, run.Counters.MembersAdded, run.Counters.MembersUpdated,
		run.Counters.MembersRemoved, run.Counters.MembershipsAdded, run.Counters.MembershipsRemoved,
		run.Counters.RequestsCreated, run.Counters.ItemsSkipped,
	)
	if err != nil {
		return fmt.Errorf("update sync run: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update sync run rows: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Store) FindByID(ctx context.Context, runID id.SyncRunID) (*models.SyncRun, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM sync_runs WHERE id = $1`, runID)
	return scanRun(row)
}

func (s *Store) FindRunning(ctx context.Context) (*models.SyncRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM sync_runs WHERE status = $1`, string(models.RunStatusRunning))
	return scanRun(row)
}

func (s *Store) List(ctx context.Context, limit int) ([]*models.SyncRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM sync_runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sync runs: %w", err)
	}
	defer rows.Close()

	var out []*models.SyncRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}
