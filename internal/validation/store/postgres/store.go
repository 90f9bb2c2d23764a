// Package postgres persists validation requests in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"hive/internal/org/scope"
	"hive/internal/validation/models"
	id "hive/pkg/domain"
	"hive/pkg/platform/sentinel"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

const requestColumns = `id, request_type, description, employee_id, group_id, previous_state, new_state,
	approver_role, scope_group_id, needs_triage, status, escalated, resolution, resolver_id,
	resolved_at, resolution_notes, created_at, sync_run_id`

func scanRequest(row interface{ Scan(...any) error }) (*models.Request, error) {
	var req models.Request
	var requestType, status, approverRole, resolution string
	var employeeID *id.EmployeeID
	var groupID, scopeGroupID *id.GroupID
	var previousState, newState []byte
	var resolvedAt sql.NullTime
	err := row.Scan(
		&req.ID, &requestType, &req.Description, &employeeID, &groupID, &previousState, &newState,
		&approverRole, &scopeGroupID, &req.NeedsTriage, &status, &req.Escalated, &resolution,
		&req.ResolverID, &resolvedAt, &req.ResolutionNotes, &req.CreatedAt, &req.SyncRunID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan validation request: %w", err)
	}
	req.Type = models.Type(requestType)
	req.Status = models.Status(status)
	req.ApproverRole = scope.ApproverRole(approverRole)
	req.Resolution = models.Action(resolution)
	req.EmployeeID = employeeID
	req.GroupID = groupID
	req.ScopeGroupID = scopeGroupID
	req.PreviousState = previousState
	req.NewState = newState
	if resolvedAt.Valid {
		t := resolvedAt.Time
		req.ResolvedAt = &t
	}
	return &req, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func (s *Store) Create(ctx context.Context, req *models.Request) error {
	query := `
		INSERT INTO validation_requests (` + requestColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`
	_, err := s.db.ExecContext(ctx, query,
		req.ID, string(req.Type), req.Description, req.EmployeeID, req.GroupID,
		nullableJSON(req.PreviousState), nullableJSON(req.NewState),
		string(req.ApproverRole), req.ScopeGroupID, req.NeedsTriage, string(req.Status),
		req.Escalated, string(req.Resolution), req.ResolverID,
		req.ResolvedAt, req.ResolutionNotes, req.CreatedAt, req.SyncRunID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert validation request: %w", err)
	}
	return nil
}

func nullableJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return raw
}

func (s *Store) FindByID(ctx context.Context, requestID id.RequestID) (*models.Request, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM validation_requests WHERE id = $1`, requestID)
	return scanRequest(row)
}

func (s *Store) ListPending(ctx context.Context, scopeGroupID *id.GroupID) ([]*models.Request, error) {
	query := `
		SELECT ` + requestColumns + ` FROM validation_requests
		WHERE status IN ('pending', 'in_review')
	`
	args := []any{}
	if scopeGroupID != nil {
		query += ` AND scope_group_id = $1`
		args = append(args, *scopeGroupID)
	}
	query += ` ORDER BY created_at`
	return s.list(ctx, query, args...)
}

func (s *Store) ListBySyncRun(ctx context.Context, syncRunID id.SyncRunID) ([]*models.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM validation_requests WHERE sync_run_id = $1 ORDER BY created_at`
	return s.list(ctx, query, syncRunID)
}

func (s *Store) list(ctx context.Context, query string, args ...any) ([]*models.Request, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list validation requests: %w", err)
	}
	defer rows.Close()

	var out []*models.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

func (s *Store) HasOpen(ctx context.Context, t models.Type, employeeID *id.EmployeeID, groupID *id.GroupID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM validation_requests
			WHERE request_type = $1
			  AND status IN ('pending', 'in_review')
			  AND ($2::uuid IS NULL OR employee_id = $2)
			  AND ($3::uuid IS NULL OR group_id = $3)
		)
	`
	var exists bool
	if err := s.db.QueryRowContext(ctx, query, string(t), employeeID, groupID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check open validation request: %w", err)
	}
	return exists, nil
}

// Execute validates and mutates one request inside a transaction holding
// FOR UPDATE on the row, so concurrent resolutions serialize.
func (s *Store) Execute(ctx context.Context, requestID id.RequestID,
	validate func(*models.Request) error,
	apply func(*models.Request) error,
) (*models.Request, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM validation_requests WHERE id = $1 FOR UPDATE`, requestID)
	req, err := scanRequest(row)
	if err != nil {
		return nil, err
	}

	if err := validate(req); err != nil {
		return nil, err
	}
	if err := apply(req); err != nil {
		return nil, err
	}

	query := `
		UPDATE validation_requests
		SET approver_role = $2, scope_group_id = $3, needs_triage = $4, status = $5,
		    escalated = $6, resolution = $7, resolver_id = $8, resolved_at = $9,
		    resolution_notes = $10
		WHERE id = $1
	`
	if _, err := tx.ExecContext(ctx, query,
		req.ID, string(req.ApproverRole), req.ScopeGroupID, req.NeedsTriage,
		string(req.Status), req.Escalated, string(req.Resolution), req.ResolverID,
		req.ResolvedAt, req.ResolutionNotes,
	); err != nil {
		return nil, fmt.Errorf("update validation request: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return req, nil
}
