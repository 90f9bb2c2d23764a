package membership

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"hive/internal/org/models"
	id "hive/pkg/domain"
	"hive/pkg/platform/sentinel"
)

// Postgres persists memberships in PostgreSQL.
type Postgres struct {
	db *sql.DB
}

// NewPostgres creates a PostgreSQL-backed membership store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const membershipColumns = `id, employee_id, group_id, joined_at, provenance, active, removed_at`

func scanMembership(row interface{ Scan(...any) error }) (*models.Membership, error) {
	var membership models.Membership
	var provenance string
	err := row.Scan(
		&membership.ID, &membership.EmployeeID, &membership.GroupID,
		&membership.JoinedAt, &provenance, &membership.Active, &membership.RemovedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan membership: %w", err)
	}
	membership.Provenance = models.Provenance(provenance)
	return &membership, nil
}

// Create inserts a membership row. The (employee, group) unique constraint
// maps to sentinel.ErrAlreadyUsed.
func (s *Postgres) Create(ctx context.Context, membership *models.Membership) error {
	query := `
		INSERT INTO memberships (` + membershipColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(ctx, query,
		membership.ID, membership.EmployeeID, membership.GroupID,
		membership.JoinedAt, string(membership.Provenance), membership.Active, membership.RemovedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert membership: %w", err)
	}
	return nil
}

// Update persists changes to an existing membership row.
func (s *Postgres) Update(ctx context.Context, membership *models.Membership) error {
	query := `
		UPDATE memberships
		SET provenance = $3, active = $4, removed_at = $5
		WHERE employee_id = $1 AND group_id = $2
	`
	result, err := s.db.ExecContext(ctx, query,
		membership.EmployeeID, membership.GroupID,
		string(membership.Provenance), membership.Active, membership.RemovedAt,
	)
	if err != nil {
		return fmt.Errorf("update membership: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update membership rows: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// Find returns the membership row for the pair, removed or not.
func (s *Postgres) Find(ctx context.Context, employeeID id.EmployeeID, groupID id.GroupID) (*models.Membership, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+membershipColumns+` FROM memberships WHERE employee_id = $1 AND group_id = $2`,
		employeeID, groupID)
	return scanMembership(row)
}

// ListCurrentByGroup returns the current members of a group.
func (s *Postgres) ListCurrentByGroup(ctx context.Context, groupID id.GroupID) ([]*models.Membership, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+membershipColumns+` FROM memberships WHERE group_id = $1 AND active AND removed_at IS NULL`,
		groupID)
	if err != nil {
		return nil, fmt.Errorf("list group memberships: %w", err)
	}
	defer rows.Close()
	return collectMemberships(rows)
}

// ListCurrentByEmployee returns an employee's current memberships.
func (s *Postgres) ListCurrentByEmployee(ctx context.Context, employeeID id.EmployeeID) ([]*models.Membership, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+membershipColumns+` FROM memberships WHERE employee_id = $1 AND active AND removed_at IS NULL`,
		employeeID)
	if err != nil {
		return nil, fmt.Errorf("list employee memberships: %w", err)
	}
	defer rows.Close()
	return collectMemberships(rows)
}

func collectMemberships(rows *sql.Rows) ([]*models.Membership, error) {
	var memberships []*models.Membership
	for rows.Next() {
		membership, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		memberships = append(memberships, membership)
	}
	return memberships, rows.Err()
}

// Execute validates and mutates one membership row inside a transaction
// holding FOR UPDATE on the row.
func (s *Postgres) Execute(ctx context.Context, employeeID id.EmployeeID, groupID id.GroupID, validate func(*models.Membership) error, apply func(*models.Membership)) (*models.Membership, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		`SELECT `+membershipColumns+` FROM memberships WHERE employee_id = $1 AND group_id = $2 FOR UPDATE`,
		employeeID, groupID)
	membership, err := scanMembership(row)
	if err != nil {
		return nil, err
	}

	if err := validate(membership); err != nil {
		return nil, err
	}
	apply(membership)

	query := `
		UPDATE memberships
		SET provenance = $3, active = $4, removed_at = $5
		WHERE employee_id = $1 AND group_id = $2
	`
	if _, err := tx.ExecContext(ctx, query,
		membership.EmployeeID, membership.GroupID,
		string(membership.Provenance), membership.Active, membership.RemovedAt,
	); err != nil {
		return nil, fmt.Errorf("update membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return membership, nil
}
