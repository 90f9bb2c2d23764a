package group

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

// Postgres persists groups in PostgreSQL.
type Postgres struct {
	db *sql.DB
}

// NewPostgres creates a PostgreSQL-backed group store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const groupColumns = `id, directory_id, display_name, level, parent_id, removed_at, created_at, updated_at`

func scanGroup(row interface{ Scan(...any) error }) (*models.Group, error) {
	var group models.Group
	var directoryID sql.NullString
	var level string
	err := row.Scan(
		&group.ID, &directoryID, &group.DisplayName, &level,
		&group.ParentID, &group.RemovedAt, &group.CreatedAt, &group.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan group: %w", err)
	}
	group.DirectoryID = directoryID.String
	group.Level = models.GroupLevel(level)
	return &group, nil
}

// Create inserts a group. Duplicate directory ids map to
// sentinel.ErrAlreadyUsed via the unique constraint.
func (s *Postgres) Create(ctx context.Context, group *models.Group) error {
	query := `
		INSERT INTO org_groups (` + groupColumns + `)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		group.ID, group.DirectoryID, group.DisplayName, string(group.Level),
		group.ParentID, group.RemovedAt, group.CreatedAt, group.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert group: %w", err)
	}
	return nil
}

// Update persists changes to an existing group.
func (s *Postgres) Update(ctx context.Context, group *models.Group) error {
	query := `
		UPDATE org_groups
		SET directory_id = NULLIF($2, ''), display_name = $3, level = $4, parent_id = $5,
		    removed_at = $6, updated_at = $7
		WHERE id = $1
	`
	result, err := s.db.ExecContext(ctx, query,
		group.ID, group.DirectoryID, group.DisplayName, string(group.Level),
		group.ParentID, group.RemovedAt, group.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update group: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update group rows: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// FindByID returns one group or sentinel.ErrNotFound.
func (s *Postgres) FindByID(ctx context.Context, groupID id.GroupID) (*models.Group, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+groupColumns+` FROM org_groups WHERE id = $1`, groupID)
	return scanGroup(row)
}

// FindByDirectoryID returns the group bound to a directory group.
func (s *Postgres) FindByDirectoryID(ctx context.Context, directoryID string) (*models.Group, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+groupColumns+` FROM org_groups WHERE directory_id = $1`, directoryID)
	return scanGroup(row)
}

// ListActive returns groups that have not been soft-removed.
func (s *Postgres) ListActive(ctx context.Context) ([]*models.Group, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+groupColumns+` FROM org_groups WHERE removed_at IS NULL`)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	var groups []*models.Group
	for rows.Next() {
		group, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}
	return groups, rows.Err()
}

// Execute validates and mutates one group inside a transaction holding
// FOR UPDATE on the row.
func (s *Postgres) Execute(ctx context.Context, groupID id.GroupID, validate func(*models.Group) error, apply func(*models.Group)) (*models.Group, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `SELECT `+groupColumns+` FROM org_groups WHERE id = $1 FOR UPDATE`, groupID)
	group, err := scanGroup(row)
	if err != nil {
		return nil, err
	}

	if err := validate(group); err != nil {
		return nil, err
	}
	apply(group)

	query := `
		UPDATE org_groups
		SET directory_id = NULLIF($2, ''), display_name = $3, level = $4, parent_id = $5,
		    removed_at = $6, updated_at = $7
		WHERE id = $1
	`
	if _, err := tx.ExecContext(ctx, query,
		group.ID, group.DirectoryID, group.DisplayName, string(group.Level),
		group.ParentID, group.RemovedAt, group.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("update group: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return group, nil
}
