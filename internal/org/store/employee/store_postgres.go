package employee

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

// Postgres persists employees in PostgreSQL.
type Postgres struct {
	db *sql.DB
}

// NewPostgres creates a PostgreSQL-backed employee store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const employeeColumns = `id, directory_id, display_name, email, active, provenance, validation_status, primary_department_id, created_at, updated_at`

func scanEmployee(row interface{ Scan(...any) error }) (*models.Employee, error) {
	var employee models.Employee
	var directoryID sql.NullString
	var primaryDepartmentID *id.GroupID
	var provenance, validationStatus string
	err := row.Scan(
		&employee.ID, &directoryID, &employee.DisplayName, &employee.Email,
		&employee.Active, &provenance, &validationStatus, &primaryDepartmentID,
		&employee.CreatedAt, &employee.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan employee: %w", err)
	}
	if directoryID.Valid {
		employee.DirectoryID = &directoryID.String
	}
	employee.PrimaryDepartmentID = primaryDepartmentID
	employee.Provenance = models.Provenance(provenance)
	employee.ValidationStatus = models.ValidationStatus(validationStatus)
	return &employee, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// Create inserts an employee. A duplicate directory id maps to
// sentinel.ErrAlreadyUsed via the unique constraint.
func (s *Postgres) Create(ctx context.Context, employee *models.Employee) error {
	query := `
		INSERT INTO employees (` + employeeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.db.ExecContext(ctx, query,
		employee.ID, employee.DirectoryID, employee.DisplayName, employee.Email,
		employee.Active, string(employee.Provenance), string(employee.ValidationStatus),
		employee.PrimaryDepartmentID, employee.CreatedAt, employee.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert employee: %w", err)
	}
	return nil
}

// Update persists changes. The WHERE clause re-checks the stored directory id
// so the immutability invariant holds even under concurrent writers.
func (s *Postgres) Update(ctx context.Context, employee *models.Employee) error {
	query := `
		UPDATE employees
		SET display_name = $2, email = $3, active = $4, provenance = $5,
		    validation_status = $6, primary_department_id = $7, updated_at = $8
		WHERE id = $1 AND (directory_id IS NULL OR directory_id = $9)
	`
	result, err := s.db.ExecContext(ctx, query,
		employee.ID, employee.DisplayName, employee.Email, employee.Active,
		string(employee.Provenance), string(employee.ValidationStatus),
		employee.PrimaryDepartmentID, employee.UpdatedAt, employee.DirectoryID,
	)
	if err != nil {
		return fmt.Errorf("update employee: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update employee rows: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// FindByID returns one employee or sentinel.ErrNotFound.
func (s *Postgres) FindByID(ctx context.Context, employeeID id.EmployeeID) (*models.Employee, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+employeeColumns+` FROM employees WHERE id = $1`, employeeID)
	return scanEmployee(row)
}

// FindByDirectoryID returns the employee bound to a directory account.
func (s *Postgres) FindByDirectoryID(ctx context.Context, directoryID string) (*models.Employee, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+employeeColumns+` FROM employees WHERE directory_id = $1`, directoryID)
	return scanEmployee(row)
}

// ListDirectorySourced returns all directory-provenance employees.
func (s *Postgres) ListDirectorySourced(ctx context.Context) ([]*models.Employee, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+employeeColumns+` FROM employees WHERE provenance = $1`, string(models.ProvenanceDirectory))
	if err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}
	defer rows.Close()

	var employees []*models.Employee
	for rows.Next() {
		employee, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, employee)
	}
	return employees, rows.Err()
}

// Execute validates and mutates one employee inside a transaction holding
// FOR UPDATE on the row.
func (s *Postgres) Execute(ctx context.Context, employeeID id.EmployeeID, validate func(*models.Employee) error, apply func(*models.Employee)) (*models.Employee, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `SELECT `+employeeColumns+` FROM employees WHERE id = $1 FOR UPDATE`, employeeID)
	employee, err := scanEmployee(row)
	if err != nil {
		return nil, err
	}

	if err := validate(employee); err != nil {
		return nil, err
	}
	apply(employee)

	query := `
		UPDATE employees
		SET display_name = $2, email = $3, active = $4, provenance = $5,
		    validation_status = $6, primary_department_id = $7, updated_at = $8
		WHERE id = $1
	`
	if _, err := tx.ExecContext(ctx, query,
		employee.ID, employee.DisplayName, employee.Email, employee.Active,
		string(employee.Provenance), string(employee.ValidationStatus),
		employee.PrimaryDepartmentID, employee.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("update employee: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return employee, nil
}
