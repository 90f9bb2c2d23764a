// Package store defines the persistence contracts for the personnel replica.
// Subpackages provide in-memory and PostgreSQL implementations; services
// depend only on these interfaces.
//
// All implementations return pkg/platform/sentinel errors for infrastructure
// facts (ErrNotFound, ErrAlreadyUsed); services translate them into domain
// errors at the module boundary.
package store

import (
	"context"

	"hive/internal/org/models"
	id "hive/pkg/domain"
)

// EmployeeStore persists employee records.
type EmployeeStore interface {
	Create(ctx context.Context, employee *models.Employee) error
	Update(ctx context.Context, employee *models.Employee) error
	FindByID(ctx context.Context, employeeID id.EmployeeID) (*models.Employee, error)
	FindByDirectoryID(ctx context.Context, directoryID string) (*models.Employee, error)
	ListDirectorySourced(ctx context.Context) ([]*models.Employee, error)
	// Execute atomically validates and mutates one employee while holding the
	// row lock (mutex or FOR UPDATE), so the validate step can never observe
	// state that the apply step does not.
	Execute(ctx context.Context, employeeID id.EmployeeID, validate func(*models.Employee) error, apply func(*models.Employee)) (*models.Employee, error)
}

// GroupStore persists sector/department groups.
type GroupStore interface {
	Create(ctx context.Context, group *models.Group) error
	Update(ctx context.Context, group *models.Group) error
	FindByID(ctx context.Context, groupID id.GroupID) (*models.Group, error)
	FindByDirectoryID(ctx context.Context, directoryID string) (*models.Group, error)
	// ListActive returns groups that have not been soft-removed.
	ListActive(ctx context.Context) ([]*models.Group, error)
	Execute(ctx context.Context, groupID id.GroupID, validate func(*models.Group) error, apply func(*models.Group)) (*models.Group, error)
}

// MembershipStore persists the employee-group join. One row per
// (employee, group) pair; removal is a soft state on the row.
type MembershipStore interface {
	Create(ctx context.Context, membership *models.Membership) error
	Update(ctx context.Context, membership *models.Membership) error
	Find(ctx context.Context, employeeID id.EmployeeID, groupID id.GroupID) (*models.Membership, error)
	ListCurrentByGroup(ctx context.Context, groupID id.GroupID) ([]*models.Membership, error)
	ListCurrentByEmployee(ctx context.Context, employeeID id.EmployeeID) ([]*models.Membership, error)
	Execute(ctx context.Context, employeeID id.EmployeeID, groupID id.GroupID, validate func(*models.Membership) error, apply func(*models.Membership)) (*models.Membership, error)
}
