// Package employee provides employee persistence.
package employee

import (
	"context"
	"sync"

	"hive/internal/org/models"
	id "hive/pkg/domain"
	"hive/pkg/platform/sentinel"
)

// InMemory is the map-backed employee store used in tests and single-process
// deployments.
type InMemory struct {
	mu          sync.RWMutex
	byID        map[id.EmployeeID]*models.Employee
	byDirectory map[string]id.EmployeeID
}

// NewInMemory creates an empty in-memory employee store.
func NewInMemory() *InMemory {
	return &InMemory{
		byID:        make(map[id.EmployeeID]*models.Employee),
		byDirectory: make(map[string]id.EmployeeID),
	}
}

func cloneEmployee(e *models.Employee) *models.Employee {
	clone := *e
	if e.DirectoryID != nil {
		directoryID := *e.DirectoryID
		clone.DirectoryID = &directoryID
	}
	if e.PrimaryDepartmentID != nil {
		deptID := *e.PrimaryDepartmentID
		clone.PrimaryDepartmentID = &deptID
	}
	return &clone
}

// Create stores a new employee. Returns sentinel.ErrAlreadyUsed when the
// directory id is already claimed (DirectoryID uniqueness invariant).
func (s *InMemory) Create(ctx context.Context, employee *models.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[employee.ID]; exists {
		return sentinel.ErrConflict
	}
	if employee.DirectoryID != nil {
		if _, taken := s.byDirectory[*employee.DirectoryID]; taken {
			return sentinel.ErrAlreadyUsed
		}
		s.byDirectory[*employee.DirectoryID] = employee.ID
	}
	s.byID[employee.ID] = cloneEmployee(employee)
	return nil
}

// Update persists changes to an existing employee. The directory id is
// immutable once set.
func (s *InMemory) Update(ctx context.Context, employee *models.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.byID[employee.ID]
	if !exists {
		return sentinel.ErrNotFound
	}
	if current.DirectoryID != nil && (employee.DirectoryID == nil || *employee.DirectoryID != *current.DirectoryID) {
		return sentinel.ErrInvalidState
	}
	s.byID[employee.ID] = cloneEmployee(employee)
	return nil
}

// FindByID returns the employee or sentinel.ErrNotFound.
func (s *InMemory) FindByID(ctx context.Context, employeeID id.EmployeeID) (*models.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	employee, exists := s.byID[employeeID]
	if !exists {
		return nil, sentinel.ErrNotFound
	}
	return cloneEmployee(employee), nil
}

// FindByDirectoryID returns the employee bound to a directory account.
func (s *InMemory) FindByDirectoryID(ctx context.Context, directoryID string) (*models.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	employeeID, exists := s.byDirectory[directoryID]
	if !exists {
		return nil, sentinel.ErrNotFound
	}
	return cloneEmployee(s.byID[employeeID]), nil
}

// ListDirectorySourced returns all employees still coupled to the directory.
func (s *InMemory) ListDirectorySourced(ctx context.Context) ([]*models.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Employee
	for _, employee := range s.byID {
		if employee.Provenance == models.ProvenanceDirectory {
			out = append(out, cloneEmployee(employee))
		}
	}
	return out, nil
}

// Execute validates and mutates one employee under the store lock.
func (s *InMemory) Execute(ctx context.Context, employeeID id.EmployeeID, validate func(*models.Employee) error, apply func(*models.Employee)) (*models.Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	employee, exists := s.byID[employeeID]
	if !exists {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(employee); err != nil {
		return nil, err
	}
	apply(employee)
	return cloneEmployee(employee), nil
}
