// Package membership provides persistence for the employee-group join.
package membership

import (
	"context"
	"sync"

	"hive/internal/org/models"
	id "hive/pkg/domain"
	"hive/pkg/platform/sentinel"
)

type pairKey struct {
	employeeID id.EmployeeID
	groupID    id.GroupID
}

// InMemory is the map-backed membership store.
type InMemory struct {
	mu     sync.RWMutex
	byPair map[pairKey]*models.Membership
}

// NewInMemory creates an empty in-memory membership store.
func NewInMemory() *InMemory {
	return &InMemory{byPair: make(map[pairKey]*models.Membership)}
}

func cloneMembership(m *models.Membership) *models.Membership {
	clone := *m
	if m.RemovedAt != nil {
		removedAt := *m.RemovedAt
		clone.RemovedAt = &removedAt
	}
	return &clone
}

// Create stores a new membership row. One row per (employee, group) pair;
// a second create for the same pair returns sentinel.ErrAlreadyUsed.
func (s *InMemory) Create(ctx context.Context, membership *models.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey{membership.EmployeeID, membership.GroupID}
	if _, exists := s.byPair[key]; exists {
		return sentinel.ErrAlreadyUsed
	}
	s.byPair[key] = cloneMembership(membership)
	return nil
}

// Update persists changes to an existing membership row.
func (s *InMemory) Update(ctx context.Context, membership *models.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey{membership.EmployeeID, membership.GroupID}
	if _, exists := s.byPair[key]; !exists {
		return sentinel.ErrNotFound
	}
	s.byPair[key] = cloneMembership(membership)
	return nil
}

// Find returns the membership row for the pair, removed or not.
func (s *InMemory) Find(ctx context.Context, employeeID id.EmployeeID, groupID id.GroupID) (*models.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	membership, exists := s.byPair[pairKey{employeeID, groupID}]
	if !exists {
		return nil, sentinel.ErrNotFound
	}
	return cloneMembership(membership), nil
}

// ListCurrentByGroup returns the current (active, not removed) members of a
// group.
func (s *InMemory) ListCurrentByGroup(ctx context.Context, groupID id.GroupID) ([]*models.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Membership
	for _, membership := range s.byPair {
		if membership.GroupID == groupID && membership.IsCurrent() {
			out = append(out, cloneMembership(membership))
		}
	}
	return out, nil
}

// ListCurrentByEmployee returns an employee's current memberships.
func (s *InMemory) ListCurrentByEmployee(ctx context.Context, employeeID id.EmployeeID) ([]*models.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Membership
	for _, membership := range s.byPair {
		if membership.EmployeeID == employeeID && membership.IsCurrent() {
			out = append(out, cloneMembership(membership))
		}
	}
	return out, nil
}

// Execute validates and mutates one membership row under the store lock.
func (s *InMemory) Execute(ctx context.Context, employeeID id.EmployeeID, groupID id.GroupID, validate func(*models.Membership) error, apply func(*models.Membership)) (*models.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	membership, exists := s.byPair[pairKey{employeeID, groupID}]
	if !exists {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(membership); err != nil {
		return nil, err
	}
	apply(membership)
	return cloneMembership(membership), nil
}
