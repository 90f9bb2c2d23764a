// Package group provides sector/department group persistence.
package group

import (
	"context"
	"sync"

	"hive/internal/org/models"
	id "hive/pkg/domain"
	"hive/pkg/platform/sentinel"
)

// InMemory is the map-backed group store.
type InMemory struct {
	mu          sync.RWMutex
	byID        map[id.GroupID]*models.Group
	byDirectory map[string]id.GroupID
}

// NewInMemory creates an empty in-memory group store.
func NewInMemory() *InMemory {
	return &InMemory{
		byID:        make(map[id.GroupID]*models.Group),
		byDirectory: make(map[string]id.GroupID),
	}
}

func cloneGroup(g *models.Group) *models.Group {
	clone := *g
	if g.ParentID != nil {
		parentID := *g.ParentID
		clone.ParentID = &parentID
	}
	if g.RemovedAt != nil {
		removedAt := *g.RemovedAt
		clone.RemovedAt = &removedAt
	}
	return &clone
}

// Create stores a new group. Duplicate directory ids return
// sentinel.ErrAlreadyUsed.
func (s *InMemory) Create(ctx context.Context, group *models.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[group.ID]; exists {
		return sentinel.ErrConflict
	}
	if group.DirectoryID != "" {
		if _, taken := s.byDirectory[group.DirectoryID]; taken {
			return sentinel.ErrAlreadyUsed
		}
		s.byDirectory[group.DirectoryID] = group.ID
	}
	s.byID[group.ID] = cloneGroup(group)
	return nil
}

// Update persists changes to an existing group.
func (s *InMemory) Update(ctx context.Context, group *models.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.byID[group.ID]
	if !exists {
		return sentinel.ErrNotFound
	}
	s.reindex(existing.DirectoryID, group)
	s.byID[group.ID] = cloneGroup(group)
	return nil
}

// reindex keeps the directory-id index consistent when a group is decoupled
// from the directory.
func (s *InMemory) reindex(oldDirectoryID string, group *models.Group) {
	if oldDirectoryID == group.DirectoryID {
		return
	}
	if oldDirectoryID != "" {
		delete(s.byDirectory, oldDirectoryID)
	}
	if group.DirectoryID != "" {
		s.byDirectory[group.DirectoryID] = group.ID
	}
}

// FindByID returns the group or sentinel.ErrNotFound.
func (s *InMemory) FindByID(ctx context.Context, groupID id.GroupID) (*models.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	group, exists := s.byID[groupID]
	if !exists {
		return nil, sentinel.ErrNotFound
	}
	return cloneGroup(group), nil
}

// FindByDirectoryID returns the group bound to a directory group.
func (s *InMemory) FindByDirectoryID(ctx context.Context, directoryID string) (*models.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	groupID, exists := s.byDirectory[directoryID]
	if !exists {
		return nil, sentinel.ErrNotFound
	}
	return cloneGroup(s.byID[groupID]), nil
}

// ListActive returns groups that have not been soft-removed.
func (s *InMemory) ListActive(ctx context.Context) ([]*models.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Group
	for _, group := range s.byID {
		if !group.IsRemoved() {
			out = append(out, cloneGroup(group))
		}
	}
	return out, nil
}

// Execute validates and mutates one group under the store lock.
func (s *InMemory) Execute(ctx context.Context, groupID id.GroupID, validate func(*models.Group) error, apply func(*models.Group)) (*models.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	group, exists := s.byID[groupID]
	if !exists {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(group); err != nil {
		return nil, err
	}
	oldDirectoryID := group.DirectoryID
	apply(group)
	s.reindex(oldDirectoryID, group)
	return cloneGroup(group), nil
}
