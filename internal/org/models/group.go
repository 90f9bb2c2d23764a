package models

import (
	"time"

	id "hive/pkg/domain"
	dErrors "hive/pkg/domain-errors"
)

// GroupLevel places a group in the two-level hierarchy: sectors own
// departments, nothing nests deeper.
type GroupLevel string

const (
	LevelSector     GroupLevel = "sector"
	LevelDepartment GroupLevel = "department"
)

// Group represents a department or sector.
//
// Invariants:
//   - A Department group's parent, if set, must be a Sector-level group.
//     The two-level bound is enforced at write time via SetParent, not by
//     type-level nesting.
//   - Sector groups never have a parent.
//   - Groups are soft-removed (RemovedAt) so membership history stays intact.
type Group struct {
	ID          id.GroupID  `json:"id"`
	DirectoryID string      `json:"directory_id,omitempty"`
	DisplayName string      `json:"display_name"`
	Level       GroupLevel  `json:"level"`
	ParentID    *id.GroupID `json:"parent_id,omitempty"`
	RemovedAt   *time.Time  `json:"removed_at,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// NewGroup creates a group at the given level.
func NewGroup(groupID id.GroupID, directoryID, displayName string, level GroupLevel, now time.Time) (*Group, error) {
	if displayName == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "group display name is required")
	}
	if level != LevelSector && level != LevelDepartment {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown group level %q", level)
	}
	return &Group{
		ID:          groupID,
		DirectoryID: directoryID,
		DisplayName: displayName,
		Level:       level,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// IsRemoved reports whether the group has been soft-removed.
func (g *Group) IsRemoved() bool { return g.RemovedAt != nil }

// SetParent attaches the group under a sector. Rejects any parent that is
// not Sector-level and rejects parents on sectors, which keeps the hierarchy
// at exactly two levels and cycle-free.
func (g *Group) SetParent(parent *Group, now time.Time) error {
	if g.Level != LevelDepartment {
		return dErrors.New(dErrors.CodeInvariantViolation, "only department groups may have a parent")
	}
	if parent.Level != LevelSector {
		return dErrors.New(dErrors.CodeInvariantViolation, "group parent must be a sector-level group")
	}
	parentID := parent.ID
	g.ParentID = &parentID
	g.UpdatedAt = now
	return nil
}

// ApplyLocalOnly decouples the group from the directory. A local-only group
// is exempt from directory-driven removal detection.
func (g *Group) ApplyLocalOnly(now time.Time) {
	g.DirectoryID = ""
	g.UpdatedAt = now
}

// CanRemove checks the soft-removal transition.
func (g *Group) CanRemove() error {
	if g.IsRemoved() {
		return dErrors.New(dErrors.CodeInvariantViolation, "group is already removed")
	}
	return nil
}

// ApplyRemoval soft-removes the group. Call CanRemove first.
func (g *Group) ApplyRemoval(now time.Time) {
	removedAt := now
	g.RemovedAt = &removedAt
	g.UpdatedAt = now
}
