// Package scope computes the approver scope for a group in the sector →
// department hierarchy. The sync router uses it to assign validation
// requests; the authorization layer shares the same rules.
package scope

import (
	"context"
	"errors"
	"fmt"

	"hive/internal/org/models"
	id "hive/pkg/domain"
)

// ApproverRole names who is entitled to resolve requests in a scope.
type ApproverRole string

const (
	RoleDepartmentHead ApproverRole = "department_head"
	RoleSectorManager  ApproverRole = "sector_manager"
)

// ErrUnresolvedScope signals that no approver scope could be determined.
// Callers must not drop the work item: requests are still created, flagged
// for manual triage.
var ErrUnresolvedScope = errors.New("approver scope unresolved")

// Scope is a resolved approver assignment.
type Scope struct {
	Role    ApproverRole
	GroupID id.GroupID
}

// ApproverDirectory answers which identities are entitled to resolve
// requests in a scope. Only used to detect configured heads and to populate
// assignments; notification delivery happens elsewhere.
type ApproverDirectory interface {
	ApproversFor(ctx context.Context, role ApproverRole, scopeGroupID id.GroupID) ([]string, error)
}

// GroupLookup is the slice of the group store the resolver needs.
type GroupLookup interface {
	FindByID(ctx context.Context, groupID id.GroupID) (*models.Group, error)
}

// Resolver resolves approver scopes over the two-level group hierarchy.
type Resolver struct {
	groups    GroupLookup
	approvers ApproverDirectory
}

// NewResolver creates a Resolver.
func NewResolver(groups GroupLookup, approvers ApproverDirectory) *Resolver {
	return &Resolver{groups: groups, approvers: approvers}
}

// ResolveApproverScope picks the approver for changes affecting the group:
// the department head when the group is a department with a configured head,
// otherwise the owning sector's manager. Sector-level groups resolve to
// themselves. Returns ErrUnresolvedScope when neither level yields a scope.
func (r *Resolver) ResolveApproverScope(ctx context.Context, group *models.Group) (Scope, error) {
	switch group.Level {
	case models.LevelSector:
		return Scope{Role: RoleSectorManager, GroupID: group.ID}, nil

	case models.LevelDepartment:
		heads, err := r.approvers.ApproversFor(ctx, RoleDepartmentHead, group.ID)
		if err != nil {
			return Scope{}, fmt.Errorf("look up department head: %w", err)
		}
		if len(heads) > 0 {
			return Scope{Role: RoleDepartmentHead, GroupID: group.ID}, nil
		}
		// No configured head: fall back to the parent sector.
		if group.ParentID == nil {
			return Scope{}, ErrUnresolvedScope
		}
		parent, err := r.groups.FindByID(ctx, *group.ParentID)
		if err != nil {
			return Scope{}, fmt.Errorf("look up parent sector: %w", err)
		}
		return Scope{Role: RoleSectorManager, GroupID: parent.ID}, nil

	default:
		return Scope{}, ErrUnresolvedScope
	}
}

// EscalationTarget returns the next broader scope. Departments escalate to
// their owning sector; a sector scope is already the top of the hierarchy
// and cannot escalate further.
func (r *Resolver) EscalationTarget(ctx context.Context, current Scope) (Scope, error) {
	if current.Role == RoleSectorManager {
		return Scope{}, ErrUnresolvedScope
	}
	group, err := r.groups.FindByID(ctx, current.GroupID)
	if err != nil {
		return Scope{}, fmt.Errorf("look up scope group: %w", err)
	}
	if group.ParentID == nil {
		return Scope{}, ErrUnresolvedScope
	}
	parent, err := r.groups.FindByID(ctx, *group.ParentID)
	if err != nil {
		return Scope{}, fmt.Errorf("look up parent sector: %w", err)
	}
	return Scope{Role: RoleSectorManager, GroupID: parent.ID}, nil
}
