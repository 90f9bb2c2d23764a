package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"hive/internal/dirsync/models"
	orgmodels "hive/internal/org/models"
	"hive/internal/org/scope"
	orgstore "hive/internal/org/store"
	vmodels "hive/internal/validation/models"
	vstore "hive/internal/validation/store"
	id "hive/pkg/domain"
	dErrors "hive/pkg/domain-errors"
	"hive/pkg/platform/audit"
	"hive/pkg/platform/sentinel"
	"hive/pkg/requestcontext"
)

// Router consumes a change set: additive changes are applied to the replica
// directly and idempotently, destructive ones become pending validation
// requests and touch nothing until a human approves them.
//
// Every apply re-reads current state first, so replaying the same change set
// is a no-op rather than a duplicate write.
type Router struct {
	employees   orgstore.EmployeeStore
	groups      orgstore.GroupStore
	memberships orgstore.MembershipStore
	requests    vstore.RequestStore
	resolver    *scope.Resolver
	audit       *audit.Recorder
	logger      *slog.Logger
}

func NewRouter(
	employees orgstore.EmployeeStore,
	groups orgstore.GroupStore,
	memberships orgstore.MembershipStore,
	requests vstore.RequestStore,
	resolver *scope.Resolver,
	recorder *audit.Recorder,
	logger *slog.Logger,
) *Router {
	return &Router{
		employees:   employees,
		groups:      groups,
		memberships: memberships,
		requests:    requests,
		resolver:    resolver,
		audit:       recorder,
		logger:      logger,
	}
}

// Route applies or queues every change, updating counters as it goes.
// Changes that fail a domain invariant are skipped and counted; storage
// failures abort so the run can be marked failed and safely retried.
func (r *Router) Route(ctx context.Context, runID id.SyncRunID, cs *models.ChangeSet, counters *models.Counters) error {
	for _, change := range orderChanges(cs.Changes) {
		var err error
		switch change.Kind {
		case models.ChangeGroupAdded:
			err = r.applyGroupAdded(ctx, runID, change, counters)
		case models.ChangeEmployeeAdded:
			err = r.applyEmployeeAdded(ctx, runID, change, counters)
		case models.ChangeEmployeeUpdated:
			err = r.applyEmployeeUpdated(ctx, runID, change, counters)
		case models.ChangeMembershipAdded:
			err = r.applyMembershipAdded(ctx, runID, change, counters)
		case models.ChangeGroupRemoved, models.ChangeEmployeeDeactivated,
			models.ChangeMembershipRemoved, models.ChangeDataConflict:
			err = r.queueValidation(ctx, runID, change, counters)
		default:
			r.logger.Warn("unknown change kind", slog.String("kind", string(change.Kind)))
			counters.ItemsSkipped++
			continue
		}
		if err == nil {
			continue
		}
		if isSkippable(err) {
			r.logger.Warn("skipping change",
				slog.String("kind", string(change.Kind)), slog.Any("error", err))
			counters.ItemsSkipped++
			continue
		}
		return fmt.Errorf("route %s change: %w", change.Kind, err)
	}
	return nil
}

// orderChanges front-loads sector group additions so department parents
// resolve when the departments are created right after.
func orderChanges(changes []models.Change) []models.Change {
	ordered := make([]models.Change, 0, len(changes))
	for _, c := range changes {
		if c.Kind == models.ChangeGroupAdded && c.DirectoryGroup.ParentID == "" {
			ordered = append(ordered, c)
		}
	}
	for _, c := range changes {
		if c.Kind == models.ChangeGroupAdded && c.DirectoryGroup.ParentID != "" {
			ordered = append(ordered, c)
		}
	}
	for _, c := range changes {
		if c.Kind != models.ChangeGroupAdded {
			ordered = append(ordered, c)
		}
	}
	return ordered
}

func isSkippable(err error) bool {
	return dErrors.HasCode(err, dErrors.CodeInvariantViolation) ||
		dErrors.HasCode(err, dErrors.CodeInvalidInput) ||
		errors.Is(err, sentinel.ErrInvalidState)
}

func (r *Router) applyGroupAdded(ctx context.Context, runID id.SyncRunID, change models.Change, counters *models.Counters) error {
	dir := change.DirectoryGroup
	if _, err := r.groups.FindByDirectoryID(ctx, dir.ID); err == nil {
		return nil // already present
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return err
	}

	level := orgmodels.LevelSector
	if dir.ParentID != "" {
		level = orgmodels.LevelDepartment
	}
	group, err := orgmodels.NewGroup(id.NewGroupID(), dir.ID, dir.DisplayName, level, requestcontext.Now(ctx))
	if err != nil {
		return err
	}
	if dir.ParentID != "" {
		parent, err := r.groups.FindByDirectoryID(ctx, dir.ParentID)
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			// Parent outside the managed namespace; keep the department
			// top-level rather than drop it.
			r.logger.Warn("department parent not found locally",
				slog.String("directory_id", dir.ID), slog.String("parent_id", dir.ParentID))
		case err != nil:
			return err
		default:
			if err := group.SetParent(parent, requestcontext.Now(ctx)); err != nil {
				return err
			}
		}
	}

	if err := r.groups.Create(ctx, group); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil // concurrent apply won
		}
		return err
	}
	r.audit.RecordSync(ctx, runID.String(), audit.ActionGroupCreated, "group", group.ID.String(), nil, group)
	return nil
}

func (r *Router) applyEmployeeAdded(ctx context.Context, runID id.SyncRunID, change models.Change, counters *models.Counters) error {
	member := change.DirectoryMember
	if _, err := r.employees.FindByDirectoryID(ctx, member.UserID); err == nil {
		return nil
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return err
	}

	employee, err := orgmodels.NewDirectoryEmployee(id.NewEmployeeID(), member.UserID, member.DisplayName, member.Email, requestcontext.Now(ctx))
	if err != nil {
		return err
	}
	if err := r.employees.Create(ctx, employee); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil
		}
		return err
	}
	counters.MembersAdded++
	r.audit.RecordSync(ctx, runID.String(), audit.ActionEmployeeCreated, "employee", employee.ID.String(), nil, employee)
	return nil
}

func (r *Router) applyEmployeeUpdated(ctx context.Context, runID id.SyncRunID, change models.Change, counters *models.Counters) error {
	member := change.DirectoryMember
	var before *orgmodels.Employee
	changed := false
	after, err := r.employees.Execute(ctx, *change.EmployeeID,
		func(e *orgmodels.Employee) error {
			snapshot := *e
			before = &snapshot
			return nil
		},
		func(e *orgmodels.Employee) {
			changed = e.RefreshDirectoryAttributes(member.DisplayName, member.Email, requestcontext.Now(ctx))
		},
	)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	counters.MembersUpdated++
	r.audit.RecordSync(ctx, runID.String(), audit.ActionEmployeeUpdated, "employee", after.ID.String(), before, after)
	return nil
}

func (r *Router) applyMembershipAdded(ctx context.Context, runID id.SyncRunID, change models.Change, counters *models.Counters) error {
	group, err := r.groups.FindByDirectoryID(ctx, change.DirectoryGroup.ID)
	if err != nil {
		return fmt.Errorf("resolve membership group: %w", err)
	}
	employee, err := r.employees.FindByDirectoryID(ctx, change.DirectoryMember.UserID)
	if err != nil {
		return fmt.Errorf("resolve membership employee: %w", err)
	}

	existing, err := r.memberships.Find(ctx, employee.ID, group.ID)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		membership := orgmodels.NewMembership(id.NewMembershipID(), employee.ID, group.ID, orgmodels.ProvenanceDirectory, requestcontext.Now(ctx))
		if err := r.memberships.Create(ctx, membership); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return nil
			}
			return err
		}
		counters.MembershipsAdded++
		r.audit.RecordSync(ctx, runID.String(), audit.ActionMembershipAdded, "membership", membership.ID.String(), nil, membership)
		return nil
	case err != nil:
		return err
	}

	if existing.IsCurrent() {
		return nil
	}
	restored, err := r.memberships.Execute(ctx, employee.ID, group.ID,
		func(m *orgmodels.Membership) error { return nil },
		func(m *orgmodels.Membership) { m.Reactivate(orgmodels.ProvenanceDirectory) },
	)
	if err != nil {
		return err
	}
	counters.MembershipsAdded++
	r.audit.RecordSync(ctx, runID.String(), audit.ActionMembershipRestored, "membership", restored.ID.String(), existing, restored)
	return nil
}

// queueValidation turns a destructive change into a pending validation
// request. An already open request for the same divergence is left alone so
// repeated runs never stack duplicates.
func (r *Router) queueValidation(ctx context.Context, runID id.SyncRunID, change models.Change, counters *models.Counters) error {
	requestType := requestTypeFor(change.Kind)
	open, err := r.requests.HasOpen(ctx, requestType, change.EmployeeID, change.GroupID)
	if err != nil {
		return err
	}
	if open {
		return nil
	}

	req := &vmodels.Request{
		ID:          id.NewRequestID(),
		Type:        requestType,
		Description: change.Reason,
		EmployeeID:  change.EmployeeID,
		GroupID:     change.GroupID,
		Status:      vmodels.StatusPending,
		CreatedAt:   requestcontext.Now(ctx),
		SyncRunID:   runID,
	}
	if err := r.snapshotStates(ctx, change, req); err != nil {
		return err
	}
	if err := r.assignScope(ctx, change, req); err != nil {
		return err
	}

	if err := r.requests.Create(ctx, req); err != nil {
		return err
	}
	counters.RequestsCreated++
	switch change.Kind {
	case models.ChangeEmployeeDeactivated:
		counters.MembersRemoved++
	case models.ChangeMembershipRemoved:
		counters.MembershipsRemoved++
	}
	r.audit.RecordSync(ctx, runID.String(), audit.ActionValidationCreated, "validation_request", req.ID.String(), nil, req)
	return nil
}

func requestTypeFor(kind models.ChangeKind) vmodels.Type {
	switch kind {
	case models.ChangeGroupRemoved:
		return vmodels.TypeGroupRemoved
	case models.ChangeEmployeeDeactivated:
		return vmodels.TypeEmployeeDeactivated
	case models.ChangeMembershipRemoved:
		return vmodels.TypeMembershipRemoved
	default:
		return vmodels.TypeDataConflict
	}
}

// snapshotStates captures the JSON prior state the approver will review.
// For data conflicts the proposed directory attributes go into NewState.
func (r *Router) snapshotStates(ctx context.Context, change models.Change, req *vmodels.Request) error {
	switch change.Kind {
	case models.ChangeGroupRemoved:
		group, err := r.groups.FindByID(ctx, *change.GroupID)
		if err != nil {
			return err
		}
		return marshalInto(&req.PreviousState, group)

	case models.ChangeEmployeeDeactivated:
		employee, err := r.employees.FindByID(ctx, *change.EmployeeID)
		if err != nil {
			return err
		}
		return marshalInto(&req.PreviousState, employee)

	case models.ChangeMembershipRemoved:
		membership, err := r.memberships.Find(ctx, *change.EmployeeID, *change.GroupID)
		if err != nil {
			return err
		}
		return marshalInto(&req.PreviousState, membership)

	case models.ChangeDataConflict:
		employee, err := r.employees.FindByID(ctx, *change.EmployeeID)
		if err != nil {
			return err
		}
		if err := marshalInto(&req.PreviousState, employee); err != nil {
			return err
		}
		return marshalInto(&req.NewState, change.DirectoryMember)
	}
	return nil
}

func marshalInto(dst *json.RawMessage, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("snapshot state: %w", err)
	}
	*dst = raw
	return nil
}

// assignScope resolves which approver owns the request. An unresolvable
// scope never drops the request: it is created flagged for manual triage.
func (r *Router) assignScope(ctx context.Context, change models.Change, req *vmodels.Request) error {
	group, err := r.scopeGroupFor(ctx, change)
	if err != nil {
		return err
	}
	if group == nil {
		req.NeedsTriage = true
		return nil
	}

	resolved, err := r.resolver.ResolveApproverScope(ctx, group)
	if errors.Is(err, scope.ErrUnresolvedScope) {
		req.NeedsTriage = true
		return nil
	}
	if err != nil {
		return err
	}
	req.ApproverRole = resolved.Role
	scopeGroupID := resolved.GroupID
	req.ScopeGroupID = &scopeGroupID
	return nil
}

// scopeGroupFor picks the group whose hierarchy position determines the
// approver: the membership's group, the removed group itself, or the
// employee's primary department.
func (r *Router) scopeGroupFor(ctx context.Context, change models.Change) (*orgmodels.Group, error) {
	switch change.Kind {
	case models.ChangeGroupRemoved, models.ChangeMembershipRemoved:
		return r.groups.FindByID(ctx, *change.GroupID)

	case models.ChangeEmployeeDeactivated, models.ChangeDataConflict:
		employee, err := r.employees.FindByID(ctx, *change.EmployeeID)
		if err != nil {
			return nil, err
		}
		if employee.PrimaryDepartmentID == nil {
			return nil, nil
		}
		return r.groups.FindByID(ctx, *employee.PrimaryDepartmentID)
	}
	return nil, nil
}
