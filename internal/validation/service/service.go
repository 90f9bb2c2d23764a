// Package service implements the validation workflow: the human decision
// layer every destructive directory change passes through.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"hive/internal/directory"
	orgmodels "hive/internal/org/models"
	"hive/internal/org/scope"
	orgstore "hive/internal/org/store"
	"hive/internal/validation/metrics"
	"hive/internal/validation/models"
	"hive/internal/validation/store"
	id "hive/pkg/domain"
	dErrors "hive/pkg/domain-errors"
	"hive/pkg/platform/audit"
	"hive/pkg/platform/sentinel"
	"hive/pkg/requestcontext"
)

// Service resolves validation requests and commits the approved mutations to
// the personnel replica.
type Service struct {
	requests    store.RequestStore
	employees   orgstore.EmployeeStore
	groups      orgstore.GroupStore
	memberships orgstore.MembershipStore
	resolver    *scope.Resolver
	audit       *audit.Recorder
	logger      *slog.Logger
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// NewService creates the validation workflow service.
func NewService(
	requests store.RequestStore,
	employees orgstore.EmployeeStore,
	groups orgstore.GroupStore,
	memberships orgstore.MembershipStore,
	resolver *scope.Resolver,
	recorder *audit.Recorder,
	opts ...Option,
) *Service {
	s := &Service{
		requests:    requests,
		employees:   employees,
		groups:      groups,
		memberships: memberships,
		resolver:    resolver,
		audit:       recorder,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns one request by id.
func (s *Service) Get(ctx context.Context, requestID id.RequestID) (*models.Request, error) {
	req, err := s.requests.FindByID(ctx, requestID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "validation request not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "look up validation request")
	}
	return req, nil
}

// ListPending returns unresolved requests, optionally filtered to one
// approver scope group.
func (s *Service) ListPending(ctx context.Context, scopeGroupID *id.GroupID) ([]*models.Request, error) {
	requests, err := s.requests.ListPending(ctx, scopeGroupID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list validation requests")
	}
	return requests, nil
}

// Resolve applies an approver's decision.
//
// The request transition happens first, under the store's row lock: whoever
// commits the transition wins, and the loser's attempt fails with
// already_resolved instead of silently double-applying. Only after the
// transition is durable does the decided mutation reach the org stores.
//
// Before any mutating action commits, the current org state is compared to
// the state the request captured at creation; drift fails the resolution
// with stale_request so nobody approves against a picture that no longer
// holds.
func (s *Service) Resolve(ctx context.Context, requestID id.RequestID, action models.Action, notes string) (*models.Request, error) {
	resolverID := requestcontext.ActorID(ctx)
	if resolverID == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}

	if action == models.ActionEscalate {
		return s.escalate(ctx, requestID, notes)
	}

	now := requestcontext.Now(ctx)
	resolved, err := s.requests.Execute(ctx, requestID,
		func(req *models.Request) error {
			if err := req.CanResolve(action); err != nil {
				return err
			}
			if action == models.ActionIgnore {
				return nil
			}
			return s.checkStale(ctx, req)
		},
		func(req *models.Request) error {
			req.ApplyResolution(action, resolverID, notes, now)
			return nil
		},
	)
	if err != nil {
		return nil, s.translateResolveError(err)
	}

	switch action {
	case models.ActionConfirmRemoval:
		err = s.commitRemoval(ctx, resolved, now)
	case models.ActionRestoreManually:
		err = s.commitRestore(ctx, resolved, now)
	}
	if err != nil {
		// The request is already terminal; surface the commit failure rather
		// than pretend the mutation happened.
		s.logger.ErrorContext(ctx, "resolution commit failed",
			"request_id", resolved.ID.String(),
			"action", string(action),
			"error", err,
		)
		return resolved, dErrors.Wrap(err, dErrors.CodeInternal, "apply resolution")
	}

	metrics.Resolutions.WithLabelValues(string(resolved.Type), string(action)).Inc()
	s.audit.Record(ctx, audit.ActionValidationResolved, "validation_request", resolved.ID.String(), nil, resolved)
	s.logger.InfoContext(ctx, "validation request resolved",
		"request_id", resolved.ID.String(),
		"type", string(resolved.Type),
		"action", string(action),
		"resolver", resolverID,
	)
	return resolved, nil
}

func (s *Service) translateResolveError(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "validation request not found")
	case dErrors.HasCode(err, dErrors.CodeAlreadyResolved):
		metrics.ResolveConflicts.WithLabelValues("already_resolved").Inc()
		return err
	case dErrors.HasCode(err, dErrors.CodeStaleRequest):
		metrics.ResolveConflicts.WithLabelValues("stale_request").Inc()
		return err
	default:
		return err
	}
}

// escalate moves the request one hop up the hierarchy, bounded at sector
// level.
func (s *Service) escalate(ctx context.Context, requestID id.RequestID, notes string) (*models.Request, error) {
	resolved, err := s.requests.Execute(ctx, requestID,
		func(req *models.Request) error {
			return req.CanResolve(models.ActionEscalate)
		},
		func(req *models.Request) error {
			if req.ScopeGroupID == nil {
				return dErrors.New(dErrors.CodeInvalidEscalation, "request has no scope to escalate from")
			}
			target, err := s.resolver.EscalationTarget(ctx, scope.Scope{Role: req.ApproverRole, GroupID: *req.ScopeGroupID})
			if errors.Is(err, scope.ErrUnresolvedScope) {
				return dErrors.New(dErrors.CodeInvalidEscalation, "no broader scope exists")
			}
			if err != nil {
				return err
			}
			req.ApplyEscalation(target, notes)
			return nil
		},
	)
	if err != nil {
		return nil, s.translateResolveError(err)
	}

	metrics.Escalations.Inc()
	s.audit.Record(ctx, audit.ActionValidationResolved, "validation_request", resolved.ID.String(), nil, resolved)
	s.logger.InfoContext(ctx, "validation request escalated",
		"request_id", resolved.ID.String(),
		"scope_group_id", resolved.ScopeGroupID.String(),
	)
	return resolved, nil
}

// checkStale compares current org state against the request's captured
// prior state.
func (s *Service) checkStale(ctx context.Context, req *models.Request) error {
	stale := func(msg string) error {
		return dErrors.New(dErrors.CodeStaleRequest, msg)
	}

	switch req.Type {
	case models.TypeMembershipRemoved:
		membership, err := s.memberships.Find(ctx, *req.EmployeeID, *req.GroupID)
		if errors.Is(err, sentinel.ErrNotFound) {
			return stale("membership no longer exists")
		}
		if err != nil {
			return err
		}
		if !membership.IsCurrent() {
			return stale("membership was already removed")
		}
		if membership.Provenance == orgmodels.ProvenanceManual {
			return stale("membership was restored manually since this request was created")
		}

	case models.TypeEmployeeDeactivated:
		employee, err := s.employees.FindByID(ctx, *req.EmployeeID)
		if err != nil {
			return err
		}
		if !employee.Active {
			return stale("employee was already deactivated")
		}
		if employee.Provenance == orgmodels.ProvenanceManual {
			return stale("employee was restored manually since this request was created")
		}

	case models.TypeGroupRemoved:
		group, err := s.groups.FindByID(ctx, *req.GroupID)
		if err != nil {
			return err
		}
		if group.IsRemoved() {
			return stale("group was already removed")
		}
		if group.DirectoryID == "" {
			return stale("group was decoupled from the directory since this request was created")
		}

	case models.TypeDataConflict:
		employee, err := s.employees.FindByID(ctx, *req.EmployeeID)
		if err != nil {
			return err
		}
		var prior orgmodels.Employee
		if err := json.Unmarshal(req.PreviousState, &prior); err != nil {
			return fmt.Errorf("decode prior state: %w", err)
		}
		if employee.DisplayName != prior.DisplayName || employee.Email != prior.Email {
			return stale("employee record changed since this request was created")
		}
	}
	return nil
}

// commitRemoval applies the confirmed destructive change.
func (s *Service) commitRemoval(ctx context.Context, req *models.Request, now time.Time) error {
	switch req.Type {
	case models.TypeMembershipRemoved:
		before, err := s.memberships.Find(ctx, *req.EmployeeID, *req.GroupID)
		if err != nil {
			return err
		}
		removed, err := s.memberships.Execute(ctx, *req.EmployeeID, *req.GroupID,
			func(m *orgmodels.Membership) error { return m.CanRemove() },
			func(m *orgmodels.Membership) { m.ApplyRemoval(now) },
		)
		if err != nil {
			return err
		}
		s.audit.Record(ctx, audit.ActionMembershipRemoved, "membership", removed.ID.String(), before, removed)

	case models.TypeEmployeeDeactivated:
		return s.deactivateEmployee(ctx, *req.EmployeeID, now)

	case models.TypeGroupRemoved:
		removed, err := s.groups.Execute(ctx, *req.GroupID,
			func(g *orgmodels.Group) error { return g.CanRemove() },
			func(g *orgmodels.Group) { g.ApplyRemoval(now) },
		)
		if err != nil {
			return err
		}
		s.audit.Record(ctx, audit.ActionGroupRemoved, "group", removed.ID.String(), nil, removed)

	case models.TypeDataConflict:
		// Confirming a data conflict accepts the directory's version.
		var member directory.Member
		if err := json.Unmarshal(req.NewState, &member); err != nil {
			return fmt.Errorf("decode proposed state: %w", err)
		}
		updated, err := s.employees.Execute(ctx, *req.EmployeeID,
			func(e *orgmodels.Employee) error { return nil },
			func(e *orgmodels.Employee) { e.RefreshDirectoryAttributes(member.DisplayName, member.Email, now) },
		)
		if err != nil {
			return err
		}
		s.audit.Record(ctx, audit.ActionEmployeeUpdated, "employee", updated.ID.String(), req.PreviousState, updated)
	}
	return nil
}

// deactivateEmployee soft-deactivates the employee and removes their current
// memberships: a deactivation subsumes individual membership removals.
func (s *Service) deactivateEmployee(ctx context.Context, employeeID id.EmployeeID, now time.Time) error {
	deactivated, err := s.employees.Execute(ctx, employeeID,
		func(e *orgmodels.Employee) error { return e.CanDeactivate() },
		func(e *orgmodels.Employee) { e.ApplyDeactivation(now) },
	)
	if err != nil {
		return err
	}
	s.audit.Record(ctx, audit.ActionEmployeeDeactivated, "employee", deactivated.ID.String(), nil, deactivated)

	current, err := s.memberships.ListCurrentByEmployee(ctx, employeeID)
	if err != nil {
		return err
	}
	for _, membership := range current {
		removed, err := s.memberships.Execute(ctx, membership.EmployeeID, membership.GroupID,
			func(m *orgmodels.Membership) error { return m.CanRemove() },
			func(m *orgmodels.Membership) { m.ApplyRemoval(now) },
		)
		if err != nil {
			return err
		}
		s.audit.Record(ctx, audit.ActionMembershipRemoved, "membership", removed.ID.String(), membership, removed)
	}
	return nil
}

// commitRestore keeps the entity and decouples it from directory-driven
// removal by flipping it to manual provenance.
func (s *Service) commitRestore(ctx context.Context, req *models.Request, now time.Time) error {
	switch req.Type {
	case models.TypeMembershipRemoved:
		restored, err := s.memberships.Execute(ctx, *req.EmployeeID, *req.GroupID,
			func(m *orgmodels.Membership) error { return nil },
			func(m *orgmodels.Membership) { m.ApplyManualProvenance() },
		)
		if err != nil {
			return err
		}
		s.audit.Record(ctx, audit.ActionMembershipRestored, "membership", restored.ID.String(), nil, restored)

	case models.TypeEmployeeDeactivated, models.TypeDataConflict:
		restored, err := s.employees.Execute(ctx, *req.EmployeeID,
			func(e *orgmodels.Employee) error { return nil },
			func(e *orgmodels.Employee) { e.ApplyManualProvenance(now) },
		)
		if err != nil {
			return err
		}
		s.audit.Record(ctx, audit.ActionEmployeeUpdated, "employee", restored.ID.String(), nil, restored)

	case models.TypeGroupRemoved:
		restored, err := s.groups.Execute(ctx, *req.GroupID,
			func(g *orgmodels.Group) error { return nil },
			func(g *orgmodels.Group) { g.ApplyLocalOnly(now) },
		)
		if err != nil {
			return err
		}
		s.audit.Record(ctx, audit.ActionGroupUpdated, "group", restored.ID.String(), nil, restored)
	}
	return nil
}
