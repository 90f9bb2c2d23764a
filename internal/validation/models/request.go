// Package models holds the validation request aggregate: the human decision
// point every destructive directory divergence must pass through.
package models

import (
	"encoding/json"
	"time"

	"hive/internal/org/scope"
	id "hive/pkg/domain"
	dErrors "hive/pkg/domain-errors"
)

// Type classifies what kind of divergence the request guards.
type Type string

const (
	TypeMembershipRemoved   Type = "membership_removed"
	TypeEmployeeDeactivated Type = "employee_deactivated"
	TypeGroupRemoved        Type = "group_removed"
	TypeDataConflict        Type = "data_conflict"
)

// Status is the workflow state of a request.
type Status string

const (
	StatusPending   Status = "pending"
	StatusInReview  Status = "in_review"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusEscalated Status = "escalated"
)

// Action is the approver's resolution vocabulary.
type Action string

const (
	ActionConfirmRemoval  Action = "confirm_removal"
	ActionRestoreManually Action = "restore_manually"
	ActionIgnore          Action = "ignore"
	ActionEscalate        Action = "escalate"
)

// ParseAction validates a wire-level action string.
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionConfirmRemoval, ActionRestoreManually, ActionIgnore, ActionEscalate:
		return Action(s), nil
	default:
		return "", dErrors.Newf(dErrors.CodeBadRequest, "unknown resolution action %q", s)
	}
}

// Request is one pending or resolved human decision point.
//
// Invariants:
//   - Status transitions are monotonic: once Approved or Rejected, a request
//     never returns to Pending.
//   - Escalation re-enters Pending under the broader scope exactly once;
//     a sector-scoped request cannot escalate further.
//   - Only the validation workflow's resolve operation mutates a request
//     after creation.
type Request struct {
	ID              id.RequestID       `json:"id"`
	Type            Type               `json:"type"`
	Description     string             `json:"description"`
	EmployeeID      *id.EmployeeID     `json:"employee_id,omitempty"`
	GroupID         *id.GroupID        `json:"group_id,omitempty"`
	PreviousState   json.RawMessage    `json:"previous_state,omitempty"`
	NewState        json.RawMessage    `json:"new_state,omitempty"`
	ApproverRole    scope.ApproverRole `json:"approver_role,omitempty"`
	ScopeGroupID    *id.GroupID        `json:"scope_group_id,omitempty"`
	NeedsTriage     bool               `json:"needs_triage"`
	Status          Status             `json:"status"`
	Escalated       bool               `json:"escalated"`
	Resolution      Action             `json:"resolution,omitempty"`
	ResolverID      string             `json:"resolver_id,omitempty"`
	ResolvedAt      *time.Time         `json:"resolved_at,omitempty"`
	ResolutionNotes string             `json:"resolution_notes,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	SyncRunID       id.SyncRunID       `json:"sync_run_id"`
}

// IsTerminal reports whether the request has been resolved.
func (r *Request) IsTerminal() bool {
	return r.Status == StatusApproved || r.Status == StatusRejected
}

// transitions is the explicit state machine table. Keying on
// (currentStatus, action) keeps the monotonicity invariant mechanically
// checkable: absent entries are forbidden transitions.
type transitionKey struct {
	status Status
	action Action
}

var transitions = map[transitionKey]Status{
	{StatusPending, ActionConfirmRemoval}:   StatusApproved,
	{StatusPending, ActionRestoreManually}:  StatusApproved,
	{StatusPending, ActionIgnore}:           StatusRejected,
	{StatusPending, ActionEscalate}:         StatusEscalated,
	{StatusInReview, ActionConfirmRemoval}:  StatusApproved,
	{StatusInReview, ActionRestoreManually}: StatusApproved,
	{StatusInReview, ActionIgnore}:          StatusRejected,
	{StatusInReview, ActionEscalate}:        StatusEscalated,
}

// CanResolve checks whether the action is legal in the current status.
// Terminal requests yield already_resolved so callers can distinguish
// "someone else handled it" from a forbidden transition.
func (r *Request) CanResolve(action Action) error {
	if r.IsTerminal() {
		return dErrors.New(dErrors.CodeAlreadyResolved, "request has already been resolved")
	}
	if _, ok := transitions[transitionKey{r.Status, action}]; !ok {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "action %s not allowed in status %s", action, r.Status)
	}
	if action == ActionEscalate && (r.Escalated || r.ApproverRole == scope.RoleSectorManager) {
		return dErrors.New(dErrors.CodeInvalidEscalation, "request is already at sector scope")
	}
	return nil
}

// ApplyResolution records a terminal resolution. Call CanResolve first.
func (r *Request) ApplyResolution(action Action, resolverID, notes string, now time.Time) {
	r.Status = transitions[transitionKey{r.Status, action}]
	r.Resolution = action
	r.ResolverID = resolverID
	r.ResolutionNotes = notes
	resolvedAt := now
	r.ResolvedAt = &resolvedAt
}

// ApplyEscalation reassigns the request to the broader scope and re-enters
// Pending. The Escalated flag bounds this to a single hop.
func (r *Request) ApplyEscalation(target scope.Scope, notes string) {
	r.Escalated = true
	r.ApproverRole = target.Role
	scopeGroupID := target.GroupID
	r.ScopeGroupID = &scopeGroupID
	r.NeedsTriage = false
	r.Status = StatusPending
	if notes != "" {
		r.ResolutionNotes = notes
	}
}

// MarkInReview moves a pending request into review. No-op error for
// terminal requests keeps monotonicity.
func (r *Request) MarkInReview() error {
	if r.Status != StatusPending {
		return dErrors.New(dErrors.CodeInvariantViolation, "only pending requests can enter review")
	}
	r.Status = StatusInReview
	return nil
}
