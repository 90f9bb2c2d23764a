// Package audit captures the mutation trail for personnel records.
//
// Every committed change to employees, groups, memberships, and validation
// requests produces one Event. The trail is append-only; stores never update
// or delete events.
package audit

import (
	"encoding/json"
	"time"
)

// Action identifies what happened. Values are stable wire identifiers.
type Action string

const (
	ActionEmployeeCreated     Action = "employee.created"
	ActionEmployeeUpdated     Action = "employee.updated"
	ActionEmployeeDeactivated Action = "employee.deactivated"
	ActionGroupCreated        Action = "group.created"
	ActionGroupUpdated        Action = "group.updated"
	ActionGroupRemoved        Action = "group.removed"
	ActionMembershipAdded     Action = "membership.added"
	ActionMembershipRemoved   Action = "membership.removed"
	ActionMembershipRestored  Action = "membership.restored"
	ActionValidationCreated   Action = "validation.created"
	ActionValidationResolved  Action = "validation.resolved"
	ActionSyncStarted         Action = "sync.started"
	ActionSyncCompleted       Action = "sync.completed"
	ActionSyncFailed          Action = "sync.failed"
)

// Event is one entry in the audit trail. Keep it transport-agnostic so
// stores and sinks can fan out.
type Event struct {
	ID         string          `json:"id"`
	Timestamp  time.Time       `json:"timestamp"`
	Action     Action          `json:"action"`
	EntityType string          `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	ActorID    string          `json:"actor_id,omitempty"`
	SyncRunID  string          `json:"sync_run_id,omitempty"`
	RequestID  string          `json:"request_id,omitempty"`
	OldState   json.RawMessage `json:"old_state,omitempty"`
	NewState   json.RawMessage `json:"new_state,omitempty"`
}
