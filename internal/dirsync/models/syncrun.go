// Package models holds the sync run ledger entry and the change set the
// diff step produces.
package models

import (
	"time"

	id "hive/pkg/domain"
	dErrors "hive/pkg/domain-errors"
)

// RunStatus is the lifecycle state of one sync run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	// RunStatusPartiallyCompleted marks a cancelled run whose already
	// diffed changes were still routed before shutdown.
	RunStatusPartiallyCompleted RunStatus = "partially_completed"
)

// Counters summarizes what one run did. Additive changes count applied
// writes; destructive ones count the validation requests raised instead.
type Counters struct {
	GroupsProcessed    int `json:"groups_processed"`
	MembersAdded       int `json:"members_added"`
	MembersUpdated     int `json:"members_updated"`
	MembersRemoved     int `json:"members_removed"`
	MembershipsAdded   int `json:"memberships_added"`
	MembershipsRemoved int `json:"memberships_removed"`
	RequestsCreated    int `json:"requests_created"`
	ItemsSkipped       int `json:"items_skipped"`
}

// SyncRun is one ledger entry. At most one run is in RunStatusRunning at any
// time; the store enforces that, not the service.
type SyncRun struct {
	ID           id.SyncRunID `json:"id"`
	Status       RunStatus    `json:"status"`
	Initiator    string       `json:"initiator,omitempty"`
	StartedAt    time.Time    `json:"started_at"`
	CompletedAt  *time.Time   `json:"completed_at,omitempty"`
	ErrorMessage string       `json:"error_message,omitempty"`
	Counters     Counters     `json:"counters"`
}

// NewSyncRun starts a ledger entry in Running status.
func NewSyncRun(initiator string, now time.Time) *SyncRun {
	return &SyncRun{
		ID:        id.NewSyncRunID(),
		Status:    RunStatusRunning,
		Initiator: initiator,
		StartedAt: now,
	}
}

// IsTerminal reports whether the run has finished.
func (r *SyncRun) IsTerminal() bool {
	return r.Status != RunStatusRunning
}

// Finish moves the run to a terminal status. Finishing an already terminal
// run is an invariant violation: terminal ledger entries are immutable.
func (r *SyncRun) Finish(status RunStatus, errorMessage string, counters Counters, now time.Time) error {
	if r.IsTerminal() {
		return dErrors.New(dErrors.CodeInvariantViolation, "sync run already finished")
	}
	if status == RunStatusRunning {
		return dErrors.New(dErrors.CodeInvariantViolation, "running is not a terminal status")
	}
	r.Status = status
	r.ErrorMessage = errorMessage
	r.Counters = counters
	completedAt := now
	r.CompletedAt = &completedAt
	return nil
}
