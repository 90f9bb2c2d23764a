package models

import (
	"time"

	id "hive/pkg/domain"
	dErrors "hive/pkg/domain-errors"
)

// Membership joins an employee to a group.
//
// Invariants:
//   - At most one membership row exists per (employee, group) pair; re-adding
//     a removed membership reactivates the same row.
//   - A membership with RemovedAt set is logically absent from current-member
//     queries but retained for audit and history.
type Membership struct {
	ID         id.MembershipID `json:"id"`
	EmployeeID id.EmployeeID   `json:"employee_id"`
	GroupID    id.GroupID      `json:"group_id"`
	JoinedAt   time.Time       `json:"joined_at"`
	Provenance Provenance      `json:"provenance"`
	Active     bool            `json:"active"`
	RemovedAt  *time.Time      `json:"removed_at,omitempty"`
}

// NewMembership creates an active membership.
func NewMembership(membershipID id.MembershipID, employeeID id.EmployeeID, groupID id.GroupID, provenance Provenance, now time.Time) *Membership {
	return &Membership{
		ID:         membershipID,
		EmployeeID: employeeID,
		GroupID:    groupID,
		JoinedAt:   now,
		Provenance: provenance,
		Active:     true,
	}
}

// IsCurrent reports whether the membership counts toward current members.
func (m *Membership) IsCurrent() bool { return m.Active && m.RemovedAt == nil }

// CanRemove checks the removal transition.
func (m *Membership) CanRemove() error {
	if !m.IsCurrent() {
		return dErrors.New(dErrors.CodeInvariantViolation, "membership is already removed")
	}
	return nil
}

// ApplyRemoval marks the membership removed while keeping the row for
// history. Call CanRemove first.
func (m *Membership) ApplyRemoval(now time.Time) {
	removedAt := now
	m.Active = false
	m.RemovedAt = &removedAt
}

// ApplyManualProvenance flips the membership to manual provenance, exempting
// it from future directory-driven removal detection.
func (m *Membership) ApplyManualProvenance() {
	m.Provenance = ProvenanceManual
}

// Reactivate restores a previously removed membership, keeping the original
// join date.
func (m *Membership) Reactivate(provenance Provenance) {
	m.Active = true
	m.RemovedAt = nil
	m.Provenance = provenance
}
