package models

import (
	"hive/internal/directory"
	id "hive/pkg/domain"
)

// ChangeKind classifies one divergence between the directory snapshot and
// the local replica.
type ChangeKind string

const (
	// Additive: applied directly by the router.
	ChangeGroupAdded      ChangeKind = "group_added"
	ChangeEmployeeAdded   ChangeKind = "employee_added"
	ChangeEmployeeUpdated ChangeKind = "employee_updated"
	ChangeMembershipAdded ChangeKind = "membership_added"

	// Destructive: routed to the validation queue, never applied directly.
	ChangeGroupRemoved        ChangeKind = "group_removed"
	ChangeEmployeeDeactivated ChangeKind = "employee_deactivated"
	ChangeMembershipRemoved   ChangeKind = "membership_removed"
	ChangeDataConflict        ChangeKind = "data_conflict"
)

// Destructive reports whether this kind needs human validation before any
// local write happens.
func (k ChangeKind) Destructive() bool {
	switch k {
	case ChangeGroupRemoved, ChangeEmployeeDeactivated, ChangeMembershipRemoved, ChangeDataConflict:
		return true
	}
	return false
}

// Change is one diff result. Which fields are set depends on the kind:
// additive changes carry the directory payload to apply, destructive ones
// carry the local entity the validation request must reference.
type Change struct {
	Kind ChangeKind

	// Directory-side payloads for additive changes.
	DirectoryGroup  *directory.Group
	DirectoryMember *directory.Member

	// Local entities referenced by the change.
	GroupID    *id.GroupID
	EmployeeID *id.EmployeeID

	// Reason is a human-readable description carried into the validation
	// request for destructive changes.
	Reason string
}

// ChangeSet is the ordered output of one diff pass. Group changes come
// before member changes so membership applies always find their group.
type ChangeSet struct {
	Changes []Change
}

func (cs *ChangeSet) Add(c Change) { cs.Changes = append(cs.Changes, c) }

// CountByKind is a convenience for logging and tests.
func (cs *ChangeSet) CountByKind() map[ChangeKind]int {
	counts := make(map[ChangeKind]int)
	for _, c := range cs.Changes {
		counts[c.Kind]++
	}
	return counts
}
