package scope

import (
	"context"
	"sync"

	id "hive/pkg/domain"
)

// StaticDirectory is an in-memory ApproverDirectory configured at startup.
// Deployments with a real approver source replace this with an adapter.
type StaticDirectory struct {
	mu        sync.RWMutex
	approvers map[id.GroupID][]string
}

// NewStaticDirectory creates an empty static approver directory.
func NewStaticDirectory() *StaticDirectory {
	return &StaticDirectory{approvers: make(map[id.GroupID][]string)}
}

// Assign sets the approvers for a scope group.
func (d *StaticDirectory) Assign(scopeGroupID id.GroupID, identities ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.approvers[scopeGroupID] = append([]string(nil), identities...)
}

// ApproversFor returns the configured identities for the scope group.
// The role is not consulted: a static configuration binds identities to
// groups directly.
func (d *StaticDirectory) ApproversFor(ctx context.Context, role ApproverRole, scopeGroupID id.GroupID) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]string(nil), d.approvers[scopeGroupID]...), nil
}
