// Package directory is the I/O boundary to the external directory provider,
// the authoritative source of group and account state.
package directory

import (
	"context"
	"fmt"
)

//go:generate mockgen -source=client.go -destination=mocks/mocks.go -package=mocks Client

// Group is a directory group in the managed namespace.
type Group struct {
	ID          string
	DisplayName string
	// ParentID is empty for top-level (sector) groups.
	ParentID string
}

// Member is one directory account referenced by a group.
type Member struct {
	UserID      string
	DisplayName string
	Email       string
	Active      bool
}

// Client reads group and member state from the directory provider.
// Implementations handle transport-level retries; the sync engine only sees
// the final success or failure.
type Client interface {
	// ListManagedGroups returns every group in the managed namespace.
	ListManagedGroups(ctx context.Context) ([]Group, error)
	// ListGroupMembers returns the members of one group.
	ListGroupMembers(ctx context.Context, groupID string) ([]Member, error)
}

// FetchError wraps any directory provider failure. A fetch error aborts the
// sync run before any diff or write step executes.
type FetchError struct {
	Op  string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("directory fetch %s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// NewFetchError wraps err as a fetch failure for the given operation.
func NewFetchError(op string, err error) *FetchError {
	return &FetchError{Op: op, Err: err}
}
