// Package store defines persistence for validation requests.
package store

import (
	"context"

	"hive/internal/validation/models"
	id "hive/pkg/domain"
)

// RequestStore persists validation requests.
//
// Execute runs validate and apply atomically under a row lock on the
// request, so concurrent resolutions of the same request serialize and the
// loser observes the winner's terminal state.
type RequestStore interface {
	Create(ctx context.Context, req *models.Request) error
	FindByID(ctx context.Context, requestID id.RequestID) (*models.Request, error)
	// ListPending returns pending and in-review requests, optionally
	// filtered to one approver scope group.
	ListPending(ctx context.Context, scopeGroupID *id.GroupID) ([]*models.Request, error)
	ListBySyncRun(ctx context.Context, syncRunID id.SyncRunID) ([]*models.Request, error)
	// HasOpen reports whether an unresolved request of the given type
	// already references the entity. The sync router uses this to keep
	// repeated runs from stacking duplicate requests.
	HasOpen(ctx context.Context, t models.Type, employeeID *id.EmployeeID, groupID *id.GroupID) (bool, error)
	Execute(ctx context.Context, requestID id.RequestID,
		validate func(*models.Request) error,
		apply func(*models.Request) error,
	) (*models.Request, error)
}
