// Package store defines persistence for the sync run ledger.
package store

import (
	"context"

	"hive/internal/dirsync/models"
	id "hive/pkg/domain"
)

// SyncRunStore persists sync run ledger entries.
//
// Create of a Running entry must fail with sentinel.ErrConflict when another
// Running entry exists. That single check is the mutual exclusion mechanism
// for the whole engine, so it has to hold across process instances, not just
// within one.
type SyncRunStore interface {
	Create(ctx context.Context, run *models.SyncRun) error
	Update(ctx context.Context, run *models.SyncRun) error
	FindByID(ctx context.Context, runID id.SyncRunID) (*models.SyncRun, error)
	// FindRunning returns the current Running entry or sentinel.ErrNotFound.
	FindRunning(ctx context.Context) (*models.SyncRun, error)
	// List returns the most recent entries, newest first.
	List(ctx context.Context, limit int) ([]*models.SyncRun, error)
}
