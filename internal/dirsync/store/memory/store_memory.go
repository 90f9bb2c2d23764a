// Package memory provides an in-memory SyncRunStore for tests and local
// development.
package memory

import (
	"context"
	"sort"
	"sync"

	"hive/internal/dirsync/models"
	id "hive/pkg/domain"
	"hive/pkg/platform/sentinel"
)

type Store struct {
	mu   sync.Mutex
	runs map[id.SyncRunID]*models.SyncRun
}

func New() *Store {
	return &Store{runs: make(map[id.SyncRunID]*models.SyncRun)}
}

func cloneRun(r *models.SyncRun) *models.SyncRun {
	clone := *r
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		clone.CompletedAt = &t
	}
	return &clone
}

// Create rejects a second Running entry with sentinel.ErrConflict, mirroring
// the partial unique index the PostgreSQL store relies on.
func (s *Store) Create(ctx context.Context, run *models.SyncRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[run.ID]; ok {
		return sentinel.ErrConflict
	}
	if run.Status == models.RunStatusRunning {
		for _, existing := range s.runs {
			if existing.Status == models.RunStatusRunning {
				return sentinel.ErrConflict
			}
		}
	}
	s.runs[run.ID] = cloneRun(run)
	return nil
}

func (s *Store) Update(ctx context.Context, run *models.SyncRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[run.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.runs[run.ID] = cloneRun(run)
	return nil
}

func (s *Store) FindByID(ctx context.Context, runID id.SyncRunID) (*models.SyncRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneRun(run), nil
}

func (s *Store) FindRunning(ctx context.Context) (*models.SyncRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, run := range s.runs {
		if run.Status == models.RunStatusRunning {
			return cloneRun(run), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *Store) List(ctx context.Context, limit int) ([]*models.SyncRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.SyncRun, 0, len(s.runs))
	for _, run := range s.runs {
		out = append(out, cloneRun(run))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
