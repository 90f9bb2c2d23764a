// Package memory provides an in-memory RequestStore for tests and local
// development.
package memory

import (
	"context"
	"sort"
	"sync"

	"hive/internal/validation/models"
	id "hive/pkg/domain"
	"hive/pkg/platform/sentinel"
)

type Store struct {
	mu       sync.Mutex
	requests map[id.RequestID]*models.Request
}

func New() *Store {
	return &Store{requests: make(map[id.RequestID]*models.Request)}
}

func cloneRequest(r *models.Request) *models.Request {
	clone := *r
	if r.ResolvedAt != nil {
		t := *r.ResolvedAt
		clone.ResolvedAt = &t
	}
	if r.EmployeeID != nil {
		e := *r.EmployeeID
		clone.EmployeeID = &e
	}
	if r.GroupID != nil {
		g := *r.GroupID
		clone.GroupID = &g
	}
	if r.ScopeGroupID != nil {
		s := *r.ScopeGroupID
		clone.ScopeGroupID = &s
	}
	clone.PreviousState = append([]byte(nil), r.PreviousState...)
	clone.NewState = append([]byte(nil), r.NewState...)
	return &clone
}

func (s *Store) Create(ctx context.Context, req *models.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[req.ID]; ok {
		return sentinel.ErrConflict
	}
	s.requests[req.ID] = cloneRequest(req)
	return nil
}

func (s *Store) FindByID(ctx context.Context, requestID id.RequestID) (*models.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[requestID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneRequest(req), nil
}

func (s *Store) ListPending(ctx context.Context, scopeGroupID *id.GroupID) ([]*models.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Request
	for _, req := range s.requests {
		if req.IsTerminal() {
			continue
		}
		if scopeGroupID != nil {
			if req.ScopeGroupID == nil || *req.ScopeGroupID != *scopeGroupID {
				continue
			}
		}
		out = append(out, cloneRequest(req))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) ListBySyncRun(ctx context.Context, syncRunID id.SyncRunID) ([]*models.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Request
	for _, req := range s.requests {
		if req.SyncRunID == syncRunID {
			out = append(out, cloneRequest(req))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) HasOpen(ctx context.Context, t models.Type, employeeID *id.EmployeeID, groupID *id.GroupID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, req := range s.requests {
		if req.Type != t || req.IsTerminal() {
			continue
		}
		if employeeID != nil && (req.EmployeeID == nil || *req.EmployeeID != *employeeID) {
			continue
		}
		if groupID != nil && (req.GroupID == nil || *req.GroupID != *groupID) {
			continue
		}
		return true, nil
	}
	return false, nil
}

func (s *Store) Execute(ctx context.Context, requestID id.RequestID,
	validate func(*models.Request) error,
	apply func(*models.Request) error,
) (*models.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[requestID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	working := cloneRequest(req)
	if err := validate(working); err != nil {
		return nil, err
	}
	if err := apply(working); err != nil {
		return nil, err
	}
	s.requests[requestID] = cloneRequest(working)
	return working, nil
}
