// Package memory provides the in-memory audit store used in tests and
// single-process deployments.
package memory

import (
	"context"
	"sync"

	audit "hive/pkg/platform/audit"
)

// Store is an append-only in-memory audit trail.
type Store struct {
	mu     sync.RWMutex
	events []audit.Event
}

// New creates an empty in-memory audit store.
func New() *Store {
	return &Store{}
}

// Append adds an event to the trail.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// ListByEntity returns all events for one entity in append order.
func (s *Store) ListByEntity(ctx context.Context, entityType, entityID string) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []audit.Event
	for _, event := range s.events {
		if event.EntityType == entityType && event.EntityID == entityID {
			matched = append(matched, event)
		}
	}
	return matched, nil
}

// All returns a copy of the full trail. Test helper.
func (s *Store) All() []audit.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]audit.Event, len(s.events))
	copy(out, s.events)
	return out
}
