// Package runlock provides an advisory lock taken for the duration of a
// sync run. The ledger's unique constraint is the authoritative mutual
// exclusion; the lock is a cheap fast-path check that keeps scheduler ticks
// on other instances from even attempting a run.
package runlock

import (
	"context"
	"sync"
)

// Lock is a single advisory lock. Acquire returns false without error when
// the lock is already held elsewhere.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// Memory is a process-local Lock for tests and single-instance deployments.
type Memory struct {
	mu   sync.Mutex
	held bool
}

func NewMemory() *Memory {
	return &Memory{}
}

func (l *Memory) Acquire(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		return false, nil
	}
	l.held = true
	return true, nil
}

func (l *Memory) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.held = false
	return nil
}
