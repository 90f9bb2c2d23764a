package runlock_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hive/internal/dirsync/runlock"
)

func TestMemoryLock(t *testing.T) {
	ctx := context.Background()
	lock := runlock.NewMemory()

	acquired, err := lock.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, acquired)

	acquired, err = lock.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, acquired, "a held lock must not be re-acquired")

	require.NoError(t, lock.Release(ctx))

	acquired, err = lock.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, acquired)
}
