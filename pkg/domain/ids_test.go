package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "hive/pkg/domain-errors"
)

// TestParseUUID_Invariants validates the parsing invariant:
// "IDs must be valid, non-empty, non-nil UUIDs".
func TestParseUUID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseEmployeeID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseEmployeeID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseRequestID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		validUUID := uuid.New()
		id, err := ParseGroupID(validUUID.String())
		require.NoError(t, err)
		assert.Equal(t, GroupID(validUUID), id)
	})

	t.Run("round-trips through String", func(t *testing.T) {
		runID := NewSyncRunID()
		parsed, err := ParseSyncRunID(runID.String())
		require.NoError(t, err)
		assert.Equal(t, runID, parsed)
	})
}

// TestTypeDistinction verifies the compiler enforces type safety.
// This is a compile-time check - if this compiles, the invariant holds.
func TestTypeDistinction(t *testing.T) {
	employeeID := EmployeeID(uuid.New())
	groupID := GroupID(uuid.New())

	// These would fail to compile if types were interchangeable:
	// var _ EmployeeID = groupID   // compile error
	// var _ GroupID = employeeID   // compile error

	// Verify they're distinct at runtime too
	assert.NotEqual(t, uuid.UUID(employeeID), uuid.UUID(groupID))
}

func TestIsNil(t *testing.T) {
	assert.True(t, EmployeeID{}.IsNil())
	assert.True(t, SyncRunID(uuid.Nil).IsNil())
	assert.False(t, NewRequestID().IsNil())
}
