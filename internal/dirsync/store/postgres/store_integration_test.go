//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"hive/internal/dirsync/models"
	"hive/internal/dirsync/store/postgres"
	"hive/pkg/platform/sentinel"
	"hive/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *postgres.Store
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = postgres.New(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.postgres.TruncateTables(ctx, "validation_requests", "sync_runs"))
}

// TestConcurrentStartSingleWinner verifies the partial unique index admits
// exactly one Running entry no matter how many instances race.
func (s *PostgresStoreSuite) TestConcurrentStartSingleWinner() {
	ctx := context.Background()
	const goroutines = 30

	var wg sync.WaitGroup
	var successCount, conflictCount atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			run := models.NewSyncRun("race", time.Now())
			err := s.store.Create(ctx, run)
			if err == nil {
				successCount.Add(1)
			} else if errors.Is(err, sentinel.ErrConflict) {
				conflictCount.Add(1)
			}
		}()
	}

	wg.Wait()

	s.Equal(int32(1), successCount.Load(), "exactly one start should succeed")
	s.Equal(int32(goroutines-1), conflictCount.Load(), "all others should conflict")

	running, err := s.store.FindRunning(ctx)
	s.Require().NoError(err)
	s.Equal(models.RunStatusRunning, running.Status)
}

func (s *PostgresStoreSuite) TestConstraintClearsOnFinish() {
	ctx := context.Background()

	first := models.NewSyncRun("scheduler", time.Now())
	s.Require().NoError(s.store.Create(ctx, first))

	second := models.NewSyncRun("operator", time.Now())
	s.ErrorIs(s.store.Create(ctx, second), sentinel.ErrConflict)

	s.Require().NoError(first.Finish(models.RunStatusCompleted, "", models.Counters{GroupsProcessed: 3}, time.Now()))
	s.Require().NoError(s.store.Update(ctx, first))

	s.NoError(s.store.Create(ctx, second))
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	ctx := context.Background()

	run := models.NewSyncRun("scheduler", time.Now().UTC().Truncate(time.Microsecond))
	s.Require().NoError(s.store.Create(ctx, run))

	s.Require().NoError(run.Finish(models.RunStatusFailed, "directory unreachable", models.Counters{ItemsSkipped: 2}, time.Now().UTC()))
	s.Require().NoError(s.store.Update(ctx, run))

	found, err := s.store.FindByID(ctx, run.ID)
	s.Require().NoError(err)
	s.Equal(models.RunStatusFailed, found.Status)
	s.Equal("directory unreachable", found.ErrorMessage)
	s.Equal(2, found.Counters.ItemsSkipped)
	s.NotNil(found.CompletedAt)

	_, err = s.store.FindRunning(ctx)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestListNewestFirst() {
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Microsecond)
	for i := 0; i < 3; i++ {
		run := models.NewSyncRun("scheduler", base.Add(time.Duration(i)*time.Minute))
		s.Require().NoError(s.store.Create(ctx, run))
		s.Require().NoError(run.Finish(models.RunStatusCompleted, "", models.Counters{}, base.Add(time.Duration(i)*time.Minute+time.Second)))
		s.Require().NoError(s.store.Update(ctx, run))
	}

	runs, err := s.store.List(ctx, 2)
	s.Require().NoError(err)
	s.Require().Len(runs, 2)
	s.True(runs[0].StartedAt.After(runs[1].StartedAt))
}
