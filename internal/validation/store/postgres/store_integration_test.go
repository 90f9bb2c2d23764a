//go:build integration

package postgres_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	runmodels "hive/internal/dirsync/models"
	runpostgres "hive/internal/dirsync/store/postgres"
	"hive/internal/org/scope"
	"hive/internal/validation/models"
	"hive/internal/validation/store/postgres"
	id "hive/pkg/domain"
	dErrors "hive/pkg/domain-errors"
	"hive/pkg/platform/sentinel"
	"hive/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *postgres.Store
	runID    id.SyncRunID
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

	// Requests reference the run that raised them.
	run := runmodels.NewSyncRun("integration", time.Now().UTC())
	s.Require().NoError(runpostgres.New(s.postgres.DB).Create(ctx, run))
	s.runID = run.ID
}

func (s *PostgresStoreSuite) newRequest(reqType models.Type) *models.Request {
	employeeID := id.NewEmployeeID()
	scopeGroupID := id.NewGroupID()
	return &models.Request{
		ID:           id.NewRequestID(),
		Type:         reqType,
		Description:  "integration fixture",
		EmployeeID:   &employeeID,
		ApproverRole: scope.RoleDepartmentHead,
		ScopeGroupID: &scopeGroupID,
		Status:       models.StatusPending,
		CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
		SyncRunID:    s.runID,
	}
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	ctx := context.Background()

	req := s.newRequest(models.TypeEmployeeDeactivated)
	req.PreviousState = []byte(`{"display_name":"Ada","email":"ada@example.com"}`)
	s.Require().NoError(s.store.Create(ctx, req))

	found, err := s.store.FindByID(ctx, req.ID)
	s.Require().NoError(err)
	s.Equal(req.Type, found.Type)
	s.Equal(*req.EmployeeID, *found.EmployeeID)
	s.Equal(*req.ScopeGroupID, *found.ScopeGroupID)
	s.JSONEq(string(req.PreviousState), string(found.PreviousState))
	s.Nil(found.GroupID)
	s.Nil(found.ResolvedAt)
}

func (s *PostgresStoreSuite) TestListPendingScopeFilter() {
	ctx := context.Background()

	inScope := s.newRequest(models.TypeMembershipRemoved)
	s.Require().NoError(s.store.Create(ctx, inScope))
	outOfScope := s.newRequest(models.TypeMembershipRemoved)
	s.Require().NoError(s.store.Create(ctx, outOfScope))

	all, err := s.store.ListPending(ctx, nil)
	s.Require().NoError(err)
	s.Len(all, 2)

	scoped, err := s.store.ListPending(ctx, inScope.ScopeGroupID)
	s.Require().NoError(err)
	s.Require().Len(scoped, 1)
	s.Equal(inScope.ID, scoped[0].ID)
}

func (s *PostgresStoreSuite) TestHasOpenSuppressesDuplicates() {
	ctx := context.Background()

	req := s.newRequest(models.TypeEmployeeDeactivated)
	s.Require().NoError(s.store.Create(ctx, req))

	open, err := s.store.HasOpen(ctx, models.TypeEmployeeDeactivated, req.EmployeeID, nil)
	s.Require().NoError(err)
	s.True(open)

	other := id.NewEmployeeID()
	open, err = s.store.HasOpen(ctx, models.TypeEmployeeDeactivated, &other, nil)
	s.Require().NoError(err)
	s.False(open)

	// A resolved request no longer blocks a new one.
	_, err = s.store.Execute(ctx, req.ID,
		func(r *models.Request) error { return r.CanResolve(models.ActionIgnore) },
		func(r *models.Request) error {
			r.ApplyResolution(models.ActionIgnore, "approver", "", time.Now().UTC())
			return nil
		},
	)
	s.Require().NoError(err)

	open, err = s.store.HasOpen(ctx, models.TypeEmployeeDeactivated, req.EmployeeID, nil)
	s.Require().NoError(err)
	s.False(open)
}

// TestConcurrentResolveSingleWinner verifies the row lock serializes racing
// approvers: one resolution commits, the rest see already_resolved.
func (s *PostgresStoreSuite) TestConcurrentResolveSingleWinner() {
	ctx := context.Background()

	req := s.newRequest(models.TypeMembershipRemoved)
	s.Require().NoError(s.store.Create(ctx, req))

	const goroutines = 20
	var wg sync.WaitGroup
	var winners, losers atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := s.store.Execute(ctx, req.ID,
				func(r *models.Request) error { return r.CanResolve(models.ActionConfirmRemoval) },
				func(r *models.Request) error {
					r.ApplyResolution(models.ActionConfirmRemoval, "approver", "", time.Now().UTC())
					return nil
				},
			)
			if err == nil {
				winners.Add(1)
			} else if dErrors.HasCode(err, dErrors.CodeAlreadyResolved) {
				losers.Add(1)
			}
		}()
	}

	wg.Wait()

	s.Equal(int32(1), winners.Load(), "exactly one resolution should commit")
	s.Equal(int32(goroutines-1), losers.Load(), "all others should see already_resolved")

	found, err := s.store.FindByID(ctx, req.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusApproved, found.Status)
}

func (s *PostgresStoreSuite) TestExecuteUnknownRequest() {
	ctx := context.Background()

	_, err := s.store.Execute(ctx, id.NewRequestID(),
		func(r *models.Request) error { return nil },
		func(r *models.Request) error { return nil },
	)
	s.ErrorIs(err, sentinel.ErrNotFound)
}
