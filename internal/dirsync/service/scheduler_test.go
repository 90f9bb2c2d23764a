package service

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"hive/internal/directory/mocks"
	"hive/internal/dirsync/runlock"
	runstore "hive/internal/dirsync/store/memory"
	"hive/internal/org/scope"
	employeestore "hive/internal/org/store/employee"
	groupstore "hive/internal/org/store/group"
	membershipstore "hive/internal/org/store/membership"
	requeststore "hive/internal/validation/store/memory"
	"hive/pkg/platform/audit"
	auditmemory "hive/pkg/platform/audit/store/memory"
	"hive/pkg/testutil"
)

func newSchedulerFixture(t *testing.T) (*Service, *runstore.Store) {
	t.Helper()
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	client.EXPECT().ListManagedGroups(gomock.Any()).Return(nil, nil).AnyTimes()

	logger := slog.Default()
	employees := employeestore.NewInMemory()
	groups := groupstore.NewInMemory()
	memberships := membershipstore.NewInMemory()
	recorder := audit.NewRecorder(auditmemory.New(), audit.WithLogger(logger))
	resolver := scope.NewResolver(groups, scope.NewStaticDirectory())

	runs := runstore.New()
	svc := NewService(
		runs,
		NewFetcher(client, 1, logger),
		NewDiffer(employees, groups, memberships, logger),
		NewRouter(employees, groups, memberships, requeststore.New(), resolver, recorder, logger),
		runlock.NewMemory(),
		recorder,
		WithLogger(logger),
	)
	return svc, runs
}

func TestScheduler(t *testing.T) {
	testutil.Given(t, "a scheduler with a short interval", func(t *testing.T) {
		svc, runs := newSchedulerFixture(t)
		scheduler := NewScheduler(svc, 10*time.Millisecond, slog.Default())

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- scheduler.Run(ctx) }()

		testutil.When(t, "enough ticks elapse", func(t *testing.T) {
			deadline := time.After(3 * time.Second)
			for {
				entries, err := runs.List(ctx, 10)
				if err != nil {
					t.Fatalf("list runs: %v", err)
				}
				if len(entries) > 0 {
					break
				}
				select {
				case <-deadline:
					t.Fatal("scheduler never triggered a run")
				case <-time.After(5 * time.Millisecond):
				}
			}

			testutil.Then(t, "a sync run reached the ledger", func(t *testing.T) {
				entries, err := runs.List(context.Background(), 10)
				if err != nil {
					t.Fatalf("list runs: %v", err)
				}
				if len(entries) == 0 {
					t.Fatal("expected at least one ledger entry")
				}
			})
		})

		cancel()
		if err := <-done; err != nil {
			t.Fatalf("scheduler returned error: %v", err)
		}
	})

	testutil.Given(t, "a scheduler with a non-positive interval", func(t *testing.T) {
		svc, runs := newSchedulerFixture(t)
		scheduler := NewScheduler(svc, 0, slog.Default())

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- scheduler.Run(ctx) }()

		testutil.When(t, "the context is cancelled", func(t *testing.T) {
			cancel()
			select {
			case err := <-done:
				if err != nil {
					t.Fatalf("scheduler returned error: %v", err)
				}
			case <-time.After(time.Second):
				t.Fatal("scheduler did not stop on cancellation")
			}

			testutil.Then(t, "no run was ever triggered", func(t *testing.T) {
				entries, err := runs.List(context.Background(), 10)
				if err != nil {
					t.Fatalf("list runs: %v", err)
				}
				if len(entries) != 0 {
					t.Fatalf("expected no ledger entries, got %d", len(entries))
				}
			})
		})
	})
}
