// Package service implements the directory synchronization engine: fetch a
// full snapshot, diff it against the replica, then route the changes.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"hive/internal/dirsync/metrics"
	"hive/internal/dirsync/models"
	"hive/internal/dirsync/runlock"
	"hive/internal/dirsync/store"
	id "hive/pkg/domain"
	dErrors "hive/pkg/domain-errors"
	"hive/pkg/platform/audit"
	"hive/pkg/platform/sentinel"
	"hive/pkg/requestcontext"
)

const defaultHistoryLimit = 20

// Service orchestrates sync runs. All state lives in the ledger; the service
// itself is stateless, so any instance can serve triggers.
type Service struct {
	runs    store.SyncRunStore
	fetcher *Fetcher
	differ  *Differ
	router  *Router
	lock    runlock.Lock
	audit   *audit.Recorder
	logger  *slog.Logger
	tracer  trace.Tracer
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// NewService creates the sync engine service.
func NewService(runs store.SyncRunStore, fetcher *Fetcher, differ *Differ, router *Router, lock runlock.Lock, recorder *audit.Recorder, opts ...Option) *Service {
	s := &Service{
		runs:    runs,
		fetcher: fetcher,
		differ:  differ,
		router:  router,
		lock:    lock,
		audit:   recorder,
		logger:  slog.Default(),
		tracer:  otel.Tracer("hive/dirsync"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TriggerSync executes one full run and returns its terminal ledger entry.
//
// Concurrency: the advisory lock is a fast-path check only; the ledger's
// single-Running constraint is what actually guarantees at most one run.
// Both collisions surface as sync_already_running.
//
// Cancellation: the fetch honors ctx, but once a full snapshot exists the
// diff and routing run on a detached context. Already classified changes are
// always routed, and the run lands in PartiallyCompleted instead of
// Completed when the caller went away mid-run.
func (s *Service) TriggerSync(ctx context.Context, initiator string) (*models.SyncRun, error) {
	acquired, err := s.lock.Acquire(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "acquire run lock")
	}
	if !acquired {
		return nil, dErrors.New(dErrors.CodeSyncAlreadyRunning, "a sync run is already in progress")
	}
	defer func() {
		if err := s.lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("run lock release failed", slog.Any("error", err))
		}
	}()

	run := models.NewSyncRun(initiator, requestcontext.Now(ctx))
	if err := s.runs.Create(ctx, run); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeSyncAlreadyRunning, "a sync run is already in progress")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "start sync run")
	}
	s.audit.RecordSync(ctx, run.ID.String(), audit.ActionSyncStarted, "sync_run", run.ID.String(), nil, run)
	s.logger.Info("sync run started",
		slog.String("run_id", run.ID.String()), slog.String("initiator", initiator))

	started := time.Now()
	finished, runErr := s.execute(ctx, run)
	metrics.RunDuration.Observe(time.Since(started).Seconds())
	metrics.RunsTotal.WithLabelValues(string(finished.Status)).Inc()

	if runErr != nil {
		return finished, runErr
	}
	return finished, nil
}

// execute runs the three phases and always leaves the ledger entry terminal,
// even when a phase fails.
func (s *Service) execute(ctx context.Context, run *models.SyncRun) (*models.SyncRun, error) {
	var counters models.Counters

	ctx, span := s.tracer.Start(ctx, "dirsync.run",
		trace.WithAttributes(attribute.String("run.id", run.ID.String())))
	defer span.End()

	snapshot, err := s.fetchPhase(ctx)
	if err != nil {
		span.RecordError(err)
		fetchErr := dErrors.Wrap(err, dErrors.CodeFetchFailure, "directory snapshot fetch failed")
		s.finish(ctx, run, models.RunStatusFailed, fetchErr.Error(), counters)
		return run, fetchErr
	}
	counters.GroupsProcessed = len(snapshot.Groups)
	counters.ItemsSkipped += snapshot.Skipped
	metrics.SnapshotGroups.Set(float64(len(snapshot.Groups)))

	// A full snapshot is in hand: from here on the run must reach a
	// consistent stopping point even if the trigger's context is cancelled.
	detached := context.WithoutCancel(ctx)

	changeSet, err := s.diffPhase(detached, snapshot)
	if err != nil {
		span.RecordError(err)
		s.finish(detached, run, models.RunStatusFailed, err.Error(), counters)
		return run, dErrors.Wrap(err, dErrors.CodeInternal, "diff failed")
	}
	for kind, count := range changeSet.CountByKind() {
		metrics.ChangesTotal.WithLabelValues(string(kind)).Add(float64(count))
	}

	if err := s.routePhase(detached, run.ID, changeSet, &counters); err != nil {
		span.RecordError(err)
		s.finish(detached, run, models.RunStatusFailed, err.Error(), counters)
		return run, dErrors.Wrap(err, dErrors.CodeInternal, "routing failed")
	}
	metrics.RequestsCreated.Add(float64(counters.RequestsCreated))

	status := models.RunStatusCompleted
	message := ""
	if err := ctx.Err(); err != nil {
		status = models.RunStatusPartiallyCompleted
		message = err.Error()
	}
	s.finish(detached, run, status, message, counters)
	return run, nil
}

func (s *Service) fetchPhase(ctx context.Context) (*Snapshot, error) {
	ctx, span := s.tracer.Start(ctx, "dirsync.fetch")
	defer span.End()
	return s.fetcher.Fetch(ctx)
}

func (s *Service) diffPhase(ctx context.Context, snapshot *Snapshot) (*models.ChangeSet, error) {
	ctx, span := s.tracer.Start(ctx, "dirsync.diff")
	defer span.End()
	return s.differ.Diff(ctx, snapshot)
}

func (s *Service) routePhase(ctx context.Context, runID id.SyncRunID, cs *models.ChangeSet, counters *models.Counters) error {
	ctx, span := s.tracer.Start(ctx, "dirsync.route")
	defer span.End()
	return s.router.Route(ctx, runID, cs, counters)
}

// finish moves the ledger entry to a terminal status. A failed ledger write
// here is logged, not returned: the run outcome is already decided.
func (s *Service) finish(ctx context.Context, run *models.SyncRun, status models.RunStatus, errorMessage string, counters models.Counters) {
	if err := run.Finish(status, errorMessage, counters, requestcontext.Now(ctx)); err != nil {
		s.logger.Error("sync run finish rejected", slog.Any("error", err))
		return
	}
	if err := s.runs.Update(ctx, run); err != nil {
		s.logger.Error("sync run ledger update failed",
			slog.String("run_id", run.ID.String()), slog.Any("error", err))
	}

	action := audit.ActionSyncCompleted
	if status == models.RunStatusFailed {
		action = audit.ActionSyncFailed
	}
	s.audit.RecordSync(ctx, run.ID.String(), action, "sync_run", run.ID.String(), nil, run)
	s.logger.Info("sync run finished",
		slog.String("run_id", run.ID.String()),
		slog.String("status", string(status)),
		slog.Int("requests_created", counters.RequestsCreated),
		slog.Int("items_skipped", counters.ItemsSkipped),
	)
}

// Current returns the run in progress, or not_found when the engine is idle.
func (s *Service) Current(ctx context.Context) (*models.SyncRun, error) {
	run, err := s.runs.FindRunning(ctx)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "no sync run in progress")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "look up running sync")
	}
	return run, nil
}

// GetRun returns one ledger entry by id.
func (s *Service) GetRun(ctx context.Context, runID id.SyncRunID) (*models.SyncRun, error) {
	run, err := s.runs.FindByID(ctx, runID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "sync run not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "look up sync run")
	}
	return run, nil
}

// History returns recent ledger entries, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]*models.SyncRun, error) {
	if limit <= 0 || limit > 100 {
		limit = defaultHistoryLimit
	}
	runs, err := s.runs.List(ctx, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list sync runs")
	}
	return runs, nil
}
