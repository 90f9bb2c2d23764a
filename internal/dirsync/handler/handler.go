// Package handler exposes the sync engine over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"hive/internal/dirsync/models"
	id "hive/pkg/domain"
	dErrors "hive/pkg/domain-errors"
	"hive/pkg/platform/httputil"
	"hive/pkg/requestcontext"
)

// Service defines the sync operations the handler needs.
type Service interface {
	TriggerSync(ctx context.Context, initiator string) (*models.SyncRun, error)
	Current(ctx context.Context) (*models.SyncRun, error)
	GetRun(ctx context.Context, runID id.SyncRunID) (*models.SyncRun, error)
	History(ctx context.Context, limit int) ([]*models.SyncRun, error)
}

// Handler wires sync endpoints to the sync service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a sync handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts sync endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/sync/runs", h.HandleTrigger)
	r.Get("/sync/runs", h.HandleHistory)
	r.Get("/sync/runs/current", h.HandleCurrent)
	r.Get("/sync/runs/{runID}", h.HandleGet)
}

// HandleTrigger handles POST /sync/runs.
func (h *Handler) HandleTrigger(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	initiator := requestcontext.ActorID(ctx)
	if initiator == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	start := time.Now()

	run, err := h.service.TriggerSync(ctx, initiator)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeSyncAlreadyRunning) {
			httputil.WriteError(w, err)
			return
		}
		h.logger.ErrorContext(ctx, "sync trigger failed",
			"request_id", requestcontext.RequestID(ctx),
			"initiator", initiator,
			"error", err,
		)
		// The run itself is the result even when it failed: the ledger entry
		// carries the failure.
		if run != nil {
			httputil.WriteJSON(w, dErrors.ToHTTPStatus(dErrors.CodeOf(err)), run)
			return
		}
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "sync run triggered",
		"request_id", requestcontext.RequestID(ctx),
		"run_id", run.ID.String(),
		"status", string(run.Status),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusCreated, run)
}

// HandleCurrent handles GET /sync/runs/current.
func (h *Handler) HandleCurrent(w http.ResponseWriter, r *http.Request) {
	run, err := h.service.Current(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, run)
}

// HandleGet handles GET /sync/runs/{runID}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	runID, err := id.ParseSyncRunID(chi.URLParam(r, "runID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	run, err := h.service.GetRun(r.Context(), runID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, run)
}

// HandleHistory handles GET /sync/runs?limit=.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be an integer"))
			return
		}
		limit = parsed
	}
	runs, err := h.service.History(r.Context(), limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"runs": runs})
}
