// Package handler exposes the validation workflow over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"hive/internal/validation/models"
	id "hive/pkg/domain"
	dErrors "hive/pkg/domain-errors"
	"hive/pkg/platform/httputil"
	"hive/pkg/requestcontext"
)

// Service defines the validation operations the handler needs.
type Service interface {
	Get(ctx context.Context, requestID id.RequestID) (*models.Request, error)
	ListPending(ctx context.Context, scopeGroupID *id.GroupID) ([]*models.Request, error)
	Resolve(ctx context.Context, requestID id.RequestID, action models.Action, notes string) (*models.Request, error)
}

// Handler wires validation endpoints to the workflow service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a validation handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts validation endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/validation/requests", h.HandleList)
	r.Get("/validation/requests/{requestID}", h.HandleGet)
	r.Post("/validation/requests/{requestID}/resolve", h.HandleResolve)
}

// HandleList handles GET /validation/requests?scope=.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	var scopeGroupID *id.GroupID
	if raw := r.URL.Query().Get("scope"); raw != "" {
		parsed, err := id.ParseGroupID(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		scopeGroupID = &parsed
	}

	requests, err := h.service.ListPending(r.Context(), scopeGroupID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"requests": requests})
}

// HandleGet handles GET /validation/requests/{requestID}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	requestID, err := id.ParseRequestID(chi.URLParam(r, "requestID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, err := h.service.Get(r.Context(), requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, req)
}

// ResolveRequest is the wire payload for POST .../resolve.
type ResolveRequest struct {
	Action string `json:"action"`
	Notes  string `json:"notes,omitempty"`
}

// HandleResolve handles POST /validation/requests/{requestID}/resolve.
func (h *Handler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if requestcontext.ActorID(ctx) == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	requestID, err := id.ParseRequestID(chi.URLParam(r, "requestID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	payload, ok := httputil.Decode[ResolveRequest](w, r)
	if !ok {
		return
	}
	action, err := models.ParseAction(payload.Action)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	resolved, err := h.service.Resolve(ctx, requestID, action, payload.Notes)
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeAlreadyResolved) && !dErrors.HasCode(err, dErrors.CodeStaleRequest) {
			h.logger.ErrorContext(ctx, "resolution failed",
				"request_id", requestcontext.RequestID(ctx),
				"validation_request_id", requestID.String(),
				"action", payload.Action,
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resolved)
}
