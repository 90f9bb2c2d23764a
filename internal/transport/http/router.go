// Package httptransport assembles the top-level chi router: middleware,
// authenticated API routes, and the operational endpoints.
package httptransport

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	dirsynchandler "hive/internal/dirsync/handler"
	validationhandler "hive/internal/validation/handler"
	"hive/pkg/platform/httputil"
	"hive/pkg/platform/middleware/auth"
	"hive/pkg/platform/middleware/request"
)

// Deps carries everything the router mounts.
type Deps struct {
	Sync       *dirsynchandler.Handler
	Validation *validationhandler.Handler
	Auth       auth.Validator
	DB         *sql.DB
	Logger     *slog.Logger
}

// NewRouter builds the full HTTP surface. All API routes require a bearer
// token; /metrics and /healthz stay open for scrapers and probes.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(request.ID)
	r.Use(request.Time)

	r.Group(func(api chi.Router) {
		api.Use(auth.RequireAuth(deps.Auth, deps.Logger))
		deps.Sync.Register(api)
		deps.Validation.Register(api)
	})

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if deps.DB != nil {
			if err := deps.DB.PingContext(req.Context()); err != nil {
				httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}
