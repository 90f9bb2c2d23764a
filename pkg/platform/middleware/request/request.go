// Package request provides request-scoped middleware: request IDs and a
// per-request timestamp so one HTTP request observes a single clock reading.
package request

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"hive/pkg/requestcontext"
)

// RequestIDHeader is echoed back to callers for log correlation.
const RequestIDHeader = "X-Request-Id"

// ID assigns a request ID (honoring an inbound header) and stores it in
// context.
func ID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)
		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Time pins the request time in context. Services read it via
// requestcontext.Now so a handler, its audit events, and its store writes all
// share one timestamp.
func Time(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
