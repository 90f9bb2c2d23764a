package testutil

import (
	"context"
	"net/http"
	"time"

	"hive/pkg/requestcontext"
)

// WithActor adds an actor identity to the request context, simulating what
// the auth middleware does for authenticated requests.
func WithActor(req *http.Request, actorID string) *http.Request {
	ctx := requestcontext.WithActorID(req.Context(), actorID)
	return req.WithContext(ctx)
}

// FixedTimeContext returns a context pinned to the given time, so assertions
// on timestamps are deterministic.
func FixedTimeContext(t time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), t)
}
