// Package worker drains the audit broadcast channel into a sink.
package worker

import (
	"context"
	"log/slog"

	audit "hive/pkg/platform/audit"
)

// Worker consumes audit events from a channel and forwards them to a sink.
// Sink failures are logged and the event dropped; the store copy written by
// the Recorder remains the durable trail.
type Worker struct {
	sink   audit.Sink
	inbox  <-chan audit.Event
	logger *slog.Logger
}

// New creates a worker. Run it in its own goroutine.
func New(sink audit.Sink, inbox <-chan audit.Event, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{sink: sink, inbox: inbox, logger: logger}
}

// Run processes events until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.sink.Publish(ctx, event); err != nil {
				w.logger.WarnContext(ctx, "audit broadcast failed",
					"action", event.Action,
					"entity_id", event.EntityID,
					"error", err,
				)
			}
		}
	}
}
