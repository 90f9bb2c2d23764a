package audit

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"hive/pkg/requestcontext"
)

// Recorder is the mutation-trail entry point used by the sync router and the
// validation workflow. Record is fire-and-forget: a failed append never rolls
// back the underlying mutation, it is logged at Warn and dropped.
type Recorder struct {
	store  Store
	logger *slog.Logger
	sink   chan Event
}

// RecorderOption configures the Recorder.
type RecorderOption func(*Recorder)

// WithLogger sets the logger used for append failures.
func WithLogger(logger *slog.Logger) RecorderOption {
	return func(r *Recorder) { r.logger = logger }
}

// WithSinkChannel attaches a broadcast channel drained by a Worker. Events
// are enqueued non-blocking; a full channel drops the broadcast copy only,
// never the store append.
func WithSinkChannel(sink chan Event) RecorderOption {
	return func(r *Recorder) { r.sink = sink }
}

// NewRecorder creates a Recorder backed by the given store.
func NewRecorder(store Store, opts ...RecorderOption) *Recorder {
	r := &Recorder{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record captures one committed mutation. Old and new state are serialized
// as JSON snapshots; nil states are omitted.
func (r *Recorder) Record(ctx context.Context, action Action, entityType, entityID string, oldState, newState any) {
	event := Event{
		ID:         uuid.NewString(),
		Timestamp:  requestcontext.Now(ctx),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		ActorID:    requestcontext.ActorID(ctx),
		RequestID:  requestcontext.RequestID(ctx),
	}
	event.OldState = marshalState(ctx, r.logger, "old_state", oldState)
	event.NewState = marshalState(ctx, r.logger, "new_state", newState)

	if err := r.store.Append(ctx, event); err != nil {
		r.logger.WarnContext(ctx, "audit append failed",
			"action", action,
			"entity_type", entityType,
			"entity_id", entityID,
			"error", err,
		)
		return
	}

	if r.sink != nil {
		select {
		case r.sink <- event:
		default:
			r.logger.WarnContext(ctx, "audit broadcast channel full, dropping event",
				"action", action,
				"entity_id", entityID,
			)
		}
	}
}

// RecordSync tags the event with the owning sync run before recording.
func (r *Recorder) RecordSync(ctx context.Context, syncRunID string, action Action, entityType, entityID string, oldState, newState any) {
	event := Event{
		ID:         uuid.NewString(),
		Timestamp:  requestcontext.Now(ctx),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		ActorID:    requestcontext.ActorID(ctx),
		SyncRunID:  syncRunID,
	}
	event.OldState = marshalState(ctx, r.logger, "old_state", oldState)
	event.NewState = marshalState(ctx, r.logger, "new_state", newState)

	if err := r.store.Append(ctx, event); err != nil {
		r.logger.WarnContext(ctx, "audit append failed",
			"action", action,
			"entity_type", entityType,
			"entity_id", entityID,
			"sync_run_id", syncRunID,
			"error", err,
		)
		return
	}

	if r.sink != nil {
		select {
		case r.sink <- event:
		default:
			r.logger.WarnContext(ctx, "audit broadcast channel full, dropping event",
				"action", action,
				"entity_id", entityID,
			)
		}
	}
}

func marshalState(ctx context.Context, logger *slog.Logger, field string, state any) json.RawMessage {
	if state == nil {
		return nil
	}
	raw, err := json.Marshal(state)
	if err != nil {
		logger.WarnContext(ctx, "audit state serialization failed", "field", field, "error", err)
		return nil
	}
	return raw
}

// NewSinkChannel returns a buffered broadcast channel sized for bursty sync
// runs.
func NewSinkChannel() chan Event {
	return make(chan Event, 1024)
}
