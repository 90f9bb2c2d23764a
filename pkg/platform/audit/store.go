package audit

import "context"

// Store persists audit events. Implementations must be append-only.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByEntity(ctx context.Context, entityType, entityID string) ([]Event, error)
}

// Sink broadcasts audit events beyond the local store (message broker,
// SIEM forwarder). Delivery is best-effort from the recorder's perspective.
type Sink interface {
	Publish(ctx context.Context, event Event) error
}
