package analytics

import "context"

// Store is the sink the consumer process writes share events to.
// Returning an error asks for redelivery.
type Store interface {
	SaveShareCreated(ctx context.Context, event *ShareCreatedEvent) error
	SaveShareAccessed(ctx context.Context, event *ShareAccessedEvent) error
}
