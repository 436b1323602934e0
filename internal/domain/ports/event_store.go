package ports

import (
	"context"
	"time"

	"github.com/stenbridge/settlement-service/internal/domain"
)

// EventStore deduplicates webhook deliveries by event id. A delivery that was
// already marked is a redelivery and must be dropped without reapplying.
type EventStore interface {
	// MarkProcessed records an event id. Returns false when the id was
	// already present (duplicate delivery).
	MarkProcessed(ctx context.Context, eventID string) (bool, error)

	// Unmark removes a previously recorded event id. Callers release the
	// mark when the event failed to take effect, so the sender's redelivery
	// is reprocessed instead of dropped as a duplicate.
	Unmark(ctx context.Context, eventID string) error
}

// OrderCache is an explicit TTL cache in front of the order repository,
// keyed by order handle.
type OrderCache interface {
	Get(ctx context.Context, handle string) (*domain.Order, bool, error)
	Set(ctx context.Context, order *domain.Order, ttl time.Duration) error
	Invalidate(ctx context.Context, handle string) error
}
