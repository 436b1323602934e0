// Package redis implements the webhook event dedup store and the order cache
// on Redis.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// eventKeyPrefix namespaces processed webhook event ids
const eventKeyPrefix = "webhook:event:"

// EventStore records processed webhook event ids with a TTL. SetNX makes the
// mark atomic: exactly one delivery of an event id observes fresh=true.
//
// The TTL only bounds memory; after expiry a very late redelivery falls
// through to the order's applied-transaction check, which is authoritative.
type EventStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewEventStore creates an event dedup store with the given key TTL
func NewEventStore(rdb *redis.Client, ttl time.Duration) *EventStore {
	return &EventStore{rdb: rdb, ttl: ttl}
}

// MarkProcessed records an event id, returning false for a duplicate.
func (s *EventStore) MarkProcessed(ctx context.Context, eventID string) (bool, error) {
	fresh, err := s.rdb.SetNX(ctx, eventKeyPrefix+eventID, "1", s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("mark event %s processed: %w", eventID, err)
	}
	return fresh, nil
}

// Unmark drops an event id so the sender's redelivery is not treated as a
// duplicate. Used when applying the event failed after the mark was taken.
func (s *EventStore) Unmark(ctx context.Context, eventID string) error {
	if err := s.rdb.Del(ctx, eventKeyPrefix+eventID).Err(); err != nil {
		return fmt.Errorf("unmark event %s: %w", eventID, err)
	}
	return nil
}
