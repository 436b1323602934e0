package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stenbridge/settlement-service/internal/domain"
)

// orderKeyPrefix namespaces cached order aggregates
const orderKeyPrefix = "order:"

// OrderCache is a read-through TTL cache for order aggregates, keyed by
// handle. Writers invalidate after every ledger mutation; a miss is never an
// error.
type OrderCache struct {
	rdb        *redis.Client
	defaultTTL time.Duration
}

// NewOrderCache creates an order cache with the given default TTL
func NewOrderCache(rdb *redis.Client, defaultTTL time.Duration) *OrderCache {
	return &OrderCache{rdb: rdb, defaultTTL: defaultTTL}
}

// Get returns the cached order for handle, reporting whether it was present.
func (c *OrderCache) Get(ctx context.Context, handle string) (*domain.Order, bool, error) {
	payload, err := c.rdb.Get(ctx, orderKeyPrefix+handle).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get cached order %s: %w", handle, err)
	}

	var order domain.Order
	if err := json.Unmarshal(payload, &order); err != nil {
		// Corrupt entry: drop it and treat as a miss.
		_ = c.rdb.Del(ctx, orderKeyPrefix+handle).Err()
		return nil, false, nil
	}
	return &order, true, nil
}

// Set caches an order; ttl of 0 uses the default.
func (c *OrderCache) Set(ctx context.Context, order *domain.Order, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	payload, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("marshal order %s: %w", order.Handle, err)
	}
	if err := c.rdb.Set(ctx, orderKeyPrefix+order.Handle, payload, ttl).Err(); err != nil {
		return fmt.Errorf("cache order %s: %w", order.Handle, err)
	}
	return nil
}

// Invalidate drops the cached entry for handle.
func (c *OrderCache) Invalidate(ctx context.Context, handle string) error {
	if err := c.rdb.Del(ctx, orderKeyPrefix+handle).Err(); err != nil {
		return fmt.Errorf("invalidate cached order %s: %w", handle, err)
	}
	return nil
}
