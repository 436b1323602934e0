package ports

import (
	"context"

	"github.com/stenbridge/settlement-service/internal/domain"
)

// OrderRepository persists the per-handle ledger aggregate.
//
// Save enforces optimistic concurrency: the aggregate's Version must match the
// stored row or the call fails with domain.ErrOrderVersionConflict. Callers that
// race (concurrent webhook deliveries across processes) reload and retry.
type OrderRepository interface {
	// Create persists a new order. The handle must be unique.
	Create(ctx context.Context, tx DBTX, order *domain.Order) error

	// GetByHandle loads an order by its external handle.
	// Returns domain.ErrOrderNotFound when no such order exists.
	GetByHandle(ctx context.Context, tx DBTX, handle string) (*domain.Order, error)

	// Save persists all mutable aggregate state (amounts, status, lines,
	// applied transactions, metadata) and bumps the version.
	Save(ctx context.Context, tx DBTX, order *domain.Order) error

	// SetMetadata persists a single key-value pair on the order without
	// touching ledger state. Used for token bindings and settlement flags.
	SetMetadata(ctx context.Context, tx DBTX, handle, key, value string) error
}
