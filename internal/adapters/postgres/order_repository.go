package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/stenbridge/settlement-service/internal/domain"
	"github.com/stenbridge/settlement-service/internal/domain/ports"
)

// OrderRepository implements ports.OrderRepository on PostgreSQL.
// Concurrency control is an optimistic version column: Save only matches the
// version it loaded, so a lost update surfaces as ORDER_VERSION_CONFLICT
// instead of silently overwriting a concurrent webhook application.
type OrderRepository struct {
	db ports.DBPort
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db ports.DBPort) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) q(tx ports.DBTX) ports.DBTX {
	if tx != nil {
		return tx
	}
	return r.db.GetDB()
}

const orderColumns = `handle, currency, lines, authorized_amount, settled_amount, refunded_amount,
	cancelled, status, applied_transactions, metadata, version, created_at, updated_at`

// Create persists a new order
func (r *OrderRepository) Create(ctx context.Context, tx ports.DBTX, order *domain.Order) error {
	lines, metadata, err := marshalOrderJSON(order)
	if err != nil {
		return err
	}

	_, err = r.q(tx).Exec(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		order.Handle, order.Currency, lines,
		order.AuthorizedAmount, order.SettledAmount, order.RefundedAmount,
		order.Cancelled, string(order.Status), order.AppliedTransactions, metadata,
		order.Version, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return domain.WrapError(domain.ErrorCodeDatabaseError,
			fmt.Sprintf("create order %s", order.Handle), err)
	}
	return nil
}

// GetByHandle loads an order by its external handle
func (r *OrderRepository) GetByHandle(ctx context.Context, tx ports.DBTX, handle string) (*domain.Order, error) {
	row := r.q(tx).QueryRow(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE handle = $1`,
		handle,
	)

	order, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NewDomainError(domain.ErrorCodeOrderNotFound, "order not found").
			WithDetail("handle", handle)
	}
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError,
			fmt.Sprintf("get order %s", handle), err)
	}
	return order, nil
}

// Save persists the mutable aggregate state and bumps the version
func (r *OrderRepository) Save(ctx context.Context, tx ports.DBTX, order *domain.Order) error {
	lines, metadata, err := marshalOrderJSON(order)
	if err != nil {
		return err
	}

	tag, err := r.q(tx).Exec(ctx, `
		UPDATE orders
		SET lines = $1,
		    authorized_amount = $2,
		    settled_amount = $3,
		    refunded_amount = $4,
		    cancelled = $5,
		    status = $6,
		    applied_transactions = $7,
		    metadata = $8,
		    version = version + 1,
		    updated_at = now()
		WHERE handle = $9 AND version = $10`,
		lines, order.AuthorizedAmount, order.SettledAmount, order.RefundedAmount,
		order.Cancelled, string(order.Status), order.AppliedTransactions, metadata,
		order.Handle, order.Version,
	)
	if err != nil {
		return domain.WrapError(domain.ErrorCodeDatabaseError,
			fmt.Sprintf("save order %s", order.Handle), err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewDomainError(domain.ErrorCodeOrderVersionConflict,
			"order was modified concurrently").
			WithDetail("handle", order.Handle).
			WithDetail("version", order.Version)
	}

	order.Version++
	return nil
}

// SetMetadata persists a single metadata key without touching ledger state.
// It still bumps the version: Save rewrites the whole metadata column from
// its loaded snapshot, so a Save racing this merge must fail its version
// check and retry instead of erasing the entry.
func (r *OrderRepository) SetMetadata(ctx context.Context, tx ports.DBTX, handle, key, value string) error {
	kv, err := json.Marshal(map[string]string{key: value})
	if err != nil {
		return fmt.Errorf("marshal metadata entry: %w", err)
	}

	tag, err := r.q(tx).Exec(ctx, `
		UPDATE orders
		SET metadata = metadata || $1::jsonb,
		    version = version + 1,
		    updated_at = now()
		WHERE handle = $2`,
		kv, handle,
	)
	if err != nil {
		return domain.WrapError(domain.ErrorCodeDatabaseError,
			fmt.Sprintf("set metadata on order %s", handle), err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewDomainError(domain.ErrorCodeOrderNotFound, "order not found").
			WithDetail("handle", handle)
	}
	return nil
}

func marshalOrderJSON(order *domain.Order) (lines, metadata []byte, err error) {
	lines, err = json.Marshal(order.Lines)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal order lines: %w", err)
	}
	meta := order.Metadata
	if meta == nil {
		meta = map[string]string{}
	}
	metadata, err = json.Marshal(meta)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal order metadata: %w", err)
	}
	return lines, metadata, nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		order    domain.Order
		lines    []byte
		status   string
		metadata []byte
	)
	err := row.Scan(
		&order.Handle, &order.Currency, &lines,
		&order.AuthorizedAmount, &order.SettledAmount, &order.RefundedAmount,
		&order.Cancelled, &status, &order.AppliedTransactions, &metadata,
		&order.Version, &order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	order.Status = domain.OrderStatus(status)
	if len(lines) > 0 {
		if err := json.Unmarshal(lines, &order.Lines); err != nil {
			return nil, fmt.Errorf("unmarshal order lines: %w", err)
		}
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &order.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal order metadata: %w", err)
		}
	}
	return &order, nil
}

var _ ports.OrderRepository = (*OrderRepository)(nil)
