package settlement

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/stenbridge/settlement-service/internal/domain"
	"github.com/stenbridge/settlement-service/internal/domain/ports"
	"github.com/stenbridge/settlement-service/internal/events"
	"github.com/stenbridge/settlement-service/internal/services/ledger"
	"github.com/stenbridge/settlement-service/pkg/observability"
	"github.com/stenbridge/settlement-service/pkg/timeutil"
)

// Service executes instant-settle decisions against the payment gateway and
// applies the results to the order ledger.
type Service struct {
	orders  ports.OrderRepository
	gateway ports.PaymentGateway
	bus     *events.Bus
	logger  *zap.Logger
}

// NewService creates a new settlement service
func NewService(
	orders ports.OrderRepository,
	gateway ports.PaymentGateway,
	bus *events.Bus,
	logger *zap.Logger,
) *Service {
	return &Service{
		orders:  orders,
		gateway: gateway,
		bus:     bus,
		logger:  logger,
	}
}

// Result reports what an InstantSettle run did
type Result struct {
	SettledItems  []*domain.LineItem
	SettledAmount int64 // minor units
	Transaction   string
}

// CompleteSettle marks a single line item settled with the given minor-unit
// amount (persisted as major units) and saves the order. It is safe to call
// exactly once per item; the settle loop owns that guarantee, this layer does
// not re-check.
func (s *Service) CompleteSettle(ctx context.Context, order *domain.Order, item *domain.LineItem, amountMinor int64) error {
	item.MarkSettled(domain.ToMajorUnits(amountMinor, order.Currency), timeutil.Now())

	if err := s.orders.Save(ctx, nil, order); err != nil {
		return fmt.Errorf("persist settled item %s: %w", item.ID, err)
	}

	s.logger.Info("line item settled",
		zap.String("handle", order.Handle),
		zap.String("item_id", item.ID),
		zap.String("amount", item.SettledAmount.String()),
	)
	return nil
}

// InstantSettle settles every line item eligible under policy in a single
// gateway capture. The order's CanCapture gate guards against
// double-submission since the gateway offers no idempotency keys.
func (s *Service) InstantSettle(ctx context.Context, handle string, policy Policy) (*Result, error) {
	order, err := s.orders.GetByHandle(ctx, nil, handle)
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}

	items := InstantSettleItems(order, policy)
	if len(items) == 0 {
		s.logger.Debug("no items eligible for instant settle",
			zap.String("handle", handle))
		return &Result{}, nil
	}

	var amount int64
	for _, li := range items {
		amount += li.TotalAmount()
	}

	if ok, reason := order.CanCapture(amount); !ok {
		observability.RecordSettleOperation("rejected")
		return nil, domain.NewDomainError(domain.ErrorCodeLedgerInvalidTransition, reason).
			WithDetail("handle", handle).
			WithDetail("amount", amount)
	}

	started := time.Now()
	gatewayResp, err := s.gateway.Capture(ctx, &ports.CaptureRequest{
		Handle:   handle,
		Amount:   domain.ToMajorUnits(amount, order.Currency),
		Currency: order.Currency,
	})
	observability.RecordGatewayRequest("capture", err, time.Since(started))
	if err != nil {
		// The order stays in its prior committed state; a timed-out capture
		// is NOT assumed to have succeeded.
		observability.RecordSettleOperation("gateway_error")
		s.logger.Error("instant settle capture failed",
			zap.String("handle", handle),
			zap.Int64("amount", amount),
			zap.Error(err),
		)
		return nil, fmt.Errorf("gateway capture: %w", err)
	}

	if err := s.applySettled(ctx, order, items, amount, gatewayResp.Transaction); err != nil {
		observability.RecordSettleOperation("ledger_error")
		return nil, err
	}
	observability.RecordSettleOperation("settled")

	s.logger.Info("instant settle completed",
		zap.String("handle", handle),
		zap.Int("items", len(items)),
		zap.Int64("amount", amount),
		zap.String("transaction", gatewayResp.Transaction),
	)

	return &Result{
		SettledItems:  items,
		SettledAmount: amount,
		Transaction:   gatewayResp.Transaction,
	}, nil
}

// applySettled records the capture on the ledger, marks each item settled
// exactly once, and persists the whole aggregate in one save.
func (s *Service) applySettled(ctx context.Context, order *domain.Order, items []*domain.LineItem, amount int64, transaction string) error {
	if err := ledger.ApplySettlement(order, amount); err != nil {
		return err
	}
	order.RecordTransaction(transaction)

	now := timeutil.Now()
	for _, li := range items {
		li.MarkSettled(domain.ToMajorUnits(li.TotalAmount(), order.Currency), now)
	}

	if err := s.orders.Save(ctx, nil, order); err != nil {
		return fmt.Errorf("persist settlement: %w", err)
	}

	s.bus.Publish(ctx, events.OrderSettled{
		Handle:   order.Handle,
		Amount:   amount,
		Currency: order.Currency,
		Full:     order.IsFullySettled(),
	})
	return nil
}
