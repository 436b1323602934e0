// Package reconciler applies asynchronous payment-state-change notifications
// from the gateway to the order ledger. Delivery is at-least-once and not
// ordered, so every application is idempotent: events are keyed by the
// gateway-side event and transaction ids already recorded on the order, and
// amount changes are monotonic within a lifecycle stage (an event that would
// decrease a settled or refunded amount is rejected as stale).
package reconciler

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
)

// saveRetries bounds reloads on cross-process version conflicts
const saveRetries = 3

// Service is the webhook reconciler
type Service struct {
	orders ports.OrderRepository
	dedup  ports.EventStore
	cache  ports.OrderCache
	bus    *events.Bus
	logger *zap.Logger
	locks  *handleLocks
}

// NewService creates a new reconciler.
// dedup and cache may be nil; the transaction-id check on the order is the
// authoritative replay guard, the event store is a fast path.
func NewService(
	orders ports.OrderRepository,
	dedup ports.EventStore,
	cache ports.OrderCache,
	bus *events.Bus,
	logger *zap.Logger,
) *Service {
	return &Service{
		orders: orders,
		dedup:  dedup,
		cache:  cache,
		bus:    bus,
		logger: logger,
		locks:  newHandleLocks(),
	}
}

// Handle applies one webhook event to the ledger. Duplicate deliveries are
// silent no-ops; an unknown order handle is logged and dropped because the
// sender retries independently and the order may simply not be visible yet.
func (s *Service) Handle(ctx context.Context, event *domain.WebhookEvent) error {
	started := time.Now()
	outcome, err := s.handle(ctx, event)
	observability.RecordWebhookEvent(string(event.Type), outcome, time.Since(started))
	return err
}

func (s *Service) handle(ctx context.Context, event *domain.WebhookEvent) (string, error) {
	if err := event.Validate(); err != nil {
		return observability.WebhookOutcomeRejected, err
	}

	s.locks.Lock(event.OrderHandle)
	defer s.locks.Unlock(event.OrderHandle)

	// marked reports whether this delivery took the dedup mark. The mark is
	// released again on any failure path: the event has not taken effect yet,
	// and the gateway's redelivery must not be swallowed as a duplicate.
	marked := false
	if s.dedup != nil {
		fresh, err := s.dedup.MarkProcessed(ctx, event.ID)
		if err != nil {
			// Dedup store down: fall through to the transaction-id check.
			s.logger.Warn("event dedup store unavailable",
				zap.String("event_id", event.ID),
				zap.Error(err),
			)
		} else if !fresh {
			s.logger.Info("duplicate webhook delivery dropped",
				zap.String("event_id", event.ID),
				zap.String("handle", event.OrderHandle),
			)
			return observability.WebhookOutcomeDuplicate, nil
		} else {
			marked = true
		}
	}

	for attempt := 0; ; attempt++ {
		order, err := s.orders.GetByHandle(ctx, nil, event.OrderHandle)
		if err != nil {
			if domain.IsDomainError(err, domain.ErrorCodeOrderNotFound) {
				s.logger.Warn("webhook event for unknown order dropped",
					zap.String("event_id", event.ID),
					zap.String("handle", event.OrderHandle),
					zap.String("event_type", string(event.Type)),
				)
				return observability.WebhookOutcomeUnknownOrder, nil
			}
			s.releaseMark(ctx, event.ID, marked)
			return observability.WebhookOutcomeError, fmt.Errorf("load order: %w", err)
		}

		if event.Transaction != "" && order.HasAppliedTransaction(event.Transaction) {
			s.logger.Info("webhook transaction already applied, dropping",
				zap.String("event_id", event.ID),
				zap.String("handle", event.OrderHandle),
				zap.String("transaction", event.Transaction),
			)
			return observability.WebhookOutcomeDuplicate, nil
		}

		busEvent, err := s.apply(order, event)
		if err != nil {
			return observability.WebhookOutcomeRejected, err
		}
		order.RecordTransaction(event.Transaction)

		err = s.orders.Save(ctx, nil, order)
		if err == nil {
			if s.cache != nil {
				_ = s.cache.Invalidate(ctx, order.Handle)
			}
			if busEvent != nil {
				s.bus.Publish(ctx, busEvent)
			}
			s.logger.Info("webhook event applied",
				zap.String("event_id", event.ID),
				zap.String("handle", event.OrderHandle),
				zap.String("event_type", string(event.Type)),
				zap.Int64("authorized", order.AuthorizedAmount),
				zap.Int64("settled", order.SettledAmount),
				zap.Int64("refunded", order.RefundedAmount),
			)
			return observability.WebhookOutcomeApplied, nil
		}

		if domain.IsDomainError(err, domain.ErrorCodeOrderVersionConflict) && attempt < saveRetries {
			s.logger.Warn("order version conflict, retrying",
				zap.String("handle", event.OrderHandle),
				zap.Int("attempt", attempt+1),
			)
			continue
		}
		s.releaseMark(ctx, event.ID, marked)
		return observability.WebhookOutcomeError, fmt.Errorf("save order: %w", err)
	}
}

// releaseMark gives the dedup mark back after a transient failure. A failed
// release is only logged: the next delivery of the event then hits the stale
// mark, but the transaction-id check still applies it once the mark expires.
func (s *Service) releaseMark(ctx context.Context, eventID string, marked bool) {
	if !marked {
		return
	}
	if err := s.dedup.Unmark(ctx, eventID); err != nil {
		s.logger.Warn("failed to release event dedup mark",
			zap.String("event_id", eventID),
			zap.Error(err),
		)
	}
}

// apply runs the ledger transition for the event and returns the bus event to
// publish on success.
func (s *Service) apply(order *domain.Order, event *domain.WebhookEvent) (events.Event, error) {
	amount := event.AmountMinor()

	switch event.Type {
	case domain.EventInvoiceAuthorized:
		if err := ledger.ApplyAuthorization(order, amount); err != nil {
			return nil, err
		}
		return events.OrderAuthorized{
			Handle:   order.Handle,
			Amount:   amount,
			Currency: order.Currency,
		}, nil

	case domain.EventInvoiceSettled:
		if err := ledger.ApplySettlement(order, amount); err != nil {
			return nil, err
		}
		return events.OrderSettled{
			Handle:   order.Handle,
			Amount:   amount,
			Currency: order.Currency,
			Full:     order.IsFullySettled(),
		}, nil

	case domain.EventInvoiceCancelled:
		if err := ledger.ApplyCancellation(order); err != nil {
			return nil, err
		}
		return events.OrderCancelled{Handle: order.Handle}, nil

	case domain.EventInvoiceRefund:
		if err := ledger.ApplyRefund(order, amount); err != nil {
			return nil, err
		}
		return events.OrderRefunded{
			Handle:   order.Handle,
			Amount:   amount,
			Currency: order.Currency,
			Full:     order.IsFullyRefunded(),
		}, nil

	default:
		return nil, domain.NewDomainError(domain.ErrorCodeWebhookUnknownEvent, "unsupported event type").
			WithDetail("event_type", string(event.Type))
	}
}
