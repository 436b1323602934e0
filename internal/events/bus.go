// Package events provides the in-process event bus the surrounding commerce
// system subscribes to for order status transitions. Handlers are registered
// explicitly at startup; dispatch order is the registration order.
package events

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Event is a typed notification published on the bus
type Event interface {
	Name() string
}

// OrderAuthorized fires when a fresh authorization is recorded on the ledger
type OrderAuthorized struct {
	Handle   string
	Amount   int64 // minor units
	Currency string
}

func (OrderAuthorized) Name() string { return "order.authorized" }

// OrderSettled fires whenever the settled amount increases. Full reports
// whether the order is now fully settled.
type OrderSettled struct {
	Handle   string
	Amount   int64
	Currency string
	Full     bool
}

func (OrderSettled) Name() string { return "order.settled" }

// OrderCancelled fires when an authorization is cancelled
type OrderCancelled struct {
	Handle string
}

func (OrderCancelled) Name() string { return "order.cancelled" }

// OrderRefunded fires whenever the refunded amount increases
type OrderRefunded struct {
	Handle   string
	Amount   int64
	Currency string
	Full     bool
}

func (OrderRefunded) Name() string { return "order.refunded" }

// Handler consumes a published event. Handlers must not block; long work
// belongs in the handler's own goroutine.
type Handler func(ctx context.Context, event Event)

// Bus is a synchronous in-process pub-sub dispatcher
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	logger   *zap.Logger
}

// NewBus creates an empty bus
func NewBus(logger *zap.Logger) *Bus {
	return &Bus{
		handlers: make(map[string][]Handler),
		logger:   logger,
	}
}

// Subscribe registers a handler for an event name
func (b *Bus) Subscribe(name string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = append(b.handlers[name], handler)
}

// Publish dispatches an event to all registered handlers in registration
// order. A panicking handler is recovered and logged so one subscriber
// cannot take down the publishing request.
func (b *Bus) Publish(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := b.handlers[event.Name()]
	b.mu.RUnlock()

	for _, handler := range handlers {
		b.dispatch(ctx, event, handler)
	}
}

func (b *Bus) dispatch(ctx context.Context, event Event, handler Handler) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				zap.String("event", event.Name()),
				zap.Any("panic", r),
			)
		}
	}()
	handler(ctx, event)
}
