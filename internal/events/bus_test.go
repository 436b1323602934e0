package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestPublishDispatchesInRegistrationOrder(t *testing.T) {
	bus := NewBus(zap.NewNop())

	var order []int
	bus.Subscribe("order.settled", func(ctx context.Context, e Event) {
		order = append(order, 1)
	})
	bus.Subscribe("order.settled", func(ctx context.Context, e Event) {
		order = append(order, 2)
	})

	bus.Publish(context.Background(), OrderSettled{Handle: "order-1", Amount: 100, Currency: "DKK"})

	assert.Equal(t, []int{1, 2}, order)
}

func TestPublishOnlyMatchingName(t *testing.T) {
	bus := NewBus(zap.NewNop())

	var got Event
	bus.Subscribe("order.cancelled", func(ctx context.Context, e Event) {
		got = e
	})

	bus.Publish(context.Background(), OrderSettled{Handle: "order-1"})
	assert.Nil(t, got)

	bus.Publish(context.Background(), OrderCancelled{Handle: "order-2"})
	cancelled, ok := got.(OrderCancelled)
	assert.True(t, ok)
	assert.Equal(t, "order-2", cancelled.Handle)
}

func TestPublishRecoversPanickingHandler(t *testing.T) {
	bus := NewBus(zap.NewNop())

	called := false
	bus.Subscribe("order.refunded", func(ctx context.Context, e Event) {
		panic("subscriber bug")
	})
	bus.Subscribe("order.refunded", func(ctx context.Context, e Event) {
		called = true
	})

	assert.NotPanics(t, func() {
		bus.Publish(context.Background(), OrderRefunded{Handle: "order-1", Full: true})
	})
	assert.True(t, called, "later handlers still run after a panic")
}

func TestPublishWithNoSubscribers(t *testing.T) {
	bus := NewBus(zap.NewNop())
	assert.NotPanics(t, func() {
		bus.Publish(context.Background(), OrderAuthorized{Handle: "order-1"})
	})
}
