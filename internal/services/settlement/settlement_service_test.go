package settlement

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/stenbridge/settlement-service/internal/domain"
	"github.com/stenbridge/settlement-service/internal/domain/ports"
	"github.com/stenbridge/settlement-service/internal/events"
	"github.com/stenbridge/settlement-service/test/mocks"
)

func newTestService(repo *mocks.MockOrderRepository, gateway *mocks.MockPaymentGateway) (*Service, *events.Bus) {
	bus := events.NewBus(zap.NewNop())
	return NewService(repo, gateway, bus, zap.NewNop()), bus
}

func authorizedOrder(handle string, amount int64, lines []*domain.LineItem) *domain.Order {
	order := domain.NewOrder(handle, "USD", lines)
	order.AuthorizedAmount = amount
	order.Status = domain.OrderStatusAuthorized
	return order
}

func TestInstantSettle_SinglePhysicalItem(t *testing.T) {
	repo := mocks.NewMockOrderRepository()
	gateway := mocks.NewMockPaymentGateway()
	gateway.SetCaptureResponse(&ports.GatewayResult{Transaction: "txn-1"}, nil)
	svc, _ := newTestService(repo, gateway)

	item := &domain.LineItem{ID: "goods", Kind: domain.ItemKindPhysical, UnitAmount: 100, Quantity: 1}
	repo.Seed(authorizedOrder("order-1", 100, []*domain.LineItem{item}))

	result, err := svc.InstantSettle(context.Background(), "order-1", Policy{SettlePhysical: true})
	require.NoError(t, err)
	assert.Equal(t, int64(100), result.SettledAmount)
	assert.Equal(t, "txn-1", result.Transaction)
	require.Len(t, result.SettledItems, 1)

	order := repo.Stored("order-1")
	assert.Equal(t, int64(100), order.SettledAmount)
	assert.Equal(t, domain.OrderStatusSettled, order.Status)
	assert.True(t, order.HasAppliedTransaction("txn-1"))
	assert.True(t, item.Settled)
	assert.True(t, item.SettledAmount.Equal(decimal.NewFromInt(1))) // 100 minor = 1.00 USD

	// capture went out in major units
	require.NotNil(t, gateway.LastCaptureReq)
	assert.True(t, gateway.LastCaptureReq.Amount.Equal(decimal.NewFromInt(1)))

	// a second run finds nothing left to settle
	result, err = svc.InstantSettle(context.Background(), "order-1", Policy{SettlePhysical: true})
	require.NoError(t, err)
	assert.Empty(t, result.SettledItems)
	assert.Equal(t, 1, gateway.CaptureCalls)
}

func TestInstantSettle_PartialSettlesOnlyEligible(t *testing.T) {
	repo := mocks.NewMockOrderRepository()
	gateway := mocks.NewMockPaymentGateway()
	gateway.SetCaptureResponse(&ports.GatewayResult{Transaction: "txn-1"}, nil)
	svc, _ := newTestService(repo, gateway)

	repo.Seed(authorizedOrder("order-1", 350, []*domain.LineItem{
		{ID: "goods", Kind: domain.ItemKindPhysical, UnitAmount: 100, Quantity: 2, Tax: 20},
		{ID: "ebook", Kind: domain.ItemKindVirtual, UnitAmount: 130, Quantity: 1},
	}))

	result, err := svc.InstantSettle(context.Background(), "order-1", Policy{SettleVirtual: true})
	require.NoError(t, err)
	assert.Equal(t, int64(130), result.SettledAmount)

	order := repo.Stored("order-1")
	assert.Equal(t, int64(130), order.SettledAmount)
	assert.Equal(t, domain.OrderStatusPartiallySettled, order.Status)
	assert.False(t, order.Lines[0].Settled)
	assert.True(t, order.Lines[1].Settled)
}

func TestInstantSettle_NoEligibleItemsSkipsGateway(t *testing.T) {
	repo := mocks.NewMockOrderRepository()
	gateway := mocks.NewMockPaymentGateway()
	svc, _ := newTestService(repo, gateway)

	repo.Seed(authorizedOrder("order-1", 100, []*domain.LineItem{
		{ID: "sub", Kind: domain.ItemKindRecurring, GatewayManaged: true, UnitAmount: 100, Quantity: 1},
	}))

	result, err := svc.InstantSettle(context.Background(), "order-1", Policy{
		SettlePhysical: true, SettleVirtual: true, SettleRecurring: true, SettleFee: true,
	})
	require.NoError(t, err)
	assert.Empty(t, result.SettledItems)
	assert.Equal(t, 0, gateway.CaptureCalls)
	assert.Equal(t, 0, repo.SaveCalls)
}

func TestInstantSettle_GatewayErrorLeavesOrderUntouched(t *testing.T) {
	repo := mocks.NewMockOrderRepository()
	gateway := mocks.NewMockPaymentGateway()
	gateway.SetCaptureResponse(nil, domain.NewDomainError(domain.ErrorCodeGatewayTimeout, "request timed out"))
	svc, _ := newTestService(repo, gateway)

	item := &domain.LineItem{ID: "goods", Kind: domain.ItemKindPhysical, UnitAmount: 100, Quantity: 1}
	repo.Seed(authorizedOrder("order-1", 100, []*domain.LineItem{item}))

	_, err := svc.InstantSettle(context.Background(), "order-1", Policy{SettlePhysical: true})
	require.Error(t, err)
	assert.True(t, domain.IsGatewayError(err))

	order := repo.Stored("order-1")
	assert.Equal(t, int64(0), order.SettledAmount)
	assert.Equal(t, domain.OrderStatusAuthorized, order.Status)
	assert.False(t, item.Settled)
	assert.Equal(t, 0, repo.SaveCalls)
}

func TestInstantSettle_CancelledOrderRejected(t *testing.T) {
	repo := mocks.NewMockOrderRepository()
	gateway := mocks.NewMockPaymentGateway()
	svc, _ := newTestService(repo, gateway)

	order := authorizedOrder("order-1", 100, []*domain.LineItem{
		{ID: "goods", Kind: domain.ItemKindPhysical, UnitAmount: 100, Quantity: 1},
	})
	order.Cancelled = true
	repo.Seed(order)

	_, err := svc.InstantSettle(context.Background(), "order-1", Policy{SettlePhysical: true})
	require.Error(t, err)
	assert.True(t, domain.IsInvalidTransition(err))
	assert.Equal(t, 0, gateway.CaptureCalls)
}

func TestInstantSettle_ExceedsAuthorizationRejected(t *testing.T) {
	repo := mocks.NewMockOrderRepository()
	gateway := mocks.NewMockPaymentGateway()
	svc, _ := newTestService(repo, gateway)

	// authorization covers less than the eligible lines; never clamp, reject
	repo.Seed(authorizedOrder("order-1", 50, []*domain.LineItem{
		{ID: "goods", Kind: domain.ItemKindPhysical, UnitAmount: 100, Quantity: 1},
	}))

	_, err := svc.InstantSettle(context.Background(), "order-1", Policy{SettlePhysical: true})
	require.Error(t, err)
	assert.True(t, domain.IsInvalidTransition(err))
	assert.Equal(t, 0, gateway.CaptureCalls)
}

func TestInstantSettle_PublishesSettledEvent(t *testing.T) {
	repo := mocks.NewMockOrderRepository()
	gateway := mocks.NewMockPaymentGateway()
	gateway.SetCaptureResponse(&ports.GatewayResult{Transaction: "txn-1"}, nil)
	svc, bus := newTestService(repo, gateway)

	var got []events.OrderSettled
	bus.Subscribe("order.settled", func(_ context.Context, e events.Event) {
		got = append(got, e.(events.OrderSettled))
	})

	repo.Seed(authorizedOrder("order-1", 100, []*domain.LineItem{
		{ID: "goods", Kind: domain.ItemKindPhysical, UnitAmount: 100, Quantity: 1},
	}))

	_, err := svc.InstantSettle(context.Background(), "order-1", Policy{SettlePhysical: true})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "order-1", got[0].Handle)
	assert.Equal(t, int64(100), got[0].Amount)
	assert.True(t, got[0].Full)
}

func TestCompleteSettle_MarksItemAndPersists(t *testing.T) {
	repo := mocks.NewMockOrderRepository()
	gateway := mocks.NewMockPaymentGateway()
	svc, _ := newTestService(repo, gateway)

	item := &domain.LineItem{ID: "goods", Kind: domain.ItemKindPhysical, UnitAmount: 250, Quantity: 1}
	order := authorizedOrder("order-1", 250, []*domain.LineItem{item})
	repo.Seed(order)

	before := time.Now()
	require.NoError(t, svc.CompleteSettle(context.Background(), order, item, 250))

	assert.True(t, item.Settled)
	assert.True(t, item.SettledAmount.Equal(decimal.NewFromFloat(2.5)))
	require.NotNil(t, item.SettledAt)
	assert.False(t, item.SettledAt.Before(before))
	assert.Equal(t, 1, repo.SaveCalls)
}
