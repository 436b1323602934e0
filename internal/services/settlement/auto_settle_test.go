package settlement

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/stenbridge/settlement-service/internal/domain"
	"github.com/stenbridge/settlement-service/internal/domain/ports"
	"github.com/stenbridge/settlement-service/internal/events"
	"github.com/stenbridge/settlement-service/pkg/resilience"
	"github.com/stenbridge/settlement-service/test/mocks"
)

// drain waits for settle passes the settler has started
func drain(t *testing.T, settler *AutoSettler) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, settler.Shutdown(ctx))
}

func TestAutoSettle_SettlesVirtualOnAuthorization(t *testing.T) {
	repo := mocks.NewMockOrderRepository()
	gateway := mocks.NewMockPaymentGateway()
	gateway.SetCaptureResponse(&ports.GatewayResult{Transaction: "txn-1"}, nil)
	svc, bus := newTestService(repo, gateway)

	repo.Seed(authorizedOrder("order-1", 300, []*domain.LineItem{
		{ID: "goods", Kind: domain.ItemKindPhysical, UnitAmount: 170, Quantity: 1},
		{ID: "ebook", Kind: domain.ItemKindVirtual, UnitAmount: 130, Quantity: 1},
	}))

	settler := NewAutoSettler(svc, Policy{SettleVirtual: true}, resilience.TestTimeoutConfig(), zap.NewNop())
	settler.Subscribe(bus)

	bus.Publish(context.Background(), events.OrderAuthorized{
		Handle: "order-1", Amount: 300, Currency: "USD",
	})
	drain(t, settler)

	order := repo.Stored("order-1")
	assert.Equal(t, int64(130), order.SettledAmount)
	assert.True(t, order.Lines[1].Settled)
	assert.False(t, order.Lines[0].Settled)
	assert.Equal(t, 1, gateway.CaptureCalls)
}

func TestAutoSettle_NoEligibleItemsSkipsGateway(t *testing.T) {
	repo := mocks.NewMockOrderRepository()
	gateway := mocks.NewMockPaymentGateway()
	svc, bus := newTestService(repo, gateway)

	repo.Seed(authorizedOrder("order-1", 100, []*domain.LineItem{
		{ID: "goods", Kind: domain.ItemKindPhysical, UnitAmount: 100, Quantity: 1},
	}))

	settler := NewAutoSettler(svc, Policy{SettleVirtual: true}, resilience.TestTimeoutConfig(), zap.NewNop())
	settler.Subscribe(bus)

	bus.Publish(context.Background(), events.OrderAuthorized{Handle: "order-1"})
	drain(t, settler)

	assert.Equal(t, 0, gateway.CaptureCalls)
	assert.Equal(t, int64(0), repo.Stored("order-1").SettledAmount)
}

func TestAutoSettle_RejectsNewWorkAfterShutdown(t *testing.T) {
	repo := mocks.NewMockOrderRepository()
	gateway := mocks.NewMockPaymentGateway()
	svc, bus := newTestService(repo, gateway)

	repo.Seed(authorizedOrder("order-1", 100, []*domain.LineItem{
		{ID: "ebook", Kind: domain.ItemKindVirtual, UnitAmount: 100, Quantity: 1},
	}))

	settler := NewAutoSettler(svc, Policy{SettleVirtual: true}, resilience.TestTimeoutConfig(), zap.NewNop())
	settler.Subscribe(bus)
	drain(t, settler)

	bus.Publish(context.Background(), events.OrderAuthorized{Handle: "order-1"})
	assert.Equal(t, 0, gateway.CaptureCalls)
	assert.Equal(t, int64(0), repo.Stored("order-1").SettledAmount)
}
