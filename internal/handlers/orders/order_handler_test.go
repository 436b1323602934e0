package orders

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/stenbridge/settlement-service/internal/domain"
	"github.com/stenbridge/settlement-service/test/mocks"
)

// memoryCache is an in-process ports.OrderCache for handler tests
type memoryCache struct {
	entries map[string]*domain.Order
	gets    int
	sets    int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string]*domain.Order)}
}

func (c *memoryCache) Get(_ context.Context, handle string) (*domain.Order, bool, error) {
	c.gets++
	order, ok := c.entries[handle]
	return order, ok, nil
}

func (c *memoryCache) Set(_ context.Context, order *domain.Order, _ time.Duration) error {
	c.sets++
	c.entries[order.Handle] = order
	return nil
}

func (c *memoryCache) Invalidate(_ context.Context, handle string) error {
	delete(c.entries, handle)
	return nil
}

func seedOrder(repo *mocks.MockOrderRepository) *domain.Order {
	order := domain.NewOrder("order-1001", "DKK", []*domain.LineItem{
		{ID: "line-1", Kind: domain.ItemKindPhysical, UnitAmount: 2500, Quantity: 2},
	})
	order.AuthorizedAmount = 5000
	order.SettledAmount = 5000
	order.Status = domain.OrderStatusSettled
	repo.Seed(order)
	return order
}

func TestOrderHandler_ReturnsOrderState(t *testing.T) {
	repo := mocks.NewMockOrderRepository()
	seedOrder(repo)
	handler := NewHandler(repo, nil, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/orders/order-1001", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp orderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "order-1001", resp.Handle)
	assert.Equal(t, "DKK", resp.Currency)
	assert.Equal(t, "settled", resp.Status)
	assert.Equal(t, int64(5000), resp.AuthorizedMinor)
	assert.Equal(t, "50", resp.Authorized)
	require.Len(t, resp.Lines, 1)
	assert.Equal(t, int64(5000), resp.Lines[0].AmountMinor)
}

func TestOrderHandler_UnknownOrderIs404(t *testing.T) {
	handler := NewHandler(mocks.NewMockOrderRepository(), nil, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/orders/order-missing", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOrderHandler_MissingHandleIs400(t *testing.T) {
	handler := NewHandler(mocks.NewMockOrderRepository(), nil, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/orders/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOrderHandler_MethodNotAllowed(t *testing.T) {
	handler := NewHandler(mocks.NewMockOrderRepository(), nil, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/orders/order-1001", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestOrderHandler_PopulatesCacheOnMiss(t *testing.T) {
	repo := mocks.NewMockOrderRepository()
	seedOrder(repo)
	cache := newMemoryCache()
	handler := NewHandler(repo, cache, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/orders/order-1001", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, cache.sets)
	assert.Contains(t, cache.entries, "order-1001")
}

func TestOrderHandler_ServesFromCache(t *testing.T) {
	// Repository is empty: a hit proves the cache was used.
	repo := mocks.NewMockOrderRepository()
	cache := newMemoryCache()
	cached := domain.NewOrder("order-2002", "EUR", nil)
	cached.AuthorizedAmount = 1250
	cache.entries["order-2002"] = cached
	handler := NewHandler(repo, cache, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/orders/order-2002", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp orderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "12.5", resp.Authorized)
	assert.Equal(t, 0, cache.sets)
}
