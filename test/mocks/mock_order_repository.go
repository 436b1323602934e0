package mocks

import (
	"context"
	"sync"

	"github.com/stenbridge/settlement-service/internal/domain"
	"github.com/stenbridge/settlement-service/internal/domain/ports"
)

// MockOrderRepository is an in-memory OrderRepository for testing
type MockOrderRepository struct {
	mu     sync.Mutex
	orders map[string]*domain.Order

	// Errors to inject
	getError  error
	saveError error

	// Call tracking
	SaveCalls int
}

// NewMockOrderRepository creates an empty in-memory order repository
func NewMockOrderRepository() *MockOrderRepository {
	return &MockOrderRepository{orders: make(map[string]*domain.Order)}
}

// Seed stores an order directly, bypassing Create tracking
func (m *MockOrderRepository) Seed(order *domain.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[order.Handle] = order
}

// Stored returns the current persisted state of an order
func (m *MockOrderRepository) Stored(handle string) *domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[handle]
}

// SetGetError makes GetByHandle fail with err
func (m *MockOrderRepository) SetGetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getError = err
}

// SetSaveError makes Save fail with err
func (m *MockOrderRepository) SetSaveError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveError = err
}

func (m *MockOrderRepository) Create(_ context.Context, _ ports.DBTX, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[order.Handle] = order
	return nil
}

func (m *MockOrderRepository) GetByHandle(_ context.Context, _ ports.DBTX, handle string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getError != nil {
		return nil, m.getError
	}
	order, ok := m.orders[handle]
	if !ok {
		return nil, domain.NewDomainError(domain.ErrorCodeOrderNotFound, "order not found").
			WithDetail("handle", handle)
	}
	return order, nil
}

// Save matches the stored version the way the real repository does, so tests
// can exercise lost-update interleavings.
func (m *MockOrderRepository) Save(_ context.Context, _ ports.DBTX, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveCalls++
	if m.saveError != nil {
		return m.saveError
	}
	if existing, ok := m.orders[order.Handle]; ok && existing.Version != order.Version {
		return domain.NewDomainError(domain.ErrorCodeOrderVersionConflict,
			"order was modified concurrently").
			WithDetail("handle", order.Handle)
	}
	order.Version++
	m.orders[order.Handle] = order
	return nil
}

// SetMetadata merges one key and bumps the version, matching the repository
func (m *MockOrderRepository) SetMetadata(_ context.Context, _ ports.DBTX, handle, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[handle]
	if !ok {
		return domain.NewDomainError(domain.ErrorCodeOrderNotFound, "order not found").
			WithDetail("handle", handle)
	}
	if order.Metadata == nil {
		order.Metadata = make(map[string]string)
	}
	order.Metadata[key] = value
	order.Version++
	return nil
}
