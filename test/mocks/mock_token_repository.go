package mocks

import (
	"context"
	"sync"

	"github.com/stenbridge/settlement-service/internal/domain"
	"github.com/stenbridge/settlement-service/internal/domain/ports"
)

// MockTokenRepository is an in-memory TokenRepository for testing
type MockTokenRepository struct {
	mu     sync.Mutex
	tokens map[string]*domain.PaymentToken

	createError error

	CreateCalls int
	DeleteCalls int
}

// NewMockTokenRepository creates an empty in-memory token repository
func NewMockTokenRepository() *MockTokenRepository {
	return &MockTokenRepository{tokens: make(map[string]*domain.PaymentToken)}
}

// Seed stores a token directly
func (m *MockTokenRepository) Seed(token *domain.PaymentToken) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token.ID] = token
}

// Stored returns the current persisted state of a token, or nil
func (m *MockTokenRepository) Stored(id string) *domain.PaymentToken {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens[id]
}

// SetCreateError makes Create fail with err
func (m *MockTokenRepository) SetCreateError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createError = err
}

func (m *MockTokenRepository) Create(_ context.Context, _ ports.DBTX, token *domain.PaymentToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateCalls++
	if m.createError != nil {
		return m.createError
	}
	m.tokens[token.ID] = token
	return nil
}

func (m *MockTokenRepository) GetByID(_ context.Context, _ ports.DBTX, id string) (*domain.PaymentToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	token, ok := m.tokens[id]
	if !ok {
		return nil, domain.NewDomainError(domain.ErrorCodeTokenNotFound, "payment token not found").
			WithDetail("id", id)
	}
	return token, nil
}

func (m *MockTokenRepository) GetByGatewayTokenID(_ context.Context, _ ports.DBTX, gatewayTokenID string) (*domain.PaymentToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, token := range m.tokens {
		if token.GatewayTokenID == gatewayTokenID {
			return token, nil
		}
	}
	return nil, domain.NewDomainError(domain.ErrorCodeTokenNotFound, "payment token not found").
		WithDetail("gateway_token_id", gatewayTokenID)
}

func (m *MockTokenRepository) ListByCustomer(_ context.Context, _ ports.DBTX, customerID string) ([]*domain.PaymentToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.PaymentToken
	for _, token := range m.tokens {
		if token.CustomerID == customerID {
			out = append(out, token)
		}
	}
	return out, nil
}

func (m *MockTokenRepository) Reassign(_ context.Context, _ ports.DBTX, id, customerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	token, ok := m.tokens[id]
	if !ok {
		return domain.NewDomainError(domain.ErrorCodeTokenNotFound, "payment token not found").
			WithDetail("id", id)
	}
	token.CustomerID = customerID
	return nil
}

func (m *MockTokenRepository) SetDefault(_ context.Context, _ ports.DBTX, id, customerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, token := range m.tokens {
		if token.CustomerID == customerID {
			token.IsDefault = token.ID == id
		}
	}
	return nil
}

func (m *MockTokenRepository) Delete(_ context.Context, _ ports.DBTX, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeleteCalls++
	if _, ok := m.tokens[id]; !ok {
		return domain.NewDomainError(domain.ErrorCodeTokenNotFound, "payment token not found").
			WithDetail("id", id)
	}
	delete(m.tokens, id)
	return nil
}
