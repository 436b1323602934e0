// Package mocks provides hand-rolled test doubles for the service ports.
package mocks

import (
	"context"
	"sync"

	"github.com/stenbridge/settlement-service/internal/domain"
	"github.com/stenbridge/settlement-service/internal/domain/ports"
)

// MockPaymentGateway is a mock implementation of PaymentGateway for testing
type MockPaymentGateway struct {
	mu sync.Mutex

	// Responses to return
	captureResponse *ports.GatewayResult
	captureError    error
	cancelResponse  *ports.GatewayResult
	cancelError     error
	refundResponse  *ports.GatewayResult
	refundError     error
	cards           map[string]*ports.Card
	cardError       error
	deleteCardError error
	webhookSettings *ports.WebhookSettings
	webhookError    error

	// Call tracking
	CaptureCalls    int
	CancelCalls     int
	RefundCalls     int
	GetCardCalls    int
	DeleteCardCalls int

	// Last request received
	LastCaptureReq   *ports.CaptureRequest
	LastRefundReq    *ports.RefundRequest
	LastCancelHandle string
	LastTokenID      string
	DeletedTokenIDs  []string
}

// NewMockPaymentGateway creates a new mock payment gateway
func NewMockPaymentGateway() *MockPaymentGateway {
	return &MockPaymentGateway{cards: make(map[string]*ports.Card)}
}

// SetCaptureResponse sets the response to return from Capture
func (m *MockPaymentGateway) SetCaptureResponse(result *ports.GatewayResult, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.captureResponse = result
	m.captureError = err
}

// SetCancelResponse sets the response to return from Cancel
func (m *MockPaymentGateway) SetCancelResponse(result *ports.GatewayResult, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelResponse = result
	m.cancelError = err
}

// SetRefundResponse sets the response to return from Refund
func (m *MockPaymentGateway) SetRefundResponse(result *ports.GatewayResult, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refundResponse = result
	m.refundError = err
}

// AddCard registers a stored credential returned by GetCard
func (m *MockPaymentGateway) AddCard(card *ports.Card) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cards[card.TokenID] = card
}

// SetCardError makes GetCard fail with err for every token id
func (m *MockPaymentGateway) SetCardError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cardError = err
}

// SetDeleteCardError makes DeleteCard fail with err
func (m *MockPaymentGateway) SetDeleteCardError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteCardError = err
}

// SetWebhookSettingsResponse sets the configuration returned by GetWebhookSettings
func (m *MockPaymentGateway) SetWebhookSettingsResponse(settings *ports.WebhookSettings, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.webhookSettings = settings
	m.webhookError = err
}

func (m *MockPaymentGateway) Capture(_ context.Context, req *ports.CaptureRequest) (*ports.GatewayResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CaptureCalls++
	m.LastCaptureReq = req
	if m.captureError != nil {
		return nil, m.captureError
	}
	return m.captureResponse, nil
}

func (m *MockPaymentGateway) Cancel(_ context.Context, handle string) (*ports.GatewayResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CancelCalls++
	m.LastCancelHandle = handle
	if m.cancelError != nil {
		return nil, m.cancelError
	}
	return m.cancelResponse, nil
}

func (m *MockPaymentGateway) Refund(_ context.Context, req *ports.RefundRequest) (*ports.GatewayResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RefundCalls++
	m.LastRefundReq = req
	if m.refundError != nil {
		return nil, m.refundError
	}
	return m.refundResponse, nil
}

func (m *MockPaymentGateway) GetCard(_ context.Context, tokenID string) (*ports.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetCardCalls++
	m.LastTokenID = tokenID
	if m.cardError != nil {
		return nil, m.cardError
	}
	card, ok := m.cards[tokenID]
	if !ok {
		return nil, domain.NewDomainError(domain.ErrorCodeTokenCardNotFound, "card not found").
			WithDetail("token_id", tokenID)
	}
	return card, nil
}

func (m *MockPaymentGateway) DeleteCard(_ context.Context, tokenID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeleteCardCalls++
	m.DeletedTokenIDs = append(m.DeletedTokenIDs, tokenID)
	return m.deleteCardError
}

func (m *MockPaymentGateway) GetWebhookSettings(_ context.Context) (*ports.WebhookSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.webhookError != nil {
		return nil, m.webhookError
	}
	return m.webhookSettings, nil
}

func (m *MockPaymentGateway) SetWebhookSettings(_ context.Context, settings *ports.WebhookSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.webhookSettings = settings
	return m.webhookError
}
