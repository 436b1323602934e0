package token

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/stenbridge/settlement-service/internal/domain"
	"github.com/stenbridge/settlement-service/internal/domain/ports"
	"github.com/stenbridge/settlement-service/test/mocks"
)

type fixture struct {
	svc     *Service
	tokens  *mocks.MockTokenRepository
	orders  *mocks.MockOrderRepository
	gateway *mocks.MockPaymentGateway
}

func newFixture() *fixture {
	tokens := mocks.NewMockTokenRepository()
	orders := mocks.NewMockOrderRepository()
	gateway := mocks.NewMockPaymentGateway()
	return &fixture{
		svc:     NewService(tokens, orders, gateway, zap.NewNop()),
		tokens:  tokens,
		orders:  orders,
		gateway: gateway,
	}
}

func TestAddPaymentToken_Card(t *testing.T) {
	f := newFixture()
	f.gateway.AddCard(&ports.Card{
		TokenID:    "ca_123",
		State:      "active",
		MaskedCard: "457111XXXXXX1234",
		CardType:   "visa",
		ExpMonth:   6,
		ExpYear:    2028,
	})

	token, err := f.svc.AddPaymentTokenToCustomer(context.Background(), "cust-1", "ca_123")
	require.NoError(t, err)
	assert.Equal(t, domain.TokenTypeCard, token.Type)
	assert.Equal(t, "457111XXXXXX1234", token.MaskedCard)
	assert.Equal(t, "visa", token.CardType)
	assert.Equal(t, 6, token.ExpMonth)
	assert.Equal(t, 2028, token.ExpYear)
	assert.NotEmpty(t, token.ID)
	assert.NotNil(t, f.tokens.Stored(token.ID))
}

func TestAddPaymentToken_WalletSkipsGateway(t *testing.T) {
	f := newFixture()

	token, err := f.svc.AddPaymentTokenToCustomer(context.Background(), "cust-1", "ms_subscription_1")
	require.NoError(t, err)
	assert.Equal(t, domain.TokenTypeRecurringWallet, token.Type)
	assert.True(t, token.IsRecurringWallet())
	assert.Empty(t, token.MaskedCard)
	assert.Equal(t, 0, f.gateway.GetCardCalls)
}

func TestAddPaymentToken_CardNotFound(t *testing.T) {
	f := newFixture()

	_, err := f.svc.AddPaymentTokenToCustomer(context.Background(), "cust-1", "ca_missing")
	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeTokenCardNotFound))
	assert.Equal(t, 0, f.tokens.CreateCalls)
}

func TestAddPaymentToken_MissingCardFields(t *testing.T) {
	f := newFixture()
	f.gateway.AddCard(&ports.Card{TokenID: "ca_partial", MaskedCard: "457111XXXXXX1234"})

	_, err := f.svc.AddPaymentTokenToCustomer(context.Background(), "cust-1", "ca_partial")
	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeTokenInvalidFields))
	assert.Equal(t, 0, f.tokens.CreateCalls)
}

func TestAddPaymentToken_AnonymousCustomer(t *testing.T) {
	f := newFixture()

	token, err := f.svc.AddPaymentTokenToCustomer(context.Background(), domain.AnonymousCustomerID, "ms_sub")
	require.NoError(t, err)
	assert.False(t, token.IsBound())
}

func TestAssignPaymentToken_ByInternalID(t *testing.T) {
	f := newFixture()
	f.tokens.Seed(&domain.PaymentToken{ID: "tok-1", CustomerID: "cust-1", GatewayTokenID: "ca_123"})
	f.orders.Seed(domain.NewOrder("order-1", "USD", nil))

	token, err := f.svc.AssignPaymentToken(context.Background(), "order-1", "tok-1")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token.ID)
	assert.Equal(t, "tok-1", f.orders.Stored("order-1").Metadata["payment_token_id"])
}

func TestAssignPaymentToken_ByGatewayTokenString(t *testing.T) {
	f := newFixture()
	f.tokens.Seed(&domain.PaymentToken{ID: "tok-1", CustomerID: "cust-1", GatewayTokenID: "ca_123"})
	f.orders.Seed(domain.NewOrder("order-1", "USD", nil))

	token, err := f.svc.AssignPaymentToken(context.Background(), "order-1", "ca_123")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token.ID)
}

func TestAssignPaymentToken_FailsConcurrentStaleSave(t *testing.T) {
	// The binding bumps the order version, so a writer holding a snapshot
	// loaded before the assignment cannot save over it and erase the entry.
	f := newFixture()
	f.tokens.Seed(&domain.PaymentToken{ID: "tok-1", CustomerID: "cust-1", GatewayTokenID: "ca_123"})
	order := domain.NewOrder("order-1", "USD", nil)
	f.orders.Seed(order)
	stale := *order

	_, err := f.svc.AssignPaymentToken(context.Background(), "order-1", "tok-1")
	require.NoError(t, err)

	err = f.orders.Save(context.Background(), nil, &stale)
	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeOrderVersionConflict))
	assert.Equal(t, "tok-1", f.orders.Stored("order-1").Metadata["payment_token_id"])
}

func TestAssignPaymentToken_Unresolvable(t *testing.T) {
	f := newFixture()
	f.orders.Seed(domain.NewOrder("order-1", "USD", nil))

	_, err := f.svc.AssignPaymentToken(context.Background(), "order-1", "nope")
	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeTokenNotFound))
}

func TestClaimAnonymousToken(t *testing.T) {
	f := newFixture()
	f.tokens.Seed(&domain.PaymentToken{ID: "tok-1", CustomerID: domain.AnonymousCustomerID, GatewayTokenID: "ms_sub"})

	require.NoError(t, f.svc.ClaimAnonymousToken(context.Background(), "tok-1", "cust-9"))
	assert.Equal(t, "cust-9", f.tokens.Stored("tok-1").CustomerID)
}

func TestClaimAnonymousToken_AlreadyBound(t *testing.T) {
	f := newFixture()
	f.tokens.Seed(&domain.PaymentToken{ID: "tok-1", CustomerID: "cust-1", GatewayTokenID: "ca_123"})

	err := f.svc.ClaimAnonymousToken(context.Background(), "tok-1", "cust-9")
	require.Error(t, err)
	assert.Equal(t, "cust-1", f.tokens.Stored("tok-1").CustomerID)
}

func TestDeleteCard_Success(t *testing.T) {
	f := newFixture()
	token := &domain.PaymentToken{ID: "tok-1", CustomerID: "cust-1", GatewayTokenID: "ca_123"}
	f.tokens.Seed(token)

	deleted, err := f.svc.DeleteCard(context.Background(), token)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Nil(t, f.tokens.Stored("tok-1"))
	assert.Equal(t, []string{"ca_123"}, f.gateway.DeletedTokenIDs)
}

func TestDeleteCard_GatewayFailureKeepsLocalRecord(t *testing.T) {
	f := newFixture()
	token := &domain.PaymentToken{ID: "tok-1", CustomerID: "cust-1", GatewayTokenID: "ca_123"}
	f.tokens.Seed(token)
	f.gateway.SetDeleteCardError(domain.NewDomainError(domain.ErrorCodeGatewayError, "upstream 503"))

	deleted, err := f.svc.DeleteCard(context.Background(), token)
	require.Error(t, err)
	assert.False(t, deleted)
	assert.NotNil(t, f.tokens.Stored("tok-1"))
	assert.Equal(t, 0, f.tokens.DeleteCalls)
}

func TestIsGatewayToken(t *testing.T) {
	f := newFixture()

	assert.True(t, f.svc.IsGatewayToken(&domain.PaymentToken{GatewayTokenID: "ca_123"}))
	assert.True(t, f.svc.IsGatewayToken(&domain.PaymentToken{GatewayTokenID: "ms_sub"}))
	assert.False(t, f.svc.IsGatewayToken(&domain.PaymentToken{GatewayTokenID: "offline-cod"}))
	assert.False(t, f.svc.IsGatewayToken(nil))
}
