package ports

import (
	"context"

	"github.com/stenbridge/settlement-service/internal/domain"
)

// TokenRepository persists saved payment-method tokens.
type TokenRepository interface {
	// Create persists a new token.
	Create(ctx context.Context, tx DBTX, token *domain.PaymentToken) error

	// GetByID loads a token by its internal id.
	// Returns domain.ErrTokenNotFound when no such token exists.
	GetByID(ctx context.Context, tx DBTX, id string) (*domain.PaymentToken, error)

	// GetByGatewayTokenID loads a token by the gateway-issued token string.
	GetByGatewayTokenID(ctx context.Context, tx DBTX, gatewayTokenID string) (*domain.PaymentToken, error)

	// ListByCustomer returns all tokens owned by a customer.
	ListByCustomer(ctx context.Context, tx DBTX, customerID string) ([]*domain.PaymentToken, error)

	// Reassign moves a token to a different customer. Used when an anonymous
	// checkout token is claimed by a resolved customer.
	Reassign(ctx context.Context, tx DBTX, id, customerID string) error

	// SetDefault marks a token as the customer's default, clearing the flag
	// on their other tokens.
	SetDefault(ctx context.Context, tx DBTX, id, customerID string) error

	// Delete removes a token record.
	Delete(ctx context.Context, tx DBTX, id string) error
}
