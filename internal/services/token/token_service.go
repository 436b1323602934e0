// Package token manages stored payment credentials: card tokens and
// recurring-wallet handles issued by the gateway.
package token

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stenbridge/settlement-service/internal/domain"
	"github.com/stenbridge/settlement-service/internal/domain/ports"
	"github.com/stenbridge/settlement-service/pkg/timeutil"
)

// orderTokenMetadataKey is the order metadata key holding the bound token id
const orderTokenMetadataKey = "payment_token_id"

// Service implements the token store on top of the gateway and the token
// repository.
type Service struct {
	tokens  ports.TokenRepository
	orders  ports.OrderRepository
	gateway ports.PaymentGateway
	logger  *zap.Logger
}

// NewService creates a new token service
func NewService(
	tokens ports.TokenRepository,
	orders ports.OrderRepository,
	gateway ports.PaymentGateway,
	logger *zap.Logger,
) *Service {
	return &Service{
		tokens:  tokens,
		orders:  orders,
		gateway: gateway,
		logger:  logger,
	}
}

// AddPaymentTokenToCustomer stores a gateway token for a customer. Wallet
// tokens (ms_ prefix) are classified as recurring-wallet credentials and carry
// no card metadata; everything else is fetched from the gateway as a card and
// must come back with masked number, expiry and card type.
//
// customerID may be domain.AnonymousCustomerID when checkout has not resolved
// a customer yet; the token can be reassigned later.
func (s *Service) AddPaymentTokenToCustomer(ctx context.Context, customerID, gatewayTokenID string) (*domain.PaymentToken, error) {
	if gatewayTokenID == "" {
		return nil, domain.NewDomainError(domain.ErrorCodeValidationMissingField, "gateway token id is required")
	}

	token := &domain.PaymentToken{
		ID:             uuid.NewString(),
		CustomerID:     customerID,
		GatewayTokenID: gatewayTokenID,
		CreatedAt:      timeutil.Now(),
	}

	if domain.IsWalletTokenID(gatewayTokenID) {
		token.Type = domain.TokenTypeRecurringWallet
	} else {
		card, err := s.gateway.GetCard(ctx, gatewayTokenID)
		if err != nil {
			if domain.IsDomainError(err, domain.ErrorCodeTokenCardNotFound) {
				return nil, err
			}
			return nil, fmt.Errorf("fetch card %s: %w", gatewayTokenID, err)
		}
		if card.MaskedCard == "" || card.CardType == "" || card.ExpMonth == 0 || card.ExpYear == 0 {
			return nil, domain.NewDomainError(domain.ErrorCodeTokenInvalidFields,
				"gateway card is missing required fields").
				WithDetail("token_id", gatewayTokenID)
		}
		token.Type = domain.TokenTypeCard
		token.MaskedCard = card.MaskedCard
		token.CardType = card.CardType
		token.ExpMonth = card.ExpMonth
		token.ExpYear = card.ExpYear
	}

	if err := s.tokens.Create(ctx, nil, token); err != nil {
		return nil, fmt.Errorf("persist token: %w", err)
	}

	s.logger.Info("payment token stored",
		zap.String("token_id", token.ID),
		zap.String("customer_id", customerID),
		zap.String("type", string(token.Type)),
	)
	return token, nil
}

// AssignPaymentToken binds a stored token to an order. ref may be the internal
// token id or the gateway token string; resolution tries both. The binding is
// recorded in the order's metadata so later gateway operations reuse the same
// credential.
func (s *Service) AssignPaymentToken(ctx context.Context, handle, ref string) (*domain.PaymentToken, error) {
	if ref == "" {
		return nil, domain.NewDomainError(domain.ErrorCodeValidationMissingField, "token reference is required")
	}

	token, err := s.resolve(ctx, ref)
	if err != nil {
		return nil, err
	}

	if err := s.orders.SetMetadata(ctx, nil, handle, orderTokenMetadataKey, token.ID); err != nil {
		return nil, fmt.Errorf("bind token to order %s: %w", handle, err)
	}

	s.logger.Info("payment token assigned to order",
		zap.String("handle", handle),
		zap.String("token_id", token.ID),
	)
	return token, nil
}

// resolve looks a token up by internal id first, then by gateway token string.
func (s *Service) resolve(ctx context.Context, ref string) (*domain.PaymentToken, error) {
	token, err := s.tokens.GetByID(ctx, nil, ref)
	if err == nil {
		return token, nil
	}
	if !domain.IsDomainError(err, domain.ErrorCodeTokenNotFound) {
		return nil, fmt.Errorf("resolve token %s: %w", ref, err)
	}

	token, err = s.tokens.GetByGatewayTokenID(ctx, nil, ref)
	if err != nil {
		if domain.IsDomainError(err, domain.ErrorCodeTokenNotFound) {
			return nil, domain.NewDomainError(domain.ErrorCodeTokenNotFound,
				"token reference does not resolve").
				WithDetail("ref", ref)
		}
		return nil, fmt.Errorf("resolve token %s: %w", ref, err)
	}
	return token, nil
}

// ClaimAnonymousToken reassigns a token created during anonymous checkout to a
// resolved customer. Tokens already bound to another customer are not moved.
func (s *Service) ClaimAnonymousToken(ctx context.Context, tokenID, customerID string) error {
	token, err := s.tokens.GetByID(ctx, nil, tokenID)
	if err != nil {
		return err
	}
	if token.IsBound() {
		return domain.NewDomainError(domain.ErrorCodeTokenInvalidFields,
			"token is already bound to a customer").
			WithDetail("token_id", tokenID).
			WithDetail("customer_id", token.CustomerID)
	}
	if err := s.tokens.Reassign(ctx, nil, tokenID, customerID); err != nil {
		return fmt.Errorf("reassign token %s: %w", tokenID, err)
	}
	s.logger.Info("anonymous token claimed",
		zap.String("token_id", tokenID),
		zap.String("customer_id", customerID),
	)
	return nil
}

// DeleteCard removes a stored credential gateway-side first, then locally.
// When the gateway delete fails the local record is kept so the credential can
// still be managed, and the method reports false.
func (s *Service) DeleteCard(ctx context.Context, token *domain.PaymentToken) (bool, error) {
	if err := s.gateway.DeleteCard(ctx, token.GatewayTokenID); err != nil {
		s.logger.Warn("gateway card delete failed, keeping local record",
			zap.String("token_id", token.ID),
			zap.Error(err),
		)
		return false, fmt.Errorf("gateway delete card: %w", err)
	}

	if err := s.tokens.Delete(ctx, nil, token.ID); err != nil {
		return false, fmt.Errorf("delete local token %s: %w", token.ID, err)
	}

	s.logger.Info("payment token deleted",
		zap.String("token_id", token.ID),
		zap.String("customer_id", token.CustomerID),
	)
	return true, nil
}

// IsGatewayToken reports whether a stored token was issued by this gateway.
// Payment methods saved by other processors fail this check and must not be
// sent on gateway calls.
func (s *Service) IsGatewayToken(token *domain.PaymentToken) bool {
	if token == nil {
		return false
	}
	return domain.IsGatewayTokenID(token.GatewayTokenID)
}
