package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/stenbridge/settlement-service/internal/domain"
	"github.com/stenbridge/settlement-service/internal/domain/ports"
)

// TokenRepository implements ports.TokenRepository on PostgreSQL
type TokenRepository struct {
	db ports.DBPort
}

// NewTokenRepository creates a new token repository
func NewTokenRepository(db ports.DBPort) *TokenRepository {
	return &TokenRepository{db: db}
}

func (r *TokenRepository) q(tx ports.DBTX) ports.DBTX {
	if tx != nil {
		return tx
	}
	return r.db.GetDB()
}

const tokenColumns = `id, customer_id, gateway_token_id, type, masked_card, card_type,
	exp_month, exp_year, is_default, created_at`

// Create persists a new token
func (r *TokenRepository) Create(ctx context.Context, tx ports.DBTX, token *domain.PaymentToken) error {
	_, err := r.q(tx).Exec(ctx, `
		INSERT INTO payment_tokens (`+tokenColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		token.ID, token.CustomerID, token.GatewayTokenID, string(token.Type),
		token.MaskedCard, token.CardType, token.ExpMonth, token.ExpYear,
		token.IsDefault, token.CreatedAt,
	)
	if err != nil {
		return domain.WrapError(domain.ErrorCodeDatabaseError,
			fmt.Sprintf("create token %s", token.ID), err)
	}
	return nil
}

// GetByID loads a token by its internal id
func (r *TokenRepository) GetByID(ctx context.Context, tx ports.DBTX, id string) (*domain.PaymentToken, error) {
	return r.get(ctx, tx, "id = $1", id)
}

// GetByGatewayTokenID loads a token by the gateway-issued token string
func (r *TokenRepository) GetByGatewayTokenID(ctx context.Context, tx ports.DBTX, gatewayTokenID string) (*domain.PaymentToken, error) {
	return r.get(ctx, tx, "gateway_token_id = $1", gatewayTokenID)
}

func (r *TokenRepository) get(ctx context.Context, tx ports.DBTX, where string, arg interface{}) (*domain.PaymentToken, error) {
	row := r.q(tx).QueryRow(ctx, `
		SELECT `+tokenColumns+`
		FROM payment_tokens
		WHERE `+where,
		arg,
	)

	token, err := scanToken(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NewDomainError(domain.ErrorCodeTokenNotFound, "payment token not found").
			WithDetail("ref", fmt.Sprintf("%v", arg))
	}
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "get token", err)
	}
	return token, nil
}

// ListByCustomer returns all tokens owned by a customer
func (r *TokenRepository) ListByCustomer(ctx context.Context, tx ports.DBTX, customerID string) ([]*domain.PaymentToken, error) {
	rows, err := r.q(tx).Query(ctx, `
		SELECT `+tokenColumns+`
		FROM payment_tokens
		WHERE customer_id = $1
		ORDER BY created_at`,
		customerID,
	)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError,
			fmt.Sprintf("list tokens for customer %s", customerID), err)
	}
	defer rows.Close()

	var tokens []*domain.PaymentToken
	for rows.Next() {
		token, err := scanToken(rows)
		if err != nil {
			return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "scan token", err)
		}
		tokens = append(tokens, token)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "iterate tokens", err)
	}
	return tokens, nil
}

// Reassign moves a token to a different customer
func (r *TokenRepository) Reassign(ctx context.Context, tx ports.DBTX, id, customerID string) error {
	tag, err := r.q(tx).Exec(ctx, `
		UPDATE payment_tokens
		SET customer_id = $1
		WHERE id = $2`,
		customerID, id,
	)
	if err != nil {
		return domain.WrapError(domain.ErrorCodeDatabaseError,
			fmt.Sprintf("reassign token %s", id), err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewDomainError(domain.ErrorCodeTokenNotFound, "payment token not found").
			WithDetail("id", id)
	}
	return nil
}

// SetDefault marks a token as the customer's default, clearing the others
func (r *TokenRepository) SetDefault(ctx context.Context, tx ports.DBTX, id, customerID string) error {
	_, err := r.q(tx).Exec(ctx, `
		UPDATE payment_tokens
		SET is_default = (id = $1)
		WHERE customer_id = $2`,
		id, customerID,
	)
	if err != nil {
		return domain.WrapError(domain.ErrorCodeDatabaseError,
			fmt.Sprintf("set default token for customer %s", customerID), err)
	}
	return nil
}

// Delete removes a token record
func (r *TokenRepository) Delete(ctx context.Context, tx ports.DBTX, id string) error {
	tag, err := r.q(tx).Exec(ctx, `
		DELETE FROM payment_tokens
		WHERE id = $1`,
		id,
	)
	if err != nil {
		return domain.WrapError(domain.ErrorCodeDatabaseError,
			fmt.Sprintf("delete token %s", id), err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewDomainError(domain.ErrorCodeTokenNotFound, "payment token not found").
			WithDetail("id", id)
	}
	return nil
}

func scanToken(row pgx.Row) (*domain.PaymentToken, error) {
	var (
		token     domain.PaymentToken
		tokenType string
	)
	err := row.Scan(
		&token.ID, &token.CustomerID, &token.GatewayTokenID, &tokenType,
		&token.MaskedCard, &token.CardType, &token.ExpMonth, &token.ExpYear,
		&token.IsDefault, &token.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	token.Type = domain.TokenType(tokenType)
	return &token, nil
}

var _ ports.TokenRepository = (*TokenRepository)(nil)
