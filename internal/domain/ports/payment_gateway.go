package ports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// CaptureRequest asks the gateway to settle part or all of an authorization
type CaptureRequest struct {
	Handle   string          // external order handle
	Amount   decimal.Decimal // major units; partial capture allowed
	Currency string
}

// RefundRequest asks the gateway to return settled funds
type RefundRequest struct {
	Handle   string
	Amount   decimal.Decimal
	Currency string
	Reason   string
}

// GatewayResult is the gateway's response to a mutating call
type GatewayResult struct {
	Transaction string // gateway-side transaction id
	State       string // gateway's view of the charge state
	Amount      decimal.Decimal
	Currency    string
	Timestamp   time.Time
}

// Card is the gateway's stored-credential metadata for a token id
type Card struct {
	TokenID    string
	State      string
	MaskedCard string
	CardType   string
	ExpMonth   int
	ExpYear    int
}

// WebhookSettings is the gateway-side webhook configuration
type WebhookSettings struct {
	URLs        []string
	Disabled    bool
	AlertEmails []string
}

// PaymentGateway is the single typed interface over the payment gateway API,
// resolved once at startup. All calls have bounded timeouts; a timed-out
// mutation is surfaced as a transient failure and the order is left in its
// prior committed state.
//
// The gateway offers no idempotency keys, so callers guard against
// double-submission with the order's CanCapture/CanCancel/CanRefund gates.
type PaymentGateway interface {
	// Capture settles a previously authorized amount.
	Capture(ctx context.Context, req *CaptureRequest) (*GatewayResult, error)

	// Cancel releases an authorization that has not been settled.
	Cancel(ctx context.Context, handle string) (*GatewayResult, error)

	// Refund returns settled funds to the customer.
	Refund(ctx context.Context, req *RefundRequest) (*GatewayResult, error)

	// GetCard fetches stored-credential metadata for a gateway token id.
	// Returns domain.ErrCardNotFound when the gateway has no such token.
	GetCard(ctx context.Context, tokenID string) (*Card, error)

	// DeleteCard removes the stored credential gateway-side.
	DeleteCard(ctx context.Context, tokenID string) error

	// GetWebhookSettings reads the account's webhook configuration.
	GetWebhookSettings(ctx context.Context) (*WebhookSettings, error)

	// SetWebhookSettings updates the account's webhook configuration.
	SetWebhookSettings(ctx context.Context, settings *WebhookSettings) error
}
