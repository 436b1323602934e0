package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// WebhookEventType identifies a payment-state-change notification from the gateway
type WebhookEventType string

const (
	EventInvoiceAuthorized WebhookEventType = "invoice_authorized"
	EventInvoiceSettled    WebhookEventType = "invoice_settled"
	EventInvoiceCancelled  WebhookEventType = "invoice_cancelled"
	EventInvoiceRefund     WebhookEventType = "invoice_refund"
)

// WebhookEvent is a transient notification consumed by the reconciler.
// Delivery is at-least-once; the reconciler must be idempotent.
type WebhookEvent struct {
	ID          string           `json:"id"`
	Type        WebhookEventType `json:"event_type"`
	OrderHandle string           `json:"order_handle"`
	Transaction string           `json:"transaction"` // gateway-side transaction id
	Amount      decimal.Decimal  `json:"amount"`      // major units, converted at the boundary
	Currency    string           `json:"currency"`
	Timestamp   time.Time        `json:"timestamp"`
}

// AmountMinor returns the event amount converted to minor units.
func (e *WebhookEvent) AmountMinor() int64 {
	return ToMinorUnits(e.Amount, e.Currency)
}

// Validate checks the fields every event must carry.
func (e *WebhookEvent) Validate() error {
	if e.ID == "" {
		return NewDomainError(ErrorCodeValidationMissingField, "event id is required")
	}
	if e.Type == "" {
		return NewDomainError(ErrorCodeValidationMissingField, "event_type is required")
	}
	if e.OrderHandle == "" {
		return NewDomainError(ErrorCodeValidationMissingField, "order_handle is required")
	}
	switch e.Type {
	case EventInvoiceAuthorized, EventInvoiceSettled, EventInvoiceCancelled, EventInvoiceRefund:
	default:
		return NewDomainError(ErrorCodeWebhookUnknownEvent, "unsupported event type").
			WithDetail("event_type", string(e.Type))
	}
	return nil
}
