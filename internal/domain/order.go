package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stenbridge/settlement-service/pkg/timeutil"
)

// OrderStatus represents the settlement lifecycle state of an order.
// Cancellation and refunds are tracked orthogonally on the aggregate.
type OrderStatus string

const (
	OrderStatusPending          OrderStatus = "pending"
	OrderStatusAuthorized       OrderStatus = "authorized"
	OrderStatusPartiallySettled OrderStatus = "partially_settled"
	OrderStatusSettled          OrderStatus = "settled"
)

// ItemKind classifies an order line for settlement eligibility
type ItemKind string

const (
	ItemKindPhysical  ItemKind = "physical"
	ItemKindVirtual   ItemKind = "virtual"
	ItemKindRecurring ItemKind = "recurring"
	ItemKindFee       ItemKind = "fee"
	ItemKindShipping  ItemKind = "shipping"
)

// LineItem is a single order line. Amounts are minor currency units.
type LineItem struct {
	ID             string
	Kind           ItemKind
	Virtual        bool
	Downloadable   bool
	GatewayManaged bool // recurring line whose lifecycle the gateway owns
	UnitAmount     int64
	Quantity       int32
	Tax            int64
	Settled        bool
	SettledAmount  decimal.Decimal // major units, set by CompleteSettle
	SettledAt      *time.Time
}

// TotalAmount returns the full line amount in minor units including tax.
func (li *LineItem) TotalAmount() int64 {
	return li.UnitAmount*int64(li.Quantity) + li.Tax
}

// MarkSettled records the settled amount (major units) once. Calling it again
// is a caller bug; the orchestrating settle loop calls it exactly once per item.
func (li *LineItem) MarkSettled(amount decimal.Decimal, at time.Time) {
	li.Settled = true
	li.SettledAmount = amount
	li.SettledAt = &at
}

// Order is the per-handle ledger aggregate. All monetary amounts are int64
// minor currency units; conversion to major units happens only at the boundary.
type Order struct {
	Handle           string
	Currency         string
	Lines            []*LineItem
	AuthorizedAmount int64
	SettledAmount    int64
	RefundedAmount   int64
	Cancelled        bool
	Status           OrderStatus

	// Gateway-side transaction ids already applied to this ledger.
	// Used to detect webhook redelivery.
	AppliedTransactions []string

	Metadata  map[string]string
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewOrder creates a pending order for the given external handle.
func NewOrder(handle, currency string, lines []*LineItem) *Order {
	now := timeutil.Now()
	return &Order{
		Handle:    handle,
		Currency:  currency,
		Lines:     lines,
		Status:    OrderStatusPending,
		Metadata:  make(map[string]string),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// OrderHandle builds the external handle the gateway uses for an internal id.
func OrderHandle(orderID int64) string {
	return fmt.Sprintf("order-%d", orderID)
}

// Total returns the sum of all line amounts in minor units.
func (o *Order) Total() int64 {
	var total int64
	for _, li := range o.Lines {
		total += li.TotalAmount()
	}
	return total
}

// RemainingAuthorized returns the authorized amount not yet settled.
func (o *Order) RemainingAuthorized() int64 {
	return o.AuthorizedAmount - o.SettledAmount
}

// IsFullySettled returns true once the settled amount covers the authorization.
func (o *Order) IsFullySettled() bool {
	return o.AuthorizedAmount > 0 && o.SettledAmount == o.AuthorizedAmount
}

// IsFullyRefunded returns true once the refunded amount covers everything settled
// (or authorized, whichever the gateway reports against).
func (o *Order) IsFullyRefunded() bool {
	if o.RefundedAmount == 0 {
		return false
	}
	return o.RefundedAmount == o.SettledAmount || o.RefundedAmount == o.AuthorizedAmount
}

// CanCapture returns whether a capture of the given minor-unit amount is allowed.
// The string is a human-readable reason when the answer is no.
func (o *Order) CanCapture(amount int64) (bool, string) {
	if o.Cancelled {
		return false, "order is cancelled"
	}
	if o.Status == OrderStatusPending {
		return false, "order has no authorization"
	}
	if amount <= 0 {
		return false, "amount must be greater than 0"
	}
	if amount > o.RemainingAuthorized() {
		return false, "capture amount exceeds remaining authorized amount"
	}
	return true, ""
}

// CanCancel returns whether the authorization can still be cancelled.
// Settled funds cannot be released by a cancel; they must be refunded.
func (o *Order) CanCancel() (bool, string) {
	if o.Cancelled {
		return false, "order is already cancelled"
	}
	if o.Status == OrderStatusPending {
		return false, "order has no authorization to cancel"
	}
	if o.SettledAmount > 0 {
		return false, "order has settled amounts; refund instead of cancel"
	}
	return true, ""
}

// CanRefund returns whether a refund of the given minor-unit amount is allowed.
func (o *Order) CanRefund(amount int64) (bool, string) {
	if amount <= 0 {
		return false, "amount must be greater than 0"
	}
	if o.SettledAmount == 0 {
		return false, "no settled amount to refund"
	}
	if amount > o.SettledAmount-o.RefundedAmount {
		return false, "refund amount exceeds remaining refundable amount"
	}
	return true, ""
}

// HasAppliedTransaction reports whether a gateway transaction id was already
// applied to this ledger.
func (o *Order) HasAppliedTransaction(txnID string) bool {
	for _, id := range o.AppliedTransactions {
		if id == txnID {
			return true
		}
	}
	return false
}

// RecordTransaction remembers a gateway transaction id as applied.
func (o *Order) RecordTransaction(txnID string) {
	if txnID == "" || o.HasAppliedTransaction(txnID) {
		return
	}
	o.AppliedTransactions = append(o.AppliedTransactions, txnID)
}
