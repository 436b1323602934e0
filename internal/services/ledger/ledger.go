// Package ledger implements the pure state transitions of the per-order
// ledger. Every mutation is validated against the current invariants before
// it is applied:
//
//	0 <= refunded <= settled <= authorized
//
// A violating transition fails with a LEDGER_INVALID_TRANSITION error and the
// aggregate is left untouched; amounts are never silently clamped, because a
// clamp would mask a financial discrepancy.
package ledger

import (
	"github.com/stenbridge/settlement-service/internal/domain"
)

// ApplyAuthorization records the gateway's authorization of amount (minor
// units) against a pending order. Settled and refunded amounts are untouched.
func ApplyAuthorization(o *domain.Order, amount int64) error {
	if amount <= 0 {
		return domain.NewDomainError(domain.ErrorCodeLedgerInvalidTransition,
			"authorization amount must be greater than 0").
			WithDetail("handle", o.Handle)
	}
	if o.Status != domain.OrderStatusPending {
		return domain.NewDomainError(domain.ErrorCodeLedgerInvalidTransition,
			"order is already authorized").
			WithDetail("handle", o.Handle).
			WithDetail("status", string(o.Status))
	}
	if o.Cancelled {
		return domain.NewDomainError(domain.ErrorCodeLedgerInvalidTransition,
			"cannot authorize a cancelled order").
			WithDetail("handle", o.Handle)
	}

	o.AuthorizedAmount = amount
	o.Status = domain.OrderStatusAuthorized
	return nil
}

// ApplySettlement increases the settled amount by amount (minor units).
// The order becomes fully settled when the settled amount reaches the
// authorized amount.
func ApplySettlement(o *domain.Order, amount int64) error {
	if amount <= 0 {
		return domain.NewDomainError(domain.ErrorCodeLedgerInvalidTransition,
			"settlement amount must be greater than 0").
			WithDetail("handle", o.Handle)
	}
	if o.Status == domain.OrderStatusPending {
		return domain.NewDomainError(domain.ErrorCodeLedgerInvalidTransition,
			"cannot settle before authorization").
			WithDetail("handle", o.Handle)
	}
	if o.Cancelled {
		return domain.NewDomainError(domain.ErrorCodeLedgerInvalidTransition,
			"cannot settle a cancelled order").
			WithDetail("handle", o.Handle)
	}
	if o.SettledAmount+amount > o.AuthorizedAmount {
		return domain.NewDomainError(domain.ErrorCodeLedgerInvalidTransition,
			"settlement would exceed authorized amount").
			WithDetail("handle", o.Handle).
			WithDetail("authorized", o.AuthorizedAmount).
			WithDetail("settled", o.SettledAmount).
			WithDetail("amount", amount)
	}

	o.SettledAmount += amount
	if o.IsFullySettled() {
		o.Status = domain.OrderStatusSettled
	} else {
		o.Status = domain.OrderStatusPartiallySettled
	}
	return nil
}

// ApplyCancellation flags the order cancelled. Only an unsettled
// authorization can be cancelled; settled funds must be refunded instead.
func ApplyCancellation(o *domain.Order) error {
	if ok, reason := o.CanCancel(); !ok {
		return domain.NewDomainError(domain.ErrorCodeLedgerInvalidTransition, reason).
			WithDetail("handle", o.Handle)
	}

	o.Cancelled = true
	return nil
}

// ApplyRefund increases the refunded amount by amount (minor units).
// Refunds never exceed the settled amount.
func ApplyRefund(o *domain.Order, amount int64) error {
	if amount <= 0 {
		return domain.NewDomainError(domain.ErrorCodeValidationAmountInvalid,
			"refund amount must be greater than 0").
			WithDetail("handle", o.Handle)
	}
	if o.RefundedAmount+amount > o.SettledAmount {
		return domain.NewDomainError(domain.ErrorCodeLedgerInvalidTransition,
			"refund would exceed settled amount").
			WithDetail("handle", o.Handle).
			WithDetail("settled", o.SettledAmount).
			WithDetail("refunded", o.RefundedAmount).
			WithDetail("amount", amount)
	}

	o.RefundedAmount += amount
	return nil
}
