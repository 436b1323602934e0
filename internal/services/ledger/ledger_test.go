package ledger

import (
	"testing"

	"github.com/stenbridge/settlement-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func authorizedOrder(amount int64) *domain.Order {
	order := domain.NewOrder("order-1", "DKK", nil)
	order.Status = domain.OrderStatusAuthorized
	order.AuthorizedAmount = amount
	return order
}

func TestApplyAuthorization(t *testing.T) {
	order := domain.NewOrder("order-1", "DKK", nil)

	require.NoError(t, ApplyAuthorization(order, 50000))

	assert.Equal(t, int64(50000), order.AuthorizedAmount)
	assert.Equal(t, int64(0), order.SettledAmount)
	assert.Equal(t, int64(0), order.RefundedAmount)
	assert.Equal(t, domain.OrderStatusAuthorized, order.Status)
}

func TestApplyAuthorization_Rejections(t *testing.T) {
	order := domain.NewOrder("order-1", "DKK", nil)

	err := ApplyAuthorization(order, 0)
	assert.True(t, domain.IsInvalidTransition(err))

	err = ApplyAuthorization(order, -100)
	assert.True(t, domain.IsInvalidTransition(err))

	require.NoError(t, ApplyAuthorization(order, 100))
	err = ApplyAuthorization(order, 100)
	assert.True(t, domain.IsInvalidTransition(err), "double authorization must fail")

	cancelled := domain.NewOrder("order-2", "DKK", nil)
	cancelled.Cancelled = true
	err = ApplyAuthorization(cancelled, 100)
	assert.True(t, domain.IsInvalidTransition(err))
}

func TestApplySettlement_PartialThenFull(t *testing.T) {
	order := authorizedOrder(10000)

	require.NoError(t, ApplySettlement(order, 4000))
	assert.Equal(t, int64(4000), order.SettledAmount)
	assert.Equal(t, domain.OrderStatusPartiallySettled, order.Status)

	require.NoError(t, ApplySettlement(order, 6000))
	assert.Equal(t, int64(10000), order.SettledAmount)
	assert.Equal(t, domain.OrderStatusSettled, order.Status)
	assert.True(t, order.IsFullySettled())
}

func TestApplySettlement_OverSettlementFails(t *testing.T) {
	order := authorizedOrder(10000)
	require.NoError(t, ApplySettlement(order, 9000))

	err := ApplySettlement(order, 1001)
	require.Error(t, err)
	assert.True(t, domain.IsInvalidTransition(err))
	// state untouched on failure
	assert.Equal(t, int64(9000), order.SettledAmount)
	assert.Equal(t, domain.OrderStatusPartiallySettled, order.Status)
}

func TestApplySettlement_BeforeAuthorizationFails(t *testing.T) {
	order := domain.NewOrder("order-1", "DKK", nil)

	err := ApplySettlement(order, 100)
	assert.True(t, domain.IsInvalidTransition(err))
}

func TestApplyCancellation(t *testing.T) {
	order := authorizedOrder(10000)

	require.NoError(t, ApplyCancellation(order))
	assert.True(t, order.Cancelled)

	err := ApplyCancellation(order)
	assert.True(t, domain.IsInvalidTransition(err), "double cancel must fail")
}

func TestApplyCancellation_AfterSettlementFails(t *testing.T) {
	order := authorizedOrder(10000)
	require.NoError(t, ApplySettlement(order, 100))

	err := ApplyCancellation(order)
	assert.True(t, domain.IsInvalidTransition(err))
	assert.False(t, order.Cancelled)
}

func TestApplyRefund(t *testing.T) {
	order := authorizedOrder(10000)
	require.NoError(t, ApplySettlement(order, 10000))

	require.NoError(t, ApplyRefund(order, 2500))
	assert.Equal(t, int64(2500), order.RefundedAmount)
	assert.False(t, order.IsFullyRefunded())

	require.NoError(t, ApplyRefund(order, 7500))
	assert.True(t, order.IsFullyRefunded())
}

func TestApplyRefund_Rejections(t *testing.T) {
	order := authorizedOrder(10000)
	require.NoError(t, ApplySettlement(order, 5000))

	err := ApplyRefund(order, 0)
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeValidationAmountInvalid))

	err = ApplyRefund(order, -100)
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeValidationAmountInvalid))

	err = ApplyRefund(order, 5001)
	assert.True(t, domain.IsInvalidTransition(err), "refund beyond settled must fail")
	assert.Equal(t, int64(0), order.RefundedAmount)
}

// The core invariant holds after any accepted sequence of transitions.
func TestLedgerInvariant(t *testing.T) {
	order := domain.NewOrder("order-1", "DKK", nil)

	steps := []func() error{
		func() error { return ApplyAuthorization(order, 20000) },
		func() error { return ApplySettlement(order, 8000) },
		func() error { return ApplySettlement(order, 12000) },
		func() error { return ApplyRefund(order, 5000) },
		func() error { return ApplyRefund(order, 15000) },
	}

	for i, step := range steps {
		require.NoError(t, step(), "step %d", i)
		assert.GreaterOrEqual(t, order.RefundedAmount, int64(0))
		assert.LessOrEqual(t, order.RefundedAmount, order.SettledAmount)
		assert.LessOrEqual(t, order.SettledAmount, order.AuthorizedAmount)
	}
}
