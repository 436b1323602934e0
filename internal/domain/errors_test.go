package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainErrorError(t *testing.T) {
	err := NewDomainError(ErrorCodeGatewayError, "payment gateway error")
	assert.Equal(t, "GATEWAY_ERROR: payment gateway error", err.Error())

	wrapped := WrapError(ErrorCodeGatewayError, "capture failed", errors.New("connection reset"))
	assert.Equal(t, "GATEWAY_ERROR: capture failed: connection reset", wrapped.Error())
}

func TestDomainErrorUnwrap(t *testing.T) {
	inner := errors.New("boom")
	err := WrapError(ErrorCodeDatabaseError, "save order", inner)

	assert.True(t, errors.Is(err, inner))

	var domainErr *DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, ErrorCodeDatabaseError, domainErr.Code)
}

func TestIsDomainError_ThroughWrapping(t *testing.T) {
	err := fmt.Errorf("handle event: %w", ErrInvalidTransition)

	assert.True(t, IsDomainError(err, ErrorCodeLedgerInvalidTransition))
	assert.True(t, IsInvalidTransition(err))
	assert.False(t, IsGatewayError(err))
}

func TestGetErrorCode(t *testing.T) {
	assert.Equal(t, ErrorCodeOrderNotFound, GetErrorCode(ErrOrderNotFound))
	assert.Equal(t, ErrorCode(""), GetErrorCode(errors.New("plain")))
	assert.Equal(t, ErrorCode(""), GetErrorCode(nil))
}

func TestErrorClassifiers(t *testing.T) {
	assert.True(t, IsGatewayError(ErrGatewayTimedOut))
	assert.True(t, IsNotFoundError(ErrOrderNotFound))
	assert.True(t, IsNotFoundError(ErrCardNotFound))
	assert.True(t, IsValidationError(ErrValidationAmountInvalid))
	assert.False(t, IsValidationError(ErrGatewayError))
}

func TestWithDetail(t *testing.T) {
	err := NewDomainError(ErrorCodeOrderNotFound, "order not found").
		WithDetail("handle", "order-99")

	assert.Equal(t, "order-99", err.Details["handle"])
}
