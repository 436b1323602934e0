package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a machine-readable error code
type ErrorCode string

const (
	// Ledger Errors (LEDGER_*)
	ErrorCodeLedgerInvalidTransition ErrorCode = "LEDGER_INVALID_TRANSITION"

	// Order Errors (ORDER_*)
	ErrorCodeOrderNotFound        ErrorCode = "ORDER_NOT_FOUND"
	ErrorCodeOrderVersionConflict ErrorCode = "ORDER_VERSION_CONFLICT"

	// Token Errors (TOKEN_*)
	ErrorCodeTokenCardNotFound    ErrorCode = "TOKEN_CARD_NOT_FOUND"
	ErrorCodeTokenInvalidFields   ErrorCode = "TOKEN_INVALID_FIELDS"
	ErrorCodeTokenNotFound        ErrorCode = "TOKEN_NOT_FOUND"
	ErrorCodeTokenNotGatewayOwned ErrorCode = "TOKEN_NOT_GATEWAY_OWNED"

	// Validation Errors (VALIDATION_*)
	ErrorCodeValidationFailed        ErrorCode = "VALIDATION_FAILED"
	ErrorCodeValidationAmountInvalid ErrorCode = "VALIDATION_AMOUNT_INVALID"
	ErrorCodeValidationMissingField  ErrorCode = "VALIDATION_MISSING_FIELD"

	// Payment Gateway Errors (GATEWAY_*)
	ErrorCodeGatewayError   ErrorCode = "GATEWAY_ERROR"
	ErrorCodeGatewayTimeout ErrorCode = "GATEWAY_TIMEOUT"

	// Webhook Errors (WEBHOOK_*)
	ErrorCodeWebhookBadSignature ErrorCode = "WEBHOOK_BAD_SIGNATURE"
	ErrorCodeWebhookUnknownEvent ErrorCode = "WEBHOOK_UNKNOWN_EVENT"

	// Internal Errors (INTERNAL_*)
	ErrorCodeInternalError ErrorCode = "INTERNAL_ERROR"
	ErrorCodeDatabaseError ErrorCode = "INTERNAL_DATABASE_ERROR"
)

// DomainError represents a structured domain error with error code and context
type DomainError struct {
	Err     error
	Details map[string]interface{}
	Code    ErrorCode
	Message string
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

// WithDetail adds a detail field to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(code ErrorCode, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// WrapError wraps an existing error with a domain error code
func WrapError(code ErrorCode, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Err:     err,
	}
}

// IsDomainError checks if an error is a DomainError with the given code
func IsDomainError(err error, code ErrorCode) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error, returns empty string if not a DomainError
func GetErrorCode(err error) ErrorCode {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}

// IsInvalidTransition checks if an error is a ledger invariant violation
func IsInvalidTransition(err error) bool {
	return GetErrorCode(err) == ErrorCodeLedgerInvalidTransition
}

// IsGatewayError checks if an error came from the payment gateway
func IsGatewayError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeGatewayError || code == ErrorCodeGatewayTimeout
}

// IsNotFoundError checks if an error represents a "not found" condition
func IsNotFoundError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeOrderNotFound ||
		code == ErrorCodeTokenNotFound ||
		code == ErrorCodeTokenCardNotFound
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeValidationFailed ||
		code == ErrorCodeValidationAmountInvalid ||
		code == ErrorCodeValidationMissingField
}

// Structured error instances
var (
	ErrInvalidTransition = NewDomainError(ErrorCodeLedgerInvalidTransition, "ledger transition violates invariants")

	ErrOrderNotFound        = NewDomainError(ErrorCodeOrderNotFound, "order not found")
	ErrOrderVersionConflict = NewDomainError(ErrorCodeOrderVersionConflict, "order was modified concurrently")

	ErrCardNotFound         = NewDomainError(ErrorCodeTokenCardNotFound, "card not found at gateway")
	ErrInvalidTokenFields   = NewDomainError(ErrorCodeTokenInvalidFields, "required token fields are missing")
	ErrTokenNotFound        = NewDomainError(ErrorCodeTokenNotFound, "payment token not found")
	ErrTokenNotGatewayOwned = NewDomainError(ErrorCodeTokenNotGatewayOwned, "token was not issued by the gateway")

	ErrValidationAmountInvalid = NewDomainError(ErrorCodeValidationAmountInvalid, "amount must be greater than 0")

	ErrGatewayError    = NewDomainError(ErrorCodeGatewayError, "payment gateway error")
	ErrGatewayTimedOut = NewDomainError(ErrorCodeGatewayTimeout, "payment gateway timeout")

	ErrWebhookBadSignature = NewDomainError(ErrorCodeWebhookBadSignature, "webhook signature verification failed")

	ErrInternalError = NewDomainError(ErrorCodeInternalError, "internal server error")
	ErrDatabaseError = NewDomainError(ErrorCodeDatabaseError, "database error")
)
