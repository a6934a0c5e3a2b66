// Package apperror provides structured error handling for the ledger engine.
// All business errors must use AppError so callers can branch on Code.
package apperror

import (
	"errors"
	"fmt"
)

// Error codes
const (
	// Infrastructure errors
	CodeInternal = "INTERNAL_ERROR"
	CodeDatabase = "DATABASE_ERROR"

	// Validation errors
	CodeValidation            = "VALIDATION_ERROR"
	CodeInvalidContractAmount = "INVALID_CONTRACT_AMOUNT"

	// Business rule violations
	CodeBusinessRule           = "BUSINESS_RULE_VIOLATION"
	CodeInsufficientBalance    = "INSUFFICIENT_BALANCE"
	CodePercentageOverflow     = "PERCENTAGE_OVERFLOW"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"

	// Consistency errors (fatal, surfaced to operators)
	CodeDataIntegrityMismatch = "DATA_INTEGRITY_MISMATCH"

	// Not found
	CodeNotFound = "NOT_FOUND"

	// Conflict
	CodeDuplicate = "DUPLICATE_ENTRY"
)

// AppError is the standard error type of the engine.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Details contains additional context (field names, amounts, ids)
	Details map[string]any `json:"details,omitempty"`

	// Err is the underlying error (not exposed in JSON)
	Err error `json:"-"`
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a key-value pair to error details
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// --- Factory functions ---

// NewValidation creates a generic validation error.
func NewValidation(message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
	}
}

// NewInvalidContractAmount rejects contract terms before any installment is written.
func NewInvalidContractAmount(message string) *AppError {
	return &AppError{
		Code:    CodeInvalidContractAmount,
		Message: message,
	}
}

// NewNotFound creates a not found error.
func NewNotFound(entity string, id any) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found", entity),
		Details: map[string]any{"entity": entity, "id": id},
	}
}

// NewBusinessRule creates a business rule violation error.
func NewBusinessRule(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// NewInsufficientBalance is returned when a payment or transfer would
// overdraw a safe.
func NewInsufficientBalance(safeID string, requested, available fmt.Stringer) *AppError {
	return &AppError{
		Code:    CodeInsufficientBalance,
		Message: "Insufficient safe balance",
		Details: map[string]any{
			"safe_id":   safeID,
			"requested": requested.String(),
			"available": available.String(),
		},
	}
}

// NewPercentageOverflow is returned when an allocation would exceed 100%.
func NewPercentageOverflow(scope string, scopeID string, current, requested fmt.Stringer) *AppError {
	return &AppError{
		Code:    CodePercentageOverflow,
		Message: fmt.Sprintf("Allocated percentage for %s would exceed 100%%", scope),
		Details: map[string]any{
			"scope":     scope,
			"scope_id":  scopeID,
			"allocated": current.String(),
			"requested": requested.String(),
		},
	}
}

// NewDataIntegrityMismatch reports a cached balance that disagrees with the
// recomputed one.
func NewDataIntegrityMismatch(entity string, id string, stored, computed fmt.Stringer) *AppError {
	return &AppError{
		Code:    CodeDataIntegrityMismatch,
		Message: fmt.Sprintf("%s balance does not match its movements", entity),
		Details: map[string]any{
			"entity":   entity,
			"id":       id,
			"stored":   stored.String(),
			"computed": computed.String(),
		},
	}
}

// NewConcurrentModification creates an optimistic locking error.
func NewConcurrentModification(entity string, id any) *AppError {
	return &AppError{
		Code:    CodeConcurrentModification,
		Message: "Record was modified concurrently. Reload and try again.",
		Details: map[string]any{"entity": entity, "id": id},
	}
}

// NewInternal wraps an unexpected failure.
func NewInternal(err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: "Internal error",
		Err:     err,
	}
}

// NewDuplicate creates a duplicate entry error.
func NewDuplicate(entity, field, value string) *AppError {
	return &AppError{
		Code:    CodeDuplicate,
		Message: fmt.Sprintf("%s with this %s already exists", entity, field),
		Details: map[string]any{"entity": entity, "field": field, "value": value},
	}
}

// --- Helper functions ---

// IsAppError checks if error is AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError extracts AppError from error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err carries an AppError with the given code.
func HasCode(err error, code string) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == code
	}
	return false
}

// IsNotFound checks if error is CodeNotFound
func IsNotFound(err error) bool {
	return HasCode(err, CodeNotFound)
}

// IsConcurrentModification checks if error is CodeConcurrentModification
func IsConcurrentModification(err error) bool {
	return HasCode(err, CodeConcurrentModification)
}

// IsInsufficientBalance checks if error is CodeInsufficientBalance
func IsInsufficientBalance(err error) bool {
	return HasCode(err, CodeInsufficientBalance)
}

// IsPercentageOverflow checks if error is CodePercentageOverflow
func IsPercentageOverflow(err error) bool {
	return HasCode(err, CodePercentageOverflow)
}

// IsInvalidContractAmount checks if error is CodeInvalidContractAmount
func IsInvalidContractAmount(err error) bool {
	return HasCode(err, CodeInvalidContractAmount)
}

// IsDataIntegrityMismatch checks if error is CodeDataIntegrityMismatch
func IsDataIntegrityMismatch(err error) bool {
	return HasCode(err, CodeDataIntegrityMismatch)
}
