package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_WrappedCodeSurvives(t *testing.T) {
	base := NewInsufficientBalance("safe-1", decimal.RequireFromString("10.00"), decimal.RequireFromString("2.50"))
	wrapped := fmt.Errorf("create transfer: %w", base)

	assert.True(t, IsInsufficientBalance(wrapped))
	assert.False(t, IsPercentageOverflow(wrapped))

	appErr, ok := AsAppError(wrapped)
	require.True(t, ok)
	assert.Equal(t, "10", appErr.Details["requested"])
	assert.Equal(t, "2.5", appErr.Details["available"])
}

func TestAppError_ErrorStringIncludesCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewInternal(cause)

	assert.Contains(t, err.Error(), CodeInternal)
	assert.Contains(t, err.Error(), "connection reset")
	assert.ErrorIs(t, err, cause)
}

func TestAppError_WithDetail(t *testing.T) {
	err := NewValidation("amount must be positive").
		WithDetail("field", "amount").
		WithDetail("value", "-1")

	assert.Equal(t, "amount", err.Details["field"])
	assert.Equal(t, "-1", err.Details["value"])
	assert.False(t, IsNotFound(err))
}
