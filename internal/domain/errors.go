package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized      = errors.New("unauthorized")
	ErrGateClosed        = errors.New("trading gate closed")
	ErrCredentialExpired = errors.New("credential expired")
	ErrRateLimitTimeout  = errors.New("rate limit budget not obtainable in time")
	ErrExternalCall      = errors.New("broker call failed")
	ErrBudgetExceeded    = errors.New("insufficient funds for batch")
)

// SchemaError reports a malformed inbound alert. It is the only error
// surfaced synchronously to the webhook caller; everything downstream of
// ingestion settles the signal instead of propagating.
type SchemaError struct {
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema error: field %q: %s", e.Field, e.Reason)
}

// NewSchemaError builds a SchemaError for the given field.
func NewSchemaError(field, format string, args ...any) *SchemaError {
	return &SchemaError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsSchemaError reports whether err is (or wraps) a SchemaError.
func IsSchemaError(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}
