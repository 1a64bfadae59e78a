package types

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across packages
var (
	// ErrEmbeddingUnavailable is returned when a vector search is requested
	// but no embedding provider is configured or the provider is exhausted.
	ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")

	// ErrRateLimited is returned when the embedding provider keeps
	// responding with HTTP 429 after all retry attempts.
	ErrRateLimited = errors.New("embedding provider rate limited")
)

// ValidationError indicates a caller supplied an out-of-range or
// malformed parameter. It is always a caller error, never a system one.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// NewValidationError builds a ValidationError for the given field.
func NewValidationError(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
