package embedder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/parafield/paratracker/pkg/types"
)

// RetryConfig configures exponential backoff retry behavior
type RetryConfig struct {
	MaxAttempts int           // Total attempts including the first
	BaseDelay   time.Duration // Initial delay between attempts
	MaxDelay    time.Duration // Maximum delay between attempts
	Multiplier  float64       // Exponential backoff multiplier
}

// DefaultRetryConfig returns the retry policy used for API calls
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 5,
		BaseDelay:   time.Second,
		MaxDelay:    32 * time.Second,
		Multiplier:  2.0,
	}
}

// apiError wraps a provider error with its retryability
type apiError struct {
	err       error
	transient bool
}

func (e *apiError) Error() string { return e.err.Error() }
func (e *apiError) Unwrap() error { return e.err }

// isRetryable reports whether another attempt could succeed
func isRetryable(err error) bool {
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		return apiErr.transient
	}
	// Errors without transport classification (marshal, decode) are final.
	return false
}

// retryWithBackoff executes fn with exponential backoff, retrying only
// transient failures. Fatal errors and context cancellation return
// immediately. A transient error that survives every attempt surfaces
// as ErrEmbeddingUnavailable with the last failure kept in the chain,
// so callers see an exhausted provider the same way they see a missing
// one.
func retryWithBackoff[T any](ctx context.Context, config RetryConfig, fn func() (T, error)) (T, error) {
	var lastErr error
	var zero T
	backoff := config.BaseDelay

	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}

		lastErr = err

		if !isRetryable(err) {
			return zero, err
		}

		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		if attempt < config.MaxAttempts-1 {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(backoff):
				backoff = time.Duration(float64(backoff) * config.Multiplier)
				if backoff > config.MaxDelay {
					backoff = config.MaxDelay
				}
			}
		}
	}

	return zero, fmt.Errorf("%w: %d attempts exhausted: %w", types.ErrEmbeddingUnavailable, config.MaxAttempts, lastErr)
}
