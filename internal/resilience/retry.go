package resilience

import (
	"context"
	"time"
)

// Lock acquisition backoff defaults
const (
	MaxLockAttempts      = 8
	InitialLockBackoffMs = 5
	MaxLockBackoffMs     = 250
	LockBackoffFactor    = 2.0
)

// RetryConfig configures exponential backoff retry behavior
type RetryConfig struct {
	MaxRetries int           // Maximum number of attempts
	BaseDelay  time.Duration // Initial delay between attempts
	MaxDelay   time.Duration // Maximum delay between attempts
	Multiplier float64       // Exponential backoff multiplier
}

// DefaultRetryConfig returns the backoff used while waiting for the
// checkpoint directory lock and between checkpoint write attempts
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: MaxLockAttempts,
		BaseDelay:  time.Duration(InitialLockBackoffMs) * time.Millisecond,
		MaxDelay:   time.Duration(MaxLockBackoffMs) * time.Millisecond,
		Multiplier: LockBackoffFactor,
	}
}

// retryWithBackoff runs fn until it succeeds, the attempts are exhausted, or
// ctx is done. The last error is returned when every attempt fails.
func retryWithBackoff[T any](ctx context.Context, config RetryConfig, fn func() (T, error)) (T, error) {
	var lastErr error
	var zero T
	backoff := config.BaseDelay

	for attempt := 0; attempt < max(config.MaxRetries, 1); attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}

		lastErr = err

		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		if attempt < config.MaxRetries-1 {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(backoff):
				backoff = min(time.Duration(float64(backoff)*config.Multiplier), config.MaxDelay)
			}
		}
	}

	return zero, lastErr
}
