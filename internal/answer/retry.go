package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// RetryConfig controls retry behavior for model calls.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryConfig returns conservative defaults suited to hosted model
// rate limits.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
	}
}

// retryablePatterns are substrings of provider errors worth retrying.
// Matched case-insensitively against the error text since providers do not
// expose stable error types across transports.
var retryablePatterns = []string{
	"503",
	"429",
	"unavailable",
	"overloaded",
	"rate limit",
	"resource exhausted",
	"deadline exceeded",
	"connection reset",
	"connection refused",
	"temporary failure",
}

// permanentError marks an error that must not be retried even if its text
// matches a retryable pattern.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// permanent wraps err so executeWithRetry stops immediately.
func permanent(err error) error { return &permanentError{err: err} }

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	var perm *permanentError
	if errors.As(err, &perm) {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, p := range retryablePatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// executeWithRetry runs fn with exponential backoff. The rate limiter is
// consulted before every attempt, including retries, so backoff never
// bypasses it.
func executeWithRetry(ctx context.Context, cfg RetryConfig, limiter *rate.Limiter, fn func() error) error {
	delay := cfg.InitialDelay

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return fmt.Errorf("waiting for rate limiter: %w", err)
			}
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !isRetryable(lastErr) || attempt == cfg.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
	return lastErr
}
