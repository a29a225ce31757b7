// ABOUTME: Retry utilities for external calls with fixed or exponential delay
// ABOUTME: Shared by the LLM client and startup connectivity checks
package util

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

// CalculateBackoff returns exponential backoff with jitter
// Base delay is doubled each attempt, with random jitter up to 25%
func CalculateBackoff(baseDelay time.Duration, attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	// Cap attempt to avoid overflow in bit shift (max 30 for safety)
	if attempt > 30 {
		attempt = 30
	}
	// Exponential: 2^attempt * base
	backoff := baseDelay * time.Duration(1<<uint(attempt))
	// Cap at 30 seconds
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	if backoff <= 0 {
		return 0
	}
	// Add jitter: -25% to +25% using auto-seeded math/rand/v2
	jitter := time.Duration(rand.Int64N(int64(backoff)/2)) - backoff/4
	return backoff + jitter
}

// RetryPolicy bounds a retry loop
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
	// Backoff doubles the delay each attempt (with jitter) instead of sleeping a fixed Delay
	Backoff bool
	// OnRetry is called before each sleep
	OnRetry func(attempt int, delay time.Duration, err error)
	// Retryable reports whether err is worth another attempt; nil retries everything
	Retryable func(err error) bool
}

// RetryResult reports how a retry loop ended
type RetryResult struct {
	Attempts int
	Err      error
}

// OK reports whether the operation eventually succeeded
func (r RetryResult) OK() bool {
	return r.Err == nil
}

// ErrRetriesExhausted wraps the last error once every attempt has failed
var ErrRetriesExhausted = errors.New("retries exhausted")

// Retry runs op until it succeeds, attempts run out, or ctx is done
func Retry(ctx context.Context, policy RetryPolicy, op func(ctx context.Context, attempt int) error) RetryResult {
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return RetryResult{Attempts: attempt - 1, Err: err}
		}

		lastErr = op(ctx, attempt)
		if lastErr == nil {
			return RetryResult{Attempts: attempt}
		}
		if policy.Retryable != nil && !policy.Retryable(lastErr) {
			return RetryResult{Attempts: attempt, Err: lastErr}
		}
		if attempt == attempts {
			break
		}

		delay := policy.Delay
		if policy.Backoff {
			delay = CalculateBackoff(policy.Delay, attempt)
		}
		if policy.OnRetry != nil {
			policy.OnRetry(attempt, delay, lastErr)
		}
		if err := sleepContext(ctx, delay); err != nil {
			return RetryResult{Attempts: attempt, Err: err}
		}
	}

	return RetryResult{
		Attempts: attempts,
		Err:      fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempts, lastErr),
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
