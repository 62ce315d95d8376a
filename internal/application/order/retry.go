package order

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/leorit/backend/internal/domain/shared"
)

// RetryPolicy bounds how often an operation is re-run after losing a
// compare-and-set race
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	// JitterFactor adds up to this fraction of the delay at random
	JitterFactor float64
}

// DefaultRetryPolicy returns the default retry policy
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:   3,
		BaseDelay:    20 * time.Millisecond,
		MaxDelay:     500 * time.Millisecond,
		JitterFactor: 0.5,
	}
}

// Backoff returns the delay before retry number attempt (1-based)
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	d := float64(p.BaseDelay) * math.Pow(2, float64(attempt-1))
	if p.JitterFactor > 0 {
		d += rand.Float64() * p.JitterFactor * d
	}
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	return time.Duration(d)
}

// Do runs fn until it succeeds, fails with a non-retryable error, or the
// retries are used up. fn receives the 1-based attempt number and must
// re-read everything it depends on. onRetry, if set, is called before each
// retry.
func (p RetryPolicy) Do(ctx context.Context, fn func(attempt int) error, onRetry func(attempt int, err error)) error {
	var lastErr error
	for attempt := 1; attempt <= p.MaxRetries+1; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("retry cancelled: %w", err)
		}

		lastErr = fn(attempt)
		if lastErr == nil || !shared.IsRetryable(lastErr) {
			return lastErr
		}
		if attempt > p.MaxRetries {
			break
		}

		if onRetry != nil {
			onRetry(attempt, lastErr)
		}
		timer := time.NewTimer(p.Backoff(attempt))
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled during backoff: %w", ctx.Err())
		}
	}
	return lastErr
}
