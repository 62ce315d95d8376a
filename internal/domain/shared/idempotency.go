package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers which event IDs a consumer has already handled.
// The outbox delivers at least once, so consumers with external side effects
// (notifications) consult it before acting.
type IdempotencyStore interface {
	// MarkProcessed returns true if eventID was newly marked, false if it was
	// already present.
	MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error)
	IsProcessed(ctx context.Context, eventID string) (bool, error)
	// Release forgets eventID so a failed delivery can be retried
	Release(ctx context.Context, eventID string) error
	Close() error
}

// IdempotencyConfig holds configuration for idempotency handling
type IdempotencyConfig struct {
	// TTL after which the same event ID may be processed again
	TTL     time.Duration
	Enabled bool
}

// DefaultIdempotencyConfig returns the default idempotency configuration
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:     24 * time.Hour,
		Enabled: true,
	}
}
