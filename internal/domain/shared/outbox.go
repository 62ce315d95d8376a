package shared

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// OutboxStatus is the relay state of an outbox entry
type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "PENDING"
	OutboxStatusProcessing OutboxStatus = "PROCESSING"
	OutboxStatusSent       OutboxStatus = "SENT"
	OutboxStatusFailed     OutboxStatus = "FAILED"
	OutboxStatusDead       OutboxStatus = "DEAD"
)

// Relay retry defaults. Backoff doubles per failure up to MaxOutboxBackoff.
const (
	DefaultMaxRetries  = 5
	DefaultBaseBackoff = time.Second
	MaxOutboxBackoff   = 5 * time.Minute
)

// ErrOutboxNotDead is returned when requeueing an entry that has not
// exhausted its retries
var ErrOutboxNotDead = errors.New("outbox entry is not dead")

// OutboxEntry is a serialized lifecycle or directory event awaiting relay to
// the notification sinks. It is inserted in the transaction that changed the
// aggregate, so an event is never relayed for a write that rolled back.
type OutboxEntry struct {
	ID            uuid.UUID
	EventID       uuid.UUID
	EventType     string
	AggregateID   uuid.UUID
	AggregateType string
	Payload       []byte
	Status        OutboxStatus
	RetryCount    int
	MaxRetries    int
	LastError     string
	NextRetryAt   *time.Time
	ProcessedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewOutboxEntry wraps a serialized event as a pending entry
func NewOutboxEntry(event DomainEvent, payload []byte) *OutboxEntry {
	now := time.Now()
	return &OutboxEntry{
		ID:            uuid.New(),
		EventID:       event.EventID(),
		EventType:     event.EventType(),
		AggregateID:   event.AggregateID(),
		AggregateType: event.AggregateType(),
		Payload:       payload,
		Status:        OutboxStatusPending,
		MaxRetries:    DefaultMaxRetries,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// MarkSent records delivery at at
func (e *OutboxEntry) MarkSent(at time.Time) {
	e.Status, e.ProcessedAt, e.UpdatedAt = OutboxStatusSent, &at, at
}

// MarkFailed records a failed delivery at at. The entry is rescheduled
// Backoff after at, or parked as DEAD once MaxRetries attempts have failed.
func (e *OutboxEntry) MarkFailed(cause string, at time.Time) {
	e.RetryCount++
	e.LastError, e.UpdatedAt = cause, at
	if e.RetryCount >= e.MaxRetries {
		e.Status, e.NextRetryAt = OutboxStatusDead, nil
		return
	}
	next := at.Add(e.Backoff())
	e.Status, e.NextRetryAt = OutboxStatusFailed, &next
}

// Backoff is the wait before the next attempt: 1s, 2s, 4s and so on
func (e *OutboxEntry) Backoff() time.Duration {
	if e.RetryCount <= 1 {
		return DefaultBaseBackoff
	}
	shift := e.RetryCount - 1
	if shift > 16 {
		return MaxOutboxBackoff
	}
	return min(DefaultBaseBackoff<<shift, MaxOutboxBackoff)
}

// ResetForRetry requeues a dead entry with a fresh retry budget
func (e *OutboxEntry) ResetForRetry() error {
	if !e.IsDead() {
		return ErrOutboxNotDead
	}
	e.Status, e.RetryCount, e.LastError, e.NextRetryAt = OutboxStatusPending, 0, "", nil
	e.UpdatedAt = time.Now()
	return nil
}

// IsDead reports whether the entry exhausted its retries
func (e *OutboxEntry) IsDead() bool {
	return e.Status == OutboxStatusDead
}

// DeadLetterQuery selects a page of dead entries. A zero AggregateID or an
// empty EventType matches any.
type DeadLetterQuery struct {
	AggregateID uuid.UUID
	EventType   string
	Page        int
	PageSize    int
}

// OutboxRepository persists outbox entries
type OutboxRepository interface {
	Save(ctx context.Context, entries ...*OutboxEntry) error
	Update(ctx context.Context, entry *OutboxEntry) error
	FindByID(ctx context.Context, id uuid.UUID) (*OutboxEntry, error)

	// FindPending returns up to limit never-attempted entries, oldest first
	FindPending(ctx context.Context, limit int) ([]*OutboxEntry, error)
	// FindRetryable returns failed entries whose NextRetryAt is before before
	FindRetryable(ctx context.Context, before time.Time, limit int) ([]*OutboxEntry, error)
	// FindDead pages through dead entries matching q, newest first
	FindDead(ctx context.Context, q DeadLetterQuery) ([]*OutboxEntry, int64, error)
	// MarkProcessing claims entries still pending or failed and returns the
	// claimed ones; entries another relay claimed first are left out
	MarkProcessing(ctx context.Context, ids []uuid.UUID) ([]*OutboxEntry, error)

	// DeleteOlderThan removes sent entries processed before before
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
	CountByStatus(ctx context.Context) (map[OutboxStatus]int64, error)
}
