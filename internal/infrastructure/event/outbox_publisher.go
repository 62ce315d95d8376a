package event

import (
	"context"
	"fmt"

	"github.com/leorit/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// OutboxPublisher turns raised domain events into outbox rows written by the
// same transaction as the aggregate
type OutboxPublisher struct {
	serializer *EventSerializer
	maxRetries int
}

// NewOutboxPublisher creates a publisher recording DefaultMaxRetries on new
// entries
func NewOutboxPublisher(serializer *EventSerializer) *OutboxPublisher {
	return &OutboxPublisher{serializer: serializer, maxRetries: shared.DefaultMaxRetries}
}

// WithMaxRetries overrides the delivery attempts recorded on new entries.
// Non-positive values are ignored.
func (p *OutboxPublisher) WithMaxRetries(n int) *OutboxPublisher {
	if n > 0 {
		p.maxRetries = n
	}
	return p
}

// PublishWithTx inserts events through tx. An unregistered event fails the
// whole batch, and with it the caller's transaction.
func (p *OutboxPublisher) PublishWithTx(ctx context.Context, tx *gorm.DB, events ...shared.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}
	entries := make([]*shared.OutboxEntry, len(events))
	for i, ev := range events {
		payload, err := p.serializer.Serialize(ev)
		if err != nil {
			return fmt.Errorf("outbox %s: %w", ev.EventType(), err)
		}
		entries[i] = shared.NewOutboxEntry(ev, payload)
		entries[i].MaxRetries = p.maxRetries
	}
	return NewGormOutboxRepository(tx).Save(ctx, entries...)
}

// SaveEvents is PublishWithTx for callers holding the transaction as any
func (p *OutboxPublisher) SaveEvents(ctx context.Context, tx any, events ...shared.DomainEvent) error {
	db, ok := tx.(*gorm.DB)
	if !ok {
		return fmt.Errorf("outbox: transaction must be *gorm.DB, got %T", tx)
	}
	return p.PublishWithTx(ctx, db, events...)
}

var _ shared.OutboxEventSaver = (*OutboxPublisher)(nil)
