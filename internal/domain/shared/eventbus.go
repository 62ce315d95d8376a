package shared

import "context"

// EventHandler reacts to domain events delivered by the relay
type EventHandler interface {
	Handle(ctx context.Context, event DomainEvent) error
	// EventTypes lists the types the handler wants; empty means all
	EventTypes() []string
}

// EventPublisher delivers events to subscribers
type EventPublisher interface {
	Publish(ctx context.Context, events ...DomainEvent) error
}

// OutboxEventSaver writes domain events to the outbox inside the caller's
// transaction. tx is the persistence layer's transaction handle, a *gorm.DB
// for the GORM repositories.
type OutboxEventSaver interface {
	SaveEvents(ctx context.Context, tx any, events ...DomainEvent) error
}
