package shared

import (
	"time"

	"github.com/google/uuid"
)

// DomainEvent is something that happened to an aggregate. Events are
// written to the outbox with the aggregate change and relayed afterwards.
type DomainEvent interface {
	EventID() uuid.UUID
	EventType() string
	OccurredAt() time.Time
	AggregateID() uuid.UUID
	AggregateType() string
}

// EventHeader carries the identity of one event occurrence. Concrete events
// embed it next to their payload.
type EventHeader struct {
	ID            uuid.UUID `json:"event_id"`
	Type          string    `json:"event_type"`
	At            time.Time `json:"occurred_at"`
	AggregateRef  uuid.UUID `json:"aggregate_id"`
	AggregateKind string    `json:"aggregate_type"`
}

// NewEventHeader stamps a new event of eventType raised by the aggregate
func NewEventHeader(eventType, aggregateType string, aggregateID uuid.UUID, at time.Time) EventHeader {
	return EventHeader{
		ID:            uuid.New(),
		Type:          eventType,
		At:            at,
		AggregateRef:  aggregateID,
		AggregateKind: aggregateType,
	}
}

func (h EventHeader) EventID() uuid.UUID     { return h.ID }
func (h EventHeader) EventType() string      { return h.Type }
func (h EventHeader) OccurredAt() time.Time  { return h.At }
func (h EventHeader) AggregateID() uuid.UUID { return h.AggregateRef }
func (h EventHeader) AggregateType() string  { return h.AggregateKind }
