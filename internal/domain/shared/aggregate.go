package shared

import (
	"time"

	"github.com/google/uuid"
)

// BaseEntity carries identity and row timestamps
type BaseEntity struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// BaseAggregateRoot is embedded by orders and manufacturers. Version is the
// compare-and-swap token checked on every save; events raised by a command
// stay buffered until the repository has written them to the outbox.
type BaseAggregateRoot struct {
	BaseEntity
	Version int

	events []DomainEvent
}

// NewBaseAggregateRoot returns a root with a fresh ID created at at
func NewBaseAggregateRoot(at time.Time) BaseAggregateRoot {
	return BaseAggregateRoot{
		BaseEntity: BaseEntity{ID: uuid.New(), CreatedAt: at, UpdatedAt: at},
		Version:    1,
	}
}

// Raise buffers an event for the outbox
func (a *BaseAggregateRoot) Raise(event DomainEvent) {
	a.events = append(a.events, event)
}

// PendingEvents returns the events raised since the last save
func (a *BaseAggregateRoot) PendingEvents() []DomainEvent {
	return a.events
}

// ClearEvents drops buffered events once they are persisted
func (a *BaseAggregateRoot) ClearEvents() {
	a.events = nil
}
