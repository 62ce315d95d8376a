package event

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/leorit/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// anyType keys the handlers subscribed to every event type
const anyType = ""

// InMemoryEventBus hands events to subscribed handlers in-process and
// synchronously. In the server the outbox relay is its only publisher.
type InMemoryEventBus struct {
	mu     sync.RWMutex
	routes map[string][]shared.EventHandler
	logger *zap.Logger
	strict bool
}

// NewInMemoryEventBus creates a bus with no subscribers
func NewInMemoryEventBus(logger *zap.Logger) *InMemoryEventBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InMemoryEventBus{routes: make(map[string][]shared.EventHandler), logger: logger}
}

// Strict makes Publish return handler failures so the relay schedules a
// retry. Every handler still runs.
func (b *InMemoryEventBus) Strict() *InMemoryEventBus {
	b.strict = true
	return b
}

// Subscribe registers handler for eventTypes. Without explicit types the
// handler's own EventTypes are used, and an empty list means every type.
func (b *InMemoryEventBus) Subscribe(handler shared.EventHandler, eventTypes ...string) {
	if len(eventTypes) == 0 {
		eventTypes = handler.EventTypes()
	}
	if len(eventTypes) == 0 {
		eventTypes = []string{anyType}
	}
	b.mu.Lock()
	for _, t := range eventTypes {
		b.routes[t] = append(b.routes[t], handler)
	}
	b.mu.Unlock()
	b.logger.Debug("Event handler subscribed", zap.Strings("event_types", eventTypes))
}

// Publish runs every matching handler for each event. Failures and panics
// are logged; a strict bus also returns them joined.
func (b *InMemoryEventBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	var errs []error
	for _, ev := range events {
		for _, h := range b.handlersFor(ev.EventType()) {
			if err := dispatch(ctx, h, ev); err != nil {
				b.logger.Error("Event handler failed",
					zap.String("event_type", ev.EventType()),
					zap.Stringer("event_id", ev.EventID()),
					zap.Error(err),
				)
				errs = append(errs, err)
			}
		}
	}
	if !b.strict {
		return nil
	}
	return errors.Join(errs...)
}

func (b *InMemoryEventBus) handlersFor(eventType string) []shared.EventHandler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	typed, all := b.routes[eventType], b.routes[anyType]
	out := make([]shared.EventHandler, 0, len(typed)+len(all))
	return append(append(out, typed...), all...)
}

func dispatch(ctx context.Context, h shared.EventHandler, ev shared.DomainEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%T panicked on %s: %v", h, ev.EventType(), r)
		}
	}()
	return h.Handle(ctx, ev)
}

var _ shared.EventPublisher = (*InMemoryEventBus)(nil)
