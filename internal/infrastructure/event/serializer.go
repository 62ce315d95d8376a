package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/leorit/backend/internal/domain/order"
	"github.com/leorit/backend/internal/domain/partner"
	"github.com/leorit/backend/internal/domain/shared"
)

// ErrUnknownEventType is returned for an event type that was never registered
var ErrUnknownEventType = errors.New("unknown event type")

// EventSerializer converts domain events to and from outbox payloads. Only
// registered event types are accepted in either direction, so nothing reaches
// the outbox that the relay could not decode.
type EventSerializer struct {
	mu        sync.RWMutex
	factories map[string]func() shared.DomainEvent
}

// NewEventSerializer returns a serializer with no registered types
func NewEventSerializer() *EventSerializer {
	return &EventSerializer{factories: make(map[string]func() shared.DomainEvent)}
}

// Register makes eventType decodable as a *T
func Register[T any, P interface {
	*T
	shared.DomainEvent
}](s *EventSerializer, eventType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.factories[eventType] = func() shared.DomainEvent { return P(new(T)) }
}

// RegisterAllEvents registers the order lifecycle and manufacturer
// directory events
func RegisterAllEvents(s *EventSerializer) {
	Register[order.OrderCreatedEvent](s, order.EventTypeOrderCreated)
	Register[order.OrderTransitionedEvent](s, order.EventTypeOrderTransitioned)
	Register[order.ManufacturerAssignmentChangedEvent](s, order.EventTypeManufacturerAssignmentChanged)
	Register[order.PaymentStateChangedEvent](s, order.EventTypePaymentStateChanged)

	Register[partner.ManufacturerRegisteredEvent](s, partner.EventTypeManufacturerRegistered)
	Register[partner.ManufacturerStatusChangedEvent](s, partner.EventTypeManufacturerStatusChanged)
}

// Serialize encodes event as JSON
func (s *EventSerializer) Serialize(event shared.DomainEvent) ([]byte, error) {
	if !s.IsRegistered(event.EventType()) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEventType, event.EventType())
	}
	return json.Marshal(event)
}

// Deserialize decodes a payload written for eventType
func (s *EventSerializer) Deserialize(eventType string, data []byte) (shared.DomainEvent, error) {
	s.mu.RLock()
	factory, ok := s.factories[eventType]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEventType, eventType)
	}

	event := factory()
	if err := json.Unmarshal(data, event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event %s: %w", eventType, err)
	}
	return event, nil
}

// IsRegistered reports whether eventType can be serialized
func (s *EventSerializer) IsRegistered(eventType string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.factories[eventType]
	return ok
}

// RegisteredTypes returns the registered event types, sorted
func (s *EventSerializer) RegisteredTypes() []string {
	s.mu.RLock()
	types := make([]string, 0, len(s.factories))
	for t := range s.factories {
		types = append(types, t)
	}
	s.mu.RUnlock()
	slices.Sort(types)
	return types
}
