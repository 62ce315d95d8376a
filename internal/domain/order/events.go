package order

import (
	"time"

	"github.com/google/uuid"
	"github.com/leorit/backend/internal/domain/shared"
)

// AggregateTypeOrder is the aggregate type for orders
const AggregateTypeOrder = "Order"

// Event types for orders
const (
	EventTypeOrderCreated                  = "OrderCreated"
	EventTypeOrderTransitioned             = "OrderTransitioned"
	EventTypeManufacturerAssignmentChanged = "ManufacturerAssignmentChanged"
	EventTypePaymentStateChanged           = "PaymentStateChanged"
)

// EventTypes lists every order event type, for serializer registration
func EventTypes() []string {
	return []string{
		EventTypeOrderCreated,
		EventTypeOrderTransitioned,
		EventTypeManufacturerAssignmentChanged,
		EventTypePaymentStateChanged,
	}
}

// OrderCreatedEvent is raised when a draft order is created
type OrderCreatedEvent struct {
	shared.EventHeader
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	BuyerID     uuid.UUID `json:"buyer_id"`
	Intent      Intent    `json:"intent"`
}

// NewOrderCreatedEvent creates a new OrderCreatedEvent
func NewOrderCreatedEvent(o *Order, at time.Time) *OrderCreatedEvent {
	return &OrderCreatedEvent{
		EventHeader: shared.NewEventHeader(EventTypeOrderCreated, AggregateTypeOrder, o.ID, at),
		OrderID:         o.ID,
		OrderNumber:     o.OrderNumber,
		BuyerID:         o.BuyerID,
		Intent:          o.Intent,
	}
}

// EventType returns the event type name
func (e *OrderCreatedEvent) EventType() string {
	return EventTypeOrderCreated
}

// OrderTransitionedEvent is raised for every lifecycle transition
type OrderTransitionedEvent struct {
	shared.EventHeader
	OrderID        uuid.UUID      `json:"order_id"`
	OrderNumber    string         `json:"order_number"`
	Event          Event          `json:"event"`
	FromState      LifecycleState `json:"from_state"`
	ToState        LifecycleState `json:"to_state"`
	ActorID        uuid.UUID      `json:"actor_id"`
	ActorRole      shared.Role    `json:"actor_role"`
	BuyerID        uuid.UUID      `json:"buyer_id"`
	ManufacturerID *uuid.UUID     `json:"manufacturer_id,omitempty"`
}

// NewOrderTransitionedEvent creates a new OrderTransitionedEvent
func NewOrderTransitionedEvent(o *Order, event Event, from LifecycleState, actor shared.Actor, at time.Time) *OrderTransitionedEvent {
	return &OrderTransitionedEvent{
		EventHeader: shared.NewEventHeader(EventTypeOrderTransitioned, AggregateTypeOrder, o.ID, at),
		OrderID:         o.ID,
		OrderNumber:     o.OrderNumber,
		Event:           event,
		FromState:       from,
		ToState:         o.State,
		ActorID:         actor.ID,
		ActorRole:       actor.Role,
		BuyerID:         o.BuyerID,
		ManufacturerID:  o.ManufacturerID,
	}
}

// EventType returns the event type name
func (e *OrderTransitionedEvent) EventType() string {
	return EventTypeOrderTransitioned
}

// Assignment changes
const (
	AssignmentDeclined   = "declined"
	AssignmentReassigned = "reassigned"
)

// ManufacturerAssignmentChangedEvent is raised when the assigned manufacturer
// declines or a new one is assigned after a decline
type ManufacturerAssignmentChangedEvent struct {
	shared.EventHeader
	OrderID        uuid.UUID `json:"order_id"`
	OrderNumber    string    `json:"order_number"`
	Change         string    `json:"change"`
	ManufacturerID uuid.UUID `json:"manufacturer_id"`
	Reason         string    `json:"reason,omitempty"`
}

// NewManufacturerAssignmentChangedEvent creates a new ManufacturerAssignmentChangedEvent
func NewManufacturerAssignmentChangedEvent(o *Order, change string, manufacturerID uuid.UUID, reason string, at time.Time) *ManufacturerAssignmentChangedEvent {
	return &ManufacturerAssignmentChangedEvent{
		EventHeader: shared.NewEventHeader(EventTypeManufacturerAssignmentChanged, AggregateTypeOrder, o.ID, at),
		OrderID:         o.ID,
		OrderNumber:     o.OrderNumber,
		Change:          change,
		ManufacturerID:  manufacturerID,
		Reason:          reason,
	}
}

// EventType returns the event type name
func (e *ManufacturerAssignmentChangedEvent) EventType() string {
	return EventTypeManufacturerAssignmentChanged
}

// PaymentStateChangedEvent is raised when the escrow state moves
type PaymentStateChangedEvent struct {
	shared.EventHeader
	OrderID     uuid.UUID    `json:"order_id"`
	OrderNumber string       `json:"order_number"`
	From        PaymentState `json:"from"`
	To          PaymentState `json:"to"`
	Reason      string       `json:"reason,omitempty"`
}

// NewPaymentStateChangedEvent creates a new PaymentStateChangedEvent
func NewPaymentStateChangedEvent(o *Order, from PaymentState, reason string, at time.Time) *PaymentStateChangedEvent {
	return &PaymentStateChangedEvent{
		EventHeader: shared.NewEventHeader(EventTypePaymentStateChanged, AggregateTypeOrder, o.ID, at),
		OrderID:         o.ID,
		OrderNumber:     o.OrderNumber,
		From:            from,
		To:              o.PaymentState,
		Reason:          reason,
	}
}

// EventType returns the event type name
func (e *PaymentStateChangedEvent) EventType() string {
	return EventTypePaymentStateChanged
}
