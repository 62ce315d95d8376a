package notification

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/leorit/backend/internal/domain/order"
	"github.com/leorit/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// Notification types
const (
	TypeOrderCreated      = "order.created"
	TypeOrderTransitioned = "order.transitioned"
	TypeAssignmentChanged = "order.assignment_changed"
	TypePaymentChanged    = "order.payment_changed"
)

// LifecycleHandler turns order events into notifications. It is subscribed
// to the event bus behind an idempotent wrapper.
type LifecycleHandler struct {
	notifier Notifier
	logger   *zap.Logger
}

// NewLifecycleHandler creates a LifecycleHandler
func NewLifecycleHandler(notifier Notifier, logger *zap.Logger) *LifecycleHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LifecycleHandler{notifier: notifier, logger: logger}
}

// EventTypes implements shared.EventHandler
func (h *LifecycleHandler) EventTypes() []string {
	return order.EventTypes()
}

// Handle implements shared.EventHandler
func (h *LifecycleHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	n, ok := Build(event)
	if !ok {
		h.logger.Debug("no notification for event", zap.String("event_type", event.EventType()))
		return nil
	}
	if err := h.notifier.Notify(ctx, n); err != nil {
		return fmt.Errorf("notify %s for order %s: %w", n.Type, n.OrderNumber, err)
	}
	return nil
}

// Build maps a domain event to its notification. The second result is false
// for events nobody is notified about.
func Build(event shared.DomainEvent) (Notification, bool) {
	n := Notification{
		ID:         event.EventID(),
		OrderID:    event.AggregateID(),
		OccurredAt: event.OccurredAt(),
	}

	switch e := event.(type) {
	case *order.OrderCreatedEvent:
		n.Type = TypeOrderCreated
		n.OrderNumber = e.OrderNumber
		n.Subject = fmt.Sprintf("Order %s created", e.OrderNumber)
		n.Recipients = []Recipient{actor(shared.RoleBuyer, e.BuyerID)}
		n.Data = map[string]string{"intent": string(e.Intent)}

	case *order.OrderTransitionedEvent:
		n.Type = TypeOrderTransitioned
		n.OrderNumber = e.OrderNumber
		n.Subject = fmt.Sprintf("Order %s is now %s", e.OrderNumber, e.ToState)
		n.Recipients = transitionRecipients(e)
		n.Data = map[string]string{
			"event":      string(e.Event),
			"from_state": string(e.FromState),
			"to_state":   string(e.ToState),
			"actor_role": string(e.ActorRole),
		}
		if order.IsRegression(e.FromState, e.ToState) {
			n.Data["qc_rejected"] = "true"
		}

	case *order.ManufacturerAssignmentChangedEvent:
		n.Type = TypeAssignmentChanged
		n.OrderNumber = e.OrderNumber
		n.Subject = fmt.Sprintf("Manufacturer assignment %s on order %s", e.Change, e.OrderNumber)
		n.Recipients = []Recipient{role(shared.RoleAdmin), actor(shared.RoleManufacturer, e.ManufacturerID)}
		n.Data = map[string]string{"change": e.Change, "manufacturer_id": e.ManufacturerID.String()}
		if e.Reason != "" {
			n.Data["reason"] = e.Reason
		}

	case *order.PaymentStateChangedEvent:
		n.Type = TypePaymentChanged
		n.OrderNumber = e.OrderNumber
		n.Subject = fmt.Sprintf("Payment for order %s is %s", e.OrderNumber, e.To)
		n.Recipients = []Recipient{role(shared.RoleAdmin)}
		n.Data = map[string]string{"from": string(e.From), "to": string(e.To)}
		if e.Reason != "" {
			n.Data["reason"] = e.Reason
		}

	default:
		return Notification{}, false
	}
	return n, true
}

// transitionRecipients notifies the buyer, the assigned manufacturer, and the
// admin desk when the new state waits on an admin
func transitionRecipients(e *order.OrderTransitionedEvent) []Recipient {
	out := []Recipient{actor(shared.RoleBuyer, e.BuyerID)}
	if e.ManufacturerID != nil {
		out = append(out, actor(shared.RoleManufacturer, *e.ManufacturerID))
	}
	switch e.ToState {
	case order.StateSubmitted, order.StateSampleQCUploaded, order.StateBulkQCUploaded,
		order.StatePaymentRequested, order.StateDelivered:
		out = append(out, role(shared.RoleAdmin))
	}
	return out
}

func actor(r shared.Role, id uuid.UUID) Recipient {
	return Recipient{Role: r, ActorID: &id}
}

func role(r shared.Role) Recipient {
	return Recipient{Role: r}
}

var _ shared.EventHandler = (*LifecycleHandler)(nil)
