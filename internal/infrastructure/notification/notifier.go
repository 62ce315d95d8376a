// Package notification delivers lifecycle notifications to buyers,
// manufacturers and admins. Notifications are produced from domain events
// relayed by the outbox, so a delivery failure never affects the order write.
package notification

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/leorit/backend/internal/domain/shared"
)

// Recipient is a party that should hear about an order change. ActorID is
// nil for role-wide recipients such as the admin desk.
type Recipient struct {
	Role    shared.Role `json:"role"`
	ActorID *uuid.UUID  `json:"actor_id,omitempty"`
}

// Notification is the message handed to a Notifier
type Notification struct {
	// ID is the id of the domain event; consumers dedupe on it
	ID          uuid.UUID         `json:"id"`
	Type        string            `json:"type"`
	OrderID     uuid.UUID         `json:"order_id"`
	OrderNumber string            `json:"order_number"`
	Recipients  []Recipient       `json:"recipients"`
	Subject     string            `json:"subject"`
	Data        map[string]string `json:"data,omitempty"`
	OccurredAt  time.Time         `json:"occurred_at"`
}

// Key is the partition key used by ordered transports
func (n Notification) Key() string {
	return n.OrderID.String()
}

// Encode returns the JSON wire form
func (n Notification) Encode() ([]byte, error) {
	return json.Marshal(n)
}

// Notifier sends notifications to an external channel
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
	Close() error
}
