package partner

import (
	"github.com/google/uuid"
	"github.com/leorit/backend/internal/domain/shared"
)

// Aggregate type constant for Manufacturer
const AggregateTypeManufacturer = "Manufacturer"

// Event type constants for Manufacturer
const (
	EventTypeManufacturerRegistered    = "ManufacturerRegistered"
	EventTypeManufacturerStatusChanged = "ManufacturerStatusChanged"
)

// EventTypes lists every manufacturer event type
func EventTypes() []string {
	return []string{EventTypeManufacturerRegistered, EventTypeManufacturerStatusChanged}
}

// ManufacturerRegisteredEvent is published when a manufacturer is registered
type ManufacturerRegisteredEvent struct {
	shared.EventHeader
	ManufacturerID uuid.UUID `json:"manufacturer_id"`
	Code           string    `json:"code"`
	Name           string    `json:"name"`
}

// NewManufacturerRegisteredEvent creates a new ManufacturerRegisteredEvent
func NewManufacturerRegisteredEvent(m *Manufacturer) *ManufacturerRegisteredEvent {
	return &ManufacturerRegisteredEvent{
		EventHeader: shared.NewEventHeader(EventTypeManufacturerRegistered, AggregateTypeManufacturer, m.ID, m.CreatedAt),
		ManufacturerID:  m.ID,
		Code:            m.Code,
		Name:            m.Name,
	}
}

// EventType returns the event type name
func (e *ManufacturerRegisteredEvent) EventType() string {
	return EventTypeManufacturerRegistered
}

// ManufacturerStatusChangedEvent is published when verification or activity changes
type ManufacturerStatusChangedEvent struct {
	shared.EventHeader
	ManufacturerID uuid.UUID `json:"manufacturer_id"`
	Code           string    `json:"code"`
	Change         string    `json:"change"`
	Verified       bool      `json:"verified"`
	Active         bool      `json:"active"`
}

// NewManufacturerStatusChangedEvent creates a new ManufacturerStatusChangedEvent
func NewManufacturerStatusChangedEvent(m *Manufacturer, change string) *ManufacturerStatusChangedEvent {
	return &ManufacturerStatusChangedEvent{
		EventHeader: shared.NewEventHeader(EventTypeManufacturerStatusChanged, AggregateTypeManufacturer, m.ID, m.UpdatedAt),
		ManufacturerID:  m.ID,
		Code:            m.Code,
		Change:          change,
		Verified:        m.Verified,
		Active:          m.Active,
	}
}

// EventType returns the event type name
func (e *ManufacturerStatusChangedEvent) EventType() string {
	return EventTypeManufacturerStatusChanged
}
