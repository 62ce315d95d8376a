package event

import (
	"errors"
	"testing"

	"github.com/leorit/backend/internal/domain/order"
	"github.com/leorit/backend/internal/domain/partner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSerializer() *EventSerializer {
	s := NewEventSerializer()
	RegisterAllEvents(s)
	return s
}

func TestRegisterAllEvents_CoversDomainEventTypes(t *testing.T) {
	s := newSerializer()

	for _, et := range append(order.EventTypes(), partner.EventTypes()...) {
		assert.True(t, s.IsRegistered(et), et)
	}
	assert.Len(t, s.RegisteredTypes(), len(order.EventTypes())+len(partner.EventTypes()))
}

func TestEventSerializer_RoundTripsManufacturerEvent(t *testing.T) {
	s := newSerializer()
	m, err := partner.NewManufacturer("TIRUPUR-01", "Tirupur Knits", "ops@tirupurknits.in")
	require.NoError(t, err)
	ev := partner.NewManufacturerRegisteredEvent(m)

	payload, err := s.Serialize(ev)
	require.NoError(t, err)

	got, err := s.Deserialize(ev.EventType(), payload)
	require.NoError(t, err)

	decoded, ok := got.(*partner.ManufacturerRegisteredEvent)
	require.True(t, ok)
	assert.Equal(t, ev.EventID(), decoded.EventID())
	assert.Equal(t, m.ID, decoded.AggregateID())
	assert.Equal(t, "TIRUPUR-01", decoded.Code)
}

func TestEventSerializer_UnknownType(t *testing.T) {
	s := NewEventSerializer()

	_, err := s.Deserialize("InvoicePrinted", []byte(`{}`))

	assert.True(t, errors.Is(err, ErrUnknownEventType))
}

func TestEventSerializer_BadPayload(t *testing.T) {
	s := newSerializer()

	_, err := s.Deserialize(partner.EventTypeManufacturerRegistered, []byte(`{"id":`))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to unmarshal event")
}

func TestEventSerializer_RefusesUnregisteredEvent(t *testing.T) {
	s := NewEventSerializer()
	m, err := partner.NewManufacturer("SURAT-02", "Surat Weaves", "hello@suratweaves.in")
	require.NoError(t, err)

	_, err = s.Serialize(partner.NewManufacturerRegisteredEvent(m))

	assert.ErrorIs(t, err, ErrUnknownEventType)
}
