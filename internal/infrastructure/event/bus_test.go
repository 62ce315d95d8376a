package event

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/leorit/backend/internal/domain/partner"
	"github.com/leorit/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingHandler struct {
	mu     sync.Mutex
	types  []string
	seen   []shared.DomainEvent
	err    error
	panics bool
}

func (h *recordingHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	if h.panics {
		panic("boom")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seen = append(h.seen, event)
	return h.err
}

func (h *recordingHandler) EventTypes() []string { return h.types }

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.seen)
}

func registeredEvent(t *testing.T) *partner.ManufacturerRegisteredEvent {
	t.Helper()
	m, err := partner.NewManufacturer("LUDHIANA-07", "Ludhiana Wool Works", "")
	require.NoError(t, err)
	return partner.NewManufacturerRegisteredEvent(m)
}

func TestInMemoryEventBus_RoutesByEventType(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	typed := &recordingHandler{types: []string{partner.EventTypeManufacturerRegistered}}
	other := &recordingHandler{types: []string{partner.EventTypeManufacturerStatusChanged}}
	all := &recordingHandler{}
	bus.Subscribe(typed)
	bus.Subscribe(other)
	bus.Subscribe(all)

	require.NoError(t, bus.Publish(context.Background(), registeredEvent(t)))

	assert.Equal(t, 1, typed.count())
	assert.Equal(t, 0, other.count())
	assert.Equal(t, 1, all.count())
}

func TestInMemoryEventBus_HandlerFailureDoesNotStopOthers(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	failing := &recordingHandler{err: errors.New("redis: connection refused")}
	panicking := &recordingHandler{panics: true}
	ok := &recordingHandler{}
	bus.Subscribe(failing)
	bus.Subscribe(panicking)
	bus.Subscribe(ok)

	err := bus.Publish(context.Background(), registeredEvent(t))

	require.NoError(t, err)
	assert.Equal(t, 1, ok.count())
}

func TestInMemoryEventBus_StrictReturnsHandlerError(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop()).Strict()
	bus.Subscribe(&recordingHandler{err: errors.New("kafka: leader not available")})

	err := bus.Publish(context.Background(), registeredEvent(t))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "leader not available")
}

func TestInMemoryEventBus_ExplicitTypesOverrideHandler(t *testing.T) {
	bus := NewInMemoryEventBus(nil)
	h := &recordingHandler{types: []string{partner.EventTypeManufacturerStatusChanged}}
	bus.Subscribe(h, partner.EventTypeManufacturerRegistered)

	require.NoError(t, bus.Publish(context.Background(), registeredEvent(t)))

	assert.Equal(t, 1, h.count())
}

func TestInMemoryEventBus_StrictReportsPanic(t *testing.T) {
	bus := NewInMemoryEventBus(nil).Strict()
	bus.Subscribe(&recordingHandler{panics: true})

	err := bus.Publish(context.Background(), registeredEvent(t))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked on "+partner.EventTypeManufacturerRegistered)
}
