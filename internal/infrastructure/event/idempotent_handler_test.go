package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/leorit/backend/internal/domain/shared"
	"github.com/leorit/backend/internal/infrastructure/cache"
	"github.com/leorit/backend/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type unavailableStore struct{ releases int }

func (s *unavailableStore) MarkProcessed(context.Context, string, time.Duration) (bool, error) {
	return false, errors.New("redis: i/o timeout")
}
func (s *unavailableStore) IsProcessed(context.Context, string) (bool, error) { return false, nil }
func (s *unavailableStore) Release(context.Context, string) error {
	s.releases++
	return nil
}
func (s *unavailableStore) Close() error { return nil }

type outcomes struct {
	mu  sync.Mutex
	got []string
}

func (o *outcomes) RecordNotification(_ context.Context, _, outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.got = append(o.got, outcome)
}

func newMemoryStore(t *testing.T) shared.IdempotencyStore {
	t.Helper()
	s := cache.NewInMemoryIdempotencyStore()
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestIdempotentHandler_SkipsRedelivery(t *testing.T) {
	inner := &recordingHandler{}
	rec := &outcomes{}
	h := NewIdempotentHandler(inner, newMemoryStore(t), zap.NewNop(), WithDeliveryRecorder(rec))
	ev := registeredEvent(t)

	require.NoError(t, h.Handle(context.Background(), ev))
	require.NoError(t, h.Handle(context.Background(), ev))

	assert.Equal(t, 1, inner.count())
	assert.Equal(t, []string{telemetry.DeliveryProcessed, telemetry.DeliveryDuplicate}, rec.got)
}

func TestIdempotentHandler_FailureReleasesKey(t *testing.T) {
	inner := &recordingHandler{err: errors.New("kafka: broker not available")}
	rec := &outcomes{}
	h := NewIdempotentHandler(inner, newMemoryStore(t), zap.NewNop(), WithDeliveryRecorder(rec))
	ev := registeredEvent(t)

	require.Error(t, h.Handle(context.Background(), ev))

	inner.err = nil
	require.NoError(t, h.Handle(context.Background(), ev))

	assert.Equal(t, 2, inner.count(), "retry after failure reaches the handler")
	assert.Equal(t, []string{telemetry.DeliveryFailed, telemetry.DeliveryProcessed}, rec.got)
}

func TestIdempotentHandler_StoreOutageStillDelivers(t *testing.T) {
	inner := &recordingHandler{err: errors.New("smtp down")}
	store := &unavailableStore{}
	h := NewIdempotentHandler(inner, store, zap.NewNop())

	err := h.Handle(context.Background(), registeredEvent(t))

	require.Error(t, err)
	assert.Equal(t, 1, inner.count())
	assert.Zero(t, store.releases, "nothing was marked, nothing to release")
}

func TestIdempotentHandler_Disabled(t *testing.T) {
	inner := &recordingHandler{}
	h := NewIdempotentHandler(inner, newMemoryStore(t), zap.NewNop(),
		WithIdempotencyConfig(shared.IdempotencyConfig{Enabled: false}))
	ev := registeredEvent(t)

	require.NoError(t, h.Handle(context.Background(), ev))
	require.NoError(t, h.Handle(context.Background(), ev))

	assert.Equal(t, 2, inner.count())
}

func TestIdempotentHandler_NilRecorderKeepsDefault(t *testing.T) {
	h := NewIdempotentHandler(&recordingHandler{}, newMemoryStore(t), nil, WithDeliveryRecorder(nil))

	assert.NotPanics(t, func() {
		require.NoError(t, h.Handle(context.Background(), registeredEvent(t)))
	})
}
