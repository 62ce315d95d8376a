package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestStore(t *testing.T) (*InMemoryIdempotencyStore, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	s := newInMemoryIdempotencyStore(clock.Now, time.Hour)
	t.Cleanup(func() { _ = s.Close() })
	return s, clock
}

func TestInMemoryIdempotencyStore_MarkProcessed(t *testing.T) {
	s, clock := newTestStore(t)
	ctx := context.Background()

	isNew, err := s.MarkProcessed(ctx, "evt-1", time.Hour)
	require.NoError(t, err)
	assert.True(t, isNew)

	isNew, err = s.MarkProcessed(ctx, "evt-1", time.Hour)
	require.NoError(t, err)
	assert.False(t, isNew)

	clock.Advance(time.Hour)

	isNew, err = s.MarkProcessed(ctx, "evt-1", time.Hour)
	require.NoError(t, err)
	assert.True(t, isNew, "expired mark can be taken again")
}

func TestInMemoryIdempotencyStore_IsProcessed(t *testing.T) {
	s, clock := newTestStore(t)
	ctx := context.Background()

	done, _ := s.IsProcessed(ctx, "evt-2")
	assert.False(t, done)

	_, _ = s.MarkProcessed(ctx, "evt-2", time.Minute)
	done, _ = s.IsProcessed(ctx, "evt-2")
	assert.True(t, done)

	clock.Advance(2 * time.Minute)
	done, _ = s.IsProcessed(ctx, "evt-2")
	assert.False(t, done)
}

func TestInMemoryIdempotencyStore_Release(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, _ = s.MarkProcessed(ctx, "evt-3", time.Hour)
	require.NoError(t, s.Release(ctx, "evt-3"))

	isNew, err := s.MarkProcessed(ctx, "evt-3", time.Hour)
	require.NoError(t, err)
	assert.True(t, isNew)
}

func TestInMemoryIdempotencyStore_Sweep(t *testing.T) {
	s, clock := newTestStore(t)
	ctx := context.Background()

	_, _ = s.MarkProcessed(ctx, "short", time.Minute)
	_, _ = s.MarkProcessed(ctx, "long", time.Hour)
	clock.Advance(10 * time.Minute)

	s.sweep()

	assert.Equal(t, 1, s.Size())
}

func TestInMemoryIdempotencyStore_ConcurrentMarkHasOneWinner(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	var winners atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := s.MarkProcessed(ctx, "evt-race", time.Hour); ok {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load())
}

func TestInMemoryIdempotencyStore_CloseTwice(t *testing.T) {
	s := NewInMemoryIdempotencyStore()

	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
}

func TestNewIdempotencyStore_FallsBackWithoutClient(t *testing.T) {
	s := NewIdempotencyStore(nil, zap.NewNop())
	defer s.Close()

	_, ok := s.(*InMemoryIdempotencyStore)
	assert.True(t, ok)
}
