package event

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/leorit/backend/internal/domain/shared"
	"github.com/leorit/backend/internal/infrastructure/config"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultRelayBatch    = 100
	defaultRelayInterval = 5 * time.Second
	cleanupEvery         = time.Hour
)

// RelayStats counts the outcome of one relay pass
type RelayStats struct {
	Sent   int
	Failed int
	Dead   int
}

// OutboxRelay moves committed outbox entries onto the event bus. Entries
// are delivered at least once; side-effecting subscribers are expected to be
// wrapped in an IdempotentHandler.
type OutboxRelay struct {
	repo       shared.OutboxRepository
	bus        shared.EventPublisher
	serializer *EventSerializer
	logger     *zap.Logger

	batch     int
	interval  time.Duration
	retention time.Duration // zero disables cleanup
	now       func() time.Time
}

// NewOutboxRelay builds a relay from the event config. Zero batch size and
// poll interval fall back to defaults.
func NewOutboxRelay(
	repo shared.OutboxRepository,
	bus shared.EventPublisher,
	serializer *EventSerializer,
	cfg config.EventConfig,
	logger *zap.Logger,
) *OutboxRelay {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &OutboxRelay{
		repo:       repo,
		bus:        bus,
		serializer: serializer,
		logger:     logger.Named("outbox"),
		batch:      cfg.BatchSize,
		interval:   cfg.PollInterval,
		now:        time.Now,
	}
	if r.batch <= 0 {
		r.batch = defaultRelayBatch
	}
	if r.interval <= 0 {
		r.interval = defaultRelayInterval
	}
	if cfg.CleanupEnabled {
		r.retention = cfg.CleanupRetention
	}
	return r
}

// Run relays until ctx is cancelled. A pass that fails is logged and the
// next tick tries again, so Run only returns ctx's error.
func (r *OutboxRelay) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return every(ctx, r.interval, func() { r.RelayOnce(ctx) })
	})
	if r.retention > 0 {
		g.Go(func() error {
			return every(ctx, cleanupEvery, func() { r.cleanup(ctx) })
		})
	}
	r.logger.Info("Outbox relay running",
		zap.Int("batch_size", r.batch),
		zap.Duration("poll_interval", r.interval),
		zap.Duration("retention", r.retention),
	)
	err := g.Wait()
	r.logger.Info("Outbox relay stopped")
	return err
}

func every(ctx context.Context, d time.Duration, fn func()) error {
	t := time.NewTicker(d)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			fn()
		}
	}
}

// RelayOnce publishes one batch of new entries and one batch of entries
// whose backoff has elapsed
func (r *OutboxRelay) RelayOnce(ctx context.Context) RelayStats {
	var stats RelayStats
	fetch := []func() ([]*shared.OutboxEntry, error){
		func() ([]*shared.OutboxEntry, error) { return r.repo.FindPending(ctx, r.batch) },
		func() ([]*shared.OutboxEntry, error) { return r.repo.FindRetryable(ctx, r.now(), r.batch) },
	}
	for _, f := range fetch {
		entries, err := f()
		if err != nil {
			r.logger.Error("Outbox fetch failed", zap.Error(err))
			return stats
		}
		r.relay(ctx, entries, &stats)
	}
	if stats != (RelayStats{}) {
		r.logger.Debug("Outbox pass",
			zap.Int("sent", stats.Sent),
			zap.Int("failed", stats.Failed),
			zap.Int("dead", stats.Dead),
		)
	}
	return stats
}

func (r *OutboxRelay) relay(ctx context.Context, entries []*shared.OutboxEntry, stats *RelayStats) {
	if len(entries) == 0 {
		return
	}
	ids := make([]uuid.UUID, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	// Another relay may hold some of these rows; only the claimed ones are ours.
	claimed, err := r.repo.MarkProcessing(ctx, ids)
	if err != nil {
		r.logger.Error("Outbox claim failed", zap.Error(err))
		return
	}
	for _, entry := range claimed {
		if err := r.deliver(ctx, entry); err != nil {
			r.failed(ctx, entry, err, stats)
			continue
		}
		entry.MarkSent(r.now())
		if err := r.repo.Update(ctx, entry); err != nil {
			r.logger.Error("Outbox entry sent but not marked", entryFields(entry, zap.Error(err))...)
			continue
		}
		stats.Sent++
	}
}

func (r *OutboxRelay) deliver(ctx context.Context, entry *shared.OutboxEntry) error {
	ev, err := r.serializer.Deserialize(entry.EventType, entry.Payload)
	if err != nil {
		return err
	}
	return r.bus.Publish(ctx, ev)
}

func (r *OutboxRelay) failed(ctx context.Context, entry *shared.OutboxEntry, cause error, stats *RelayStats) {
	entry.MarkFailed(cause.Error(), r.now())
	if entry.IsDead() {
		stats.Dead++
		r.logger.Warn("Outbox entry dead", entryFields(entry, zap.Int("retry_count", entry.RetryCount), zap.Error(cause))...)
	} else {
		stats.Failed++
		r.logger.Error("Outbox delivery failed", entryFields(entry, zap.Timep("next_retry_at", entry.NextRetryAt), zap.Error(cause))...)
	}
	if err := r.repo.Update(ctx, entry); err != nil {
		r.logger.Error("Outbox entry update failed", entryFields(entry, zap.Error(err))...)
	}
}

func entryFields(e *shared.OutboxEntry, extra ...zap.Field) []zap.Field {
	return append([]zap.Field{
		zap.Stringer("event_id", e.EventID),
		zap.String("event_type", e.EventType),
		zap.String("aggregate_type", e.AggregateType),
		zap.Stringer("aggregate_id", e.AggregateID),
	}, extra...)
}

func (r *OutboxRelay) cleanup(ctx context.Context) {
	cutoff := r.now().Add(-r.retention)
	n, err := r.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		r.logger.Error("Outbox cleanup failed", zap.Error(err))
		return
	}
	if n > 0 {
		r.logger.Info("Outbox cleanup", zap.Int64("deleted", n), zap.Time("cutoff", cutoff))
	}
}
