package event

import (
	"context"

	"github.com/leorit/backend/internal/domain/shared"
	"github.com/leorit/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// DeliveryRecorder receives the outcome of each delivery: processed,
// duplicate or failed. *telemetry.LifecycleMetrics implements it.
type DeliveryRecorder interface {
	RecordNotification(ctx context.Context, eventType, outcome string)
}

type nopRecorder struct{}

func (nopRecorder) RecordNotification(context.Context, string, string) {}

// IdempotentHandler wraps an EventHandler so each event ID is acted on once,
// even though the outbox delivers at least once
type IdempotentHandler struct {
	handler shared.EventHandler
	store   shared.IdempotencyStore
	config  shared.IdempotencyConfig
	logger  *zap.Logger
	recorder DeliveryRecorder
}

// IdempotentHandlerOption is a functional option for IdempotentHandler
type IdempotentHandlerOption func(*IdempotentHandler)

// WithIdempotencyConfig sets the idempotency configuration
func WithIdempotencyConfig(config shared.IdempotencyConfig) IdempotentHandlerOption {
	return func(h *IdempotentHandler) {
		h.config = config
	}
}

// WithDeliveryRecorder reports delivery outcomes to r
func WithDeliveryRecorder(r DeliveryRecorder) IdempotentHandlerOption {
	return func(h *IdempotentHandler) {
		if r != nil {
			h.recorder = r
		}
	}
}

// NewIdempotentHandler creates a new idempotent handler wrapper
func NewIdempotentHandler(
	handler shared.EventHandler,
	store shared.IdempotencyStore,
	logger *zap.Logger,
	opts ...IdempotentHandlerOption,
) *IdempotentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &IdempotentHandler{
		handler:  handler,
		store:    store,
		config:   shared.DefaultIdempotencyConfig(),
		logger:   logger,
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// EventTypes returns the wrapped handler's event types
func (h *IdempotentHandler) EventTypes() []string {
	return h.handler.EventTypes()
}

// Handle marks the event ID and delegates. A store outage does not block
// delivery: the event is handled and may be seen twice.
func (h *IdempotentHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	if !h.config.Enabled {
		err := h.handler.Handle(ctx, event)
		h.record(ctx, event, err)
		return err
	}

	eventID := event.EventID().String()
	fields := []zap.Field{
		zap.String("event_id", eventID),
		zap.String("event_type", event.EventType()),
	}

	marked := false
	isNew, err := h.store.MarkProcessed(ctx, eventID, h.config.TTL)
	switch {
	case err != nil:
		h.logger.Warn("idempotency check failed, handling anyway", append(fields, zap.Error(err))...)
	case !isNew:
		h.recorder.RecordNotification(ctx, event.EventType(), telemetry.DeliveryDuplicate)
		h.logger.Debug("duplicate event skipped", fields...)
		return nil
	default:
		marked = true
	}

	err = h.handler.Handle(ctx, event)
	h.record(ctx, event, err)
	if err != nil {
		h.logger.Error("event handler failed", append(fields, zap.Error(err))...)
		if marked {
			if relErr := h.store.Release(ctx, eventID); relErr != nil {
				h.logger.Warn("failed to release idempotency key", append(fields, zap.Error(relErr))...)
			}
		}
		return err
	}
	return nil
}

func (h *IdempotentHandler) record(ctx context.Context, event shared.DomainEvent, err error) {
	outcome := telemetry.DeliveryProcessed
	if err != nil {
		outcome = telemetry.DeliveryFailed
	}
	h.recorder.RecordNotification(ctx, event.EventType(), outcome)
}

var _ shared.EventHandler = (*IdempotentHandler)(nil)
