// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Transition results used as the "result" attribute
const (
	ResultOK       = "ok"
	ResultRejected = "rejected"
	ResultConflict = "conflict"
	ResultError    = "error"
)

// LifecycleMetrics records order lifecycle activity: transition outcomes,
// compare-and-set retries, QC decisions and the number of orders per state.
type LifecycleMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	// Counter metrics (monotonically increasing)
	operationTotal    *Counter
	retryTotal        *Counter
	qcDecisionTotal   *Counter
	paymentTotal      *Counter
	notificationTotal *Counter

	// Histogram metrics
	operationDuration *Histogram

	// Gauge metrics (point-in-time values)
	ordersByState *Gauge

	// Periodic collector
	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	stateProvider OrderStateProvider
}

// OrderStateProvider reports how many orders sit in each lifecycle state.
// It keeps the telemetry layer independent of the order domain.
type OrderStateProvider interface {
	CountByState(ctx context.Context) (map[string]int64, error)
}

// LifecycleMetricsConfig holds configuration for lifecycle metrics.
type LifecycleMetricsConfig struct {
	Meter         metric.Meter
	Logger        *zap.Logger
	StateProvider OrderStateProvider
}

// NewLifecycleMetrics creates a new LifecycleMetrics instance.
func NewLifecycleMetrics(cfg LifecycleMetricsConfig) (*LifecycleMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	lm := &LifecycleMetrics{
		meter:         cfg.Meter,
		logger:        logger,
		stopChan:      make(chan struct{}),
		stateProvider: cfg.StateProvider,
	}

	var err error
	lm.operationTotal, err = NewCounter(
		cfg.Meter,
		"leorit_order_operation_total",
		"Total number of order lifecycle operations by outcome",
		"{operations}",
	)
	if err != nil {
		return nil, err
	}

	lm.retryTotal, err = NewCounter(
		cfg.Meter,
		"leorit_order_cas_retry_total",
		"Total number of retries after a concurrent modification",
		"{retries}",
	)
	if err != nil {
		return nil, err
	}

	lm.qcDecisionTotal, err = NewCounter(
		cfg.Meter,
		"leorit_qc_decision_total",
		"Total number of admin QC decisions",
		"{decisions}",
	)
	if err != nil {
		return nil, err
	}

	lm.paymentTotal, err = NewCounter(
		cfg.Meter,
		"leorit_payment_state_change_total",
		"Total number of escrow state changes",
		"{changes}",
	)
	if err != nil {
		return nil, err
	}

	lm.notificationTotal, err = NewCounter(
		cfg.Meter,
		"leorit_notification_delivery_total",
		"Lifecycle notifications handled, by event type and outcome",
		"{deliveries}",
	)
	if err != nil {
		return nil, err
	}

	lm.operationDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "leorit_order_operation_duration_seconds",
		Description: "Duration of order lifecycle operations including retries",
		Unit:        "s",
		Boundaries:  DBDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	lm.ordersByState, err = NewGauge(
		cfg.Meter,
		"leorit_orders_by_state",
		"Current number of orders in each lifecycle state",
		"{orders}",
	)
	if err != nil {
		return nil, err
	}

	return lm, nil
}

// RecordOperation records the outcome and duration of a lifecycle operation.
// errorCode is empty on success.
func (lm *LifecycleMetrics) RecordOperation(ctx context.Context, operation, result, errorCode string, d time.Duration) {
	attrs := []attribute.KeyValue{
		AttrOperation.String(operation),
		AttrResult.String(result),
	}
	if errorCode != "" {
		attrs = append(attrs, AttrErrorCode.String(errorCode))
	}
	lm.operationTotal.Inc(ctx, attrs...)
	lm.operationDuration.RecordDuration(ctx, d, AttrOperation.String(operation), AttrResult.String(result))
}

// RecordRetry records one compare-and-set retry of an operation.
func (lm *LifecycleMetrics) RecordRetry(ctx context.Context, operation string) {
	lm.retryTotal.Inc(ctx, AttrOperation.String(operation))
}

// RecordQCDecision records an admin QC decision.
func (lm *LifecycleMetrics) RecordQCDecision(ctx context.Context, stage, decision string) {
	lm.qcDecisionTotal.Inc(ctx,
		AttrQCStage.String(stage),
		AttrQCDecision.String(decision),
	)
}

// RecordPaymentState records an escrow state change.
func (lm *LifecycleMetrics) RecordPaymentState(ctx context.Context, state string) {
	lm.paymentTotal.Inc(ctx, AttrPaymentStatus.String(state))
}

// Notification delivery outcomes
const (
	DeliveryProcessed = "processed"
	DeliveryDuplicate = "duplicate"
	DeliveryFailed    = "failed"
)

// RecordNotification records what the notification handler did with one
// relayed event
func (lm *LifecycleMetrics) RecordNotification(ctx context.Context, eventType, outcome string) {
	lm.notificationTotal.Inc(ctx, AttrEventType.String(eventType), AttrResult.String(outcome))
}

// RecordOrdersInState records the current number of orders in a state.
func (lm *LifecycleMetrics) RecordOrdersInState(ctx context.Context, state string, count int64) {
	lm.ordersByState.Record(ctx, count, AttrLifecycle.String(state))
}

// StartPeriodicCollection starts periodic collection of the per-state gauge.
// This is non-blocking - use Stop() to stop collection.
func (lm *LifecycleMetrics) StartPeriodicCollection(ctx context.Context, interval time.Duration) {
	lm.collectOnce.Do(func() {
		if interval <= 0 {
			interval = 5 * time.Minute
		}

		go lm.runPeriodicCollection(ctx, interval)
	})
}

func (lm *LifecycleMetrics) runPeriodicCollection(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lm.collectStateMetrics(ctx)

	for {
		select {
		case <-lm.stopChan:
			lm.logger.Info("Stopping periodic lifecycle metrics collection")
			return
		case <-ctx.Done():
			lm.logger.Info("Context cancelled, stopping periodic lifecycle metrics collection")
			return
		case <-ticker.C:
			lm.collectStateMetrics(ctx)
		}
	}
}

func (lm *LifecycleMetrics) collectStateMetrics(ctx context.Context) {
	if lm.stateProvider == nil {
		lm.logger.Debug("No order state provider configured, skipping state metrics collection")
		return
	}

	counts, err := lm.stateProvider.CountByState(ctx)
	if err != nil {
		lm.logger.Warn("Failed to count orders by state", zap.Error(err))
		return
	}
	for state, n := range counts {
		lm.RecordOrdersInState(ctx, state, n)
	}
}

// Stop stops the periodic collection.
func (lm *LifecycleMetrics) Stop() {
	lm.stopOnce.Do(func() {
		close(lm.stopChan)
	})
}

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewLifecycleMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
