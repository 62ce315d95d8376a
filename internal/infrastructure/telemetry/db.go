package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	dbSystem          = "postgresql"
	queryStartKey     = "telemetry:query_start"
	defaultSlowQuery  = 200 * time.Millisecond
	dbInstrumentation = "leorit-backend/db"
)

// DBConfig controls GORM instrumentation
type DBConfig struct {
	// TracingEnabled registers otelgorm so each statement gets a span
	TracingEnabled bool
	// LogFullSQL keeps bound variables in span statements; dev only
	LogFullSQL         bool
	SlowQueryThreshold time.Duration
}

// DBInstrumentation records query metrics and connection pool gauges for a
// GORM database
type DBInstrumentation struct {
	cfg    DBConfig
	logger *zap.Logger

	queries  *Counter
	slow     *Counter
	duration *Histogram
	pool     metric.Registration
}

// InstrumentDB registers tracing and metric callbacks on db. Metrics are
// recorded against mp, which may be disabled.
func InstrumentDB(db *gorm.DB, cfg DBConfig, mp *MeterProvider, logger *zap.Logger) (*DBInstrumentation, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SlowQueryThreshold <= 0 {
		cfg.SlowQueryThreshold = defaultSlowQuery
	}
	in := &DBInstrumentation{cfg: cfg, logger: logger}

	if cfg.TracingEnabled {
		opts := []otelgorm.Option{otelgorm.WithDBName(dbSystem)}
		if !cfg.LogFullSQL {
			opts = append(opts, otelgorm.WithoutQueryVariables())
		}
		if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
			return nil, fmt.Errorf("register otelgorm: %w", err)
		}
	}

	meter := mp.Meter(dbInstrumentation)
	var err error
	if in.queries, err = NewCounter(meter, "db_query_total", "Database statements executed", "{query}"); err != nil {
		return nil, err
	}
	if in.slow, err = NewCounter(meter, "db_slow_query_total", "Statements slower than the slow query threshold", "{query}"); err != nil {
		return nil, err
	}
	in.duration, err = NewHistogram(meter, HistogramOpts{
		Name:        "db_query_duration_seconds",
		Description: "Database statement latency",
		Unit:        "s",
		Boundaries:  DBDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	if err := in.registerCallbacks(db); err != nil {
		return nil, err
	}
	if err := in.observePool(db, meter); err != nil {
		return nil, err
	}

	logger.Info("Database instrumentation enabled",
		zap.Bool("tracing", cfg.TracingEnabled),
		zap.Bool("log_full_sql", cfg.LogFullSQL),
		zap.Duration("slow_query_threshold", cfg.SlowQueryThreshold),
	)
	return in, nil
}

type registerFunc func(name string, fn func(*gorm.DB)) error

func (in *DBInstrumentation) registerCallbacks(db *gorm.DB) error {
	cb := db.Callback()
	hooks := []struct {
		op            string
		before, after registerFunc
	}{
		{"create", cb.Create().Before("gorm:create").Register, cb.Create().After("gorm:create").Register},
		{"query", cb.Query().Before("gorm:query").Register, cb.Query().After("gorm:query").Register},
		{"update", cb.Update().Before("gorm:update").Register, cb.Update().After("gorm:update").Register},
		{"delete", cb.Delete().Before("gorm:delete").Register, cb.Delete().After("gorm:delete").Register},
		{"row", cb.Row().Before("gorm:row").Register, cb.Row().After("gorm:row").Register},
		{"raw", cb.Raw().Before("gorm:raw").Register, cb.Raw().After("gorm:raw").Register},
	}
	for _, h := range hooks {
		if err := h.before("telemetry:before_"+h.op, markStart); err != nil {
			return fmt.Errorf("register %s callback: %w", h.op, err)
		}
		if err := h.after("telemetry:after_"+h.op, in.after(h.op)); err != nil {
			return fmt.Errorf("register %s callback: %w", h.op, err)
		}
	}
	return nil
}

func markStart(db *gorm.DB) {
	db.InstanceSet(queryStartKey, time.Now())
}

func (in *DBInstrumentation) after(op string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		v, ok := db.InstanceGet(queryStartKey)
		if !ok {
			return
		}
		start, ok := v.(time.Time)
		if !ok {
			return
		}
		elapsed := time.Since(start)
		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}

		result := ResultOK
		if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
			result = ResultError
		}
		attrs := []attribute.KeyValue{
			AttrDBOperation.String(op),
			AttrDBTable.String(db.Statement.Table),
		}
		in.queries.Inc(ctx, append(attrs, AttrResult.String(result))...)
		in.duration.RecordDuration(ctx, elapsed, attrs...)

		if elapsed < in.cfg.SlowQueryThreshold {
			return
		}
		in.slow.Inc(ctx, attrs...)
		if span := trace.SpanFromContext(ctx); span.IsRecording() {
			span.SetAttributes(
				attribute.Bool("db.slow_query", true),
				attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
			)
		}
		in.logger.Warn("Slow query",
			zap.String("operation", op),
			zap.String("table", db.Statement.Table),
			zap.Duration("elapsed", elapsed),
			zap.Duration("threshold", in.cfg.SlowQueryThreshold),
		)
	}
}

func (in *DBInstrumentation) observePool(db *gorm.DB, meter metric.Meter) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql.DB: %w", err)
	}
	conns, err := meter.Int64ObservableGauge("db_pool_connections",
		metric.WithDescription("Connections in the pool by state"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return fmt.Errorf("create pool gauge: %w", err)
	}
	waits, err := meter.Int64ObservableCounter("db_pool_wait_total",
		metric.WithDescription("Connections waited for"),
		metric.WithUnit("{wait}"),
	)
	if err != nil {
		return fmt.Errorf("create pool wait counter: %w", err)
	}
	in.pool, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		s := sqlDB.Stats()
		o.ObserveInt64(conns, int64(s.InUse), metric.WithAttributes(AttrDBState.String("in_use")))
		o.ObserveInt64(conns, int64(s.Idle), metric.WithAttributes(AttrDBState.String("idle")))
		o.ObserveInt64(conns, int64(s.MaxOpenConnections), metric.WithAttributes(AttrDBState.String("max")))
		o.ObserveInt64(waits, s.WaitCount)
		return nil
	}, conns, waits)
	if err != nil {
		return fmt.Errorf("register pool callback: %w", err)
	}
	return nil
}

// Close stops pool observation
func (in *DBInstrumentation) Close() error {
	if in == nil || in.pool == nil {
		return nil
	}
	return in.pool.Unregister()
}
