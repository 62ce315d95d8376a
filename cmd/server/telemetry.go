package main

import (
	"context"
	"fmt"

	"github.com/leorit/backend/internal/infrastructure/config"
	"github.com/leorit/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// observability holds the OTLP providers and the profiler for shutdown
type observability struct {
	traces   *telemetry.TracerProvider
	meters   *telemetry.MeterProvider
	logs     *telemetry.LoggerProvider
	profiler *telemetry.Profiler
}

func startTelemetry(ctx context.Context, cfg *config.Config, log *zap.Logger) (*observability, error) {
	tc := cfg.Telemetry
	base := telemetry.Config{
		Enabled:           tc.Enabled,
		CollectorEndpoint: tc.CollectorEndpoint,
		Insecure:          tc.Insecure,
		ServiceName:       tc.ServiceName,
		ServiceVersion:    version,
		SamplingRatio:     tc.SamplingRatio,
		ExportInterval:    tc.MetricsExportInterval,
	}

	obs := &observability{}
	var err error
	if obs.traces, err = telemetry.NewTracerProvider(ctx, base, log); err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	metricsCfg := base
	metricsCfg.Enabled = tc.Enabled && tc.MetricsEnabled
	if obs.meters, err = telemetry.NewMeterProvider(ctx, metricsCfg, log); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	logsCfg := base
	logsCfg.Enabled = tc.Enabled && tc.LogsEnabled
	if obs.logs, err = telemetry.NewLoggerProvider(ctx, logsCfg, log); err != nil {
		return nil, fmt.Errorf("init log export: %w", err)
	}

	obs.profiler, err = telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         tc.ProfilingEnabled,
		ServerAddress:   tc.PyroscopeEndpoint,
		ApplicationName: tc.ServiceName,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("init profiler: %w", err)
	}
	if obs.profiler.IsEnabled() {
		obs.traces.EnableSpanProfiles()
	}
	return obs, nil
}

// shutdown flushes exporters in reverse start order
func (o *observability) shutdown(log *zap.Logger) {
	ctx := context.Background()
	if err := o.profiler.Stop(); err != nil {
		log.Warn("Profiler shutdown", zap.Error(err))
	}
	if err := o.logs.Shutdown(ctx); err != nil {
		log.Warn("Log exporter shutdown", zap.Error(err))
	}
	if err := o.meters.Shutdown(ctx); err != nil {
		log.Warn("Metric exporter shutdown", zap.Error(err))
	}
	if err := o.traces.Shutdown(ctx); err != nil {
		log.Warn("Trace exporter shutdown", zap.Error(err))
	}
}
