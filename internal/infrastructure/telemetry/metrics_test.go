package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/leorit/backend/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestMeterProvider_Disabled(t *testing.T) {
	ctx := context.Background()
	mp, err := telemetry.NewMeterProvider(ctx, telemetry.Config{}, nil)
	require.NoError(t, err)
	assert.False(t, mp.IsEnabled())
	assert.NotNil(t, mp.Meter("orders"))
	assert.NoError(t, mp.Shutdown(ctx))

	var nilProvider *telemetry.MeterProvider
	assert.False(t, nilProvider.IsEnabled())
	assert.NotNil(t, nilProvider.Meter("orders"))
}

func TestInstruments(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	mp := telemetry.NewMeterProviderWithReader(reader)
	t.Cleanup(func() { _ = mp.Shutdown(ctx) })
	meter := mp.Meter("test")

	counter, err := telemetry.NewCounter(meter, "orders_submitted_total", "Submitted orders", "{order}")
	require.NoError(t, err)
	counter.Inc(ctx, telemetry.AttrActorRole.String("buyer"))
	counter.Add(ctx, 2, telemetry.AttrActorRole.String("buyer"))

	hist, err := telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:       "operation_duration_seconds",
		Unit:       "s",
		Boundaries: telemetry.HTTPDurationBuckets,
	})
	require.NoError(t, err)
	hist.RecordDuration(ctx, 30*time.Millisecond, telemetry.AttrOperation.String("submit"))
	hist.Record(ctx, 0.2, telemetry.AttrOperation.String("submit"))

	gauge, err := telemetry.NewGauge(meter, "orders_in_state", "Orders per state", "{order}")
	require.NoError(t, err)
	gauge.Record(ctx, 7, telemetry.AttrLifecycle.String("IN_PRODUCTION"))

	metrics := collect(t, reader)

	sum, ok := metrics["orders_submitted_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(3), sum.DataPoints[0].Value)

	h, ok := metrics["operation_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, h.DataPoints, 1)
	assert.Equal(t, uint64(2), h.DataPoints[0].Count)
	assert.Equal(t, telemetry.HTTPDurationBuckets, h.DataPoints[0].Bounds)

	g, ok := metrics["orders_in_state"].Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, g.DataPoints, 1)
	assert.Equal(t, int64(7), g.DataPoints[0].Value)
	state, _ := g.DataPoints[0].Attributes.Value(telemetry.AttrLifecycle)
	assert.Equal(t, "IN_PRODUCTION", state.AsString())
}
