package telemetry_test

import (
	"context"
	"testing"

	"github.com/leorit/backend/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type instrumentedRow struct {
	ID    uint
	State string
}

func instrumentedDB(t *testing.T, cfg telemetry.DBConfig) (*gorm.DB, *sdkmetric.ManualReader) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&instrumentedRow{}))

	reader := sdkmetric.NewManualReader()
	in, err := telemetry.InstrumentDB(db, cfg, telemetry.NewMeterProviderWithReader(reader), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = in.Close() })
	return db, reader
}

func TestInstrumentDB_QueryMetrics(t *testing.T) {
	db, reader := instrumentedDB(t, telemetry.DBConfig{})

	require.NoError(t, db.Create(&instrumentedRow{State: "DRAFT"}).Error)
	var rows []instrumentedRow
	require.NoError(t, db.Where("state = ?", "DRAFT").Find(&rows).Error)
	var missing instrumentedRow
	require.Error(t, db.First(&missing, 999).Error)

	metrics := collect(t, reader)
	sum, ok := metrics["db_query_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)

	byOp := map[string]int64{}
	for _, dp := range sum.DataPoints {
		op, _ := dp.Attributes.Value(telemetry.AttrDBOperation)
		table, _ := dp.Attributes.Value(telemetry.AttrDBTable)
		result, _ := dp.Attributes.Value(telemetry.AttrResult)
		assert.Equal(t, "instrumented_rows", table.AsString())
		// a missing row is not a failure
		assert.Equal(t, telemetry.ResultOK, result.AsString())
		byOp[op.AsString()] += dp.Value
	}
	assert.Equal(t, int64(1), byOp["create"])
	assert.Equal(t, int64(2), byOp["query"])

	hist, ok := metrics["db_query_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	assert.NotEmpty(t, hist.DataPoints)
	_, slow := metrics["db_slow_query_total"]
	assert.False(t, slow)
}

func TestInstrumentDB_SlowQueries(t *testing.T) {
	db, reader := instrumentedDB(t, telemetry.DBConfig{SlowQueryThreshold: 1})

	require.NoError(t, db.Create(&instrumentedRow{State: "IN_PRODUCTION"}).Error)

	sum, ok := collect(t, reader)["db_slow_query_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.NotEmpty(t, sum.DataPoints)
	op, _ := sum.DataPoints[0].Attributes.Value(telemetry.AttrDBOperation)
	assert.Equal(t, "create", op.AsString())
}

func TestInstrumentDB_PoolGauges(t *testing.T) {
	_, reader := instrumentedDB(t, telemetry.DBConfig{})

	gauge, ok := collect(t, reader)["db_pool_connections"].Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	states := map[string]bool{}
	for _, dp := range gauge.DataPoints {
		v, _ := dp.Attributes.Value(telemetry.AttrDBState)
		states[v.AsString()] = true
	}
	assert.Equal(t, map[string]bool{"in_use": true, "idle": true, "max": true}, states)
}

func TestInstrumentDB_Tracing(t *testing.T) {
	recorder := recordSpans(t)
	db, _ := instrumentedDB(t, telemetry.DBConfig{TracingEnabled: true})

	require.NoError(t, db.WithContext(context.Background()).Create(&instrumentedRow{State: "DRAFT"}).Error)

	spans := recorder.Ended()
	require.NotEmpty(t, spans)
	assert.Equal(t, trace.SpanKindClient, spans[len(spans)-1].SpanKind())
}
