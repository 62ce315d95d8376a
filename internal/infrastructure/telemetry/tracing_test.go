package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/leorit/backend/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(previous) })
	return recorder
}

func attrMap(kvs []attribute.KeyValue) map[string]string {
	m := make(map[string]string, len(kvs))
	for _, kv := range kvs {
		m[string(kv.Key)] = kv.Value.Emit()
	}
	return m
}

func TestStartServiceSpan(t *testing.T) {
	recorder := recordSpans(t)
	orderID := uuid.New()

	_, span := telemetry.StartServiceSpan(context.Background(), "order", "decide_qc",
		telemetry.WithAttribute(telemetry.SpanAttrOrderID, orderID),
		telemetry.WithSpanKind(trace.SpanKindServer),
	)
	telemetry.SetAttributes(span,
		telemetry.SpanAttrOrderState, "SAMPLE_QC_PENDING",
		telemetry.SpanAttrAttempt, 2,
		42, "skipped",
	)
	telemetry.AddEvent(span, "qc_rejected", telemetry.SpanAttrQCStage, "sample")
	telemetry.SetOK(span)
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	got := spans[0]
	assert.Equal(t, "order.decide_qc", got.Name())
	assert.Equal(t, trace.SpanKindServer, got.SpanKind())
	assert.Equal(t, codes.Ok, got.Status().Code)
	assert.Equal(t, map[string]string{
		telemetry.SpanAttrOrderID:    orderID.String(),
		telemetry.SpanAttrOrderState: "SAMPLE_QC_PENDING",
		telemetry.SpanAttrAttempt:    "2",
	}, attrMap(got.Attributes()))
	require.Len(t, got.Events(), 1)
	assert.Equal(t, "qc_rejected", got.Events()[0].Name)
}

func TestRecordError(t *testing.T) {
	recorder := recordSpans(t)

	_, span := telemetry.StartSpan(context.Background(), "order.dispatch")
	telemetry.RecordError(span, nil)
	telemetry.RecordError(span, errors.New("GUARD_FAILED: bulk QC not approved"))
	span.End()

	got := recorder.Ended()[0]
	assert.Equal(t, codes.Error, got.Status().Code)
	assert.Equal(t, "GUARD_FAILED: bulk QC not approved", got.Status().Description)
	require.Len(t, got.Events(), 1)
	assert.Equal(t, "exception", got.Events()[0].Name)
}

func TestSpanHelpers_NilSpan(t *testing.T) {
	assert.NotPanics(t, func() {
		telemetry.SetAttributes(nil, "k", "v")
		telemetry.AddEvent(nil, "e")
		telemetry.RecordError(nil, errors.New("x"))
		telemetry.SetOK(nil)
	})
}
