package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func bufferLogger() (*zap.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.AddSync(&buf),
		zapcore.DebugLevel,
	)
	return zap.New(core), &buf
}

func lastEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &entry))
	return entry
}

func sampledSpanContext(t *testing.T) context.Context {
	t.Helper()
	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	return trace.ContextWithSpanContext(context.Background(), sc)
}

func TestFromContext(t *testing.T) {
	base, _ := bufferLogger()
	ctx, l := WithRequestID(context.Background(), base, "req-1")
	assert.Same(t, l, FromContext(ctx))

	assert.NotNil(t, FromContext(context.Background()))
	assert.NotPanics(t, func() { FromContext(context.Background()).Info("ignored") })
}

func TestWithRequestID(t *testing.T) {
	base, buf := bufferLogger()

	ctx, l := WithRequestID(context.Background(), base, "req-123")
	l.Info("hello")

	assert.Equal(t, "req-123", GetRequestID(ctx))
	assert.Equal(t, "req-123", lastEntry(t, buf)["request_id"])
	assert.Empty(t, GetRequestID(context.Background()))
}

func TestWithActor_KeepsRequestID(t *testing.T) {
	base, buf := bufferLogger()

	ctx, l := WithRequestID(context.Background(), base, "req-9")
	ctx, l = WithActor(ctx, l, "3f1c2a6e-0000-4000-8000-000000000001", "buyer")
	l.Info("hello")

	assert.Equal(t, "req-9", GetRequestID(ctx))
	assert.Equal(t, "3f1c2a6e-0000-4000-8000-000000000001", GetActorID(ctx))
	assert.Equal(t, "buyer", GetActorRole(ctx))
	entry := lastEntry(t, buf)
	assert.Equal(t, "buyer", entry["actor_role"])
	assert.Equal(t, "req-9", entry["request_id"])
	assert.Empty(t, GetActorID(context.Background()))
}

func TestGetTraceID(t *testing.T) {
	assert.Empty(t, GetTraceID(context.Background()))
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", GetTraceID(sampledSpanContext(t)))
}

func TestFor_AddsCorrelationFields(t *testing.T) {
	requestLog, _ := bufferLogger()
	ctx, _ := WithRequestID(sampledSpanContext(t), requestLog, "req-aaa")
	ctx, _ = WithActor(ctx, requestLog, "actor-bbb", "manufacturer")

	component, buf := bufferLogger()
	For(ctx, component).With(zap.String("order_number", "LR-000007")).Warn("qc rejected")

	entry := lastEntry(t, buf)
	assert.Equal(t, "qc rejected", entry["msg"])
	assert.Equal(t, "req-aaa", entry["request_id"])
	assert.Equal(t, "actor-bbb", entry["actor_id"])
	assert.Equal(t, "manufacturer", entry["actor_role"])
	assert.Equal(t, "LR-000007", entry["order_number"])
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", entry["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", entry["span_id"])
}

func TestFor_BareContext(t *testing.T) {
	base, buf := bufferLogger()

	assert.Same(t, base, For(context.Background(), base))
	For(context.Background(), base).Info("bare")

	entry := lastEntry(t, buf)
	for _, key := range []string{"request_id", "actor_id", "actor_role", "trace_id", "span_id"} {
		assert.NotContains(t, entry, key)
	}
	assert.NotPanics(t, func() { For(context.Background(), nil).Error("nil base") })
}
