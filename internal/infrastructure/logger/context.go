package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type scopeKey struct{}

// scope is the request-level state the HTTP middleware attaches
type scope struct {
	logger    *zap.Logger
	requestID string
	actorID   string
	actorRole string
}

func scopeOf(ctx context.Context) scope {
	s, _ := ctx.Value(scopeKey{}).(scope)
	return s
}

func (s scope) attach(ctx context.Context) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

// FromContext returns the request logger, or a no-op logger
func FromContext(ctx context.Context) *zap.Logger {
	if l := scopeOf(ctx).logger; l != nil {
		return l
	}
	return zap.NewNop()
}

// WithRequestID stores the request ID and a logger carrying it
func WithRequestID(ctx context.Context, logger *zap.Logger, requestID string) (context.Context, *zap.Logger) {
	s := scopeOf(ctx)
	s.requestID = requestID
	s.logger = logger.With(zap.String("request_id", requestID))
	return s.attach(ctx), s.logger
}

// WithActor records who is acting on the request
func WithActor(ctx context.Context, logger *zap.Logger, actorID, role string) (context.Context, *zap.Logger) {
	s := scopeOf(ctx)
	s.actorID, s.actorRole = actorID, role
	s.logger = logger.With(zap.String("actor_id", actorID), zap.String("actor_role", role))
	return s.attach(ctx), s.logger
}

func GetRequestID(ctx context.Context) string { return scopeOf(ctx).requestID }
func GetActorID(ctx context.Context) string   { return scopeOf(ctx).actorID }
func GetActorRole(ctx context.Context) string { return scopeOf(ctx).actorRole }

// GetTraceID returns the active span's trace ID, or ""
func GetTraceID(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		return sc.TraceID().String()
	}
	return ""
}

// For decorates base with the correlation fields ctx carries. Components
// that hold their own named logger use it so their entries still join up
// with the request and trace that caused them.
//
//	logger.For(ctx, s.logger).Info("Order submitted", zap.String("order_number", n))
func For(ctx context.Context, base *zap.Logger) *zap.Logger {
	if base == nil {
		base = zap.NewNop()
	}
	s := scopeOf(ctx)
	fields := make([]zap.Field, 0, 5)
	for _, f := range []struct{ key, val string }{
		{"request_id", s.requestID},
		{"actor_id", s.actorID},
		{"actor_role", s.actorRole},
	} {
		if f.val != "" {
			fields = append(fields, zap.String(f.key, f.val))
		}
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}
