package telemetry

import (
	"context"
	"maps"
	"slices"
	"strings"

	"github.com/grafana/pyroscope-go"
)

// Profiling label keys
const (
	ProfilingLabelRoute     = "route"
	ProfilingLabelMethod    = "method"
	ProfilingLabelActorRole = "actor_role"
	ProfilingLabelOperation = "operation"
	ProfilingLabelIntent    = "intent"
)

// MaxLabelValueLength caps label values to keep series small
const MaxLabelValueLength = 128

// HighCardinalityLabels are dropped from profiling labels. Orders, actors
// and requests are unbounded; roles, routes and intents are not.
var HighCardinalityLabels = map[string]bool{
	"actor_id":     true,
	"order_id":     true,
	"order_number": true,
	"request_id":   true,
	"trace_id":     true,
	"span_id":      true,
}

// WithProfilingLabels runs fn with pyroscope labels attached to the
// goroutine. The labels map is copied.
func WithProfilingLabels(ctx context.Context, labels map[string]string, fn func(context.Context)) {
	pairs := sanitizeLabels(maps.Clone(labels))
	if len(pairs) == 0 {
		fn(ctx)
		return
	}
	pyroscope.TagWrapper(ctx, pyroscope.Labels(pairs...), fn)
}

// sanitizeLabels drops empty and high-cardinality labels, normalizes keys to
// snake_case, truncates values and returns sorted key/value pairs
func sanitizeLabels(labels map[string]string) []string {
	if len(labels) == 0 {
		return nil
	}
	pairs := make([]string, 0, len(labels)*2)
	for _, key := range slices.Sorted(maps.Keys(labels)) {
		value := labels[key]
		key = sanitizeLabelKey(key)
		if key == "" || value == "" || HighCardinalityLabels[key] {
			continue
		}
		if len(value) > MaxLabelValueLength {
			value = value[:MaxLabelValueLength]
		}
		pairs = append(pairs, key, value)
	}
	return pairs
}

func sanitizeLabelKey(key string) string {
	key = strings.ToLower(key)
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			return r
		}
		return -1
	}, key)
}

// HTTPRequestLabels labels a request by route template, method and the
// caller's role
func HTTPRequestLabels(route, method, actorRole string) map[string]string {
	labels := make(map[string]string, 3)
	if route != "" {
		labels[ProfilingLabelRoute] = route
	}
	if method != "" {
		labels[ProfilingLabelMethod] = method
	}
	if actorRole != "" {
		labels[ProfilingLabelActorRole] = actorRole
	}
	return labels
}

// OperationLabels labels a lifecycle operation
func OperationLabels(operation string, extra map[string]string) map[string]string {
	labels := make(map[string]string, len(extra)+1)
	maps.Copy(labels, extra)
	labels[ProfilingLabelOperation] = operation
	return labels
}
