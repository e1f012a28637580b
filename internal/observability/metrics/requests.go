// Package metrics emits the standard request and session metrics.
package metrics

import (
	"strconv"
	"time"

	obserrors "github.com/target/promptopt-client/internal/observability/errors"
	"github.com/target/promptopt-client/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultBusy    = "busy"
)

// KindOK tags successful requests in place of an error kind.
const KindOK = "ok"

// RequestMetric captures one pipeline request for metric emission.
type RequestMetric struct {
	Method   string
	Endpoint string
	Kind     string
	Status   int
	Attempts int
	Duration time.Duration
}

// EmitRequest emits `api.request` and `api.request.duration`.
func EmitRequest(sink statsd.Sink, in RequestMetric) {
	if sink == nil {
		return
	}

	kind := in.Kind
	if kind == "" {
		kind = KindOK
	}
	tags := map[string]string{
		"method":   in.Method,
		"endpoint": in.Endpoint,
		"kind":     kind,
		"status":   strconv.Itoa(in.Status),
	}

	sink.Count("api.request", 1, tags)
	if in.Attempts > 1 {
		sink.Count("api.request.retries", int64(in.Attempts-1), CloneTags(tags))
	}
	if in.Duration > 0 {
		sink.Timing("api.request.duration", in.Duration, CloneTags(tags))
	}
}

// SessionMetric captures a session operation for metric emission.
type SessionMetric struct {
	Operation string
	Result    string
	Duration  time.Duration
	Err       error
}

// EmitSession emits `session.operation` and `session.operation.duration`.
func EmitSession(sink statsd.Sink, in SessionMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"operation": in.Operation,
		"result":    in.Result,
	}
	if in.Err != nil && in.Result == ResultError {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("session.operation", 1, tags)
	if in.Duration > 0 {
		sink.Timing("session.operation.duration", in.Duration, CloneTags(tags))
	}
}

// EmitNotifications records the number of visible notifications.
func EmitNotifications(sink statsd.Sink, active int) {
	if sink == nil {
		return
	}
	sink.Gauge("notifications.active", float64(active), nil)
}

// CloneTags creates a shallow copy of a tag map.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
