// Package observe provides the observability primitives used by llamachat:
// OpenTelemetry metrics, tracing, trace-aware slog loggers and an HTTP client
// transport that ties them together for outbound API calls.
//
// Metrics are recorded through the OpenTelemetry Metrics API. [InitProvider]
// installs a Prometheus exporter bridge so a process can serve them on
// /metrics. A package-level [DefaultMetrics] instance bound to the global
// meter provider is available; tests should use [NewMetrics] with their own
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all llamachat metrics.
const meterName = "github.com/thearyanag/llamachat"

// Status values used on counters.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Metrics holds all OpenTelemetry metric instruments of the SDK. All fields
// are safe for concurrent use.
type Metrics struct {
	// ChatDuration tracks the latency of a whole Chat turn, function
	// dispatch included. Attribute: "outcome" (reply, function, error).
	ChatDuration metric.Float64Histogram

	// LLMDuration tracks backend completion latency. Attribute: "provider".
	LLMDuration metric.Float64Histogram

	// FunctionDuration tracks registered function execution latency.
	// Attribute: "function".
	FunctionDuration metric.Float64Histogram

	// ProviderRequests counts backend calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("model", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts backend failures. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	// where kind is "transport" or "parse".
	ProviderErrors metric.Int64Counter

	// FunctionCalls counts function invocations. Use with attributes:
	//   attribute.String("function", ...), attribute.String("status", ...)
	FunctionCalls metric.Int64Counter

	// HTTPClientDuration tracks outbound HTTP round trips. Use with attributes:
	//   attribute.String("method", ...), attribute.String("host", ...), attribute.Int("status", ...)
	HTTPClientDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for remote
// model calls, which range from sub-second for 1B models to tens of seconds
// for long 70B completions.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider].
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.ChatDuration, err = m.Float64Histogram("llamachat.chat.duration",
		metric.WithDescription("Latency of a chat turn including function dispatch."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.LLMDuration, err = m.Float64Histogram("llamachat.llm.duration",
		metric.WithDescription("Latency of LLM completion requests."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.FunctionDuration, err = m.Float64Histogram("llamachat.function.duration",
		metric.WithDescription("Latency of registered function execution."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.ProviderRequests, err = m.Int64Counter("llamachat.provider.requests",
		metric.WithDescription("Total LLM provider requests by provider, model, and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("llamachat.provider.errors",
		metric.WithDescription("Total LLM provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.FunctionCalls, err = m.Int64Counter("llamachat.function.calls",
		metric.WithDescription("Total function invocations by function name and status."),
	); err != nil {
		return nil, err
	}

	if met.HTTPClientDuration, err = m.Float64Histogram("llamachat.http.client.duration",
		metric.WithDescription("Outbound HTTP round-trip latency by method, host, and status."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Panics if instrument creation
// fails (should not happen with the global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordProviderRequest records one backend call with its outcome.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, model, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("model", model),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError records one backend failure of the given kind.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordFunctionCall records one function invocation with its outcome.
func (m *Metrics) RecordFunctionCall(ctx context.Context, function, status string) {
	m.FunctionCalls.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("function", function),
			attribute.String("status", status),
		),
	)
}
