package observe

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// transport instruments an [http.RoundTripper].
type transport struct {
	base    http.RoundTripper
	metrics *Metrics
}

// NewTransport wraps base so that every round trip:
//
//  1. Runs inside a client span named "HTTP <method>".
//  2. Carries the W3C trace context of that span in its request headers.
//  3. Records its latency to [Metrics.HTTPClientDuration].
//
// A nil base means [http.DefaultTransport]; nil m means [DefaultMetrics].
func NewTransport(base http.RoundTripper, m *Metrics) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	if m == nil {
		m = DefaultMetrics()
	}
	return &transport{base: base, metrics: m}
}

// InstrumentClient returns a shallow copy of hc whose transport is wrapped
// with [NewTransport]. A nil hc yields a new client with default settings.
func InstrumentClient(hc *http.Client, m *Metrics) *http.Client {
	var cp http.Client
	if hc != nil {
		cp = *hc
	}
	cp.Transport = NewTransport(cp.Transport, m)
	return &cp
}

// RoundTrip implements [http.RoundTripper].
func (t *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	ctx, span := StartSpan(req.Context(), "HTTP "+req.Method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.HTTPRequestMethodKey.String(req.Method),
			semconv.URLFull(redactedURL(req)),
			semconv.ServerAddress(req.URL.Hostname()),
		),
	)
	defer span.End()

	// RoundTrippers must not modify the caller's request.
	out := req.Clone(ctx)
	propagator().Inject(ctx, propagation.HeaderCarrier(out.Header))

	resp, err := t.base.RoundTrip(out)

	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	t.metrics.HTTPClientDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(
			attribute.String("method", req.Method),
			attribute.String("host", req.URL.Host),
			attribute.Int("status", status),
		),
	)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(semconv.HTTPResponseStatusCode(status))
	if status >= http.StatusBadRequest {
		span.SetStatus(codes.Error, http.StatusText(status))
	}
	return resp, nil
}

// propagator returns the globally configured propagator, falling back to W3C
// trace context when none was installed.
func propagator() propagation.TextMapPropagator {
	p := otel.GetTextMapPropagator()
	if len(p.Fields()) == 0 {
		return propagation.TraceContext{}
	}
	return p
}

// redactedURL drops credentials and the query string from the request URL.
func redactedURL(req *http.Request) string {
	u := *req.URL
	u.User = nil
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
