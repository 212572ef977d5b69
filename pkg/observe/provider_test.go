package observe

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

// TestNewProvidersExportsToRegistry checks that instruments recorded through
// the meter provider show up on the Prometheus registerer.
func TestNewProvidersExportsToRegistry(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	p, err := NewProviders(context.Background(), ProviderConfig{Registerer: reg, ServiceVersion: "test"})
	if err != nil {
		t.Fatalf("NewProviders: %v", err)
	}
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	m, err := NewMetrics(p.Meter)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	m.RecordProviderRequest(context.Background(), "inference", "complete", "ok")

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	if !strings.Contains(strings.Join(names, " "), "llamachat_provider_requests") {
		t.Errorf("gathered families %v lack llamachat_provider_requests", names)
	}
}

func TestNewProvidersSampleRatio(t *testing.T) {
	t.Parallel()
	for _, ratio := range []float64{-0.1, 1.1} {
		if _, err := NewProviders(context.Background(), ProviderConfig{SampleRatio: ratio, Registerer: prometheus.NewRegistry()}); err == nil {
			t.Errorf("NewProviders(ratio %v) = nil error", ratio)
		}
	}

	p, err := NewProviders(context.Background(), ProviderConfig{SampleRatio: 0.5, Registerer: prometheus.NewRegistry()})
	if err != nil {
		t.Fatalf("NewProviders: %v", err)
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}
