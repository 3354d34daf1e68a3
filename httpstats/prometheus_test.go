package httpstats

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusExposerScenario(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := New("", NewPrometheusExposer(reg))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	defer r.Close()

	r.RecordBackend(204)
	r.RecordBackend(404)
	r.RecordBackend(404)
	r.RecordFrontend(301)
	r.RecordFrontend(700) // dropped

	expected := `
# HELP httpstats_backend_resp_2xx_total 2xx responses (successful)
# TYPE httpstats_backend_resp_2xx_total counter
httpstats_backend_resp_2xx_total{instance="default",segment="httpstats.backend"} 1
# HELP httpstats_backend_resp_4xx_total 4xx responses (client errors)
# TYPE httpstats_backend_resp_4xx_total counter
httpstats_backend_resp_4xx_total{instance="default",segment="httpstats.backend"} 2
# HELP httpstats_frontend_resp_3xx_total 3xx responses (redirects)
# TYPE httpstats_frontend_resp_3xx_total counter
httpstats_frontend_resp_3xx_total{instance="default",segment="httpstats.frontend"} 1
# HELP httpstats_frontend_resp_5xx_total 5xx responses (server errors)
# TYPE httpstats_frontend_resp_5xx_total counter
httpstats_frontend_resp_5xx_total{instance="default",segment="httpstats.frontend"} 0
`
	err = testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"httpstats_backend_resp_2xx_total",
		"httpstats_backend_resp_4xx_total",
		"httpstats_frontend_resp_3xx_total",
		"httpstats_frontend_resp_5xx_total",
	)
	if err != nil {
		t.Errorf("Unexpected metrics: %v", err)
	}

	// Four counters per segment, never an "other" series
	count, err := testutil.GatherAndCount(reg)
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	if count != 8 {
		t.Errorf("Expected 8 series, got %d", count)
	}
}

func TestPrometheusExposerDuplicateInstance(t *testing.T) {
	reg := prometheus.NewRegistry()

	first, err := New("edge", NewPrometheusExposer(reg))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	defer first.Close()

	second, err := New("edge", NewPrometheusExposer(reg))
	if err == nil {
		second.Close()
		t.Fatal("Expected error when publishing the same segment twice")
	}

	// A different instance name may share the registerer
	other, err := New("canary", NewPrometheusExposer(reg))
	if err != nil {
		t.Fatalf("Expected distinct instance to register, got %v", err)
	}
	defer other.Close()

	count, err := testutil.GatherAndCount(reg, "httpstats_backend_resp_2xx_total")
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected one series per instance, got %d", count)
	}
}

func TestPrometheusExposerUnpublishOnClose(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := New("", NewPrometheusExposer(reg))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if err := r.Close(); err != nil {
		t.Fatalf("Expected no error on close, got %v", err)
	}

	count, err := testutil.GatherAndCount(reg)
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected no series after close, got %d", count)
	}

	// The segment names are free again
	again, err := New("", NewPrometheusExposer(reg))
	if err != nil {
		t.Fatalf("Expected re-registration after close, got %v", err)
	}
	again.Close()
}

func TestPrometheusExposerRejectsDoublePublish(t *testing.T) {
	exp := NewPrometheusExposer(prometheus.NewRegistry())
	seg := newSegment(BackendSegment, "backend", DefaultInstance, newCounterGroup())

	if err := exp.Publish(seg); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if err := exp.Publish(seg); err == nil {
		t.Error("Expected error on second publish of the same segment")
	}
	if err := exp.Unpublish(seg); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	// Unknown segments are ignored
	if err := exp.Unpublish(seg); err != nil {
		t.Errorf("Expected nil for unknown segment, got %v", err)
	}
}
