package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestAllocationMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveAllocation(1, false)
	m.ObserveAllocation(2, false)
	m.ObserveAllocation(10, true)
	m.IncWriteConflict()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got := counterValue(t, mfs, "evidenca_code_allocations_total", "kind", "regular"); got != 2 {
		t.Errorf("expected 2 regular allocations, got %f", got)
	}
	if got := counterValue(t, mfs, "evidenca_code_allocations_total", "kind", "fallback"); got != 1 {
		t.Errorf("expected 1 fallback allocation, got %f", got)
	}
	if got := counterValue(t, mfs, "evidenca_code_write_conflicts_total", "", ""); got != 1 {
		t.Errorf("expected 1 conflict, got %f", got)
	}

	h := findFamily(mfs, "evidenca_code_allocation_attempts").GetMetric()[0].GetHistogram()
	if h.GetSampleCount() != 3 || h.GetSampleSum() != 13 {
		t.Errorf("expected 3 samples summing to 13, got %d and %f", h.GetSampleCount(), h.GetSampleSum())
	}
}

func TestRequestAndSearchMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveSearch("search", 20*time.Millisecond)
	m.ObserveSearch("", time.Millisecond)
	m.ObserveRequest("GET", "GET /api/items", 200, 5*time.Millisecond)
	m.ObserveRequest("GET", "GET /api/items", 200, 5*time.Millisecond)
	m.ObserveRequest("POST", "POST /api/items", 201, 5*time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got := counterValue(t, mfs, "evidenca_http_requests_total", "status", "200"); got != 2 {
		t.Errorf("expected 2 requests with status 200, got %f", got)
	}
	searches := findFamily(mfs, "evidenca_search_duration_seconds")
	if searches == nil || len(searches.GetMetric()) != 2 {
		t.Fatalf("expected search histograms for two ops")
	}
	for _, metric := range searches.GetMetric() {
		if matchesLabel(metric.GetLabel(), "op", "unknown") {
			return
		}
	}
	t.Error("expected empty op to be recorded as unknown")
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.ObserveAllocation(1, false)
	m.IncWriteConflict()
	m.ObserveSearch("search", time.Second)
	m.ObserveRequest("GET", "/", 200, time.Second)

	unregistered := New(nil)
	unregistered.ObserveAllocation(1, true)
	unregistered.ObserveRequest("GET", "/", 200, time.Second)
}

func counterValue(t *testing.T, mfs []*dto.MetricFamily, name, label, value string) float64 {
	t.Helper()
	mf := findFamily(mfs, name)
	if mf == nil {
		t.Fatalf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if label == "" || matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %q missing label %s=%s", name, label, value)
	return 0
}

func findFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, lp := range labels {
		if lp.GetName() == name && lp.GetValue() == value {
			return true
		}
	}
	return false
}
