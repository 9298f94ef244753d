// Package metrics exports Prometheus counters for code allocation, search
// and HTTP traffic. A nil *Metrics is valid and records nothing.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "evidenca"

// Metrics groups the collectors used by the service and the API.
type Metrics struct {
	allocations   *prometheus.CounterVec
	attempts      prometheus.Histogram
	conflicts     prometheus.Counter
	searches      *prometheus.HistogramVec
	requests      *prometheus.CounterVec
	requestLength *prometheus.HistogramVec
}

// New registers the collectors on reg. A nil registerer yields a Metrics
// that drops every observation.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return &Metrics{}
	}
	m := &Metrics{
		allocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "code_allocations_total",
			Help:      "Code pairs allocated, by kind (regular or fallback).",
		}, []string{"kind"}),
		attempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "code_allocation_attempts",
			Help:      "Candidate pairs generated per allocation.",
			Buckets:   []float64{1, 2, 3, 5, 10},
		}),
		conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "code_write_conflicts_total",
			Help:      "Inserts rejected by a uniqueness constraint on a code.",
		}),
		searches: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Duration of search operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route pattern and status code.",
		}, []string{"method", "route", "status"}),
		requestLength: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
	reg.MustRegister(m.allocations, m.attempts, m.conflicts, m.searches, m.requests, m.requestLength)
	return m
}

// ObserveAllocation records one finished allocation.
func (m *Metrics) ObserveAllocation(attempts int, fallback bool) {
	if m == nil || m.allocations == nil {
		return
	}
	kind := "regular"
	if fallback {
		kind = "fallback"
	}
	m.allocations.WithLabelValues(kind).Inc()
	m.attempts.Observe(float64(attempts))
}

// IncWriteConflict counts an insert that lost a race for a code.
func (m *Metrics) IncWriteConflict() {
	if m == nil || m.conflicts == nil {
		return
	}
	m.conflicts.Inc()
}

// ObserveSearch records the duration of a search operation.
func (m *Metrics) ObserveSearch(op string, d time.Duration) {
	if m == nil || m.searches == nil {
		return
	}
	m.searches.WithLabelValues(label(op)).Observe(d.Seconds())
}

// ObserveRequest records a served HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if m == nil || m.requests == nil {
		return
	}
	route = label(route)
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestLength.WithLabelValues(route).Observe(d.Seconds())
}

func label(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
