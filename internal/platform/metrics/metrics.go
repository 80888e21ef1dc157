// Package metrics exposes Prometheus collectors for the storefront.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cardshop"

// Metrics groups every collector the application records.
type Metrics struct {
	registry *prometheus.Registry

	Requests  *prometheus.CounterVec
	LatencyMS *prometheus.HistogramVec

	Checkouts      *prometheus.CounterVec
	CheckoutTimeMS prometheus.Histogram
	Lifecycle      *prometheus.CounterVec

	PriceCacheLookups *prometheus.CounterVec
	RateSyncs         *prometheus.CounterVec
	ObserverFailures  *prometheus.CounterVec
}

// New registers the collectors on a private registry so tests can build
// as many instances as they like.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"handler", "status"}),
		LatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"handler"}),
		Checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "checkouts_total",
			Help:      "Order placement attempts by outcome.",
		}, []string{"outcome"}),
		CheckoutTimeMS: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "checkout_duration_ms",
			Help:      "Order placement latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		}),
		Lifecycle: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "lifecycle_transitions_total",
			Help:      "Order lifecycle operations by kind and outcome.",
		}, []string{"operation", "outcome"}),
		PriceCacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "price_override_lookups_total",
			Help:      "Price override lookups by result.",
		}, []string{"result"}),
		RateSyncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "rate_syncs_total",
			Help:      "Exchange-rate feed sync attempts by outcome.",
		}, []string{"outcome"}),
		ObserverFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "handler_failures_total",
			Help:      "Post-commit event handler failures by event type.",
		}, []string{"event_type"}),
	}

	m.registry.MustRegister(
		m.Requests, m.LatencyMS,
		m.Checkouts, m.CheckoutTimeMS, m.Lifecycle,
		m.PriceCacheLookups, m.RateSyncs, m.ObserverFailures,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveCheckout records one placement attempt.
func (m *Metrics) ObserveCheckout(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Checkouts.WithLabelValues(outcome).Inc()
	m.CheckoutTimeMS.Observe(float64(elapsed.Milliseconds()))
}

// ObserveLifecycle records one cancel, refund or status update.
func (m *Metrics) ObserveLifecycle(operation, outcome string) {
	if m == nil {
		return
	}
	m.Lifecycle.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) ObservePriceLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.PriceCacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveRateSync(outcome string) {
	if m == nil {
		return
	}
	m.RateSyncs.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveHandlerFailure(eventType string) {
	if m == nil {
		return
	}
	m.ObserverFailures.WithLabelValues(eventType).Inc()
}

// Instrument counts requests and their latency per route pattern.
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		handler := r.Pattern
		if handler == "" {
			handler = "unmatched"
		}
		m.Requests.WithLabelValues(handler, strconv.Itoa(rec.status)).Inc()
		m.LatencyMS.WithLabelValues(handler).Observe(float64(time.Since(start).Milliseconds()))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
