// Package metrics exposes the server's Prometheus collectors on a private
// registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "habitual"

// Toggle outcomes
const (
	OutcomeOK        = "ok"
	OutcomeInvalid   = "invalid"
	OutcomeForbidden = "forbidden"
	OutcomeNotFound  = "not_found"
	OutcomeError     = "error"
)

// Metrics holds the collectors of one server instance
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	toggles      *prometheus.CounterVec
	rateLimited  prometheus.Counter
	suspicious   prometheus.Counter
}

// New creates the collectors and registers them with Go and process collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests handled.",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests.",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
			},
			[]string{"method", "route"},
		),
		toggles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "habits",
				Name:      "toggles_total",
				Help:      "Habit entry toggles by outcome.",
			},
			[]string{"outcome"},
		),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		}),
		suspicious: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "suspicious_requests_total",
			Help:      "Requests flagged as suspicious.",
		}),
	}

	m.registry.MustRegister(
		m.httpRequests,
		m.httpDuration,
		m.toggles,
		m.rateLimited,
		m.suspicious,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the private registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler exposing the registered metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one finished request. The route label is the
// matched mux pattern so cardinality stays bounded.
func (m *Metrics) ObserveRequest(r *http.Request, status int, elapsed time.Duration) {
	route := r.Pattern
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())
}

// Toggle counts a toggle attempt by outcome
func (m *Metrics) Toggle(outcome string) {
	m.toggles.WithLabelValues(outcome).Inc()
}

// RateLimited counts a rejected request
func (m *Metrics) RateLimited() {
	m.rateLimited.Inc()
}

// Suspicious counts a flagged request
func (m *Metrics) Suspicious() {
	m.suspicious.Inc()
}

// GaugeFunc registers a gauge sampled from fn at scrape time
func (m *Metrics) GaugeFunc(subsystem, name, help string, fn func() float64) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, fn))
}
