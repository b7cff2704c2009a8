package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace       = "routeomatic"
	routeSubsystem  = "route"
	hostSubsystem   = "host"
	proxySubsystem  = "backend"
	engineSubsystem = "engine"
)

// Metrics collects the engine's Prometheus instrumentation: route
// table lookup latency and outcome, host table outcome, proxied
// backend latency and status class, and reconfiguration counts.
type Metrics struct {
	routeLookup   *prometheus.HistogramVec
	routeResult   *prometheus.CounterVec
	hostLookup    *prometheus.CounterVec
	proxyDuration *prometheus.HistogramVec
	proxyStatus   *prometheus.CounterVec
	reconfigures  *prometheus.CounterVec

	registry *prometheus.Registry
	handler  http.Handler
}

// New builds a Metrics instance registered against a fresh registry,
// so multiple engines in one process (e.g. in tests) don't collide on
// the default global registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		routeLookup: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: routeSubsystem,
			Name:      "lookup_duration_seconds",
			Help:      "Duration of a route table lookup.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"table_id", "match_type"}),

		routeResult: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: routeSubsystem,
			Name:      "result_total",
			Help:      "Route resolver outcomes.",
		}, []string{"table_id", "result"}),

		hostLookup: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: hostSubsystem,
			Name:      "lookup_total",
			Help:      "Host table lookups by outcome.",
		}, []string{"result"}),

		proxyDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: proxySubsystem,
			Name:      "duration_seconds",
			Help:      "Duration of a proxied upstream round trip.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"host"}),

		proxyStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: proxySubsystem,
			Name:      "responses_total",
			Help:      "Proxied responses by status class.",
		}, []string{"host", "code_class"}),

		reconfigures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: engineSubsystem,
			Name:      "reconfigures_total",
			Help:      "Reconfiguration attempts by outcome.",
		}, []string{"result"}),

		registry: reg,
	}

	reg.MustRegister(
		m.routeLookup, m.routeResult, m.hostLookup,
		m.proxyDuration, m.proxyStatus, m.reconfigures,
	)

	m.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	return m
}

// Handler exposes the registry over HTTP, meant for a support listener.
func (m *Metrics) Handler() http.Handler { return m.handler }

// MeasureRouteLookup records how long a route table lookup took.
func (m *Metrics) MeasureRouteLookup(tableID, matchType string, start time.Time) {
	m.routeLookup.WithLabelValues(tableID, matchType).Observe(time.Since(start).Seconds())
}

// CountRouteResult increments the resolver outcome counter ("hit" or "miss").
func (m *Metrics) CountRouteResult(tableID, result string) {
	m.routeResult.WithLabelValues(tableID, result).Inc()
}

// CountHostLookup increments the host table outcome counter ("hit",
// "wildcard" or "miss").
func (m *Metrics) CountHostLookup(result string) {
	m.hostLookup.WithLabelValues(result).Inc()
}

// MeasureProxy records the duration and status class of a proxied
// upstream round trip.
func (m *Metrics) MeasureProxy(host string, statusCode int, start time.Time) {
	m.proxyDuration.WithLabelValues(host).Observe(time.Since(start).Seconds())
	m.proxyStatus.WithLabelValues(host, codeClass(statusCode)).Inc()
}

// CountReconfigure increments the reconfiguration counter ("ok" or "error").
func (m *Metrics) CountReconfigure(result string) {
	m.reconfigures.WithLabelValues(result).Inc()
}

func codeClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	case code >= 200:
		return "2xx"
	default:
		return "other"
	}
}
