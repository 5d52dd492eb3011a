// Package metrics exposes Prometheus instrumentation for the daemon.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mural"

// Metrics holds the daemon's collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	ops          *prometheus.CounterVec
	opDuration   *prometheus.HistogramVec
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	relayed      *prometheus.CounterVec
	social       *prometheus.CounterVec
}

// New creates and registers every collector, plus the Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ops: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "protocol",
				Name:      "operations_total",
				Help:      "Protocol operations by name and outcome (ok or error kind).",
			},
			[]string{"op", "outcome"},
		),
		opDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "protocol",
				Name:      "operation_duration_seconds",
				Help:      "Protocol operation latency in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total HTTP requests.",
			},
			[]string{"method", "path", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		relayed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "relay",
				Name:      "events_total",
				Help:      "Ledger events forwarded to the message broker, by kind and result.",
			},
			[]string{"kind", "result"},
		),
		social: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "social",
				Name:      "requests_total",
				Help:      "Social service calls by method and whether they degraded.",
			},
			[]string{"method", "degraded"},
		),
	}

	m.registry.MustRegister(
		m.ops, m.opDuration, m.httpRequests, m.httpDuration, m.relayed, m.social,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordOperation counts one protocol operation. outcome is "ok" or an error kind.
func (m *Metrics) RecordOperation(op, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.ops.WithLabelValues(op, outcome).Inc()
	m.opDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordHTTPRequest counts one served request. path is the route pattern, not the raw URL.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	statusLabel := strconv.Itoa(status)
	m.httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	m.httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

// RecordRelay counts one event forwarded (or dropped) by the relay.
func (m *Metrics) RecordRelay(kind string, ok bool) {
	if m == nil {
		return
	}
	result := "published"
	if !ok {
		result = "failed"
	}
	m.relayed.WithLabelValues(kind, result).Inc()
}

// RecordSocial counts one social service call.
func (m *Metrics) RecordSocial(method string, degraded bool) {
	if m == nil {
		return
	}
	m.social.WithLabelValues(method, strconv.FormatBool(degraded)).Inc()
}
