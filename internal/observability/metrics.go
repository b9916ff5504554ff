// Package observability holds the Prometheus collectors for the live feed,
// session storage, alert fan-out and upstream calls.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "microsafety"

// Metrics holds the Prometheus counters and gauges for the service.
type Metrics struct {
	// Feed connection lifecycle.
	FeedConnected   prometheus.Gauge
	FeedConnects    prometheus.Counter
	FeedDisconnects prometheus.Counter
	FeedDialErrors  prometheus.Counter

	// Feed payloads.
	FeedMessages     prometheus.Counter
	FeedDecodeErrors prometheus.Counter
	FeedTick         prometheus.Gauge

	// Session storage writes. labels: record={answers,transcript}, outcome={ok,error,dropped}
	StoreWrites *prometheus.CounterVec

	// Alert fan-out. labels: severity
	AlertsPublished *prometheus.CounterVec

	// Upstream REST calls. labels: operation, outcome={ok,error}
	UpstreamRequests *prometheus.CounterVec

	registry *prometheus.Registry
}

func newMetrics() *Metrics {
	return &Metrics{
		FeedConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feed_connected",
			Help:      "1 while a feed connection is open, 0 otherwise.",
		}),
		FeedConnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_connects_total",
			Help:      "Feed connections successfully opened.",
		}),
		FeedDisconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_disconnects_total",
			Help:      "Feed connections lost or closed by the origin.",
		}),
		FeedDialErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_dial_errors_total",
			Help:      "Feed connection attempts that failed before opening.",
		}),
		FeedMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_messages_total",
			Help:      "Snapshots decoded and published to observers.",
		}),
		FeedDecodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_decode_errors_total",
			Help:      "Feed payloads dropped because they failed schema validation.",
		}),
		FeedTick: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feed_tick",
			Help:      "Tick counter of the latest published snapshot.",
		}),
		StoreWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_store_writes_total",
			Help:      "Session record writes by record kind and outcome.",
		}, []string{"record", "outcome"}),
		AlertsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_published_total",
			Help:      "Newly active alerts forwarded to the alert sink.",
		}, []string{"severity"}),
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Calls to the feed origin REST endpoints by operation and outcome.",
		}, []string{"operation", "outcome"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.FeedConnected,
		m.FeedConnects,
		m.FeedDisconnects,
		m.FeedDialErrors,
		m.FeedMessages,
		m.FeedDecodeErrors,
		m.FeedTick,
		m.StoreWrites,
		m.AlertsPublished,
		m.UpstreamRequests,
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	m := newMetrics()
	m.registry = prometheus.NewRegistry()
	m.registry.MustRegister(m.collectors()...)
	return m
}

// Handler serves the registry these metrics were registered with.
func (m *Metrics) Handler() http.Handler {
	if m.registry != nil {
		return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	}
	return promhttp.Handler()
}
