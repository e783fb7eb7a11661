package metrics

import (
	nethttp "net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics aggregates the server-wide counters. All methods are safe for
// concurrent use, a nil *Metrics disables collection entirely.
type Metrics struct {
	registry *prometheus.Registry

	connectionsAccepted prometheus.Counter
	requestsServed      prometheus.Counter
	parseErrors         *prometheus.CounterVec
	proxyPreambles      prometheus.Counter
	requestDuration     prometheus.Histogram
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		connectionsAccepted: factory.NewCounter(prometheus.CounterOpts{
			Name: "cowboy_connections_accepted_total",
			Help: "Number of accepted client connections.",
		}),
		requestsServed: factory.NewCounter(prometheus.CounterOpts{
			Name: "cowboy_requests_served_total",
			Help: "Number of requests that got a response.",
		}),
		parseErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cowboy_parse_errors_total",
			Help: "Number of malformed requests, by response status.",
		}, []string{"status"}),
		proxyPreambles: factory.NewCounter(prometheus.CounterOpts{
			Name: "cowboy_proxy_preambles_total",
			Help: "Number of connections that carried a PROXY protocol preamble.",
		}),
		requestDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "cowboy_request_duration_seconds",
			Help:    "Time from the first request byte to the flushed response.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) ConnectionAccepted() {
	if m != nil {
		m.connectionsAccepted.Inc()
	}
}

func (m *Metrics) RequestServed(seconds float64) {
	if m != nil {
		m.requestsServed.Inc()
		m.requestDuration.Observe(seconds)
	}
}

func (m *Metrics) ParseError(status string) {
	if m != nil {
		m.parseErrors.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) ProxyPreamble() {
	if m != nil {
		m.proxyPreambles.Inc()
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() nethttp.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
