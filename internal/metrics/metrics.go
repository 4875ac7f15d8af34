// Package metrics exposes Prometheus collectors for the router, sessions,
// tool calls, the catalog client and the scrape pipeline. A *Metrics
// satisfies every observer interface those packages declare.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "learncatalog"

type Metrics struct {
	registry *prometheus.Registry

	messages       *prometheus.CounterVec
	messageSeconds *prometheus.HistogramVec

	sessionsOpened prometheus.Counter
	sessionsClosed *prometheus.CounterVec
	sessionsLive   prometheus.Gauge

	toolCalls   *prometheus.CounterVec
	toolSeconds *prometheus.HistogramVec

	catalogResponses *prometheus.CounterVec
	catalogSeconds   prometheus.Histogram

	fetchInFlight prometheus.Gauge
	fetches       *prometheus.CounterVec
	fetchSeconds  prometheus.Histogram
}

// New builds the collectors on a private registry, together with the Go and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "mcp", Name: "messages_total",
			Help: "JSON-RPC messages handled, by method, kind and outcome.",
		}, []string{"method", "kind", "outcome"}),
		messageSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "mcp", Name: "message_duration_seconds",
			Help:    "Time spent handling a JSON-RPC message.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		sessionsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "session", Name: "opened_total",
			Help: "Sessions created.",
		}),
		sessionsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "session", Name: "closed_total",
			Help: "Sessions removed, by reason.",
		}, []string{"reason"}),
		sessionsLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "session", Name: "live",
			Help: "Sessions currently reachable.",
		}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "tools", Name: "calls_total",
			Help: "Tool invocations, by tool and outcome.",
		}, []string{"tool", "outcome"}),
		toolSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "tools", Name: "call_duration_seconds",
			Help:    "Tool invocation latency.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"tool"}),
		catalogResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "catalog", Name: "responses_total",
			Help: "Upstream catalog responses, by HTTP status (0 for transport failures).",
		}, []string{"status"}),
		catalogSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "catalog", Name: "request_duration_seconds",
			Help:    "Upstream catalog latency.",
			Buckets: prometheus.DefBuckets,
		}),
		fetchInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "scraper", Name: "fetches_in_flight",
			Help: "Unit page fetches currently admitted.",
		}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "scraper", Name: "fetches_total",
			Help: "Unit page fetches, by result.",
		}, []string{"result"}),
		fetchSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "scraper", Name: "fetch_duration_seconds",
			Help:    "Unit page fetch and extract latency.",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 20, 40},
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.messages, m.messageSeconds,
		m.sessionsOpened, m.sessionsClosed, m.sessionsLive,
		m.toolCalls, m.toolSeconds,
		m.catalogResponses, m.catalogSeconds,
		m.fetchInFlight, m.fetches, m.fetchSeconds,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) MessageHandled(method, kind, outcome string, elapsed time.Duration) {
	if kind == "" {
		kind = "invalid"
	}
	m.messages.WithLabelValues(method, kind, outcome).Inc()
	m.messageSeconds.WithLabelValues(method).Observe(elapsed.Seconds())
}

func (m *Metrics) SessionOpened() {
	m.sessionsOpened.Inc()
	m.sessionsLive.Inc()
}

func (m *Metrics) SessionClosed(reason string) {
	m.sessionsClosed.WithLabelValues(reason).Inc()
	m.sessionsLive.Dec()
}

func (m *Metrics) ToolCalled(name, outcome string, elapsed time.Duration) {
	m.toolCalls.WithLabelValues(name, outcome).Inc()
	m.toolSeconds.WithLabelValues(name).Observe(elapsed.Seconds())
}

func (m *Metrics) CatalogResponse(status int, elapsed time.Duration) {
	m.catalogResponses.WithLabelValues(strconv.Itoa(status)).Inc()
	m.catalogSeconds.Observe(elapsed.Seconds())
}

func (m *Metrics) FetchStarted() { m.fetchInFlight.Inc() }

func (m *Metrics) FetchFinished(result string, elapsed time.Duration) {
	m.fetchInFlight.Dec()
	m.fetches.WithLabelValues(result).Inc()
	m.fetchSeconds.Observe(elapsed.Seconds())
}
