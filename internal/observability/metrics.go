package observability

import (
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yungbote/chatrelay-backend/internal/platform/logger"
)

// Metrics is nil-safe: every method is a no-op on a nil receiver so callers
// never branch on whether metrics are enabled.
type Metrics struct {
	registry *prometheus.Registry

	apiRequests *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec
	apiInflight prometheus.Gauge

	liveConnections prometheus.Gauge
	relayDelivered  *prometheus.CounterVec
	relayFailed     *prometheus.CounterVec
	relayNoViewers  *prometheus.CounterVec
	callbacks       *prometheus.CounterVec
	reaped          prometheus.Counter
	generation      *prometheus.HistogramVec
	chunkStoreError *prometheus.CounterVec
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	v := strings.TrimSpace(os.Getenv("METRICS_ENABLED"))
	if v == "" {
		return true
	}
	return strings.EqualFold(v, "true") || v == "1" || strings.EqualFold(v, "yes")
}

func Current() *Metrics {
	return instance
}

// Init builds the process-wide metrics set once. Returns nil when METRICS_ENABLED is false.
func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		instance = New(prometheus.NewRegistry())
		if log != nil {
			log.Info("Prometheus metrics enabled")
		}
	})
	return instance
}

// New registers a fresh metric set on reg.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: reg,
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cr_api_requests_total",
			Help: "Total API requests by method/route/status.",
		}, []string{"method", "route", "status"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cr_api_request_duration_seconds",
			Help:    "API request latency in seconds by method/route/status.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"method", "route", "status"}),
		apiInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cr_api_inflight_requests",
			Help: "In-flight API requests.",
		}),
		liveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cr_live_connections",
			Help: "Currently registered live connections.",
		}),
		relayDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cr_relay_deliveries_total",
			Help: "Relay events delivered to a live connection by event type.",
		}, []string{"event"}),
		relayFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cr_relay_delivery_failures_total",
			Help: "Relay sends that failed on a live connection by event type.",
		}, []string{"event"}),
		relayNoViewers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cr_relay_no_viewers_total",
			Help: "Relay events published to a key with no registered connections.",
		}, []string{"event"}),
		callbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cr_callbacks_total",
			Help: "Generation callbacks by outcome.",
		}, []string{"outcome"}),
		reaped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cr_reaped_connections_total",
			Help: "Live connections force-closed for inactivity.",
		}),
		generation: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cr_generation_dispatch_duration_seconds",
			Help:    "Outbound generation request latency by outcome.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"outcome"}),
		chunkStoreError: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cr_chunk_store_errors_total",
			Help: "Chunk store failures by operation.",
		}, []string{"op"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.liveConnections, m.relayDelivered, m.relayFailed, m.relayNoViewers,
		m.callbacks, m.reaped, m.generation, m.chunkStoreError,
	)
	return m
}

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	if status == "" {
		status = "0"
	}
	m.apiRequests.WithLabelValues(method, route, status).Inc()
	m.apiLatency.WithLabelValues(method, route, status).Observe(dur.Seconds())
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) LiveConnectionOpened() {
	if m == nil {
		return
	}
	m.liveConnections.Inc()
}

func (m *Metrics) LiveConnectionClosed() {
	if m == nil {
		return
	}
	m.liveConnections.Dec()
}

func (m *Metrics) IncRelayDelivered(event string) {
	if m == nil {
		return
	}
	m.relayDelivered.WithLabelValues(event).Inc()
}

func (m *Metrics) IncRelayFailed(event string) {
	if m == nil {
		return
	}
	m.relayFailed.WithLabelValues(event).Inc()
}

func (m *Metrics) IncRelayNoViewers(event string) {
	if m == nil {
		return
	}
	m.relayNoViewers.WithLabelValues(event).Inc()
}

func (m *Metrics) IncCallback(outcome string) {
	if m == nil {
		return
	}
	m.callbacks.WithLabelValues(outcome).Inc()
}

func (m *Metrics) AddReaped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.reaped.Add(float64(n))
}

func (m *Metrics) ObserveGeneration(outcome string, dur time.Duration) {
	if m == nil {
		return
	}
	m.generation.WithLabelValues(outcome).Observe(dur.Seconds())
}

func (m *Metrics) IncChunkStoreError(op string) {
	if m == nil {
		return
	}
	m.chunkStoreError.WithLabelValues(op).Inc()
}
