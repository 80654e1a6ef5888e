package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "churn"

// Metrics holds the Prometheus collectors of the service. Each instance owns
// its registry so tests can create as many as they need.
type Metrics struct {
	registry *prometheus.Registry

	predictions  *prometheus.CounterVec
	errors       *prometheus.CounterVec
	imputations  *prometheus.CounterVec
	latency      prometheus.Histogram
	cacheHits    prometheus.Counter
	cacheMisses  prometheus.Counter
	requests     *prometheus.CounterVec
	requestTime  *prometheus.HistogramVec
	wsClients    prometheus.Gauge
	publishFails prometheus.Counter
	auditFails   prometheus.Counter
}

// NewMetrics registers every collector on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Predictions served, by label and risk tier.",
		}, []string{"label", "tier"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prediction_errors_total",
			Help:      "Failed predictions, by error kind.",
		}, []string{"kind"}),
		imputations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "imputations_total",
			Help:      "Numeric fields replaced by their training median.",
		}, []string{"field"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prediction_duration_seconds",
			Help:      "Time spent running the inference pipeline.",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1},
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Predictions answered from the result cache.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Predictions that ran the pipeline.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests, by method, route and status code.",
		}, []string{"method", "route", "code"}),
		requestTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Connected prediction stream clients.",
		}),
		publishFails: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_publish_failures_total",
			Help:      "Assessments that could not be published to Kafka.",
		}),
		auditFails: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_failures_total",
			Help:      "Assessments that could not be written to the audit store.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.predictions, m.errors, m.imputations, m.latency,
		m.cacheHits, m.cacheMisses,
		m.requests, m.requestTime,
		m.wsClients, m.publishFails, m.auditFails,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObservePrediction counts a pipeline run and its imputations.
func (m *Metrics) ObservePrediction(label, tier string, imputed []string, d time.Duration) {
	m.predictions.WithLabelValues(label, tier).Inc()
	for _, field := range imputed {
		m.imputations.WithLabelValues(field).Inc()
	}
	m.latency.Observe(d.Seconds())
}

func (m *Metrics) ObserveError(kind string) {
	m.errors.WithLabelValues(kind).Inc()
}

func (m *Metrics) CacheHit()  { m.cacheHits.Inc() }
func (m *Metrics) CacheMiss() { m.cacheMisses.Inc() }

func (m *Metrics) PublishFailed() { m.publishFails.Inc() }
func (m *Metrics) AuditFailed()   { m.auditFails.Inc() }

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestTime.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) SetWebSocketClients(n int) {
	m.wsClients.Set(float64(n))
}
