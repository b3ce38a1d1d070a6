// Package prometheus registers and serves the engine's operational metrics.
package prometheus

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Default buckets. Valuation runs are CPU-bound and fast; pool fetches and
// report generation reach out to storage.
var (
	defaultDurationBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	confidenceBuckets      = []float64{0, 10, 20, 30, 40, 50, 55, 60, 70, 80, 90, 100}
	poolSizeBuckets        = []float64{0, 5, 10, 25, 50, 100, 250, 500}
)

// Metrics holds every metric the engine emits, bound to one registry.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	ValuationsTotal     *prometheus.CounterVec
	ValuationDuration   *prometheus.HistogramVec
	ValuationConfidence prometheus.Histogram
	ComparablesUsed     prometheus.Histogram
	OutliersRejected    prometheus.Counter

	PoolFetchDuration *prometheus.HistogramVec
	OverridesTotal    *prometheus.CounterVec
	ReportsTotal      *prometheus.CounterVec

	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec
	EventsPublished  *prometheus.CounterVec
}

// NewMetrics builds a Metrics set on a fresh registry with process and Go
// runtime collectors attached.
func NewMetrics(namespace string) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	registry.MustRegister(collectors.NewGoCollector())

	m := &Metrics{registry: registry}

	m.HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total HTTP requests",
	}, []string{"method", "path", "status"})

	m.HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   defaultDurationBuckets,
	}, []string{"method", "path"})

	m.ValuationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "valuations_total",
		Help:      "Valuation runs by strategy and outcome",
	}, []string{"strategy", "status"})

	m.ValuationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "valuation_duration_seconds",
		Help:      "End-to-end valuation run duration",
		Buckets:   defaultDurationBuckets,
	}, []string{"strategy"})

	m.ValuationConfidence = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "valuation_confidence",
		Help:      "Confidence score distribution of completed valuations",
		Buckets:   confidenceBuckets,
	})

	m.ComparablesUsed = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "valuation_comparables_used",
		Help:      "Comparables surviving outlier filtering per valuation",
		Buckets:   poolSizeBuckets,
	})

	m.OutliersRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "valuation_outliers_rejected_total",
		Help:      "Comparables rejected by the price outlier filter",
	})

	m.PoolFetchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "pool_fetch_duration_seconds",
		Help:      "Comparable pool fetch duration by source",
		Buckets:   defaultDurationBuckets,
	}, []string{"source"})

	m.OverridesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "manual_overrides_total",
		Help:      "Audited manual adjustment overrides by field",
	}, []string{"field"})

	m.ReportsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reports_generated_total",
		Help:      "Generated reports by language and approval gate",
	}, []string{"language", "ready"})

	m.CacheHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_hits_total",
		Help:      "Cache hits",
	}, []string{"cache"})

	m.CacheMissesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_misses_total",
		Help:      "Cache misses",
	}, []string{"cache"})

	m.EventsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_published_total",
		Help:      "Kafka events published by topic and outcome",
	}, []string{"topic", "status"})

	registry.MustRegister(
		m.HTTPRequestsTotal, m.HTTPRequestDuration,
		m.ValuationsTotal, m.ValuationDuration, m.ValuationConfidence,
		m.ComparablesUsed, m.OutliersRejected,
		m.PoolFetchDuration, m.OverridesTotal, m.ReportsTotal,
		m.CacheHitsTotal, m.CacheMissesTotal, m.EventsPublished,
	)
	return m
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest records one served HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordValuation records one completed or failed valuation run.
func (m *Metrics) RecordValuation(strategy string, err error, duration time.Duration, confidence, used, rejected int) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.ValuationsTotal.WithLabelValues(strategy, status).Inc()
	m.ValuationDuration.WithLabelValues(strategy).Observe(duration.Seconds())
	if err == nil {
		m.ValuationConfidence.Observe(float64(confidence))
		m.ComparablesUsed.Observe(float64(used))
		m.OutliersRejected.Add(float64(rejected))
	}
}

// RecordReport records one generated report.
func (m *Metrics) RecordReport(language string, ready bool) {
	m.ReportsTotal.WithLabelValues(language, strconv.FormatBool(ready)).Inc()
}

// RecordEvent records one publish attempt.
func (m *Metrics) RecordEvent(topic string, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.EventsPublished.WithLabelValues(topic, status).Inc()
}
