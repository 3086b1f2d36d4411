// Package monitoring exposes Prometheus metrics for dataset loading and query
// serving, and runs a background checker that alerts on unhealthy traffic.
package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "conflict_dash"

// Metrics holds every collector on a private registry. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	datasetRows     prometheus.Gauge
	loadSeconds     prometheus.Gauge
	loadedTimestamp prometheus.Gauge
	queries         *prometheus.CounterVec
	queryDuration   *prometheus.HistogramVec
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	cacheEvictions  prometheus.Counter
	invalid         *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
}

// NewMetrics creates and registers the collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		datasetRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dataset_rows",
			Help:      "Number of events in the loaded dataset.",
		}),
		loadSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dataset_load_seconds",
			Help:      "Duration of the last dataset load.",
		}),
		loadedTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dataset_loaded_timestamp_seconds",
			Help:      "Unix time the dataset was loaded.",
		}),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Queries served, by view.",
		}, []string{"view"}),
		queryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Query latency, by view.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"view"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Dashboard cache hits.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Dashboard cache misses.",
		}),
		cacheEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_evictions_total",
			Help:      "Dashboard cache evictions.",
		}),
		invalid: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invalid_selection_values_total",
			Help:      "Selected filter values absent from the dataset, by field.",
		}, []string{"field"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests, by route and status code.",
		}, []string{"route", "code"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.datasetRows,
		m.loadSeconds,
		m.loadedTimestamp,
		m.queries,
		m.queryDuration,
		m.cacheHits,
		m.cacheMisses,
		m.cacheEvictions,
		m.invalid,
		m.httpRequests,
	)
	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveLoad records a completed dataset load.
func (m *Metrics) ObserveLoad(rows int, elapsed time.Duration, at time.Time) {
	if m == nil {
		return
	}
	m.datasetRows.Set(float64(rows))
	m.loadSeconds.Set(elapsed.Seconds())
	m.loadedTimestamp.Set(float64(at.Unix()))
}

// ObserveQuery records one computed view.
func (m *Metrics) ObserveQuery(view string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.queries.WithLabelValues(view).Inc()
	m.queryDuration.WithLabelValues(view).Observe(elapsed.Seconds())
}

func (m *Metrics) CacheHit() {
	if m != nil {
		m.cacheHits.Inc()
	}
}

func (m *Metrics) CacheMiss() {
	if m != nil {
		m.cacheMisses.Inc()
	}
}

func (m *Metrics) CacheEvicted() {
	if m != nil {
		m.cacheEvictions.Inc()
	}
}

// InvalidSelection counts one unknown value for field.
func (m *Metrics) InvalidSelection(field string) {
	if m != nil {
		m.invalid.WithLabelValues(field).Inc()
	}
}

// ObserveHTTP counts one HTTP response.
func (m *Metrics) ObserveHTTP(route string, code string) {
	if m != nil {
		m.httpRequests.WithLabelValues(route, code).Inc()
	}
}
