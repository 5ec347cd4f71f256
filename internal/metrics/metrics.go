// Package metrics provides scan pipeline metrics for observability
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bpmdata"

// ScanMetrics contains Prometheus metrics for scan runs. A nil *ScanMetrics
// is valid and records nothing.
type ScanMetrics struct {
	registry *prometheus.Registry

	filesDiscoveredTotal    prometheus.Counter
	filesInProgress         prometheus.Gauge
	filesTotal              *prometheus.CounterVec
	analyzerFailuresTotal   *prometheus.CounterVec
	analyzerDurationSeconds *prometheus.HistogramVec
}

// New creates scan metrics registered on a fresh registry that also carries
// the Go runtime and process collectors.
func New() (*ScanMetrics, error) {
	registry := prometheus.NewRegistry()
	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, err
	}
	if err := registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, err
	}
	return NewScanMetrics(registry)
}

// NewScanMetrics creates and registers scan metrics on registry.
func NewScanMetrics(registry *prometheus.Registry) (*ScanMetrics, error) {
	m := &ScanMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *ScanMetrics) initMetrics() {
	m.filesDiscoveredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "files_discovered_total",
		Help:      "Total number of candidate audio files found by the walker",
	})

	m.filesInProgress = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "files_in_progress",
		Help:      "Number of files currently being analyzed",
	})

	m.filesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_total",
			Help:      "Total number of processed files by outcome",
		},
		[]string{"outcome"},
	)

	m.analyzerFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyzer_failures_total",
			Help:      "Total number of failed analyzer invocations",
		},
		[]string{"analyzer"},
	)

	m.analyzerDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analyzer_duration_seconds",
			Help:      "Time taken by analyzer invocations",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
		},
		[]string{"analyzer"},
	)
}

// Describe implements the Collector interface
func (m *ScanMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.filesDiscoveredTotal.Describe(ch)
	m.filesInProgress.Describe(ch)
	m.filesTotal.Describe(ch)
	m.analyzerFailuresTotal.Describe(ch)
	m.analyzerDurationSeconds.Describe(ch)
}

// Collect implements the Collector interface
func (m *ScanMetrics) Collect(ch chan<- prometheus.Metric) {
	m.filesDiscoveredTotal.Collect(ch)
	m.filesInProgress.Collect(ch)
	m.filesTotal.Collect(ch)
	m.analyzerFailuresTotal.Collect(ch)
	m.analyzerDurationSeconds.Collect(ch)
}

// FileDiscovered counts one candidate file.
func (m *ScanMetrics) FileDiscovered() {
	if m == nil {
		return
	}
	m.filesDiscoveredTotal.Inc()
}

// FileStarted marks a file as in flight; the returned func records its outcome.
func (m *ScanMetrics) FileStarted() func(outcome string) {
	if m == nil {
		return func(string) {}
	}
	m.filesInProgress.Inc()
	return func(outcome string) {
		m.filesInProgress.Dec()
		m.filesTotal.WithLabelValues(outcome).Inc()
	}
}

// RecordAnalyzer records the duration of one analyzer call and counts it
// as failed when err is non-nil.
func (m *ScanMetrics) RecordAnalyzer(analyzer string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.analyzerDurationSeconds.WithLabelValues(analyzer).Observe(d.Seconds())
	if err != nil {
		m.analyzerFailuresTotal.WithLabelValues(analyzer).Inc()
	}
}

// Registry returns the registry the metrics live on.
func (m *ScanMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *ScanMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
