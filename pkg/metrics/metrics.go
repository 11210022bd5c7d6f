package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "indexcheck"

// Metrics holds the Prometheus collectors for lookups, quota checks and
// batches. A nil *Metrics is valid and records nothing, so components can
// run without a registry in tests and in the CLI.
type Metrics struct {
	registry *prometheus.Registry

	lookups        *prometheus.CounterVec
	lookupDuration prometheus.Histogram
	quotaChecks    *prometheus.CounterVec
	batches        *prometheus.CounterVec
	batchDuration  prometheus.Histogram
	activeBatches  prometheus.Gauge
}

// New registers all collectors, plus the Go runtime and process
// collectors, on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lookups_total",
			Help:      "Index lookups by result status.",
		}, []string{"status"}),
		lookupDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "lookup_duration_seconds",
			Help:      "Duration of a single index lookup, excluding pacing.",
			Buckets:   prometheus.DefBuckets,
		}),
		quotaChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_checks_total",
			Help:      "Credential quota checks by outcome.",
		}, []string{"outcome"}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Finished batches by outcome.",
		}, []string{"outcome"}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Wall time of a batch run.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		activeBatches: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "batches_active",
			Help:      "Batches currently running.",
		}),
	}

	reg.MustRegister(
		m.lookups,
		m.lookupDuration,
		m.quotaChecks,
		m.batches,
		m.batchDuration,
		m.activeBatches,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) ObserveLookup(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(status).Inc()
	m.lookupDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveQuotaCheck(outcome string) {
	if m == nil {
		return
	}
	m.quotaChecks.WithLabelValues(outcome).Inc()
}

func (m *Metrics) BatchStarted() {
	if m == nil {
		return
	}
	m.activeBatches.Inc()
}

// BatchFinished records a batch that started with BatchStarted.
func (m *Metrics) BatchFinished(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.activeBatches.Dec()
	m.batches.WithLabelValues(outcome).Inc()
	m.batchDuration.Observe(d.Seconds())
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
