// Package observability provides Prometheus metrics for update runs.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors of one process. Each instance owns its
// registry so tests can create as many as they like.
type Metrics struct {
	Registry *prometheus.Registry

	RunsTotal       *prometheus.CounterVec
	RunDuration     *prometheus.HistogramVec
	PagesFetched    prometheus.Counter
	PageFailures    prometheus.Counter
	RecordsAppended prometheus.Counter
	Warnings        *prometheus.CounterVec
	SeriesLength    *prometheus.GaugeVec
	LastSuccess     prometheus.Gauge
}

// NewMetrics creates and registers all collectors.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "rial_ledger"
	}
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of update runs by mode and result",
		}, []string{"mode", "result"}),
		RunDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "run_duration_seconds",
			Help:      "Duration of update runs",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"mode"}),
		PagesFetched: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "pages_fetched_total",
			Help:      "Total number of feed pages read",
		}),
		PageFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "page_failures_total",
			Help:      "Total number of failed page fetch or navigation attempts",
		}),
		RecordsAppended: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "records_appended_total",
			Help:      "Total number of new records written to the base series",
		}),
		Warnings: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "warnings_total",
			Help:      "Total number of data warnings by code",
		}, []string{"code"}),
		SeriesLength: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "series_length",
			Help:      "Number of records in each persisted series",
		}, []string{"series"}),
		LastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix timestamp of the last successful run",
		}),
	}
}

// ObserveRun records the outcome of one run.
func (m *Metrics) ObserveRun(mode string, err error, took time.Duration) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.RunsTotal.WithLabelValues(mode, result).Inc()
	m.RunDuration.WithLabelValues(mode).Observe(took.Seconds())
	if err == nil {
		m.LastSuccess.SetToCurrentTime()
	}
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
