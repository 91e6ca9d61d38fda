package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the sync loop.
type Metrics struct {
	Registry         *prometheus.Registry
	RunsTotal        *prometheus.CounterVec
	NavErrorsTotal   *prometheus.CounterVec
	RecordsExtracted prometheus.Counter
	RowsSkipped      prometheus.Counter
	UploadsTotal     *prometheus.CounterVec
	PassesTotal      prometheus.Counter
	PassDuration     prometheus.Histogram
}

// New constructs and registers all metrics on a dedicated registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	runs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agmark_runs_total",
			Help: "Pipeline runs by commodity and outcome.",
		},
		[]string{"commodity", "outcome"},
	)
	navErrors := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agmark_navigation_errors_total",
			Help: "Form navigation failures by kind.",
		},
		[]string{"kind"},
	)
	records := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "agmark_records_extracted_total",
			Help: "Records extracted from result tables.",
		},
	)
	skipped := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "agmark_rows_skipped_total",
			Help: "Table rows too short to map into a record.",
		},
	)
	uploads := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agmark_uploads_total",
			Help: "Record uploads by result.",
		},
		[]string{"result"},
	)
	passes := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "agmark_passes_total",
			Help: "Completed passes over the commodity list.",
		},
	)
	passDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "agmark_pass_duration_seconds",
			Help:    "Wall time of one pass over the commodity list.",
			Buckets: prometheus.ExponentialBuckets(5, 2, 10),
		},
	)

	registry.MustRegister(runs, navErrors, records, skipped, uploads, passes, passDuration)

	return &Metrics{
		Registry:         registry,
		RunsTotal:        runs,
		NavErrorsTotal:   navErrors,
		RecordsExtracted: records,
		RowsSkipped:      skipped,
		UploadsTotal:     uploads,
		PassesTotal:      passes,
		PassDuration:     passDuration,
	}
}

// IncRun counts one finished run for a commodity.
func (m *Metrics) IncRun(commodity, outcome string) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(commodity, outcome).Inc()
}

// IncNavError counts a navigation failure of the given kind.
func (m *Metrics) IncNavError(kind string) {
	if m == nil {
		return
	}
	m.NavErrorsTotal.WithLabelValues(kind).Inc()
}

// AddExtracted records the outcome of one table extraction.
func (m *Metrics) AddExtracted(records, skipped int) {
	if m == nil {
		return
	}
	m.RecordsExtracted.Add(float64(records))
	m.RowsSkipped.Add(float64(skipped))
}

// AddUploads counts uploads for a result label (ok, failed, duplicate).
func (m *Metrics) AddUploads(result string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.UploadsTotal.WithLabelValues(result).Add(float64(n))
}

// ObservePass records a completed pass.
func (m *Metrics) ObservePass(d time.Duration) {
	if m == nil {
		return
	}
	m.PassesTotal.Inc()
	m.PassDuration.Observe(d.Seconds())
}
