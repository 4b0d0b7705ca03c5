// Package telemetry exposes batch run metrics in the Prometheus text
// format. A batch is a short-lived process, so metrics are written to a
// textfile for the node exporter instead of being served.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the report pipeline collectors on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	JobsTotal        *prometheus.CounterVec
	PhaseDuration    *prometheus.HistogramVec
	IssuesTotal      *prometheus.CounterVec
	LastBatchSuccess prometheus.Gauge
}

// New registers the pipeline metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		JobsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sitrep_jobs_total",
			Help: "Report jobs by final outcome.",
		}, []string{"outcome"}),
		PhaseDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sitrep_phase_duration_seconds",
			Help:    "Time spent in each report job phase.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"phase"}),
		IssuesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sitrep_collection_issues_total",
			Help: "Errors and warnings recorded on report jobs by kind.",
		}, []string{"kind"}),
		LastBatchSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sitrep_last_batch_success_timestamp_seconds",
			Help: "Unix time of the last batch without failed jobs.",
		}),
	}
}

// JobFinished counts a job by outcome ("done" or "failed").
func (m *Metrics) JobFinished(outcome string) {
	m.JobsTotal.WithLabelValues(outcome).Inc()
}

// PhaseFinished observes the duration of one job phase.
func (m *Metrics) PhaseFinished(phase string, d time.Duration) {
	m.PhaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}

// Issue counts a recorded error or warning. Unclassified errors use
// kind "other".
func (m *Metrics) Issue(kind string) {
	if kind == "" {
		kind = "other"
	}
	m.IssuesTotal.WithLabelValues(kind).Inc()
}

// BatchFinished sets the success timestamp when no job failed.
func (m *Metrics) BatchFinished(failed int, at time.Time) {
	if failed == 0 {
		m.LastBatchSuccess.Set(float64(at.Unix()))
	}
}

// WriteTextfile writes all metrics to path atomically.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
