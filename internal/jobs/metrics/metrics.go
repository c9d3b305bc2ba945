package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the transition jobs.
type Metrics struct {
	// Per-licence outcomes by job
	LicenceOutcome *prometheus.CounterVec

	// Full job run latency
	RunLatency *prometheus.HistogramVec

	// Job runs that failed outright (upstream fetch, listing)
	RunFailures *prometheus.CounterVec
}

// New creates a Metrics instance with all job metrics registered.
func New() *Metrics {
	return &Metrics{
		LicenceOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cvl_job_licences_total",
			Help: "Per-licence job outcomes by job and outcome",
		}, []string{"job", "outcome"}), // outcome: "succeeded", "skipped", "failed"

		RunLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cvl_job_run_duration_seconds",
			Help:    "Duration of full job runs",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"job"}),

		RunFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cvl_job_run_failures_total",
			Help: "Job runs aborted before per-licence processing",
		}, []string{"job"}),
	}
}

// IncrementOutcome records one per-licence outcome.
func (m *Metrics) IncrementOutcome(job, outcome string) {
	if m != nil {
		m.LicenceOutcome.WithLabelValues(job, outcome).Inc()
	}
}

// ObserveRun records the duration of a full job run.
func (m *Metrics) ObserveRun(job string, d time.Duration) {
	if m != nil {
		m.RunLatency.WithLabelValues(job).Observe(d.Seconds())
	}
}

// IncrementRunFailure records a run that aborted before processing licences.
func (m *Metrics) IncrementRunFailure(job string) {
	if m != nil {
		m.RunFailures.WithLabelValues(job).Inc()
	}
}
