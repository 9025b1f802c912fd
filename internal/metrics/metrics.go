package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for parse runs.
type Metrics struct {
	Registry        *prometheus.Registry
	AttemptsTotal   *prometheus.CounterVec
	AttemptDuration prometheus.Histogram
	RunsTotal       *prometheus.CounterVec
	SinkErrorsTotal *prometheus.CounterVec
	JobsQueued      prometheus.Gauge
}

// New constructs and registers all collectors on a dedicated registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	attempts := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parser_attempts_total",
			Help: "Parse attempts by outcome kind (ok, transient, extraction_failed, wrong_url, wrong_region).",
		},
		[]string{"outcome"},
	)
	attemptDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "parser_attempt_duration_seconds",
			Help:    "Wall time of a single parse attempt including browser start.",
			Buckets: []float64{1, 2.5, 5, 10, 20, 30, 60, 120},
		},
	)
	runs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parser_runs_total",
			Help: "Finished parse runs by terminal state.",
		},
		[]string{"state"},
	)
	sinkErrors := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parser_sink_errors_total",
			Help: "Failures while forwarding observations to optional sinks.",
		},
		[]string{"sink"},
	)

	jobsQueued := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "parser_jobs_queued",
			Help: "Parse jobs waiting for the API worker.",
		},
	)

	registry.MustRegister(attempts, attemptDuration, runs, sinkErrors, jobsQueued)

	return &Metrics{
		Registry:        registry,
		AttemptsTotal:   attempts,
		AttemptDuration: attemptDuration,
		RunsTotal:       runs,
		SinkErrorsTotal: sinkErrors,
		JobsQueued:      jobsQueued,
	}
}

func (m *Metrics) ObserveAttempt(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.AttemptsTotal.WithLabelValues(outcome).Inc()
	m.AttemptDuration.Observe(d.Seconds())
}

func (m *Metrics) IncRun(state string) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(state).Inc()
}

func (m *Metrics) IncSinkError(sink string) {
	if m == nil {
		return
	}
	m.SinkErrorsTotal.WithLabelValues(sink).Inc()
}

func (m *Metrics) SetJobsQueued(n int) {
	if m == nil {
		return
	}
	m.JobsQueued.Set(float64(n))
}
