package scheduler

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the recurring-task generator.
type Metrics struct {
	TasksRespawned prometheus.Counter
	RunFailures    prometheus.Counter
	RunDuration    prometheus.Histogram
}

// NewMetrics creates and registers generator metrics.
// Returns nil if reg is nil.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		return nil
	}

	m := &Metrics{
		TasksRespawned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kazi",
			Subsystem: "scheduler",
			Name:      "tasks_respawned_total",
			Help:      "Total recurring tasks respawned.",
		}),
		RunFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kazi",
			Subsystem: "scheduler",
			Name:      "run_failures_total",
			Help:      "Total generation passes or respawns that failed.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "kazi",
			Subsystem: "scheduler",
			Name:      "run_duration_seconds",
			Help:      "Duration of each generation pass.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		}),
	}

	reg.MustRegister(
		m.TasksRespawned,
		m.RunFailures,
		m.RunDuration,
	)

	return m
}
