package dispatch

import "github.com/prometheus/client_golang/prometheus"

// Metric label values for the execution path.
const (
	pathLocal   = "local"
	pathOffload = "offload"
)

var (
	executionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inferd_executions_total",
			Help: "Total number of executions by terminal state and execution path.",
		},
		[]string{"state", "path"},
	)

	offloadAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inferd_offload_attempts_total",
			Help: "Total number of remote offload attempts by outcome.",
		},
		[]string{"outcome"},
	)

	executionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "inferd_execution_duration_seconds",
			Help:    "End-to-end execution duration in seconds, by execution path.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path"},
	)
)

func init() {
	prometheus.MustRegister(executionsTotal)
	prometheus.MustRegister(offloadAttemptsTotal)
	prometheus.MustRegister(executionDuration)
}
