// Package metrics exposes the prometheus collectors for pipeline runs.
// Collectors are registered on the default registry at init time via promauto;
// the HTTP API serves them on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline outcomes used as the "outcome" label.
const (
	OutcomeSuccess    = "success"
	OutcomeNotRunning = "not_running"
	OutcomeError      = "error"
	OutcomeRejected   = "rejected"
)

var (
	pipelineRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "appdeck",
		Subsystem: "pipeline",
		Name:      "runs_total",
		Help:      "Pipeline runs by terminal outcome",
	}, []string{"outcome"})

	pipelineStageFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "appdeck",
		Subsystem: "pipeline",
		Name:      "stage_failures_total",
		Help:      "Fatal pipeline failures by stage",
	}, []string{"stage"})

	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "appdeck",
		Subsystem: "pipeline",
		Name:      "stage_duration_seconds",
		Help:      "Duration of pipeline stages",
		Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
	}, []string{"stage"})

	applyRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "appdeck",
		Subsystem: "pipeline",
		Name:      "apply_retries_total",
		Help:      "Apply attempts retried after a timeout",
	})

	pipelinesInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "appdeck",
		Subsystem: "pipeline",
		Name:      "in_flight",
		Help:      "Pipelines currently executing",
	})

	updateChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "appdeck",
		Subsystem: "updates",
		Name:      "checks_total",
		Help:      "Update availability checks by result",
	}, []string{"result"})
)

// ObserveRun records the terminal outcome of one pipeline run.
func ObserveRun(outcome string) {
	pipelineRuns.WithLabelValues(outcome).Inc()
}

// ObserveStageFailure records a fatal failure in stage.
func ObserveStageFailure(stage string) {
	pipelineStageFailures.WithLabelValues(stage).Inc()
}

// ObserveStage records how long stage took since start.
func ObserveStage(stage string, start time.Time) {
	stageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// ObserveApplyRetry counts one retried apply.
func ObserveApplyRetry() {
	applyRetries.Inc()
}

// TrackInFlight increments the in-flight gauge and returns its decrement.
func TrackInFlight() func() {
	pipelinesInFlight.Inc()
	return pipelinesInFlight.Dec
}

// ObserveUpdateCheck records one update check; result is "available",
// "current" or "error".
func ObserveUpdateCheck(result string) {
	updateChecks.WithLabelValues(result).Inc()
}
