// Package metrics holds the service's prometheus collectors. Counters are
// registered on the default registry and exposed by cmd/api via promhttp.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RetryAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "call_insights_retry_attempts_total",
		Help: "Retry attempts made against external services.",
	})

	PipelineRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "call_insights_pipeline_runs_total",
		Help: "Completed pipeline runs by terminal outcome.",
	}, []string{"outcome"})

	SubAnalysisFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "call_insights_sub_analysis_failures_total",
		Help: "Analysis sub-tasks that fell back to defaults.",
	}, []string{"task"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "call_insights_stage_duration_seconds",
		Help:    "Wall-clock duration of pipeline stages.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"stage"})
)
