// Package metrics exposes Prometheus collectors for render runs and engine
// calls. Collectors register with the default registry on import.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Run metrics
var (
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reelsync_render_runs_total",
			Help: "Total number of render runs by terminal state",
		},
		[]string{"state"},
	)

	RunsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reelsync_render_runs_in_flight",
			Help: "Whether a render run is active (1 = running, 0 = idle)",
		},
	)

	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reelsync_render_run_duration_seconds",
			Help:    "Wall time of a render run in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1200},
		},
	)

	RunsRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reelsync_render_runs_rejected_total",
			Help: "Render requests rejected because a run was already active",
		},
	)
)

// Job metrics
var (
	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reelsync_render_jobs_total",
			Help: "Total number of per-track jobs by outcome",
		},
		[]string{"outcome"}, // "success" or an error kind
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reelsync_render_job_duration_seconds",
			Help:    "Per-track job duration in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"directive"},
	)
)

// Engine metrics
var (
	EngineOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reelsync_engine_op_duration_seconds",
			Help:    "Engine call duration in seconds",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120},
		},
		[]string{"op"},
	)

	EngineOpErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reelsync_engine_op_errors_total",
			Help: "Engine call failures",
		},
		[]string{"op"},
	)

	StagedBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reelsync_engine_bytes_total",
			Help: "Bytes moved across the staging boundary",
		},
		[]string{"direction"}, // "in" or "out"
	)
)

// Initialize pre-populates label combinations so every series is exported
// from the first scrape.
func Initialize() {
	for _, state := range []string{"done", "failed"} {
		RunsTotal.WithLabelValues(state)
	}
	for _, outcome := range []string{"success", "staging", "execution", "read", "canceled"} {
		JobsTotal.WithLabelValues(outcome)
	}
	for _, d := range []string{"copy", "scale_crop", "scale_only"} {
		JobDuration.WithLabelValues(d)
	}
	for _, op := range []string{"stage", "execute", "read", "unstage"} {
		EngineOpDuration.WithLabelValues(op)
		EngineOpErrors.WithLabelValues(op)
	}
	StagedBytes.WithLabelValues("in")
	StagedBytes.WithLabelValues("out")
}
