package lm

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	fitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gpufit_fits_total",
		Help: "Completed fits by terminal state.",
	}, []string{"state"})

	fitIterations = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gpufit_fit_iterations",
		Help:    "Solver iterations per fit.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gpufit_run_duration_seconds",
		Help:    "Wall time of one Engine.Run call.",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
	})

	chunkDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gpufit_chunk_duration_seconds",
		Help:    "Wall time of one parallel chunk evaluation.",
		Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
	})

	pointsEvaluated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gpufit_points_evaluated_total",
		Help: "Model function evaluations, one per (fit, point) pair.",
	})
)
