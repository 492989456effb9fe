package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SolveTotal counts solver invocations by mode and outcome.
	SolveTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mixcalc_solve_total",
		Help: "Total number of solve requests, labelled by mode and outcome.",
	}, []string{"mode", "outcome"})

	// SolveDuration records solver latency including uncertainty propagation.
	SolveDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mixcalc_solve_duration_seconds",
		Help:    "Latency of solve requests.",
		Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"mode"})

	// UncertaintyTrials counts Monte Carlo trials by result.
	UncertaintyTrials = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mixcalc_uncertainty_trials_total",
		Help: "Monte Carlo trials run during uncertainty propagation.",
	}, []string{"result"})

	// HTTPRequests counts API requests by route and status code.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mixcalc_http_requests_total",
		Help: "HTTP requests served, labelled by route and status.",
	}, []string{"route", "status"})

	// ImportedRows counts CSV rows processed by the importer.
	ImportedRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mixcalc_import_rows_total",
		Help: "Rows processed by the table importer, labelled by action.",
	}, []string{"action"})
)
