// Package metrics registers the Prometheus collectors speedcore exposes.
// Callers that run an HTTP server wire these into promhttp.Handler()
// themselves; this package only owns registration.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for general use across catalogue, selector, latency and
// throughput.
var (
	ActiveWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "speedcore_active_workers",
			Help: "A gauge of throughput workers currently in flight.",
		})
	TestRate = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "speedcore_test_rate_mbps",
			Help: "A histogram of measured throughput rates.",
			Buckets: []float64{
				.1, .15, .25, .4, .6,
				1, 1.5, 2.5, 4, 6,
				10, 15, 25, 40, 60,
				100, 150, 250, 400, 600,
				1000},
		},
		[]string{"direction"},
	)
	TestCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "speedcore_test_total",
			Help: "Number of completed speedcore tests.",
		},
		[]string{"direction"},
	)
	ErrorCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "speedcore_errors_total",
			Help: "Number of errors of each kind, by stage.",
		},
		[]string{"stage", "kind"},
	)
	CandidateCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "speedcore_selector_candidates_total",
			Help: "Number of server candidates evaluated by the selector, by outcome.",
		},
		[]string{"outcome"},
	)
)
