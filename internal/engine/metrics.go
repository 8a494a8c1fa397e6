package engine

import "github.com/prometheus/client_golang/prometheus"

// Phase label values for phaseDuration.
const (
	phaseResolve  = "resolve"
	phaseAssemble = "assemble"
	phaseRun      = "run"
)

var (
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groundstate_runs_total",
			Help: "Total number of runs by algorithm and final status.",
		},
		[]string{"algorithm", "status"},
	)

	runDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "groundstate_run_duration_seconds",
			Help:    "Wall-clock duration of a run, in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		},
		[]string{"algorithm"},
	)

	phaseDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "groundstate_run_phase_seconds",
			Help:    "Duration of the resolve, assemble and run phases, in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 12),
		},
		[]string{"phase"},
	)

	activeRuns = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "groundstate_active_runs",
			Help: "Number of runs currently executing.",
		},
	)
)

func init() {
	prometheus.MustRegister(runsTotal)
	prometheus.MustRegister(runDuration)
	prometheus.MustRegister(phaseDuration)
	prometheus.MustRegister(activeRuns)

	// Pre-initialize phase labels so they appear in /metrics from startup.
	for _, p := range []string{phaseResolve, phaseAssemble, phaseRun} {
		phaseDuration.WithLabelValues(p)
	}
}
