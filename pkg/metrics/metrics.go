package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	memoryBalancer = "memory_balancer"

	passesTotal          = "passes_total"
	stagedMovesTotal     = "staged_moves_total"
	migrationsTotal      = "migrations_total"
	convergenceRunsTotal = "convergence_runs_total"
	hostUtilization      = "host_memory_utilization_percent"

	// Labels
	migrationResultLabel = "result"
	runOutcomeLabel      = "outcome"
	hostLabel            = "host"

	MigrationSucceeded = "succeeded"
	MigrationFailed    = "failed"

	RunConverged      = "converged"
	RunNotConverged   = "not_converged"
	RunInventoryError = "inventory_error"
	RunCancelled      = "cancelled"
)

var migrationsTotalLabels = []string{
	migrationResultLabel,
}

var convergenceRunsTotalLabels = []string{
	runOutcomeLabel,
}

var hostUtilizationLabels = []string{
	hostLabel,
}

/**
* Metrics definition
**/
var passesTotalMetric = prometheus.NewCounter(
	prometheus.CounterOpts{
		Subsystem: memoryBalancer,
		Name:      passesTotal,
		Help:      "number of balancing passes evaluated",
	},
)

var stagedMovesTotalMetric = prometheus.NewCounter(
	prometheus.CounterOpts{
		Subsystem: memoryBalancer,
		Name:      stagedMovesTotal,
		Help:      "number of vm moves staged by balancing passes",
	},
)

var migrationsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: memoryBalancer,
		Name:      migrationsTotal,
		Help:      "number of vm relocations attempted, by result",
	},
	migrationsTotalLabels,
)

var convergenceRunsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: memoryBalancer,
		Name:      convergenceRunsTotal,
		Help:      "number of convergence runs, by outcome",
	},
	convergenceRunsTotalLabels,
)

var hostUtilizationMetric = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Subsystem: memoryBalancer,
		Name:      hostUtilization,
		Help:      "memory utilization of each host as reported by the last snapshot",
	},
	hostUtilizationLabels,
)

func IncreasePassesMetric() {
	passesTotalMetric.Inc()
}

func IncreaseStagedMovesMetric(count int) {
	stagedMovesTotalMetric.Add(float64(count))
}

func IncreaseMigrationsMetric(result string) {
	labels := prometheus.Labels{
		migrationResultLabel: result,
	}
	migrationsTotalMetric.With(labels).Inc()
}

func IncreaseConvergenceRunsMetric(outcome string) {
	labels := prometheus.Labels{
		runOutcomeLabel: outcome,
	}
	convergenceRunsTotalMetric.With(labels).Inc()
}

func UpdateHostUtilizationMetric(host string, percent float64) {
	labels := prometheus.Labels{
		hostLabel: host,
	}
	hostUtilizationMetric.With(labels).Set(percent)
}

func init() {
	registerMetrics()
}

func registerMetrics() {
	prometheus.MustRegister(passesTotalMetric)
	prometheus.MustRegister(stagedMovesTotalMetric)
	prometheus.MustRegister(migrationsTotalMetric)
	prometheus.MustRegister(convergenceRunsTotalMetric)
	prometheus.MustRegister(hostUtilizationMetric)
}
