package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "toolstudio"

// Execution ledger metrics
var (
	// ExecutionsRecordedTotal counts executions inserted, by initial status and entry point.
	ExecutionsRecordedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_recorded_total",
			Help:      "Total number of executions recorded",
		},
		[]string{"status", "source"},
	)

	// ExecutionsDeduplicatedTotal counts creates answered from an existing request id.
	ExecutionsDeduplicatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_deduplicated_total",
			Help:      "Total number of execution creates resolved to an existing request id",
		},
		[]string{"source"},
	)

	// ExecutionTransitionsTotal counts accepted status transitions.
	ExecutionTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "execution_transitions_total",
			Help:      "Total number of execution status transitions",
		},
		[]string{"from", "to"},
	)

	// ExecutionTransitionsRejectedTotal counts updates refused by the status machine.
	ExecutionTransitionsRejectedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "execution_transitions_rejected_total",
			Help:      "Total number of rejected execution status transitions",
		},
	)

	// ExecutionDuration observes reported execution_time_ms of finished executions.
	ExecutionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "execution_duration_seconds",
			Help:      "Reported execution time of finished executions in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
		},
		[]string{"status"},
	)

	// StaleExecutionsExpiredTotal counts executions moved to timeout by the expirer.
	StaleExecutionsExpiredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_executions_expired_total",
			Help:      "Total number of stale executions moved to timeout",
		},
	)
)

// Registry metrics
var (
	// RegistryWritesTotal counts accepted writes per entity and operation.
	RegistryWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registry_writes_total",
			Help:      "Total number of registry writes",
		},
		[]string{"entity", "operation"},
	)

	// VersionActivationsTotal counts atomic activations.
	VersionActivationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "version_activations_total",
			Help:      "Total number of version activations",
		},
	)
)

// Execution sources.
const (
	SourceAPI = "api"
	SourceMCP = "mcp"
)
