// Package metrics exposes Prometheus instrumentation for the validation
// workflow.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Resolutions counts resolve outcomes by request type and action.
	Resolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hive_validation_resolutions_total",
		Help: "Validation request resolutions by type and action.",
	}, []string{"type", "action"})

	// Escalations counts requests escalated to sector scope.
	Escalations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hive_validation_escalations_total",
		Help: "Validation requests escalated to the sector scope.",
	})

	// ResolveConflicts counts resolutions rejected because the request was
	// already resolved or its underlying state had drifted.
	ResolveConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hive_validation_resolve_conflicts_total",
		Help: "Rejected resolutions by conflict kind.",
	}, []string{"reason"})
)
