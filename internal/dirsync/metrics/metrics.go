// Package metrics exposes Prometheus instrumentation for the sync engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RunsTotal counts finished sync runs by terminal status.
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hive_sync_runs_total",
		Help: "Finished sync runs by terminal status.",
	}, []string{"status"})

	// RunDuration observes end-to-end run duration in seconds.
	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "hive_sync_run_duration_seconds",
		Help:    "End-to-end sync run duration.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	// ChangesTotal counts classified changes by kind.
	ChangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hive_sync_changes_total",
		Help: "Diff results by change kind.",
	}, []string{"kind"})

	// SnapshotGroups reports the group count of the last successful snapshot.
	SnapshotGroups = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hive_sync_snapshot_groups",
		Help: "Groups in the most recent directory snapshot.",
	})

	// RequestsCreated counts validation requests raised by sync runs.
	RequestsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hive_sync_validation_requests_created_total",
		Help: "Validation requests created by sync runs.",
	})
)
