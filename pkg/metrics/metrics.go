package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SyncPasses counts whole synchronization passes by outcome
	// (success, failure, offline, skipped)
	SyncPasses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pdvsync_passes_total",
		Help: "Total number of synchronization passes by outcome",
	}, []string{"outcome"})

	// PassDuration measures how long a full pass takes end to end
	// Use this to spot backend slowdowns before users notice the till lagging
	PassDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pdvsync_pass_duration_seconds",
		Help:    "Duration of a full synchronization pass in seconds",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
	})

	// RowsPushed tracks outbound rows by phase (create/update), table and result
	RowsPushed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pdvsync_rows_pushed_total",
		Help: "Rows pushed to the backend by phase, table and result",
	}, []string{"phase", "table", "result"})

	// RowsPulled tracks inbound rows by table and result (applied, skipped, error)
	RowsPulled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pdvsync_rows_pulled_total",
		Help: "Remote rows pulled and applied locally by table and result",
	}, []string{"table", "result"})

	// PendingBacklog is the number of local rows still waiting to be pushed
	// This is the primary indicator of how far behind the till is
	PendingBacklog = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pdvsync_pending_backlog",
		Help: "Current number of local rows in a pending_* sync status",
	})

	// Healthy provides a binary 0/1 signal from the connectivity probe
	Healthy = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pdvsync_healthy",
		Help: "Result of the last backend connectivity probe (1 reachable, 0 not)",
	})
)
