package swarm

import (
	"time"

	"github.com/amonks/swarmboard/reconcile"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Publish sources, used as metric labels and history entries.
const (
	SourceHeartbeat = "heartbeat"
	SourceWatch     = "watch"
	SourceSwitch    = "switch"
	SourceRefresh   = "refresh"
	SourceMerge     = "merge"
	SourceUpdate    = "update"
)

type metrics struct {
	publishes         *prometheus.CounterVec
	snapshotDuration  prometheus.Histogram
	subscribers       prometheus.Gauge
	overallProgress   *prometheus.GaugeVec
	merges            *prometheus.CounterVec
	tasksAdded        prometheus.Counter
	duplicatesAvoided prometheus.Counter
	statusUpdates     *prometheus.CounterVec
}

func newMetrics(registerer prometheus.Registerer) *metrics {
	factory := promauto.With(registerer)
	return &metrics{
		publishes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "swarmboard_publishes_total",
				Help: "Snapshots broadcast to subscribers, by trigger source",
			},
			[]string{"source"},
		),
		snapshotDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "swarmboard_snapshot_duration_seconds",
				Help:    "Time spent computing a project snapshot",
				Buckets: prometheus.DefBuckets,
			},
		),
		subscribers: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "swarmboard_subscribers",
				Help: "Connected snapshot subscribers",
			},
		),
		overallProgress: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "swarmboard_overall_progress_percent",
				Help: "Overall progress of the most recent snapshot",
			},
			[]string{"project"},
		),
		merges: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "swarmboard_merges_total",
				Help: "Merge requests by outcome",
			},
			[]string{"outcome"},
		),
		tasksAdded: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "swarmboard_tasks_added_total",
				Help: "Tasks appended to task documents by merges",
			},
		),
		duplicatesAvoided: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "swarmboard_duplicates_avoided_total",
				Help: "Requested tasks dropped as duplicates of open work",
			},
		),
		statusUpdates: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "swarmboard_status_updates_total",
				Help: "Task status updates by result",
			},
			[]string{"result"},
		),
	}
}

func (m *metrics) observeSnapshot(project string, progress int, duration time.Duration) {
	m.snapshotDuration.Observe(duration.Seconds())
	m.overallProgress.WithLabelValues(project).Set(float64(progress))
}

func (m *metrics) observeMerge(result reconcile.Result, err error) {
	outcome := "noop"
	switch {
	case err != nil:
		outcome = "error"
	case result.Applied:
		outcome = "applied"
	case len(result.Accepted) > 0:
		outcome = "dry_run"
	}
	m.merges.WithLabelValues(outcome).Inc()
	if err != nil {
		return
	}
	if result.Applied {
		m.tasksAdded.Add(float64(len(result.Accepted)))
	}
	m.duplicatesAvoided.Add(float64(len(result.Duplicates)))
}

func (m *metrics) observeUpdate(updated bool, err error) {
	result := "not_found"
	switch {
	case err != nil:
		result = "error"
	case updated:
		result = "updated"
	}
	m.statusUpdates.WithLabelValues(result).Inc()
}
