package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/kalyan02/blogdkr/internal/reconcile"
)

const (
	outcomeSuccess = "success"
	outcomeAborted = "aborted"
)

var (
	syncCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blogdkr_sync_cycles_total",
			Help: "Total number of sync cycles by mode and outcome",
		},
		[]string{"mode", "outcome"},
	)

	filesFetchedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "blogdkr_files_fetched_total",
			Help: "Total number of files downloaded from the remote",
		},
	)

	filesDeletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "blogdkr_files_deleted_total",
			Help: "Total number of stale local files removed",
		},
	)

	buildFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "blogdkr_build_failures_total",
			Help: "Total number of failed build invocations",
		},
	)

	lastSuccessTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "blogdkr_last_sync_success_timestamp_seconds",
			Help: "Unix time of the last fully successful sync cycle",
		},
	)
)

func recordCycle(mode Mode, outcome string) {
	syncCyclesTotal.WithLabelValues(string(mode), outcome).Inc()
	if outcome == outcomeSuccess {
		lastSuccessTimestamp.Set(float64(time.Now().Unix()))
	}
}

func recordStats(stats reconcile.Stats) {
	filesFetchedTotal.Add(float64(stats.Fetched))
	filesDeletedTotal.Add(float64(stats.Deleted))
}

func recordBuildFailure() {
	buildFailuresTotal.Inc()
}
