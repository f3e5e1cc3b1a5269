package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Tick results.
const (
	ResultOK          = "ok"
	ResultNoQuotes    = "no_quotes"
	ResultFetchFailed = "fetch_failed"
	ResultSkipped     = "skipped"
)

var (
	TicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "p2pwatcher_ticks_total", Help: "Sampling ticks by result"},
		[]string{"result"},
	)
	FetchErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "p2pwatcher_fetch_errors_total", Help: "Quote fetch failures"},
		[]string{"side", "kind"},
	)
	SamplesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "p2pwatcher_samples_total", Help: "Samples appended to history"},
	)
	HistorySize = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "p2pwatcher_history_size", Help: "Samples currently retained"},
	)
	LastSpreadPercent = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "p2pwatcher_last_spread_percent", Help: "Spread percent of the latest sample"},
	)
	SnapshotFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "p2pwatcher_snapshot_failures_total", Help: "Failed persistence snapshots"},
	)
	AlertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "p2pwatcher_alerts_total", Help: "Spread alerts by outcome"},
		[]string{"outcome"},
	)
	FetchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "p2pwatcher_fetch_duration_seconds",
			Help:    "Wall time of the two-sided quote fetch",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(
		TicksTotal,
		FetchErrorsTotal,
		SamplesTotal,
		HistorySize,
		LastSpreadPercent,
		SnapshotFailuresTotal,
		AlertsTotal,
		FetchDuration,
	)
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
