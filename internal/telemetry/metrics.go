package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SyncAppends counts items appended to the play queue by the synchronizer.
	SyncAppends = promauto.NewCounter(prometheus.CounterOpts{
		Name: "radioblue_sync_appends_total",
		Help: "Play queue items appended by the synchronizer.",
	})

	// FillerInserts counts filler/mic-break insertions.
	FillerInserts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "radioblue_filler_inserts_total",
		Help: "Filler items inserted into the play queue.",
	})

	// SyncFailures counts aborted sync cycles.
	SyncFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "radioblue_sync_failures_total",
		Help: "Sync cycles aborted by a playlist or queue fetch failure.",
	})

	// SnapshotPublishes counts telemetry snapshots published.
	SnapshotPublishes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "radioblue_snapshot_publishes_total",
		Help: "Broadcast snapshots published by the aggregator.",
	})

	// SnapshotSkips counts aggregator cycles that retained the last snapshot.
	SnapshotSkips = promauto.NewCounter(prometheus.CounterOpts{
		Name: "radioblue_snapshot_skips_total",
		Help: "Aggregator cycles skipped due to missing player telemetry.",
	})

	// TrackTransitions counts observed now-playing changes.
	TrackTransitions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "radioblue_track_transitions_total",
		Help: "Track transitions observed by the session tracker.",
	})

	// DeadAirSeconds reports seconds elapsed since the stream last carried audio.
	DeadAirSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "radioblue_dead_air_seconds",
		Help: "Seconds since the monitored stream last carried audio.",
	})

	// StreamOnline reports whether the monitored audio stream is decodable.
	StreamOnline = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "radioblue_stream_online",
		Help: "1 when the monitored audio stream is online, 0 otherwise.",
	})

	// HTTPRequests counts control surface requests.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "radioblue_http_requests_total",
		Help: "Control surface requests by path and status.",
	}, []string{"path", "status"})

	// HTTPDuration observes control surface request latency.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "radioblue_http_request_duration_seconds",
		Help:    "Control surface request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"path"})

	// APIActiveConnections tracks in-flight control surface requests.
	APIActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "radioblue_http_active_connections",
		Help: "In-flight control surface requests.",
	})
)

// Handler exposes the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
