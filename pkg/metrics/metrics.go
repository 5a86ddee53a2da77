package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Instance metrics
	UsersTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "eidetica_users_total",
			Help: "Total number of registered users on this instance",
		},
	)

	TrackedDatabasesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "eidetica_tracked_databases_total",
			Help: "Total number of tracked databases by sync_enabled",
		},
		[]string{"sync_enabled"},
	)

	// Commit metrics
	EntriesCommittedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "eidetica_entries_committed_total",
			Help: "Total number of entries committed locally",
		},
	)

	CommitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "eidetica_commit_duration_seconds",
			Help:    "Time taken to commit a Transaction, from Commit() to the entry landing in the backend",
			Buckets: prometheus.DefBuckets,
		},
	)

	CommitValidationFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "eidetica_commit_validation_failures_total",
			Help: "Total number of commits rejected by auth validation",
		},
	)

	// CRDT materialization cache metrics
	CRDTCacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "eidetica_crdt_cache_hits_total",
			Help: "Total number of store materializations served from the backend's CRDT cache",
		},
	)

	CRDTCacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "eidetica_crdt_cache_misses_total",
			Help: "Total number of store materializations that walked the DAG from scratch",
		},
	)

	MaterializeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "eidetica_materialize_duration_seconds",
			Help:    "Time taken to materialize a store's CRDT state at a tip set",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Bootstrap metrics
	BootstrapRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eidetica_bootstrap_requests_total",
			Help: "Total number of bootstrap requests by outcome",
		},
		[]string{"outcome"}, // created, approved, rejected
	)

	BootstrapRequestsPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "eidetica_bootstrap_requests_pending",
			Help: "Current number of bootstrap requests awaiting an administrator's decision",
		},
	)

	// Peer and transport metrics
	PeersTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "eidetica_peers_total",
			Help: "Total number of known peers by status",
		},
		[]string{"status"},
	)

	TransportServersTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "eidetica_transport_servers_total",
			Help: "Total number of registered transports with a running server",
		},
	)

	// Sync engine metrics
	SyncQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "eidetica_sync_queue_depth",
			Help: "Current number of commands queued on the sync engine's command channel",
		},
	)

	SyncCommandsDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "eidetica_sync_commands_dropped_total",
			Help: "Total number of sync engine commands dropped because the command queue was full",
		},
	)

	SyncPushEntriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "eidetica_sync_push_entries_total",
			Help: "Total number of entries sent to peers via the commit-callback push",
		},
	)

	SyncPullAppliedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "eidetica_sync_pull_applied_total",
			Help: "Total number of entries applied locally after a pull from a peer",
		},
	)

	SyncRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "eidetica_sync_request_duration_seconds",
			Help:    "Round-trip duration of a sync Transport.Send call by request type",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"request_type"},
	)

	SyncRequestFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eidetica_sync_request_failures_total",
			Help: "Total number of failed sync Transport.Send calls by request type",
		},
		[]string{"request_type"},
	)
)

func init() {
	prometheus.MustRegister(UsersTotal)
	prometheus.MustRegister(TrackedDatabasesTotal)
	prometheus.MustRegister(EntriesCommittedTotal)
	prometheus.MustRegister(CommitDuration)
	prometheus.MustRegister(CommitValidationFailuresTotal)
	prometheus.MustRegister(CRDTCacheHitsTotal)
	prometheus.MustRegister(CRDTCacheMissesTotal)
	prometheus.MustRegister(MaterializeDuration)
	prometheus.MustRegister(BootstrapRequestsTotal)
	prometheus.MustRegister(BootstrapRequestsPending)
	prometheus.MustRegister(PeersTotal)
	prometheus.MustRegister(TransportServersTotal)
	prometheus.MustRegister(SyncQueueDepth)
	prometheus.MustRegister(SyncCommandsDroppedTotal)
	prometheus.MustRegister(SyncPushEntriesTotal)
	prometheus.MustRegister(SyncPullAppliedTotal)
	prometheus.MustRegister(SyncRequestDuration)
	prometheus.MustRegister(SyncRequestFailuresTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
