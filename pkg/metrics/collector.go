package metrics

import "time"

// Snapshot is a point-in-time summary of the state a Collector polls.
// It is a plain struct, not a reference to pkg/instance or pkg/sync/engine
// types, because those packages already import pkg/metrics to instrument
// commits and sync RPCs directly; a Collector that imported them back
// would form an import cycle. Whoever owns an Instance (and, optionally,
// an Engine) adapts it into a Snapshot and implements StatsProvider.
type Snapshot struct {
	Users                    int
	TrackedDatabasesEnabled  int
	TrackedDatabasesDisabled int
	PeersByStatus            map[string]int
	PendingBootstrapRequests int
}

// StatsProvider is the narrow surface a Collector polls.
type StatsProvider interface {
	Snapshot() Snapshot
}

// Collector periodically polls a StatsProvider and updates the package's
// gauges, the same shape as cuemby-warren's manager-polling Collector
// but parameterized over any StatsProvider instead of one concrete type.
type Collector struct {
	provider StatsProvider
	interval time.Duration
	stopCh   chan struct{}
}

// NewCollector creates a new metrics collector polling provider every
// 15 seconds.
func NewCollector(provider StatsProvider) *Collector {
	return &Collector{
		provider: provider,
		interval: 15 * time.Second,
		stopCh:   make(chan struct{}),
	}
}

// Start begins collecting metrics in a background goroutine.
func (c *Collector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	snap := c.provider.Snapshot()

	UsersTotal.Set(float64(snap.Users))
	TrackedDatabasesTotal.WithLabelValues("true").Set(float64(snap.TrackedDatabasesEnabled))
	TrackedDatabasesTotal.WithLabelValues("false").Set(float64(snap.TrackedDatabasesDisabled))
	BootstrapRequestsPending.Set(float64(snap.PendingBootstrapRequests))

	for status, count := range snap.PeersByStatus {
		PeersTotal.WithLabelValues(status).Set(float64(count))
	}
}
