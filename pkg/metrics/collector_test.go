package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeProvider struct {
	snap Snapshot
}

func (f fakeProvider) Snapshot() Snapshot { return f.snap }

func TestCollectorCollectUpdatesGauges(t *testing.T) {
	p := fakeProvider{snap: Snapshot{
		Users:                    2,
		TrackedDatabasesEnabled:  3,
		TrackedDatabasesDisabled: 1,
		PeersByStatus:            map[string]int{"active": 4, "blocked": 1},
		PendingBootstrapRequests: 5,
	}}
	c := NewCollector(p)
	c.collect()

	if got := testutil.ToFloat64(UsersTotal); got != 2 {
		t.Errorf("UsersTotal = %v, want 2", got)
	}
	if got := testutil.ToFloat64(TrackedDatabasesTotal.WithLabelValues("true")); got != 3 {
		t.Errorf("TrackedDatabasesTotal{true} = %v, want 3", got)
	}
	if got := testutil.ToFloat64(TrackedDatabasesTotal.WithLabelValues("false")); got != 1 {
		t.Errorf("TrackedDatabasesTotal{false} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(PeersTotal.WithLabelValues("active")); got != 4 {
		t.Errorf("PeersTotal{active} = %v, want 4", got)
	}
	if got := testutil.ToFloat64(PeersTotal.WithLabelValues("blocked")); got != 1 {
		t.Errorf("PeersTotal{blocked} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(BootstrapRequestsPending); got != 5 {
		t.Errorf("BootstrapRequestsPending = %v, want 5", got)
	}
}

func TestCollectorStartStopDoesNotPanic(t *testing.T) {
	p := fakeProvider{snap: Snapshot{Users: 1}}
	c := NewCollector(p)
	c.interval = 10 * time.Millisecond
	c.Start()
	time.Sleep(25 * time.Millisecond)
	c.Stop()
}
