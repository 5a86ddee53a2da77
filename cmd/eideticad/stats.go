package main

import (
	"github.com/eideticadb/eidetica/pkg/instance"
	"github.com/eideticadb/eidetica/pkg/metrics"
	"github.com/eideticadb/eidetica/pkg/sync/engine"
	"github.com/eideticadb/eidetica/pkg/types"
)

// statsProvider adapts an Instance and its optional sync Engine into
// metrics.StatsProvider. It lives here rather than in pkg/metrics
// because pkg/metrics must not import pkg/instance or pkg/sync/engine
// (both already import pkg/metrics for inline instrumentation, and an
// import back from pkg/metrics would cycle).
type statsProvider struct {
	inst *instance.Instance
	eng  *engine.Engine
}

func newStatsProvider(inst *instance.Instance, eng *engine.Engine) *statsProvider {
	return &statsProvider{inst: inst, eng: eng}
}

func (s *statsProvider) Snapshot() metrics.Snapshot {
	snap := metrics.Snapshot{PeersByStatus: map[string]int{}}

	for _, user := range s.inst.Users() {
		snap.Users++
		for _, td := range s.inst.TrackedDatabases(user) {
			if td.Prefs.SyncEnabled {
				snap.TrackedDatabasesEnabled++
			} else {
				snap.TrackedDatabasesDisabled++
			}
		}
	}

	if s.eng == nil {
		return snap
	}

	for _, status := range []types.PeerStatus{types.PeerActive, types.PeerInactive, types.PeerBlocked} {
		snap.PeersByStatus[string(status)] = 0
	}
	if peers, err := s.eng.Peers().All(); err == nil {
		for _, p := range peers {
			snap.PeersByStatus[string(p.Status)]++
		}
	}
	if pending, err := s.eng.Bootstrap().Pending(); err == nil {
		snap.PendingBootstrapRequests = len(pending)
	}
	return snap
}
