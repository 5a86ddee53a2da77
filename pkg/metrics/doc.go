// Package metrics defines the Prometheus instrumentation other packages
// call into directly: commit latency and validation failures
// (pkg/transaction), CRDT-materialization cache hit/miss rates
// (pkg/transaction), bootstrap request outcomes (pkg/sync/bootstrap),
// and sync queue depth, push/pull volume, and RPC latency
// (pkg/sync/engine). Every metric is a package-level var registered in
// init(); callers import this package and call .Inc()/.Set()/.Observe()
// inline at the call site rather than going through a central collector.
//
// Collector polls periodic, pull-shaped state (user counts, tracked
// database counts, peer status, pending bootstrap requests) that no
// single call site naturally owns; see its doc comment for why it takes
// a StatsProvider rather than importing pkg/instance directly.
package metrics
