// Package backend defines Eidetica's storage abstraction (spec §4.2):
// persist entries, index them, answer DAG queries, and cache CRDT
// state. Backend is a capability set with three concrete
// implementations under this module — memory (in this package),
// boltbackend (embedded KV via go.etcd.io/bbolt), and sqlbackend
// (embedded/remote SQL via database/sql + modernc.org/sqlite) — all of
// which must pass the conformance suite in internal/backendtest.
package backend

import (
	"github.com/eideticadb/eidetica/pkg/crdt"
	"github.com/eideticadb/eidetica/pkg/entry"
	"github.com/eideticadb/eidetica/pkg/types"
)

// InstanceMetadata holds the device-wide state a Backend persists once:
// the device signing key and the set of system database roots.
type InstanceMetadata struct {
	DeviceKeyPubKey types.PeerId `json:"device_key_pubkey"`
	SystemRoots     []types.ID   `json:"system_roots,omitempty"`
}

// Backend is the storage contract every Eidetica persistence layer
// implements.
type Backend interface {
	// Put inserts entry under the given verification status and
	// incrementally updates tip caches (spec §4.2 "Tip update
	// discipline"). Atomic over {entry, status, tip updates}.
	Put(status types.VerificationStatus, e *entry.Entry) error

	// Get returns the stored entry itself (the pointer the index holds,
	// not a copy), or eerr.KindNotFound.
	Get(id types.ID) (*entry.Entry, error)

	GetVerificationStatus(id types.ID) (types.VerificationStatus, error)
	UpdateVerificationStatus(id types.ID, status types.VerificationStatus) error
	GetEntriesByVerificationStatus(status types.VerificationStatus) ([]types.ID, error)

	AllRoots() ([]*entry.Entry, error)

	GetTips(tree types.ID) ([]types.ID, error)
	GetStoreTips(tree types.ID, store string) ([]types.ID, error)
	GetStoreTipsUpToEntries(tree types.ID, store string, mainEntries []types.ID) ([]types.ID, error)

	GetTree(tree types.ID) ([]*entry.Entry, error)
	GetStore(tree types.ID, store string) ([]*entry.Entry, error)
	GetTreeFromTips(tree types.ID, tips []types.ID) ([]*entry.Entry, error)
	GetStoreFromTips(tree types.ID, store string, tips []types.ID) ([]*entry.Entry, error)

	FindMergeBase(tree types.ID, store string, entryIDs []types.ID) (types.ID, error)
	CollectRootToTarget(tree types.ID, store string, target types.ID) ([]*entry.Entry, error)
	GetSortedStoreParents(tree types.ID, entryID types.ID, store string) ([]types.ID, error)
	GetPathFromTo(tree types.ID, store string, from, to types.ID) ([]*entry.Entry, error)

	GetCachedCRDTState(entryID types.ID, store string) (crdt.Value, bool)
	CacheCRDTState(entryID types.ID, store string, state crdt.Value)
	ClearCRDTCache()

	GetInstanceMetadata() (InstanceMetadata, error)
	SetInstanceMetadata(m InstanceMetadata) error

	// Close releases any underlying resources (file handles, DB
	// connections). A no-op for the memory backend.
	Close() error
}
