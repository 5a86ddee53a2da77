// Package boltbackend is Eidetica's embedded-KV Backend implementation,
// grounded on the teacher's bucket-per-concern go.etcd.io/bbolt usage
// (pkg/storage/boltdb.go): every entry and its verification status is
// persisted as JSON in its own bucket, keyed by entry ID, while the
// DAG/tip index is rebuilt into an in-process backend.Memory on open —
// the tip cache must survive restarts (spec §4.2), and rebuilding it
// from the persisted entry set is simpler and less failure-prone than
// maintaining a second on-disk index that can drift from the first.
package boltbackend

import (
	"encoding/json"
	"fmt"
	"sync"

	bolt "go.etcd.io/bbolt"

	"github.com/eideticadb/eidetica/internal/graph"
	"github.com/eideticadb/eidetica/pkg/backend"
	"github.com/eideticadb/eidetica/pkg/crdt"
	"github.com/eideticadb/eidetica/pkg/eerr"
	"github.com/eideticadb/eidetica/pkg/entry"
	"github.com/eideticadb/eidetica/pkg/types"
)

var (
	bucketEntries  = []byte("entries")
	bucketStatus   = []byte("status")
	bucketMetadata = []byte("metadata")
)

const metadataKey = "instance"

// Backend is a durable Backend backed by a single bbolt file. DAG
// queries are served by an in-memory index rebuilt from the bucket
// contents at Open time; writes go to bbolt first, then to the index,
// so a crash mid-write never leaves the index ahead of disk.
type Backend struct {
	mu  sync.Mutex
	db  *bolt.DB
	idx *backend.Memory
}

// Open opens (creating if necessary) a bbolt file at path and rebuilds
// the in-memory DAG index from its contents.
func Open(path string) (*Backend, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, eerr.Wrap(eerr.KindOperation, "boltbackend_open", "failed to open bbolt file", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketEntries, bucketStatus, bucketMetadata} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, eerr.Wrap(eerr.KindOperation, "boltbackend_open", "failed to create buckets", err)
	}

	bk := &Backend{db: db, idx: backend.NewMemory()}
	if err := bk.rebuildIndex(); err != nil {
		db.Close()
		return nil, err
	}
	return bk, nil
}

func (b *Backend) rebuildIndex() error {
	return b.db.View(func(tx *bolt.Tx) error {
		statusBucket := tx.Bucket(bucketStatus)
		statuses := make(map[types.ID]types.VerificationStatus)
		var decoded []*entry.Entry

		var rebuildErr error
		tx.Bucket(bucketEntries).ForEach(func(k, v []byte) error {
			var e entry.Entry
			if err := json.Unmarshal(v, &e); err != nil {
				rebuildErr = eerr.Wrap(eerr.KindSerialization, "boltbackend_rebuild", "failed to decode entry", err)
				return nil
			}
			status := types.Unverified
			if sv := statusBucket.Get(k); sv != nil {
				status = types.VerificationStatus(sv)
			}
			statuses[e.ID()] = status
			decoded = append(decoded, &e)
			return nil
		})
		// Replay parents before children so Put's tip bookkeeping ends
		// with the tip sets the entries had before the restart.
		for _, e := range graph.TopoSort(decoded) {
			if err := b.idx.Put(statuses[e.ID()], e); err != nil {
				rebuildErr = err
			}
		}

		if mv := tx.Bucket(bucketMetadata).Get([]byte(metadataKey)); mv != nil {
			var meta backend.InstanceMetadata
			if err := json.Unmarshal(mv, &meta); err == nil {
				_ = b.idx.SetInstanceMetadata(meta)
			}
		}
		return rebuildErr
	})
}

func (b *Backend) Close() error {
	return b.db.Close()
}

func (b *Backend) Put(status types.VerificationStatus, e *entry.Entry) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := json.Marshal(e)
	if err != nil {
		return eerr.Wrap(eerr.KindSerialization, "boltbackend_put", "failed to encode entry", err)
	}
	id := []byte(e.ID())

	err = b.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketEntries).Put(id, data); err != nil {
			return err
		}
		return tx.Bucket(bucketStatus).Put(id, []byte(status))
	})
	if err != nil {
		return eerr.Wrap(eerr.KindOperation, "boltbackend_put", "failed to persist entry", err)
	}
	return b.idx.Put(status, e)
}

func (b *Backend) Get(id types.ID) (*entry.Entry, error) { return b.idx.Get(id) }

func (b *Backend) GetVerificationStatus(id types.ID) (types.VerificationStatus, error) {
	return b.idx.GetVerificationStatus(id)
}

func (b *Backend) UpdateVerificationStatus(id types.ID, status types.VerificationStatus) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketStatus).Put([]byte(id), []byte(status))
	})
	if err != nil {
		return eerr.Wrap(eerr.KindOperation, "boltbackend_status", "failed to persist status", err)
	}
	return b.idx.UpdateVerificationStatus(id, status)
}

func (b *Backend) GetEntriesByVerificationStatus(status types.VerificationStatus) ([]types.ID, error) {
	return b.idx.GetEntriesByVerificationStatus(status)
}

func (b *Backend) AllRoots() ([]*entry.Entry, error) { return b.idx.AllRoots() }

func (b *Backend) GetTips(tree types.ID) ([]types.ID, error) { return b.idx.GetTips(tree) }

func (b *Backend) GetStoreTips(tree types.ID, store string) ([]types.ID, error) {
	return b.idx.GetStoreTips(tree, store)
}

func (b *Backend) GetStoreTipsUpToEntries(tree types.ID, store string, mainEntries []types.ID) ([]types.ID, error) {
	return b.idx.GetStoreTipsUpToEntries(tree, store, mainEntries)
}

func (b *Backend) GetTree(tree types.ID) ([]*entry.Entry, error) { return b.idx.GetTree(tree) }

func (b *Backend) GetStore(tree types.ID, store string) ([]*entry.Entry, error) {
	return b.idx.GetStore(tree, store)
}

func (b *Backend) GetTreeFromTips(tree types.ID, tips []types.ID) ([]*entry.Entry, error) {
	return b.idx.GetTreeFromTips(tree, tips)
}

func (b *Backend) GetStoreFromTips(tree types.ID, store string, tips []types.ID) ([]*entry.Entry, error) {
	return b.idx.GetStoreFromTips(tree, store, tips)
}

func (b *Backend) FindMergeBase(tree types.ID, store string, entryIDs []types.ID) (types.ID, error) {
	return b.idx.FindMergeBase(tree, store, entryIDs)
}

func (b *Backend) CollectRootToTarget(tree types.ID, store string, target types.ID) ([]*entry.Entry, error) {
	return b.idx.CollectRootToTarget(tree, store, target)
}

func (b *Backend) GetSortedStoreParents(tree types.ID, entryID types.ID, store string) ([]types.ID, error) {
	return b.idx.GetSortedStoreParents(tree, entryID, store)
}

func (b *Backend) GetPathFromTo(tree types.ID, store string, from, to types.ID) ([]*entry.Entry, error) {
	return b.idx.GetPathFromTo(tree, store, from, to)
}

func (b *Backend) GetCachedCRDTState(entryID types.ID, store string) (crdt.Value, bool) {
	return b.idx.GetCachedCRDTState(entryID, store)
}

func (b *Backend) CacheCRDTState(entryID types.ID, store string, state crdt.Value) {
	b.idx.CacheCRDTState(entryID, store, state)
}

func (b *Backend) ClearCRDTCache() { b.idx.ClearCRDTCache() }

func (b *Backend) GetInstanceMetadata() (backend.InstanceMetadata, error) {
	return b.idx.GetInstanceMetadata()
}

func (b *Backend) SetInstanceMetadata(meta backend.InstanceMetadata) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, err := json.Marshal(meta)
	if err != nil {
		return eerr.Wrap(eerr.KindSerialization, "boltbackend_metadata", "failed to encode metadata", err)
	}
	err = b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketMetadata).Put([]byte(metadataKey), data)
	})
	if err != nil {
		return eerr.Wrap(eerr.KindOperation, "boltbackend_metadata", "failed to persist metadata", err)
	}
	return b.idx.SetInstanceMetadata(meta)
}

var _ backend.Backend = (*Backend)(nil)
