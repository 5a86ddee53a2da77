// Package sqlbackend is Eidetica's SQL-backed Backend implementation.
// It speaks database/sql against any driver; Open wires in
// modernc.org/sqlite (a pure-Go driver, grounded on the corpus's
// sqlite-backed example repos) for the embedded case, while the same
// code path serves a remote database given a driver/DSN pointed at one
// (spec §4.2 calls for both an embedded-SQL and a remote-SQL
// implementation — database/sql abstracts that distinction away to a
// driver name and DSN, so one package covers both; see DESIGN.md).
//
// Like boltbackend, DAG queries are served by an in-memory index
// rebuilt from the entries table at Open time; every write goes to SQL
// first, then to the index.
package sqlbackend

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/eideticadb/eidetica/internal/graph"
	"github.com/eideticadb/eidetica/pkg/backend"
	"github.com/eideticadb/eidetica/pkg/crdt"
	"github.com/eideticadb/eidetica/pkg/eerr"
	"github.com/eideticadb/eidetica/pkg/entry"
	"github.com/eideticadb/eidetica/pkg/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS entries (
	id TEXT PRIMARY KEY,
	tree TEXT NOT NULL,
	status TEXT NOT NULL,
	data TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_entries_tree ON entries(tree);
CREATE INDEX IF NOT EXISTS idx_entries_status ON entries(status);

CREATE TABLE IF NOT EXISTS instance_metadata (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	data TEXT NOT NULL
);
`

// Backend is a Backend implementation persisting through database/sql.
type Backend struct {
	mu  sync.Mutex
	db  *sql.DB
	idx *backend.Memory
}

// Open opens an embedded sqlite database at path ("" or ":memory:" for
// an ephemeral in-process database) via modernc.org/sqlite.
func Open(path string) (*Backend, error) {
	return OpenDriver("sqlite", path)
}

// OpenDriver opens dsn with the given registered database/sql driver
// name, letting callers target a remote SQL server instead of the
// embedded sqlite default.
func OpenDriver(driverName, dsn string) (*Backend, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, eerr.Wrap(eerr.KindOperation, "sqlbackend_open", "failed to open database", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, eerr.Wrap(eerr.KindOperation, "sqlbackend_open", "failed to apply schema", err)
	}

	bk := &Backend{db: db, idx: backend.NewMemory()}
	if err := bk.rebuildIndex(); err != nil {
		db.Close()
		return nil, err
	}
	return bk, nil
}

func (b *Backend) rebuildIndex() error {
	rows, err := b.db.Query(`SELECT status, data FROM entries`)
	if err != nil {
		return eerr.Wrap(eerr.KindOperation, "sqlbackend_rebuild", "failed to query entries", err)
	}
	defer rows.Close()

	statuses := make(map[types.ID]types.VerificationStatus)
	var decoded []*entry.Entry
	for rows.Next() {
		var status, data string
		if err := rows.Scan(&status, &data); err != nil {
			return eerr.Wrap(eerr.KindOperation, "sqlbackend_rebuild", "failed to scan entry row", err)
		}
		e := new(entry.Entry)
		if err := json.Unmarshal([]byte(data), e); err != nil {
			return eerr.Wrap(eerr.KindSerialization, "sqlbackend_rebuild", "failed to decode entry", err)
		}
		statuses[e.ID()] = types.VerificationStatus(status)
		decoded = append(decoded, e)
	}
	// Replay parents before children so Put's tip bookkeeping ends with
	// the tip sets the entries had before the restart.
	for _, e := range graph.TopoSort(decoded) {
		if err := b.idx.Put(statuses[e.ID()], e); err != nil {
			return err
		}
	}

	var metaJSON string
	err = b.db.QueryRow(`SELECT data FROM instance_metadata WHERE id = 1`).Scan(&metaJSON)
	if err == nil {
		var meta backend.InstanceMetadata
		if jerr := json.Unmarshal([]byte(metaJSON), &meta); jerr == nil {
			_ = b.idx.SetInstanceMetadata(meta)
		}
	} else if err != sql.ErrNoRows {
		return eerr.Wrap(eerr.KindOperation, "sqlbackend_rebuild", "failed to load instance metadata", err)
	}
	return nil
}

func (b *Backend) Close() error { return b.db.Close() }

func (b *Backend) Put(status types.VerificationStatus, e *entry.Entry) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := json.Marshal(e)
	if err != nil {
		return eerr.Wrap(eerr.KindSerialization, "sqlbackend_put", "failed to encode entry", err)
	}
	_, err = b.db.Exec(
		`INSERT INTO entries (id, tree, status, data) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET status = excluded.status, data = excluded.data`,
		string(e.ID()), string(e.Tree), string(status), string(data),
	)
	if err != nil {
		return eerr.Wrap(eerr.KindOperation, "sqlbackend_put", "failed to persist entry", err)
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
	res, err := b.db.Exec(`UPDATE entries SET status = ? WHERE id = ?`, string(status), string(id))
	if err != nil {
		return eerr.Wrap(eerr.KindOperation, "sqlbackend_status", "failed to update status", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return eerr.NotFound("backend_entry", fmt.Sprintf("entry %q not found", id))
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
		return eerr.Wrap(eerr.KindSerialization, "sqlbackend_metadata", "failed to encode metadata", err)
	}
	_, err = b.db.Exec(
		`INSERT INTO instance_metadata (id, data) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET data = excluded.data`,
		string(data),
	)
	if err != nil {
		return eerr.Wrap(eerr.KindOperation, "sqlbackend_metadata", "failed to persist metadata", err)
	}
	return b.idx.SetInstanceMetadata(meta)
}

var _ backend.Backend = (*Backend)(nil)
