package backend

import (
	"fmt"
	"sync"

	"github.com/eideticadb/eidetica/internal/graph"
	"github.com/eideticadb/eidetica/pkg/crdt"
	"github.com/eideticadb/eidetica/pkg/eerr"
	"github.com/eideticadb/eidetica/pkg/entry"
	"github.com/eideticadb/eidetica/pkg/types"
)

type cacheKey struct {
	entry types.ID
	store string
}

// Memory is an in-process Backend: every write lands in plain Go maps
// guarded by a single RWMutex. It is the fastest implementation and the
// one used by default for tests and short-lived processes; it carries
// no durability.
type Memory struct {
	mu sync.RWMutex

	entries    map[types.ID]*entry.Entry
	status     map[types.ID]types.VerificationStatus
	tips       map[types.ID]map[types.ID]bool            // tree -> tip set
	storeTips  map[types.ID]map[string]map[types.ID]bool // tree -> store -> tip set
	crdtCache  map[cacheKey]crdt.Value
	metadata   InstanceMetadata
	haveMeta   bool
}

// NewMemory returns an empty in-memory Backend.
func NewMemory() *Memory {
	return &Memory{
		entries:   make(map[types.ID]*entry.Entry),
		status:    make(map[types.ID]types.VerificationStatus),
		tips:      make(map[types.ID]map[types.ID]bool),
		storeTips: make(map[types.ID]map[string]map[types.ID]bool),
		crdtCache: make(map[cacheKey]crdt.Value),
	}
}

func (m *Memory) Close() error { return nil }

func (m *Memory) Put(status types.VerificationStatus, e *entry.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := e.ID()
	m.entries[id] = e
	m.status[id] = status

	tree := e.Tree
	if m.tips[tree] == nil {
		m.tips[tree] = make(map[types.ID]bool)
	}
	for _, p := range e.Parents {
		delete(m.tips[tree], p)
	}
	m.tips[tree][id] = true

	if m.storeTips[tree] == nil {
		m.storeTips[tree] = make(map[string]map[types.ID]bool)
	}
	for _, s := range e.Stores {
		if m.storeTips[tree][s.Name] == nil {
			m.storeTips[tree][s.Name] = make(map[types.ID]bool)
		}
		for _, p := range s.Parents {
			delete(m.storeTips[tree][s.Name], p)
		}
		m.storeTips[tree][s.Name][id] = true
	}
	return nil
}

func (m *Memory) getLocked(id types.ID) (*entry.Entry, bool) {
	e, ok := m.entries[id]
	return e, ok
}

func (m *Memory) Get(id types.ID) (*entry.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, eerr.NotFound("backend_entry", fmt.Sprintf("entry %q not found", id))
	}
	return e, nil
}

func (m *Memory) GetVerificationStatus(id types.ID) (types.VerificationStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.status[id]
	if !ok {
		return "", eerr.NotFound("backend_status", fmt.Sprintf("no verification status for %q", id))
	}
	return s, nil
}

func (m *Memory) UpdateVerificationStatus(id types.ID, status types.VerificationStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[id]; !ok {
		return eerr.NotFound("backend_entry", fmt.Sprintf("entry %q not found", id))
	}
	m.status[id] = status
	return nil
}

func (m *Memory) GetEntriesByVerificationStatus(status types.VerificationStatus) ([]types.ID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []types.ID
	for id, s := range m.status {
		if s == status {
			out = append(out, id)
		}
	}
	return out, nil
}

func (m *Memory) AllRoots() ([]*entry.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*entry.Entry
	for _, e := range m.entries {
		if e.IsRoot() {
			out = append(out, e)
		}
	}
	return graph.TopoSort(out), nil
}

func (m *Memory) GetTips(tree types.ID) ([]types.ID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []types.ID
	for id := range m.tips[tree] {
		out = append(out, id)
	}
	return out, nil
}

func (m *Memory) GetStoreTips(tree types.ID, store string) ([]types.ID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []types.ID
	for id := range m.storeTips[tree][store] {
		out = append(out, id)
	}
	return out, nil
}

func (m *Memory) GetStoreTipsUpToEntries(tree types.ID, store string, mainEntries []types.ID) ([]types.ID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	visited := graph.AncestorsMulti(mainEntries, graph.MainParents, m.getLocked)
	storeTouched := make(map[types.ID]bool)
	for id := range visited {
		if e, ok := m.getLocked(id); ok && e.InSubtree(store) {
			storeTouched[id] = true
		}
	}
	// A touched entry is a tip iff none of its store-parents within the
	// touched set points forward to it being superseded — i.e. no other
	// touched entry lists it as a store parent.
	referenced := make(map[types.ID]bool)
	for id := range storeTouched {
		e, _ := m.getLocked(id)
		for _, p := range e.SubtreeParents(store) {
			referenced[p] = true
		}
	}
	var out []types.ID
	for id := range storeTouched {
		if !referenced[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

func (m *Memory) GetTree(tree types.ID) ([]*entry.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*entry.Entry
	for _, e := range m.entries {
		if e.InTree(tree) {
			out = append(out, e)
		}
	}
	return graph.TopoSort(out), nil
}

func (m *Memory) GetStore(tree types.ID, store string) ([]*entry.Entry, error) {
	all, err := m.GetTree(tree)
	if err != nil {
		return nil, err
	}
	return graph.TopoSort(graph.FilterStore(all, store)), nil
}

func (m *Memory) GetTreeFromTips(tree types.ID, tips []types.ID) ([]*entry.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	visited := graph.BFSFrom(tips, graph.MainParents, m.getLocked)
	return graph.TopoSort(graph.FilterTree(visited, tree)), nil
}

func (m *Memory) GetStoreFromTips(tree types.ID, store string, tips []types.ID) ([]*entry.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	visited := graph.BFSFrom(tips, graph.StoreParents(store), m.getLocked)
	visited = graph.FilterTree(visited, tree)
	visited = graph.FilterStore(visited, store)
	return graph.TopoSort(visited), nil
}

func (m *Memory) FindMergeBase(tree types.ID, store string, entryIDs []types.ID) (types.ID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := graph.MergeBase(entryIDs, graph.StoreParents(store), m.getLocked)
	if !ok {
		return "", eerr.NotFound("backend_merge_base", "no common ancestor found")
	}
	return id, nil
}

func (m *Memory) CollectRootToTarget(tree types.ID, store string, target types.ID) ([]*entry.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := graph.CollectRootToTarget(target, graph.StoreParents(store), m.getLocked)
	return graph.FilterTree(entries, tree), nil
}

func (m *Memory) GetSortedStoreParents(tree types.ID, entryID types.ID, store string) ([]types.ID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.getLocked(entryID)
	if !ok {
		return nil, eerr.NotFound("backend_entry", fmt.Sprintf("entry %q not found", entryID))
	}
	return graph.SortedParents(e, store), nil
}

func (m *Memory) GetPathFromTo(tree types.ID, store string, from, to types.ID) ([]*entry.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	path := graph.PathFromTo(from, to, graph.StoreParents(store), m.getLocked)
	if path == nil {
		return nil, eerr.NotFound("backend_path", fmt.Sprintf("no path from %q to %q in store %q", from, to, store))
	}
	return path, nil
}

func (m *Memory) GetCachedCRDTState(entryID types.ID, store string) (crdt.Value, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.crdtCache[cacheKey{entry: entryID, store: store}]
	return v, ok
}

func (m *Memory) CacheCRDTState(entryID types.ID, store string, state crdt.Value) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.crdtCache[cacheKey{entry: entryID, store: store}] = state
}

func (m *Memory) ClearCRDTCache() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.crdtCache = make(map[cacheKey]crdt.Value)
}

func (m *Memory) GetInstanceMetadata() (InstanceMetadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.haveMeta {
		return InstanceMetadata{}, eerr.NotFound("backend_metadata", "instance metadata not initialized")
	}
	return m.metadata, nil
}

func (m *Memory) SetInstanceMetadata(meta InstanceMetadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metadata = meta
	m.haveMeta = true
	return nil
}

var _ Backend = (*Memory)(nil)
