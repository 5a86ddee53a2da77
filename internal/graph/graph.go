// Package graph implements the DAG traversal algorithms shared by every
// Backend implementation: topological sort, tip-frontier BFS, and
// merge-base discovery over an Entry set. Every function here is pure
// and operates over a map the caller has already materialized, so
// memory, bbolt, and SQL-backed Backends can each load their own
// entries and share one traversal implementation (spec §4.2).
package graph

import (
	"sort"

	"github.com/eideticadb/eidetica/pkg/entry"
	"github.com/eideticadb/eidetica/pkg/types"
)

// TopoSort orders entries by height ascending, ID lexicographic as
// tiebreak — the order every backend must return for get_tree/get_store.
func TopoSort(entries []*entry.Entry) []*entry.Entry {
	out := make([]*entry.Entry, len(entries))
	copy(out, entries)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Height != out[j].Height {
			return out[i].Height < out[j].Height
		}
		return out[i].ID() < out[j].ID()
	})
	return out
}

// ParentFunc returns the parent IDs of an entry for a given traversal
// (main-tree parents, or one store's parents).
type ParentFunc func(e *entry.Entry) []types.ID

// MainParents is a ParentFunc over an Entry's main-tree parents.
func MainParents(e *entry.Entry) []types.ID { return e.Parents }

// StoreParents returns a ParentFunc over the named store's parents.
func StoreParents(store string) ParentFunc {
	return func(e *entry.Entry) []types.ID { return e.SubtreeParents(store) }
}

// BFSFrom walks backward from tips through parentFn edges, using get to
// resolve an ID to its Entry (nil, false if unknown — the walk simply
// stops there), and returns every visited entry.
func BFSFrom(tips []types.ID, parentFn ParentFunc, get func(types.ID) (*entry.Entry, bool)) []*entry.Entry {
	visited := make(map[types.ID]bool)
	var out []*entry.Entry
	queue := append([]types.ID(nil), tips...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if visited[id] {
			continue
		}
		visited[id] = true
		e, ok := get(id)
		if !ok {
			continue
		}
		out = append(out, e)
		queue = append(queue, parentFn(e)...)
	}
	return out
}

// FilterTree keeps only entries belonging to tree.
func FilterTree(entries []*entry.Entry, tree types.ID) []*entry.Entry {
	out := make([]*entry.Entry, 0, len(entries))
	for _, e := range entries {
		if e.InTree(tree) {
			out = append(out, e)
		}
	}
	return out
}

// FilterStore keeps only entries that touch the named store.
func FilterStore(entries []*entry.Entry, store string) []*entry.Entry {
	out := make([]*entry.Entry, 0, len(entries))
	for _, e := range entries {
		if e.InSubtree(store) {
			out = append(out, e)
		}
	}
	return out
}

// Ancestors returns the set of IDs reachable from start (inclusive) by
// repeatedly following parentFn, restricted to entries for which get
// succeeds.
func Ancestors(start types.ID, parentFn ParentFunc, get func(types.ID) (*entry.Entry, bool)) map[types.ID]bool {
	visited := map[types.ID]bool{}
	queue := []types.ID{start}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if visited[id] {
			continue
		}
		visited[id] = true
		e, ok := get(id)
		if !ok {
			continue
		}
		queue = append(queue, parentFn(e)...)
	}
	return visited
}

// AncestorsMulti is Ancestors generalized to multiple starting points.
func AncestorsMulti(starts []types.ID, parentFn ParentFunc, get func(types.ID) (*entry.Entry, bool)) map[types.ID]bool {
	visited := map[types.ID]bool{}
	queue := append([]types.ID(nil), starts...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if visited[id] {
			continue
		}
		visited[id] = true
		e, ok := get(id)
		if !ok {
			continue
		}
		queue = append(queue, parentFn(e)...)
	}
	return visited
}

// MergeBase finds the lowest common ancestor of entryIDs in the graph
// reached via parentFn: the common ancestor (if any) with the greatest
// height, ties broken by the lexicographically smallest ID.
func MergeBase(entryIDs []types.ID, parentFn ParentFunc, get func(types.ID) (*entry.Entry, bool)) (types.ID, bool) {
	if len(entryIDs) == 0 {
		return "", false
	}
	common := Ancestors(entryIDs[0], parentFn, get)
	for _, id := range entryIDs[1:] {
		next := Ancestors(id, parentFn, get)
		for k := range common {
			if !next[k] {
				delete(common, k)
			}
		}
	}
	if len(common) == 0 {
		return "", false
	}
	var best types.ID
	bestHeight := -1
	for id := range common {
		e, ok := get(id)
		if !ok {
			continue
		}
		if e.Height > bestHeight || (e.Height == bestHeight && id < best) {
			bestHeight = e.Height
			best = id
		}
	}
	if best == "" {
		return "", false
	}
	return best, true
}

// CollectRootToTarget returns the ordered ancestry path from the root(s)
// down to target (inclusive), following parentFn backward from target
// and then topologically sorting the visited set.
func CollectRootToTarget(target types.ID, parentFn ParentFunc, get func(types.ID) (*entry.Entry, bool)) []*entry.Entry {
	visited := Ancestors(target, parentFn, get)
	entries := make([]*entry.Entry, 0, len(visited))
	for id := range visited {
		if e, ok := get(id); ok {
			entries = append(entries, e)
		}
	}
	return TopoSort(entries)
}

// SortedParents returns a store node's parent IDs in deterministic
// (lexicographic) order, used as the canonical merge ordering.
func SortedParents(e *entry.Entry, store string) []types.ID {
	parents := append([]types.ID(nil), e.SubtreeParents(store)...)
	sort.Slice(parents, func(i, j int) bool { return parents[i] < parents[j] })
	return parents
}

// PathFromTo returns the entries on a directed path from `from` back to
// `to` (inclusive of both ends) following parentFn, or nil if `to` is
// not an ancestor of `from`.
func PathFromTo(from, to types.ID, parentFn ParentFunc, get func(types.ID) (*entry.Entry, bool)) []*entry.Entry {
	// BFS backward from `from`, recording a predecessor pointer, until
	// `to` is reached; then walk the predecessor chain back to `from`.
	type step struct {
		id   types.ID
		prev types.ID
		has  bool
	}
	visited := map[types.ID]step{}
	queue := []types.ID{from}
	visited[from] = step{id: from}
	found := from == to

	for len(queue) > 0 && !found {
		id := queue[0]
		queue = queue[1:]
		e, ok := get(id)
		if !ok {
			continue
		}
		for _, p := range parentFn(e) {
			if _, seen := visited[p]; seen {
				continue
			}
			visited[p] = step{id: p, prev: id, has: true}
			if p == to {
				found = true
				break
			}
			queue = append(queue, p)
		}
	}
	if !found {
		return nil
	}

	var ids []types.ID
	cur := to
	for {
		ids = append(ids, cur)
		s := visited[cur]
		if !s.has {
			break
		}
		cur = s.prev
	}
	// ids is currently to -> ... -> from; reverse to from -> ... -> to.
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
	out := make([]*entry.Entry, 0, len(ids))
	for _, id := range ids {
		if e, ok := get(id); ok {
			out = append(out, e)
		}
	}
	return out
}
