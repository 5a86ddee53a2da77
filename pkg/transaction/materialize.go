package transaction

import (
	"github.com/eideticadb/eidetica/pkg/backend"
	"github.com/eideticadb/eidetica/pkg/crdt"
	"github.com/eideticadb/eidetica/pkg/eerr"
	"github.com/eideticadb/eidetica/pkg/metrics"
	"github.com/eideticadb/eidetica/pkg/types"
)

// materializeStoreAt computes the converged CRDT Doc for store as of
// mainTips: the store's tips reachable through those main-tree entries
// (spec §4.1 "Tip update discipline"), each decoded and folded together
// with Doc.Merge. Every returned tip already carries data for store
// (Backend.GetStoreTipsUpToEntries guarantees this), so no recursive
// parent-walk is needed: a store's CRDT payload at an entry is always
// its fully-converged state at commit time, not a delta.
func materializeStoreAt(b backend.Backend, tree types.ID, store string, mainTips []types.ID) (*crdt.Doc, []types.ID, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.MaterializeDuration)

	tips, err := b.GetStoreTipsUpToEntries(tree, store, mainTips)
	if err != nil {
		return nil, nil, err
	}
	if len(tips) == 0 {
		return crdt.NewDoc(), nil, nil
	}

	result := crdt.NewDoc()
	for _, tipID := range tips {
		doc, err := storeStateAt(b, tipID, store)
		if err != nil {
			return nil, nil, err
		}
		result = crdt.Merge(result, doc)
	}
	return result, tips, nil
}

// storeStateAt decodes the CRDT payload store carries on entryID,
// consulting the backend's CRDT cache first.
func storeStateAt(b backend.Backend, entryID types.ID, store string) (*crdt.Doc, error) {
	if cached, ok := b.GetCachedCRDTState(entryID, store); ok {
		if d, ok := cached.(*crdt.Doc); ok {
			metrics.CRDTCacheHitsTotal.Inc()
			return d, nil
		}
	}
	metrics.CRDTCacheMissesTotal.Inc()
	e, err := b.Get(entryID)
	if err != nil {
		return nil, err
	}
	data, err := e.Data(store)
	if err != nil {
		return nil, err
	}
	doc := crdt.NewDoc()
	if uerr := doc.UnmarshalJSON([]byte(data)); uerr != nil {
		return nil, eerr.Serialization("transaction_materialize", "failed to decode stored CRDT state", uerr)
	}
	b.CacheCRDTState(entryID, store, doc)
	return doc, nil
}

// settingsResolver implements auth.SettingsResolver over a shared
// Backend: every database a delegation path names lives in the same
// Instance-wide store, so resolving a hop is just another
// materializeStoreAt call against the named tree's "_settings" store.
type settingsResolver struct {
	backend backend.Backend
}

func (r *settingsResolver) SettingsAt(tree types.ID, tips []types.ID) (*crdt.Doc, error) {
	doc, _, err := materializeStoreAt(r.backend, tree, types.SettingsStoreName, tips)
	return doc, err
}
