// Package registry implements the transport and peer bookkeeping of
// spec §4.6: named transport instances with their own persistent
// state, and the peers/peer_trees/tree_peers index a sync engine
// consults to decide who to talk to about which database. Both are
// backed by subtrees of a dedicated system database, the same one
// pkg/sync/bootstrap keeps its request table in.
package registry

import (
	"encoding/json"

	"github.com/eideticadb/eidetica/pkg/database"
	"github.com/eideticadb/eidetica/pkg/eerr"
	"github.com/eideticadb/eidetica/pkg/store"
)

// transportStateSubtree holds each named transport's persisted state
// (stable peer identity keys, listener config) keyed by transport
// name, mirroring spec §4.6's "transport_state/<name>" convention.
const transportStateSubtree = "transport_state"

// TransportRegistry persists named transport instances' opaque state
// Docs so a transport can recover its identity across restarts.
type TransportRegistry struct {
	sys *database.Database
}

// NewTransportRegistry returns a registry backed by sys.
func NewTransportRegistry(sys *database.Database) *TransportRegistry {
	return &TransportRegistry{sys: sys}
}

// SaveState persists state, JSON-encoded, under name.
func (r *TransportRegistry) SaveState(name string, state any) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return eerr.Wrap(eerr.KindSerialization, "transport_registry_save", "failed to encode transport state", err)
	}
	tx, err := r.sys.NewTransaction()
	if err != nil {
		return err
	}
	ds := store.NewDocStore(tx, transportStateSubtree)
	if err := ds.Set(name, stateText(raw)); err != nil {
		return err
	}
	_, err = tx.Commit()
	return err
}

// LoadState decodes the persisted state for name into out. It returns
// eerr.KindNotFound if no state has been saved for name yet.
func (r *TransportRegistry) LoadState(name string, out any) error {
	tx, err := r.sys.NewTransaction()
	if err != nil {
		return err
	}
	defer tx.Drop()
	ds := store.NewDocStore(tx, transportStateSubtree)
	v, ok, err := ds.Get(name)
	if err != nil {
		return err
	}
	if !ok {
		return eerr.NotFound("transport_registry_load", "no persisted state for transport "+name)
	}
	raw, ok := textBytes(v)
	if !ok {
		return eerr.Corruption("transport_registry_load", "transport state for "+name+" is not a text payload")
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return eerr.Wrap(eerr.KindSerialization, "transport_registry_load", "failed to decode transport state", err)
	}
	return nil
}
