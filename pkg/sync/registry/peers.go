package registry

import (
	"encoding/json"
	"time"

	"github.com/eideticadb/eidetica/pkg/crdt"
	"github.com/eideticadb/eidetica/pkg/database"
	"github.com/eideticadb/eidetica/pkg/eerr"
	"github.com/eideticadb/eidetica/pkg/store"
	"github.com/eideticadb/eidetica/pkg/transaction"
	"github.com/eideticadb/eidetica/pkg/types"
)

// Subtree names matching spec §4.6's peer registry: "peers/<pubkey>",
// "peer_trees/<pubkey>", "tree_peers/<tree_id>". Flattened here into
// three top-level subtrees rather than literal slash-joined keys,
// since Eidetica subtree names are plain strings, not paths.
const (
	peersSubtree     = "peers"
	peerTreesSubtree = "peer_trees"
	treePeersSubtree = "tree_peers"
)

// PeerRegistry tracks known peers, which databases each peer is linked
// to, and the reverse index from database to linked peers.
type PeerRegistry struct {
	sys *database.Database
}

// NewPeerRegistry returns a registry backed by sys.
func NewPeerRegistry(sys *database.Database) *PeerRegistry {
	return &PeerRegistry{sys: sys}
}

func decodePeerInfo(raw []byte) (types.PeerInfo, error) {
	var info types.PeerInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return types.PeerInfo{}, eerr.Wrap(eerr.KindSerialization, "peer_registry", "failed to decode peer info", err)
	}
	return info, nil
}

// Get returns the known PeerInfo for pubkey.
func (r *PeerRegistry) Get(pubkey types.PeerId) (types.PeerInfo, error) {
	tx, err := r.sys.NewTransaction()
	if err != nil {
		return types.PeerInfo{}, err
	}
	defer tx.Drop()
	ds := store.NewDocStore(tx, peersSubtree)
	v, ok, err := ds.Get(string(pubkey))
	if err != nil {
		return types.PeerInfo{}, err
	}
	if !ok {
		return types.PeerInfo{}, eerr.NotFound("peer_registry", "no peer known for "+string(pubkey))
	}
	raw, ok := textBytes(v)
	if !ok {
		return types.PeerInfo{}, eerr.Corruption("peer_registry", "peer entry is not a text payload")
	}
	return decodePeerInfo(raw)
}

// Upsert records or updates info, keyed by its own PubKey.
func (r *PeerRegistry) Upsert(info types.PeerInfo) error {
	raw, err := json.Marshal(info)
	if err != nil {
		return eerr.Wrap(eerr.KindSerialization, "peer_registry", "failed to encode peer info", err)
	}
	tx, err := r.sys.NewTransaction()
	if err != nil {
		return err
	}
	ds := store.NewDocStore(tx, peersSubtree)
	if err := ds.Set(string(info.PubKey), stateText(raw)); err != nil {
		return err
	}
	_, err = tx.Commit()
	return err
}

// TouchSeen records that pubkey was just contacted, creating a new
// PeerInfo at PeerActive status if none existed yet.
func (r *PeerRegistry) TouchSeen(pubkey types.PeerId) error {
	info, err := r.Get(pubkey)
	if eerr.Is(err, eerr.KindNotFound) {
		info = types.PeerInfo{PubKey: pubkey, FirstSeen: time.Now().UTC(), Status: types.PeerActive}
	} else if err != nil {
		return err
	}
	info.LastSeen = time.Now().UTC()
	info.Connected = true
	return r.Upsert(info)
}

// RecordError records a failed connection attempt against pubkey's
// known PeerInfo.
func (r *PeerRegistry) RecordError(pubkey types.PeerId, errMsg string) error {
	info, err := r.Get(pubkey)
	if eerr.Is(err, eerr.KindNotFound) {
		info = types.PeerInfo{PubKey: pubkey, FirstSeen: time.Now().UTC()}
	} else if err != nil {
		return err
	}
	info.ConnectionAttempts++
	info.LastError = errMsg
	info.Connected = false
	return r.Upsert(info)
}

// All returns every known peer.
func (r *PeerRegistry) All() ([]types.PeerInfo, error) {
	tx, err := r.sys.NewTransaction()
	if err != nil {
		return nil, err
	}
	defer tx.Drop()
	ds := store.NewDocStore(tx, peersSubtree)
	doc, err := ds.Doc()
	if err != nil {
		return nil, err
	}
	out := make([]types.PeerInfo, 0, doc.Len())
	var decodeErr error
	doc.Range(func(_ string, v crdt.Value) {
		if decodeErr != nil {
			return
		}
		raw, ok := textBytes(v)
		if !ok {
			return
		}
		info, err := decodePeerInfo(raw)
		if err != nil {
			decodeErr = err
			return
		}
		out = append(out, info)
	})
	if decodeErr != nil {
		return nil, decodeErr
	}
	return out, nil
}

func idSliceContains(ids []types.ID, target types.ID) bool {
	for _, id := range ids {
		if id == target {
			return true
		}
	}
	return false
}

func peerIDSliceContains(ids []types.PeerId, target types.PeerId) bool {
	for _, id := range ids {
		if id == target {
			return true
		}
	}
	return false
}

// LinkTree records that pubkey is linked to tree, updating both the
// peer_trees and tree_peers indexes.
func (r *PeerRegistry) LinkTree(pubkey types.PeerId, tree types.ID) error {
	tx, err := r.sys.NewTransaction()
	if err != nil {
		return err
	}

	peerTrees, err := r.readIDList(tx, peerTreesSubtree, string(pubkey))
	if err != nil {
		return err
	}
	if !idSliceContains(peerTrees, tree) {
		peerTrees = append(peerTrees, tree)
		if err := r.writeIDList(tx, peerTreesSubtree, string(pubkey), peerTrees); err != nil {
			return err
		}
	}

	treePeers, err := r.readPeerIDList(tx, treePeersSubtree, string(tree))
	if err != nil {
		return err
	}
	if !peerIDSliceContains(treePeers, pubkey) {
		treePeers = append(treePeers, pubkey)
		if err := r.writePeerIDList(tx, treePeersSubtree, string(tree), treePeers); err != nil {
			return err
		}
	}

	_, err = tx.Commit()
	return err
}

// PeersForTree returns every peer linked to tree.
func (r *PeerRegistry) PeersForTree(tree types.ID) ([]types.PeerId, error) {
	tx, err := r.sys.NewTransaction()
	if err != nil {
		return nil, err
	}
	defer tx.Drop()
	return r.readPeerIDList(tx, treePeersSubtree, string(tree))
}

// TreesForPeer returns every database pubkey is linked to.
func (r *PeerRegistry) TreesForPeer(pubkey types.PeerId) ([]types.ID, error) {
	tx, err := r.sys.NewTransaction()
	if err != nil {
		return nil, err
	}
	defer tx.Drop()
	return r.readIDList(tx, peerTreesSubtree, string(pubkey))
}

func (r *PeerRegistry) readIDList(tx *transaction.Transaction, subtree, key string) ([]types.ID, error) {
	ds := store.NewDocStore(tx, subtree)
	v, ok, err := ds.Get(key)
	if err != nil || !ok {
		return nil, err
	}
	raw, ok := textBytes(v)
	if !ok {
		return nil, eerr.Corruption("peer_registry", subtree+" entry is not a text payload")
	}
	var ids []types.ID
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, eerr.Wrap(eerr.KindSerialization, "peer_registry", "failed to decode id list", err)
	}
	return ids, nil
}

func (r *PeerRegistry) writeIDList(tx *transaction.Transaction, subtree, key string, ids []types.ID) error {
	raw, err := json.Marshal(ids)
	if err != nil {
		return eerr.Wrap(eerr.KindSerialization, "peer_registry", "failed to encode id list", err)
	}
	return store.NewDocStore(tx, subtree).Set(key, stateText(raw))
}

func (r *PeerRegistry) readPeerIDList(tx *transaction.Transaction, subtree, key string) ([]types.PeerId, error) {
	ds := store.NewDocStore(tx, subtree)
	v, ok, err := ds.Get(key)
	if err != nil || !ok {
		return nil, err
	}
	raw, ok := textBytes(v)
	if !ok {
		return nil, eerr.Corruption("peer_registry", subtree+" entry is not a text payload")
	}
	var ids []types.PeerId
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, eerr.Wrap(eerr.KindSerialization, "peer_registry", "failed to decode peer id list", err)
	}
	return ids, nil
}

func (r *PeerRegistry) writePeerIDList(tx *transaction.Transaction, subtree, key string, ids []types.PeerId) error {
	raw, err := json.Marshal(ids)
	if err != nil {
		return eerr.Wrap(eerr.KindSerialization, "peer_registry", "failed to encode peer id list", err)
	}
	return store.NewDocStore(tx, subtree).Set(key, stateText(raw))
}
