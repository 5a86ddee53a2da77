package engine

import (
	"github.com/eideticadb/eidetica/pkg/eerr"
	"github.com/eideticadb/eidetica/pkg/entry"
	"github.com/eideticadb/eidetica/pkg/log"
	"github.com/eideticadb/eidetica/pkg/metrics"
	"github.com/eideticadb/eidetica/pkg/sync/bootstrap"
	"github.com/eideticadb/eidetica/pkg/sync/protocol"
	"github.com/eideticadb/eidetica/pkg/sync/transport"
	"github.com/eideticadb/eidetica/pkg/transaction"
	"github.com/eideticadb/eidetica/pkg/types"
)

func protocolHandshakeRequest(localPeerID types.PeerId) protocol.Request {
	return protocol.NewHandshakeRequest(protocol.Handshake{PubKey: localPeerID, Capabilities: []string{"sync-tree/1"}})
}

func protocolPushRequest(tree types.ID, entries []*entry.Entry) protocol.Request {
	return protocol.NewPushEntriesRequest(tree, entries)
}

// transportForPeer picks the transport and address to reach peer
// through, using its first known address. A peer with no recorded
// address can't be reached proactively; it must connect to us instead.
func (e *Engine) transportForPeer(peer types.PeerId) (transport.Transport, types.PeerInfo, error) {
	info, err := e.peers.Get(peer)
	if err != nil {
		return nil, types.PeerInfo{}, err
	}
	if len(info.Addresses) == 0 {
		return nil, types.PeerInfo{}, eerr.NotFound("sync_transport_for_peer", "peer has no known address")
	}
	addr := info.Addresses[0]
	t, err := e.namedTransport(transportNameFor(addr))
	if err != nil {
		return nil, types.PeerInfo{}, err
	}
	return t, info, nil
}

func peerAddress(info types.PeerInfo, peer types.PeerId) types.Address {
	if len(info.Addresses) == 0 {
		return types.Address{}
	}
	return info.Addresses[0]
}

// pullFrom asks p for whatever it has on tree that we're missing, and
// applies the returned entries locally. Used by periodic resync
// (doResyncAll); ConnectToPeer only handshakes and does not pull. This
// is the pull half of convergence, complementing the push the commit
// callback performs.
func (e *Engine) pullFrom(p types.PeerInfo, tree types.ID) {
	if len(p.Addresses) == 0 {
		return
	}
	t, err := e.namedTransport(transportNameFor(p.Addresses[0]))
	if err != nil {
		return
	}

	ourTips, err := e.inst.Backend().GetTips(tree)
	if err != nil {
		log.Logger.Warn().Err(err).Str("tree", string(tree)).Msg("sync: resync failed to read local tips")
		return
	}

	ctx, cancel := e.requestCtx()
	defer cancel()
	timer := metrics.NewTimer()
	resp, err := t.Send(ctx, p.Addresses[0], protocol.NewSyncTreeRequest(protocol.SyncTree{TreeID: tree, OurTips: ourTips}))
	timer.ObserveDurationVec(metrics.SyncRequestDuration, "sync_tree")
	if err != nil {
		metrics.SyncRequestFailuresTotal.WithLabelValues("sync_tree").Inc()
		if recErr := e.peers.RecordError(p.PubKey, err.Error()); recErr != nil {
			log.Logger.Warn().Err(recErr).Msg("sync: failed to record resync failure")
		}
		return
	}
	if resp.Error != nil || resp.SyncTreeOk == nil {
		return
	}
	applied := 0
	for _, ent := range resp.SyncTreeOk.Entries {
		ok, err := transaction.ApplyRemoteEntry(e.inst.Backend(), ent)
		if err != nil {
			log.Logger.Warn().Err(err).Str("tree", string(tree)).Msg("sync: rejected entry received from peer")
			continue
		}
		if ok {
			applied++
		}
	}
	if applied > 0 {
		metrics.SyncPullAppliedTotal.Add(float64(applied))
		log.Logger.Debug().Int("applied", applied).Str("tree", string(tree)).Msg("sync: applied entries from peer")
	}
	if touchErr := e.peers.TouchSeen(p.PubKey); touchErr != nil {
		log.Logger.Warn().Err(touchErr).Msg("sync: failed to record successful pull")
	}
}

// AddTransport registers t under name, so ConnectToPeer/StartServer can
// address it (spec §4.6 "AddTransport{name, transport}").
func (e *Engine) AddTransport(name string, t transport.Transport) error {
	_, err := e.submit(command{kind: cmdAddTransport, name: name, transport: t})
	return err
}

// StartServer starts the named transport's server at bindAddr and
// returns the address it bound to.
func (e *Engine) StartServer(name, bindAddr string) (string, error) {
	v, err := e.submit(command{kind: cmdStartServer, name: name, bindAddr: bindAddr})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// StopServer stops the named transport's server.
func (e *Engine) StopServer(name string) error {
	_, err := e.submit(command{kind: cmdStopServer, name: name})
	return err
}

// GetServerAddress returns the named transport's bound address.
func (e *Engine) GetServerAddress(name string) (string, error) {
	v, err := e.submit(command{kind: cmdGetServerAddress, name: name})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// GetAllServerAddresses returns every registered transport's bound
// address, keyed by transport name.
func (e *Engine) GetAllServerAddresses() (map[string]string, error) {
	v, err := e.submit(command{kind: cmdGetAllServerAddresses})
	if err != nil {
		return nil, err
	}
	return v.(map[string]string), nil
}

// ConnectToPeer handshakes with address and records the resulting peer
// identity, returning its pubkey.
func (e *Engine) ConnectToPeer(address types.Address) (types.PeerId, error) {
	v, err := e.submit(command{kind: cmdConnectToPeer, address: address})
	if err != nil {
		return "", err
	}
	return v.(types.PeerId), nil
}

// SendEntries pushes entries for tree directly to peer. Used by
// callers that already know which peer should receive which entries,
// outside the automatic commit-callback fan-out.
func (e *Engine) SendEntries(peer types.PeerId, tree types.ID, entries []*entry.Entry) error {
	_, err := e.submit(command{kind: cmdSendEntries, peer: peer, tree: tree, entries: entries})
	return err
}

// LinkPeer records that peer is reachable at address and is linked to
// tree, so the commit callback and periodic resync both know to
// contact it. This is the engine-level counterpart to the protocol
// handler admitting a bootstrap key on the receiving side.
func (e *Engine) LinkPeer(peer types.PeerId, address types.Address, tree types.ID) error {
	if err := e.peers.Upsert(types.PeerInfo{PubKey: peer, Addresses: []types.Address{address}, Status: types.PeerActive}); err != nil {
		return err
	}
	return e.peers.LinkTree(peer, tree)
}

// ApproveBootstrap implements spec §4.6's
// approve_bootstrap_request_with_key: load tree, require the engine's
// own signer hold Admin, add the requesting key, and flip the request
// to Approved.
func (e *Engine) ApproveBootstrap(tree types.ID, requestID string) error {
	db, err := e.inst.LoadDatabase(tree)
	if err != nil {
		return err
	}
	return bootstrap.ApproveWithKey(e.bootstrapMgr, db, requestID, e.signer)
}

// RejectBootstrap implements the symmetric rejection path: requires
// Admin, flips the request to Rejected, does not touch auth.
func (e *Engine) RejectBootstrap(tree types.ID, requestID string) error {
	db, err := e.inst.LoadDatabase(tree)
	if err != nil {
		return err
	}
	return bootstrap.RejectWithKey(e.bootstrapMgr, db, requestID, e.signer)
}
