package engine

import (
	"fmt"

	"github.com/eideticadb/eidetica/pkg/eerr"
	"github.com/eideticadb/eidetica/pkg/entry"
	"github.com/eideticadb/eidetica/pkg/log"
	"github.com/eideticadb/eidetica/pkg/metrics"
	"github.com/eideticadb/eidetica/pkg/sync/transport"
	"github.com/eideticadb/eidetica/pkg/types"
)

// commandKind discriminates the engine's single command queue (spec
// §4.6 "Queue and commands"): AddTransport, StartServer, StopServer,
// GetServerAddress, GetAllServerAddresses, ConnectToPeer, SendEntries.
type commandKind int

const (
	cmdAddTransport commandKind = iota
	cmdStartServer
	cmdStopServer
	cmdGetServerAddress
	cmdGetAllServerAddresses
	cmdConnectToPeer
	cmdSendEntries
	cmdResyncAll
)

func (k commandKind) String() string {
	switch k {
	case cmdAddTransport:
		return "AddTransport"
	case cmdStartServer:
		return "StartServer"
	case cmdStopServer:
		return "StopServer"
	case cmdGetServerAddress:
		return "GetServerAddress"
	case cmdGetAllServerAddresses:
		return "GetAllServerAddresses"
	case cmdConnectToPeer:
		return "ConnectToPeer"
	case cmdSendEntries:
		return "SendEntries"
	case cmdResyncAll:
		return "ResyncAll"
	default:
		return "Unknown"
	}
}

// command is one entry on the engine's MPSC queue. Only the fields
// relevant to kind are populated.
type command struct {
	kind commandKind

	name      string
	transport transport.Transport
	bindAddr  string

	address types.Address
	peer    types.PeerId
	tree    types.ID
	entries []*entry.Entry

	reply chan result
}

type result struct {
	value any
	err   error
}

func (cmd command) respond(value any, err error) {
	if cmd.reply == nil {
		return
	}
	cmd.reply <- result{value: value, err: err}
}

// handle runs on the engine's single worker goroutine, so every
// transport/registry mutation here is inherently serialized — no
// additional locking needed within a command's handling.
func (e *Engine) handle(cmd command) {
	switch cmd.kind {
	case cmdAddTransport:
		e.doAddTransport(cmd)
	case cmdStartServer:
		e.doStartServer(cmd)
	case cmdStopServer:
		e.doStopServer(cmd)
	case cmdGetServerAddress:
		e.doGetServerAddress(cmd)
	case cmdGetAllServerAddresses:
		e.doGetAllServerAddresses(cmd)
	case cmdConnectToPeer:
		e.doConnectToPeer(cmd)
	case cmdSendEntries:
		e.doSendEntries(cmd)
	case cmdResyncAll:
		e.doResyncAll()
	}
}

func (e *Engine) doAddTransport(cmd command) {
	e.mu.Lock()
	if _, exists := e.transports[cmd.name]; exists {
		e.mu.Unlock()
		cmd.respond(nil, eerr.AlreadyExists("sync_add_transport", fmt.Sprintf("transport %q already registered", cmd.name)))
		return
	}
	e.transports[cmd.name] = cmd.transport
	e.mu.Unlock()
	cmd.respond(nil, nil)
}

func (e *Engine) namedTransport(name string) (transport.Transport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.transports[name]
	if !ok {
		return nil, eerr.NotFound("sync_transport", fmt.Sprintf("no transport registered as %q", name))
	}
	return t, nil
}

func (e *Engine) doStartServer(cmd command) {
	t, err := e.namedTransport(cmd.name)
	if err != nil {
		cmd.respond(nil, err)
		return
	}
	if err := t.Start(cmd.bindAddr); err != nil {
		cmd.respond(nil, err)
		return
	}
	addr := t.ServerAddress()
	if saveErr := e.transportReg.SaveState(cmd.name, struct {
		Address string `json:"address"`
	}{Address: addr}); saveErr != nil {
		log.Logger.Warn().Err(saveErr).Str("transport", cmd.name).Msg("sync: failed to persist transport state")
	}
	cmd.respond(addr, nil)
}

func (e *Engine) doStopServer(cmd command) {
	t, err := e.namedTransport(cmd.name)
	if err != nil {
		cmd.respond(nil, err)
		return
	}
	cmd.respond(nil, t.Stop())
}

func (e *Engine) doGetServerAddress(cmd command) {
	t, err := e.namedTransport(cmd.name)
	if err != nil {
		cmd.respond(nil, err)
		return
	}
	cmd.respond(t.ServerAddress(), nil)
}

func (e *Engine) doGetAllServerAddresses(cmd command) {
	e.mu.Lock()
	out := make(map[string]string, len(e.transports))
	for name, t := range e.transports {
		out[name] = t.ServerAddress()
	}
	e.mu.Unlock()
	cmd.respond(out, nil)
}

func (e *Engine) doConnectToPeer(cmd command) {
	t, err := e.namedTransport(transportNameFor(cmd.address))
	if err != nil {
		cmd.respond(nil, err)
		return
	}
	ctx, cancel := e.requestCtx()
	defer cancel()
	timer := metrics.NewTimer()
	resp, err := t.Send(ctx, cmd.address, protocolHandshakeRequest(e.localPeerID))
	timer.ObserveDurationVec(metrics.SyncRequestDuration, "handshake")
	if err != nil {
		metrics.SyncRequestFailuresTotal.WithLabelValues("handshake").Inc()
		if recErr := e.peers.RecordError(cmd.peer, err.Error()); recErr != nil {
			log.Logger.Warn().Err(recErr).Msg("sync: failed to record peer connection error")
		}
		cmd.respond(nil, err)
		return
	}
	if resp.HandshakeOk == nil {
		cmd.respond(nil, eerr.Transport("sync_connect", "peer did not answer with HandshakeOk"))
		return
	}
	peerID := resp.HandshakeOk.PubKey
	if err := e.peers.TouchSeen(peerID); err != nil {
		log.Logger.Warn().Err(err).Msg("sync: failed to record peer contact")
	}
	cmd.respond(peerID, nil)
}

func (e *Engine) doSendEntries(cmd command) {
	t, peerInfo, err := e.transportForPeer(cmd.peer)
	if err != nil {
		cmd.respond(nil, err)
		return
	}
	ctx, cancel := e.requestCtx()
	defer cancel()
	req := protocolPushRequest(cmd.tree, cmd.entries)
	timer := metrics.NewTimer()
	resp, err := t.Send(ctx, peerAddress(peerInfo, cmd.peer), req)
	timer.ObserveDurationVec(metrics.SyncRequestDuration, "push_entries")
	if err != nil {
		metrics.SyncRequestFailuresTotal.WithLabelValues("push_entries").Inc()
		if recErr := e.peers.RecordError(cmd.peer, err.Error()); recErr != nil {
			log.Logger.Warn().Err(recErr).Msg("sync: failed to record push failure")
		}
		cmd.respond(nil, err)
		return
	}
	if resp.Error != nil {
		metrics.SyncRequestFailuresTotal.WithLabelValues("push_entries").Inc()
		cmd.respond(nil, eerr.Transport("sync_send_entries", resp.Error.Message))
		return
	}
	metrics.SyncPushEntriesTotal.Add(float64(len(cmd.entries)))
	if touchErr := e.peers.TouchSeen(cmd.peer); touchErr != nil {
		log.Logger.Warn().Err(touchErr).Msg("sync: failed to record successful push")
	}
	cmd.respond(resp.PushOk, nil)
}

func (e *Engine) doResyncAll() {
	peers, err := e.peers.All()
	if err != nil {
		log.Logger.Warn().Err(err).Msg("sync: resync failed to list peers")
		return
	}
	for _, p := range peers {
		trees, err := e.peers.TreesForPeer(p.PubKey)
		if err != nil {
			continue
		}
		for _, tree := range trees {
			e.pullFrom(p, tree)
		}
	}
}

// transportNameFor picks which registered transport name should carry
// address, by matching its auto-detected type (spec §4.6 "Transport
// auto-detection") against the name transports were registered under.
// Transports are conventionally named after their type ("http", "p2p"),
// which this relies on: an address only ever reaches the transport
// registered under its TransportType, or under its detected type when
// TransportType is empty.
func transportNameFor(address types.Address) string {
	if address.TransportType != "" {
		return address.TransportType
	}
	return transport.DetectType(address.Address)
}
