// Package engine implements spec §4.6's background sync engine: a
// single-threaded cooperative task that owns a named set of Transports,
// answers an instance.Instance's onLocalWrite commit callback with a
// non-blocking fan-out to linked peers, and periodically resyncs
// tracked databases. Grounded on the non-blocking
// publish/subscribe-with-drop pattern of
// cuemby-warren/pkg/events/events.go's Broker (buffered channel,
// select-with-default broadcast), adapted from pub/sub fan-out to a
// single command queue a lone worker goroutine drains.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/eideticadb/eidetica/pkg/database"
	"github.com/eideticadb/eidetica/pkg/eerr"
	"github.com/eideticadb/eidetica/pkg/entry"
	"github.com/eideticadb/eidetica/pkg/instance"
	"github.com/eideticadb/eidetica/pkg/log"
	"github.com/eideticadb/eidetica/pkg/metrics"
	"github.com/eideticadb/eidetica/pkg/sync/bootstrap"
	"github.com/eideticadb/eidetica/pkg/sync/protocol"
	"github.com/eideticadb/eidetica/pkg/sync/registry"
	"github.com/eideticadb/eidetica/pkg/sync/transport"
	"github.com/eideticadb/eidetica/pkg/transaction"
	"github.com/eideticadb/eidetica/pkg/types"
)

// Config tunes an Engine's background behavior.
type Config struct {
	// QueueCapacity bounds the command channel (spec §5 "the sync
	// queue has a bounded capacity"). Zero defaults to 256.
	QueueCapacity int

	// ResyncInterval is how often the engine reconnects to every known
	// peer for every database it's linked to, compensating for any
	// commit-callback notification dropped under backpressure. Zero
	// disables periodic resync.
	ResyncInterval time.Duration

	// RequestTimeout bounds every Transport.Send call (spec §5 "every
	// sync RPC has an explicit timeout"). Zero defaults to 30s.
	RequestTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = 256
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 30 * time.Second
	}
	return c
}

// Engine is the cooperative background task described by spec §4.6: it
// owns the transport set, the peer and bootstrap registries, and the
// outbound command queue, and implements instance.SyncEngine so an
// Instance can drive it without depending on this package.
type Engine struct {
	inst        *instance.Instance
	sys         *database.Database
	signer      transaction.Signer
	localPeerID types.PeerId
	cfg         Config

	handler      *protocol.Handler
	bootstrapMgr *bootstrap.Manager
	peers        *registry.PeerRegistry
	transportReg *registry.TransportRegistry

	mu         sync.Mutex
	transports map[string]transport.Transport

	cmdCh   chan command
	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool
}

// New builds an Engine. sys is a dedicated system database (distinct
// from any database the instance tracks for application data) the
// engine persists its transport state, peer registry, and bootstrap
// requests into. signer is the local device's identity, used both as
// the engine's localPeerID and to sign any auth key added while
// auto-approving a bootstrap.
func New(inst *instance.Instance, sys *database.Database, signer transaction.Signer, cfg Config) *Engine {
	cfg = cfg.withDefaults()
	bootstrapMgr := bootstrap.NewManager(sys)
	e := &Engine{
		inst:         inst,
		sys:          sys,
		signer:       signer,
		localPeerID:  signer.PeerID(),
		cfg:          cfg,
		bootstrapMgr: bootstrapMgr,
		peers:        registry.NewPeerRegistry(sys),
		transportReg: registry.NewTransportRegistry(sys),
		transports:   make(map[string]transport.Transport),
		cmdCh:        make(chan command, cfg.QueueCapacity),
		stopCh:       make(chan struct{}),
	}
	e.handler = protocol.NewHandler(inst.Backend(), inst, bootstrapMgr, e.localPeerID, signer)
	e.handler.SyncEnabled = e.isSyncEnabled
	return e
}

// Bootstrap exposes the engine's bootstrap request manager so an
// administrator can list and decide pending requests.
func (e *Engine) Bootstrap() *bootstrap.Manager { return e.bootstrapMgr }

// Peers exposes the engine's peer registry for inspection.
func (e *Engine) Peers() *registry.PeerRegistry { return e.peers }

// Handler exposes the engine's request dispatcher, so a caller can bind
// a server-capable Transport to it before registering that transport
// with AddTransport (e.g. transport.NewHTTP(engine.Handler())).
func (e *Engine) Handler() *protocol.Handler { return e.handler }

// isSyncEnabled reports whether any registered user tracks tree with
// SyncPrefs.SyncEnabled, gating sync-tree requests per spec §4.6's
// "sync-enabled gating".
func (e *Engine) isSyncEnabled(tree types.ID) bool {
	for _, u := range e.inst.Users() {
		for _, td := range e.inst.TrackedDatabases(u) {
			if td.Tree == tree && td.Prefs.SyncEnabled {
				return true
			}
		}
	}
	return false
}

// Start implements instance.SyncEngine: launches the command-processing
// loop and, if configured, the periodic resync ticker.
func (e *Engine) Start() error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return eerr.AlreadyExists("sync_engine_start", "engine already started")
	}
	e.running = true
	e.mu.Unlock()

	e.wg.Add(1)
	go e.run()

	if e.cfg.ResyncInterval > 0 {
		e.wg.Add(1)
		go e.resyncLoop()
	}
	return nil
}

// Stop implements instance.SyncEngine: signals the background
// goroutines to exit, stops every started transport, and waits for
// shutdown to complete.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = false
	e.mu.Unlock()

	close(e.stopCh)
	e.wg.Wait()

	e.mu.Lock()
	transports := make([]transport.Transport, 0, len(e.transports))
	for _, t := range e.transports {
		transports = append(transports, t)
	}
	e.mu.Unlock()

	var firstErr error
	for _, t := range transports {
		if err := t.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// NotifyLocalWrite implements instance.SyncEngine: the commit-callback
// fan-out of spec §4.6. For every user tracking e's tree with
// SyncOnCommit, the entry is pushed to every peer linked to that tree.
// Enqueueing is non-blocking: a full queue logs and drops the
// notification (spec §5 backpressure), relying on periodic resync to
// compensate.
func (e *Engine) NotifyLocalWrite(tree types.ID, ent *entry.Entry) {
	wantsPush := false
	for _, u := range e.inst.Users() {
		for _, td := range e.inst.TrackedDatabases(u) {
			if td.Tree == tree && td.Prefs.SyncEnabled && td.Prefs.SyncOnCommit {
				wantsPush = true
			}
		}
	}
	if !wantsPush {
		return
	}

	peerIDs, err := e.peers.PeersForTree(tree)
	if err != nil {
		log.Logger.Warn().Err(err).Str("tree", string(tree)).Msg("sync: failed to look up linked peers for commit fan-out")
		return
	}
	for _, p := range peerIDs {
		e.enqueue(command{kind: cmdSendEntries, peer: p, tree: tree, entries: []*entry.Entry{ent}})
	}
}

// enqueue offers cmd to the command queue without blocking, dropping
// and logging it if the queue is full.
func (e *Engine) enqueue(cmd command) {
	select {
	case e.cmdCh <- cmd:
		metrics.SyncQueueDepth.Set(float64(len(e.cmdCh)))
	default:
		metrics.SyncCommandsDroppedTotal.Inc()
		log.Logger.Warn().Str("kind", cmd.kind.String()).Msg("sync: command queue full, dropping command")
	}
}

// submit offers cmd and blocks for its reply, for commands a caller
// needs a result from (AddTransport, StartServer, GetServerAddress,
// ConnectToPeer). Unlike enqueue, these callers actively await the
// outcome rather than firing and forgetting.
func (e *Engine) submit(cmd command) (any, error) {
	cmd.reply = make(chan result, 1)
	select {
	case e.cmdCh <- cmd:
	case <-e.stopCh:
		return nil, eerr.Operation("sync_engine", "engine is stopped")
	}
	select {
	case r := <-cmd.reply:
		return r.value, r.err
	case <-e.stopCh:
		return nil, eerr.Operation("sync_engine", "engine stopped before command completed")
	}
}

func (e *Engine) run() {
	defer e.wg.Done()
	for {
		select {
		case cmd := <-e.cmdCh:
			metrics.SyncQueueDepth.Set(float64(len(e.cmdCh)))
			e.handle(cmd)
		case <-e.stopCh:
			return
		}
	}
}

func (e *Engine) resyncLoop() {
	defer e.wg.Done()
	ticker := time.NewTicker(e.cfg.ResyncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			e.enqueue(command{kind: cmdResyncAll})
		case <-e.stopCh:
			return
		}
	}
}

func (e *Engine) requestCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), e.cfg.RequestTimeout)
}

var _ instance.SyncEngine = (*Engine)(nil)
