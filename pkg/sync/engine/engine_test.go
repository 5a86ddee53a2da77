package engine

import (
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eideticadb/eidetica/pkg/backend"
	"github.com/eideticadb/eidetica/pkg/crdt"
	"github.com/eideticadb/eidetica/pkg/database"
	"github.com/eideticadb/eidetica/pkg/instance"
	"github.com/eideticadb/eidetica/pkg/store"
	"github.com/eideticadb/eidetica/pkg/sync/transport"
	"github.com/eideticadb/eidetica/pkg/transaction"
	"github.com/eideticadb/eidetica/pkg/types"
)

func newTestSigner(t *testing.T) transaction.Signer {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return transaction.NewEd25519Signer(priv)
}

// node bundles everything one simulated participant owns: its own
// backend, Instance, and Engine, sharing nothing with another node's
// node except whatever entries get copied across by sync.
type node struct {
	inst   *instance.Instance
	engine *Engine
}

func newNode(t *testing.T, sysName string) *node {
	t.Helper()
	b := backend.NewMemory()
	device := newTestSigner(t)
	inst, err := instance.Open(b, device)
	require.NoError(t, err)
	sys, err := database.Create(b, device, sysName, nil)
	require.NoError(t, err)
	e := New(inst, sys, device, Config{})
	require.NoError(t, inst.EnableSync(e))
	t.Cleanup(func() { _ = inst.DisableSync() })
	return &node{inst: inst, engine: e}
}

func (n *node) serveHTTP(t *testing.T) string {
	t.Helper()
	require.NoError(t, n.engine.AddTransport("http", transport.NewHTTP(n.engine.Handler())))
	addr, err := n.engine.StartServer("http", "")
	require.NoError(t, err)
	return addr
}

func (n *node) clientOnlyHTTP(t *testing.T) {
	t.Helper()
	require.NoError(t, n.engine.AddTransport("http", transport.NewHTTP(nil)))
}

func TestEngineStartTwiceFails(t *testing.T) {
	n := newNode(t, "_sync")
	err := n.engine.Start()
	assert.Error(t, err)
}

func TestEngineStopIsIdempotent(t *testing.T) {
	n := newNode(t, "_sync")
	require.NoError(t, n.engine.Stop())
	require.NoError(t, n.engine.Stop())
}

func TestAddTransportDuplicateNameFails(t *testing.T) {
	n := newNode(t, "_sync")
	require.NoError(t, n.engine.AddTransport("http", transport.NewHTTP(nil)))
	err := n.engine.AddTransport("http", transport.NewHTTP(nil))
	assert.Error(t, err)
}

func TestStartServerPersistsAddressAndGetServerAddress(t *testing.T) {
	n := newNode(t, "_sync")
	addr := n.serveHTTP(t)
	assert.NotEmpty(t, addr)

	got, err := n.engine.GetServerAddress("http")
	require.NoError(t, err)
	assert.Equal(t, addr, got)

	all, err := n.engine.GetAllServerAddresses()
	require.NoError(t, err)
	assert.Equal(t, addr, all["http"])
}

func TestGetServerAddressUnknownTransportFails(t *testing.T) {
	n := newNode(t, "_sync")
	_, err := n.engine.GetServerAddress("http")
	assert.Error(t, err)
}

func TestConnectToPeerHandshakes(t *testing.T) {
	a := newNode(t, "_syncA")
	b := newNode(t, "_syncB")

	addrB := b.serveHTTP(t)
	a.clientOnlyHTTP(t)

	peerID, err := a.engine.ConnectToPeer(types.Address{TransportType: "http", Address: addrB})
	require.NoError(t, err)
	assert.Equal(t, b.inst.DeviceKey(), peerID)

	info, err := a.engine.Peers().Get(peerID)
	require.NoError(t, err)
	assert.True(t, info.Connected)
}

func TestConnectToPeerUnreachableRecordsError(t *testing.T) {
	a := newNode(t, "_syncA")
	a.clientOnlyHTTP(t)

	_, err := a.engine.ConnectToPeer(types.Address{TransportType: "http", Address: "127.0.0.1:1"})
	assert.Error(t, err)
}

// TestNotifyLocalWritePushesToLinkedPeer exercises the full
// commit-callback fan-out: A commits to a database B already has a
// replica of, and the new entry reaches B's backend without B ever
// polling for it.
func TestNotifyLocalWritePushesToLinkedPeer(t *testing.T) {
	a := newNode(t, "_syncA")
	b := newNode(t, "_syncB")

	db, err := a.inst.CreateDatabase("notes")
	require.NoError(t, err)

	a.serveHTTP(t)
	addrB := b.serveHTTP(t)

	// Seed B with A's root entry directly, simulating a completed
	// bootstrap: B already trusts A's admin key without going through
	// the bootstrap request flow this test isn't exercising.
	history, err := db.History()
	require.NoError(t, err)
	require.Len(t, history, 1)
	root := history[0]
	require.NoError(t, b.inst.Backend().Put(types.Verified, root))

	dbB, err := b.inst.LoadDatabase(db.Tree())
	require.NoError(t, err)

	// B must opt a user into syncing this tree before its handler will
	// accept an incoming push for it (spec §4.6's sync-enabled gating
	// applies to receivers too, not just requesters).
	userB := instance.NewUser("bob", newTestSigner(t))
	require.NoError(t, b.inst.RegisterUser(userB))
	b.inst.TrackDatabase(userB, dbB, instance.SyncPrefs{SyncEnabled: true})

	peerB, err := a.engine.ConnectToPeer(types.Address{TransportType: "http", Address: addrB})
	require.NoError(t, err)
	require.NoError(t, a.engine.LinkPeer(peerB, types.Address{TransportType: "http", Address: addrB}, db.Tree()))

	userA := instance.NewUser("alice", newTestSigner(t))
	require.NoError(t, a.inst.RegisterUser(userA))
	a.inst.TrackDatabase(userA, db, instance.SyncPrefs{SyncEnabled: true, SyncOnCommit: true})

	tx, err := db.NewTransaction()
	require.NoError(t, err)
	require.NoError(t, store.NewDocStore(tx, "items").Set("a", crdt.Text("hello")))
	committed, err := tx.Commit()
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err := dbB.Get(committed.ID())
		return err == nil
	}, 2*time.Second, 20*time.Millisecond, "pushed entry never arrived at B")
}
