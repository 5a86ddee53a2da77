package registry

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eideticadb/eidetica/pkg/backend"
	"github.com/eideticadb/eidetica/pkg/database"
	"github.com/eideticadb/eidetica/pkg/eerr"
	"github.com/eideticadb/eidetica/pkg/transaction"
	"github.com/eideticadb/eidetica/pkg/types"
)

func newRegistryFixture(t *testing.T) *PeerRegistry {
	t.Helper()
	b := backend.NewMemory()
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	signer := transaction.NewEd25519Signer(priv)
	sys, err := database.Create(b, signer, "_sync", nil)
	require.NoError(t, err)
	return NewPeerRegistry(sys)
}

func TestGetUnknownPeerReturnsNotFound(t *testing.T) {
	r := newRegistryFixture(t)
	_, err := r.Get("ed25519:nobody")
	require.Error(t, err)
	assert.True(t, eerr.Is(err, eerr.KindNotFound))
}

func TestUpsertAndGet(t *testing.T) {
	r := newRegistryFixture(t)
	info := types.PeerInfo{
		PubKey:    "ed25519:alice",
		Addresses: []types.Address{{TransportType: "http", Address: "127.0.0.1:9000"}},
		Status:    types.PeerActive,
	}
	require.NoError(t, r.Upsert(info))

	got, err := r.Get("ed25519:alice")
	require.NoError(t, err)
	assert.Equal(t, info.PubKey, got.PubKey)
	assert.Equal(t, info.Addresses, got.Addresses)
	assert.Equal(t, types.PeerActive, got.Status)
}

func TestTouchSeenCreatesPeerIfUnknown(t *testing.T) {
	r := newRegistryFixture(t)
	require.NoError(t, r.TouchSeen("ed25519:bob"))

	got, err := r.Get("ed25519:bob")
	require.NoError(t, err)
	assert.Equal(t, types.PeerActive, got.Status)
	assert.True(t, got.Connected)
	assert.False(t, got.FirstSeen.IsZero())
	assert.False(t, got.LastSeen.IsZero())
}

func TestRecordErrorTracksAttemptsAndMarksDisconnected(t *testing.T) {
	r := newRegistryFixture(t)
	require.NoError(t, r.TouchSeen("ed25519:carol"))
	require.NoError(t, r.RecordError("ed25519:carol", "dial tcp: connection refused"))

	got, err := r.Get("ed25519:carol")
	require.NoError(t, err)
	assert.Equal(t, 1, got.ConnectionAttempts)
	assert.Equal(t, "dial tcp: connection refused", got.LastError)
	assert.False(t, got.Connected)

	require.NoError(t, r.RecordError("ed25519:carol", "timeout"))
	got, err = r.Get("ed25519:carol")
	require.NoError(t, err)
	assert.Equal(t, 2, got.ConnectionAttempts)
}

func TestAllReturnsEveryUpsertedPeer(t *testing.T) {
	r := newRegistryFixture(t)
	require.NoError(t, r.Upsert(types.PeerInfo{PubKey: "ed25519:a"}))
	require.NoError(t, r.Upsert(types.PeerInfo{PubKey: "ed25519:b"}))

	all, err := r.All()
	require.NoError(t, err)
	require.Len(t, all, 2)
	pubkeys := map[types.PeerId]bool{}
	for _, p := range all {
		pubkeys[p.PubKey] = true
	}
	assert.True(t, pubkeys["ed25519:a"])
	assert.True(t, pubkeys["ed25519:b"])
}

func TestLinkTreeAndPeersForTree(t *testing.T) {
	r := newRegistryFixture(t)
	tree := types.ID("sha256:tree1")

	require.NoError(t, r.LinkTree("ed25519:a", tree))
	require.NoError(t, r.LinkTree("ed25519:b", tree))
	require.NoError(t, r.LinkTree("ed25519:a", tree)) // idempotent

	peers, err := r.PeersForTree(tree)
	require.NoError(t, err)
	require.Len(t, peers, 2)
	assert.Contains(t, peers, types.PeerId("ed25519:a"))
	assert.Contains(t, peers, types.PeerId("ed25519:b"))
}

func TestTreesForPeer(t *testing.T) {
	r := newRegistryFixture(t)
	treeA := types.ID("sha256:a")
	treeB := types.ID("sha256:b")

	require.NoError(t, r.LinkTree("ed25519:a", treeA))
	require.NoError(t, r.LinkTree("ed25519:a", treeB))

	trees, err := r.TreesForPeer("ed25519:a")
	require.NoError(t, err)
	require.Len(t, trees, 2)
	assert.Contains(t, trees, treeA)
	assert.Contains(t, trees, treeB)
}

func TestPeersForTreeEmptyWhenNoneLinked(t *testing.T) {
	r := newRegistryFixture(t)
	peers, err := r.PeersForTree(types.ID("sha256:unlinked"))
	require.NoError(t, err)
	assert.Empty(t, peers)
}
