// Package backendtest is the conformance suite every Backend
// implementation must pass (spec §4.2 "tests must pass against all").
// Each implementation's own _test.go calls Run with a fresh instance.
package backendtest

import (
	"testing"

	"github.com/eideticadb/eidetica/pkg/backend"
	"github.com/eideticadb/eidetica/pkg/entry"
	"github.com/eideticadb/eidetica/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory builds a fresh, empty Backend for a single test's use.
type Factory func(t *testing.T) backend.Backend

func root(t *testing.T, tree types.ID) *entry.Entry {
	t.Helper()
	e, err := entry.Build(tree, nil, nil, []entry.StoreNode{{Name: types.RootMarker}}, entry.SigInfo{})
	require.NoError(t, err)
	return e
}

func child(t *testing.T, tree types.ID, parents []*entry.Entry, stores []entry.StoreNode) *entry.Entry {
	t.Helper()
	ids := make([]types.ID, len(parents))
	heights := make([]int, len(parents))
	for i, p := range parents {
		ids[i] = p.ID()
		heights[i] = p.Height
	}
	e, err := entry.Build(tree, ids, heights, stores, entry.SigInfo{})
	require.NoError(t, err)
	return e
}

// Run executes the full conformance suite against a backend built by
// newBackend.
func Run(t *testing.T, newBackend Factory) {
	t.Run("PutAndGet", func(t *testing.T) { testPutAndGet(t, newBackend) })
	t.Run("VerificationStatus", func(t *testing.T) { testVerificationStatus(t, newBackend) })
	t.Run("TipTracking", func(t *testing.T) { testTipTracking(t, newBackend) })
	t.Run("TopoSortOrder", func(t *testing.T) { testTopoSortOrder(t, newBackend) })
	t.Run("AllRoots", func(t *testing.T) { testAllRoots(t, newBackend) })
	t.Run("MergeBase", func(t *testing.T) { testMergeBase(t, newBackend) })
	t.Run("CRDTCache", func(t *testing.T) { testCRDTCache(t, newBackend) })
	t.Run("InstanceMetadata", func(t *testing.T) { testInstanceMetadata(t, newBackend) })
}

func testPutAndGet(t *testing.T, newBackend Factory) {
	b := newBackend(t)
	defer b.Close()

	r := root(t, "tree1")
	require.NoError(t, b.Put(types.Verified, r))

	got, err := b.Get(r.ID())
	require.NoError(t, err)
	assert.Equal(t, r.ID(), got.ID())

	_, err = b.Get("sha256:missing")
	assert.Error(t, err)
}

func testVerificationStatus(t *testing.T, newBackend Factory) {
	b := newBackend(t)
	defer b.Close()

	r := root(t, "tree1")
	require.NoError(t, b.Put(types.Unverified, r))

	s, err := b.GetVerificationStatus(r.ID())
	require.NoError(t, err)
	assert.Equal(t, types.Unverified, s)

	require.NoError(t, b.UpdateVerificationStatus(r.ID(), types.Verified))
	s, err = b.GetVerificationStatus(r.ID())
	require.NoError(t, err)
	assert.Equal(t, types.Verified, s)

	ids, err := b.GetEntriesByVerificationStatus(types.Verified)
	require.NoError(t, err)
	assert.Contains(t, ids, r.ID())
}

func testTipTracking(t *testing.T, newBackend Factory) {
	b := newBackend(t)
	defer b.Close()

	r := root(t, "tree1")
	require.NoError(t, b.Put(types.Verified, r))

	tips, err := b.GetTips("tree1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []types.ID{r.ID()}, tips)

	c := child(t, "tree1", []*entry.Entry{r}, []entry.StoreNode{{Name: "notes", Parents: nil}})
	require.NoError(t, b.Put(types.Verified, c))

	tips, err = b.GetTips("tree1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []types.ID{c.ID()}, tips)
}

func testTopoSortOrder(t *testing.T, newBackend Factory) {
	b := newBackend(t)
	defer b.Close()

	r := root(t, "tree1")
	require.NoError(t, b.Put(types.Verified, r))
	c := child(t, "tree1", []*entry.Entry{r}, []entry.StoreNode{{Name: "notes"}})
	require.NoError(t, b.Put(types.Verified, c))

	entries, err := b.GetTree("tree1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.True(t, entries[0].Height <= entries[1].Height)
	assert.Equal(t, r.ID(), entries[0].ID())
}

func testAllRoots(t *testing.T, newBackend Factory) {
	b := newBackend(t)
	defer b.Close()

	r1 := root(t, "tree1")
	r2 := root(t, "tree2")
	require.NoError(t, b.Put(types.Verified, r1))
	require.NoError(t, b.Put(types.Verified, r2))

	roots, err := b.AllRoots()
	require.NoError(t, err)
	assert.Len(t, roots, 2)
}

func testMergeBase(t *testing.T, newBackend Factory) {
	b := newBackend(t)
	defer b.Close()

	r := root(t, "tree1")
	require.NoError(t, b.Put(types.Verified, r))
	data := "v1"
	base := child(t, "tree1", []*entry.Entry{r}, []entry.StoreNode{{Name: "doc", Data: &data}})
	require.NoError(t, b.Put(types.Verified, base))

	leftData := "left"
	left := child(t, "tree1", []*entry.Entry{base}, []entry.StoreNode{{Name: "doc", Parents: []types.ID{base.ID()}, Data: &leftData}})
	require.NoError(t, b.Put(types.Verified, left))

	rightData := "right"
	right := child(t, "tree1", []*entry.Entry{base}, []entry.StoreNode{{Name: "doc", Parents: []types.ID{base.ID()}, Data: &rightData}})
	require.NoError(t, b.Put(types.Verified, right))

	mb, err := b.FindMergeBase("tree1", "doc", []types.ID{left.ID(), right.ID()})
	require.NoError(t, err)
	assert.Equal(t, base.ID(), mb)
}

func testCRDTCache(t *testing.T, newBackend Factory) {
	b := newBackend(t)
	defer b.Close()

	_, ok := b.GetCachedCRDTState("sha256:x", "doc")
	assert.False(t, ok)

	b.ClearCRDTCache()
	_, ok = b.GetCachedCRDTState("sha256:x", "doc")
	assert.False(t, ok)
}

func testInstanceMetadata(t *testing.T, newBackend Factory) {
	b := newBackend(t)
	defer b.Close()

	_, err := b.GetInstanceMetadata()
	assert.Error(t, err)

	meta := backend.InstanceMetadata{DeviceKeyPubKey: types.PeerId("ed25519:abc")}
	require.NoError(t, b.SetInstanceMetadata(meta))

	got, err := b.GetInstanceMetadata()
	require.NoError(t, err)
	assert.Equal(t, meta.DeviceKeyPubKey, got.DeviceKeyPubKey)
}
