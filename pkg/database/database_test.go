package database

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eideticadb/eidetica/pkg/backend"
	"github.com/eideticadb/eidetica/pkg/crdt"
	"github.com/eideticadb/eidetica/pkg/store"
	"github.com/eideticadb/eidetica/pkg/transaction"
)

func newSigner(t *testing.T) transaction.Signer {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return transaction.NewEd25519Signer(priv)
}

func TestCreateBootstrapsNameAndAuth(t *testing.T) {
	b := backend.NewMemory()
	signer := newSigner(t)

	db, err := Create(b, signer, "my-notes", nil)
	require.NoError(t, err)

	name, err := db.Name()
	require.NoError(t, err)
	assert.Equal(t, "my-notes", name)

	tips, err := db.Tips()
	require.NoError(t, err)
	assert.Len(t, tips, 1)

	history, err := db.History()
	require.NoError(t, err)
	assert.Len(t, history, 1)
	assert.True(t, history[0].IsRoot())
}

func TestLoadRejectsEmptyTree(t *testing.T) {
	b := backend.NewMemory()
	signer := newSigner(t)

	_, err := Load(b, "sha256:doesnotexist", signer, nil)
	assert.Error(t, err)
}

func TestLoadSucceedsAfterCreate(t *testing.T) {
	b := backend.NewMemory()
	signer := newSigner(t)

	created, err := Create(b, signer, "shared", nil)
	require.NoError(t, err)

	loaded, err := Load(b, created.Tree(), signer, nil)
	require.NoError(t, err)

	name, err := loaded.Name()
	require.NoError(t, err)
	assert.Equal(t, "shared", name)
}

func TestNewTransactionWritesPersistAcrossHandles(t *testing.T) {
	b := backend.NewMemory()
	signer := newSigner(t)
	db, err := Create(b, signer, "todo", nil)
	require.NoError(t, err)

	tx, err := db.NewTransaction()
	require.NoError(t, err)
	ds := store.NewDocStore(tx, "items")
	require.NoError(t, ds.Set("first", crdt.Text("buy milk")))
	_, err = tx.Commit()
	require.NoError(t, err)

	tx2, err := db.NewTransaction()
	require.NoError(t, err)
	ds2 := store.NewDocStore(tx2, "items")
	v, ok, err := ds2.Get("first")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, crdt.Text("buy milk"), v)
}

func TestGetRejectsForeignEntry(t *testing.T) {
	b := backend.NewMemory()
	signer := newSigner(t)
	db1, err := Create(b, signer, "db1", nil)
	require.NoError(t, err)
	db2, err := Create(b, signer, "db2", nil)
	require.NoError(t, err)

	tips, err := db2.Tips()
	require.NoError(t, err)
	_, err = db1.Get(tips[0])
	assert.Error(t, err)
}
