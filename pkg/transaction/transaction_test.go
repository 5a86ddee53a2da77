package transaction

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eideticadb/eidetica/pkg/auth"
	"github.com/eideticadb/eidetica/pkg/backend"
	"github.com/eideticadb/eidetica/pkg/crdt"
	"github.com/eideticadb/eidetica/pkg/entry"
	"github.com/eideticadb/eidetica/pkg/store"
	"github.com/eideticadb/eidetica/pkg/types"
)

func newSigner(t *testing.T) Signer {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return NewEd25519Signer(priv)
}

// bootstrapAuth stages the signer as an Admin key in the transaction's
// "_settings.auth" Doc, the pattern a database creator uses to grant
// itself access to its own new database in the same entry that roots it.
func bootstrapAuth(t *testing.T, tx *Transaction, signer Signer) {
	t.Helper()
	settings := store.NewSettingsStore(tx)
	authDoc := crdt.NewDoc()
	require.NoError(t, auth.StoreAuthKey(authDoc, auth.AuthKey{
		PubKey:     signer.PeerID(),
		Permission: auth.Admin(0),
		Status:     auth.StatusActive,
	}))
	require.NoError(t, settings.PutAuthDoc(authDoc))
}

func TestCommitRootEntryBootstrapsDatabase(t *testing.T) {
	b := backend.NewMemory()
	signer := newSigner(t)

	tx, err := New(b, "tree1", signer, nil)
	require.NoError(t, err)

	bootstrapAuth(t, tx, signer)

	e, err := tx.Commit()
	require.NoError(t, err)
	assert.True(t, e.IsRoot())
	assert.True(t, e.InSubtree(types.RootMarker))

	tips, err := b.GetTips("tree1")
	require.NoError(t, err)
	assert.Equal(t, []types.ID{e.ID()}, tips)

	status, err := b.GetVerificationStatus(e.ID())
	require.NoError(t, err)
	assert.Equal(t, types.Verified, status)
}

func TestCommitTwiceFailsWithAlreadyCommitted(t *testing.T) {
	b := backend.NewMemory()
	signer := newSigner(t)
	tx, err := New(b, "tree1", signer, nil)
	require.NoError(t, err)
	bootstrapAuth(t, tx, signer)

	_, err = tx.Commit()
	require.NoError(t, err)

	_, err = tx.Commit()
	assert.ErrorIs(t, err, ErrAlreadyCommitted)

	err = tx.PutStoreDoc("notes", crdt.NewDoc())
	assert.ErrorIs(t, err, ErrAlreadyCommitted)
}

func TestCommitChildEntryRequiresWritePermission(t *testing.T) {
	b := backend.NewMemory()
	owner := newSigner(t)

	tx, err := New(b, "tree1", owner, nil)
	require.NoError(t, err)
	bootstrapAuth(t, tx, owner)
	_, err = tx.Commit()
	require.NoError(t, err)

	stranger := newSigner(t)
	tx2, err := New(b, "tree1", stranger, nil)
	require.NoError(t, err)
	ds := store.NewDocStore(tx2, "notes")
	require.NoError(t, ds.Set("title", crdt.Text("hello")))

	_, err = tx2.Commit()
	assert.Error(t, err)
}

func TestCommitChildEntrySucceedsWithWritePermission(t *testing.T) {
	b := backend.NewMemory()
	owner := newSigner(t)

	tx, err := New(b, "tree1", owner, nil)
	require.NoError(t, err)
	bootstrapAuth(t, tx, owner)
	writer := newSigner(t)
	settingsDoc, err := tx.StoreDoc(types.SettingsStoreName)
	require.NoError(t, err)
	authDoc := auth.LoadAuthDoc(settingsDoc)
	require.NoError(t, auth.StoreAuthKey(authDoc, auth.AuthKey{
		PubKey:     writer.PeerID(),
		Permission: auth.Write(5),
		Status:     auth.StatusActive,
	}))
	settingsDoc.Set("auth", authDoc)
	require.NoError(t, tx.PutStoreDoc(types.SettingsStoreName, settingsDoc))
	root, err := tx.Commit()
	require.NoError(t, err)

	tx2, err := New(b, "tree1", writer, nil)
	require.NoError(t, err)
	ds := store.NewDocStore(tx2, "notes")
	require.NoError(t, ds.Set("title", crdt.Text("hello")))
	child, err := tx2.Commit()
	require.NoError(t, err)
	assert.Equal(t, []types.ID{root.ID()}, child.Parents)

	tips, err := b.GetTips("tree1")
	require.NoError(t, err)
	assert.Equal(t, []types.ID{child.ID()}, tips)
}

func TestStoreDocMaterializesAcrossCommits(t *testing.T) {
	b := backend.NewMemory()
	owner := newSigner(t)

	tx, err := New(b, "tree1", owner, nil)
	require.NoError(t, err)
	bootstrapAuth(t, tx, owner)
	ds := store.NewDocStore(tx, "notes")
	require.NoError(t, ds.Set("title", crdt.Text("v1")))
	_, err = tx.Commit()
	require.NoError(t, err)

	tx2, err := New(b, "tree1", owner, nil)
	require.NoError(t, err)
	ds2 := store.NewDocStore(tx2, "notes")
	v, ok, err := ds2.Get("title")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, crdt.Text("v1"), v)
}

func TestNewWithTipsRejectsForeignTip(t *testing.T) {
	b := backend.NewMemory()
	owner := newSigner(t)

	tx, err := New(b, "tree1", owner, nil)
	require.NoError(t, err)
	bootstrapAuth(t, tx, owner)
	_, err = tx.Commit()
	require.NoError(t, err)

	other := newSigner(t)
	otherTx, err := New(b, "tree2", other, nil)
	require.NoError(t, err)
	bootstrapAuth(t, otherTx, other)
	otherRoot, err := otherTx.Commit()
	require.NoError(t, err)

	_, err = NewWithTips(b, "tree1", []types.ID{otherRoot.ID()}, owner, nil)
	assert.Error(t, err)
}

func TestOnLocalWriteCallbackFires(t *testing.T) {
	b := backend.NewMemory()
	owner := newSigner(t)

	var committed types.ID
	tx, err := New(b, "tree1", owner, func(e *entry.Entry) { committed = e.ID() })
	require.NoError(t, err)
	bootstrapAuth(t, tx, owner)

	e, err := tx.Commit()
	require.NoError(t, err)
	assert.Equal(t, e.ID(), committed)
}
