package integration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eideticadb/eidetica/pkg/auth"
	"github.com/eideticadb/eidetica/pkg/backend"
	"github.com/eideticadb/eidetica/pkg/crdt"
	"github.com/eideticadb/eidetica/pkg/database"
	"github.com/eideticadb/eidetica/pkg/eerr"
	"github.com/eideticadb/eidetica/pkg/entry"
	"github.com/eideticadb/eidetica/pkg/store"
	"github.com/eideticadb/eidetica/pkg/transaction"
	"github.com/eideticadb/eidetica/pkg/types"
)

// settingsResolver answers a delegation hop's settings Doc by reading
// it straight off the shared backend, the same shape as pkg/transaction's
// own internal resolver but built from exported API since this package
// sits outside pkg/transaction.
type settingsResolver struct {
	b      backend.Backend
	signer transaction.Signer
}

func (r settingsResolver) SettingsAt(tree types.ID, tips []types.ID) (*crdt.Doc, error) {
	tx, err := transaction.NewWithTips(r.b, tree, tips, r.signer, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Drop()
	return tx.StoreDoc(types.SettingsStoreName)
}

// TestDelegationWithClamping exercises spec scenario 6: a parent
// database's delegation bounds clamp a child key's Admin(5) permission
// down to Write(10), and a settings-store commit attempted through
// that delegated key then fails for lacking Admin.
func TestDelegationWithClamping(t *testing.T) {
	inst := newOpenInstance(t)

	parent, err := inst.CreateDatabase("parent")
	require.NoError(t, err)
	child, err := inst.CreateDatabase("child")
	require.NoError(t, err)

	childSigner := newSigner(t)

	// The child's own settings only need to know the child's key.
	tx, err := child.NewTransaction()
	require.NoError(t, err)
	settings := store.NewSettingsStore(tx)
	authDoc, err := settings.AuthDoc()
	require.NoError(t, err)
	require.NoError(t, auth.StoreAuthKey(authDoc, auth.AuthKey{
		PubKey:     childSigner.PeerID(),
		Permission: auth.Admin(5),
		Status:     auth.StatusActive,
	}))
	require.NoError(t, settings.PutAuthDoc(authDoc))
	_, err = tx.Commit()
	require.NoError(t, err)

	// The delegation bounds live in the *parent's* settings: it's the
	// parent that constrains how much authority it extends to the child.
	ptx, err := parent.NewTransaction()
	require.NoError(t, err)
	bounds := crdt.NewDoc()
	bounds.SetString("max_level", "Write")
	bounds.SetInt("max_priority", 10)
	bounds.SetString("min_level", "Read")
	require.NoError(t, store.NewDocStore(ptx, types.SettingsStoreName).Set("delegation_bounds", bounds))
	_, err = ptx.Commit()
	require.NoError(t, err)

	childTips, err := child.Tips()
	require.NoError(t, err)
	parentTips, err := parent.Tips()
	require.NoError(t, err)

	sigKey := entry.SigKey{
		Path: []entry.DelegationStep{{Tree: child.Tree(), Tips: childTips}},
		Hint: &entry.KeyHint{PubKey: string(childSigner.PeerID())},
	}

	resolver := settingsResolver{b: inst.Backend(), signer: childSigner}
	parentSettings, err := resolver.SettingsAt(parent.Tree(), parentTips)
	require.NoError(t, err)

	resolved, err := auth.Resolve(sigKey, parentSettings, resolver)
	require.NoError(t, err)
	assert.Equal(t, auth.Write(10), resolved.Permission)

	// Commit a settings change against the parent, signed by the
	// delegated child key. The database handle shares the parent's
	// backend and tree but signs with childSigner so the produced
	// entry actually verifies against the key auth.Resolve just
	// clamped.
	delegatedParent := database.New(inst.Backend(), parent.Tree(), childSigner, nil)
	wtx, err := delegatedParent.NewTransaction()
	require.NoError(t, err)
	wtx.SignAs(sigKey)
	require.NoError(t, store.NewSettingsStore(wtx).SetName("renamed-by-delegate"))

	_, err = wtx.Commit()
	require.Error(t, err)
	assert.True(t, eerr.Is(err, eerr.KindAuth))
}
