package auth

import (
	"testing"

	"github.com/eideticadb/eidetica/pkg/crdt"
	"github.com/eideticadb/eidetica/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreAndLookupByPubKey(t *testing.T) {
	settings := crdt.NewDoc()
	require.NoError(t, StoreAuthKey(settings, AuthKey{
		PubKey:      types.PeerId("ed25519:abc"),
		Permission:  Write(5),
		Status:      StatusActive,
		DisplayName: "alice",
	}))

	k, err := LookupByPubKey(settings, types.PeerId("ed25519:abc"))
	require.NoError(t, err)
	assert.Equal(t, Write(5), k.Permission)
	assert.Equal(t, "alice", k.DisplayName)
}

func TestLookupByName(t *testing.T) {
	settings := crdt.NewDoc()
	require.NoError(t, StoreAuthKey(settings, AuthKey{
		PubKey:      types.PeerId("ed25519:abc"),
		Permission:  Admin(0),
		Status:      StatusActive,
		DisplayName: "bob",
	}))

	k, err := LookupByName(settings, "bob")
	require.NoError(t, err)
	assert.Equal(t, types.PeerId("ed25519:abc"), k.PubKey)
}

func TestRevokeAuthKey(t *testing.T) {
	settings := crdt.NewDoc()
	require.NoError(t, StoreAuthKey(settings, AuthKey{
		PubKey:     types.PeerId("ed25519:abc"),
		Permission: Write(5),
		Status:     StatusActive,
	}))
	require.NoError(t, RevokeAuthKey(settings, types.PeerId("ed25519:abc")))

	k, err := LookupByPubKey(settings, types.PeerId("ed25519:abc"))
	require.NoError(t, err)
	assert.Equal(t, StatusRevoked, k.Status)
}

func TestCanEditKeyHierarchical(t *testing.T) {
	assert.True(t, CanEditKey(Admin(0), Write(5)))
	assert.False(t, CanEditKey(Write(5), Admin(0)))
	assert.True(t, CanEditKey(Write(1), Write(5)))
	assert.False(t, CanEditKey(Write(5), Write(1)))
}

func TestLookupMissingKeyNotFound(t *testing.T) {
	settings := crdt.NewDoc()
	_, err := LookupByPubKey(settings, types.PeerId("ed25519:nope"))
	assert.Error(t, err)
}
