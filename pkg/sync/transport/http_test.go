package transport

import (
	"context"
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eideticadb/eidetica/pkg/backend"
	"github.com/eideticadb/eidetica/pkg/database"
	"github.com/eideticadb/eidetica/pkg/sync/bootstrap"
	"github.com/eideticadb/eidetica/pkg/sync/protocol"
	"github.com/eideticadb/eidetica/pkg/transaction"
	"github.com/eideticadb/eidetica/pkg/types"
)

func newTestSigner(t *testing.T) transaction.Signer {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return transaction.NewEd25519Signer(priv)
}

func newServerHandler(t *testing.T) (*protocol.Handler, transaction.Signer) {
	t.Helper()
	b := backend.NewMemory()
	signer := newTestSigner(t)
	db, err := database.Create(b, signer, "notes", nil)
	require.NoError(t, err)
	sys, err := database.Create(b, signer, "_sync", nil)
	require.NoError(t, err)
	h := protocol.NewHandler(b, fakeDatabases{db}, bootstrap.NewManager(sys), signer.PeerID(), signer)
	h.SyncEnabled = func(types.ID) bool { return true }
	return h, signer
}

type fakeDatabases struct {
	db *database.Database
}

func (f fakeDatabases) LoadDatabase(tree types.ID) (*database.Database, error) {
	return f.db, nil
}

func TestHTTPStartStopServerAddress(t *testing.T) {
	h, _ := newServerHandler(t)
	srv := NewHTTP(h)

	require.NoError(t, srv.Start(""))
	defer srv.Stop() //nolint:errcheck

	assert.NotEmpty(t, srv.ServerAddress())
	require.NoError(t, srv.Stop())
}

func TestHTTPStartWithoutHandlerFails(t *testing.T) {
	srv := NewHTTP(nil)
	err := srv.Start("")
	assert.Error(t, err)
}

func TestHTTPSendHandshakeRoundTrip(t *testing.T) {
	h, signer := newServerHandler(t)
	srv := NewHTTP(h)
	require.NoError(t, srv.Start(""))
	defer srv.Stop() //nolint:errcheck

	client := NewHTTP(nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := client.Send(ctx, types.Address{Address: srv.ServerAddress()}, protocol.NewHandshakeRequest(protocol.Handshake{PubKey: "ed25519:client"}))
	require.NoError(t, err)
	require.Equal(t, protocol.ResponseHandshakeOk, resp.Type)
	assert.Equal(t, signer.PeerID(), resp.HandshakeOk.PubKey)
}

func TestHTTPSendToUnreachableAddressFails(t *testing.T) {
	client := NewHTTP(nil)
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	_, err := client.Send(ctx, types.Address{Address: "127.0.0.1:1"}, protocol.NewHandshakeRequest(protocol.Handshake{PubKey: "ed25519:client"}))
	assert.Error(t, err)
}

func TestDetectType(t *testing.T) {
	assert.Equal(t, TypeP2P, DetectType(`{"node_id":"xyz"}`))
	assert.Equal(t, TypeHTTP, DetectType("127.0.0.1:9000"))
}
