// Package integration exercises the end-to-end scenarios named by this
// repository's testable-properties section: each file here drives real
// Instance/Database/Transaction (and, for sync, engine/protocol) code
// paths together rather than unit-testing one package in isolation.
// The universal invariants (content-hash stability, height arithmetic,
// tip bookkeeping, clamp idempotence, and so on) are covered as
// property-style table tests within each owning package and are not
// repeated here.
package integration

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eideticadb/eidetica/pkg/backend"
	"github.com/eideticadb/eidetica/pkg/instance"
	"github.com/eideticadb/eidetica/pkg/transaction"
)

func newSigner(t *testing.T) transaction.Ed25519Signer {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return transaction.NewEd25519Signer(priv)
}

func newOpenInstance(t *testing.T) *instance.Instance {
	t.Helper()
	inst, err := instance.Open(backend.NewMemory(), newSigner(t))
	require.NoError(t, err)
	return inst
}
