package transaction

import (
	"crypto/ed25519"
	"encoding/base64"

	"github.com/eideticadb/eidetica/pkg/eerr"
	"github.com/eideticadb/eidetica/pkg/types"
)

// Signer produces the signature a Transaction attaches to the entry it
// commits. Implemented concretely by Ed25519Signer; kept as an
// interface so callers can substitute a hardware-backed or delegated
// signer without pkg/transaction depending on how keys are stored.
type Signer interface {
	PeerID() types.PeerId
	Sign(message []byte) (string, error)
}

// Ed25519Signer signs with an in-memory ed25519 private key, the device
// key an Instance holds for itself.
type Ed25519Signer struct {
	Key ed25519.PrivateKey
}

// NewEd25519Signer derives a signer from a private key, deriving its
// PeerId from the key's public half.
func NewEd25519Signer(key ed25519.PrivateKey) Ed25519Signer {
	return Ed25519Signer{Key: key}
}

func (s Ed25519Signer) PeerID() types.PeerId {
	pub, ok := s.Key.Public().(ed25519.PublicKey)
	if !ok {
		return ""
	}
	return types.NewPeerId(base64.StdEncoding.EncodeToString(pub))
}

func (s Ed25519Signer) Sign(message []byte) (string, error) {
	if len(s.Key) != ed25519.PrivateKeySize {
		return "", eerr.Validation("transaction_sign", "signer key is not a valid ed25519 private key")
	}
	sig := ed25519.Sign(s.Key, message)
	return base64.StdEncoding.EncodeToString(sig), nil
}
