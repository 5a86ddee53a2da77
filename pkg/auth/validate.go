package auth

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"

	"github.com/eideticadb/eidetica/pkg/crdt"
	"github.com/eideticadb/eidetica/pkg/eerr"
	"github.com/eideticadb/eidetica/pkg/entry"
	"github.com/eideticadb/eidetica/pkg/types"
)

// Verifier abstracts signature verification so tests can substitute a
// fake without generating real ed25519 keys.
type Verifier interface {
	Verify(pubkey types.PeerId, message, sig []byte) bool
}

// Ed25519Verifier verifies signatures using the standard library's
// ed25519 implementation; PeerId's raw base64 payload decodes to the
// 32-byte public key.
type Ed25519Verifier struct{}

func (Ed25519Verifier) Verify(pubkey types.PeerId, message, sig []byte) bool {
	raw, err := base64.StdEncoding.DecodeString(pubkey.RawKey())
	if err != nil || len(raw) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(raw), message, sig)
}

// Validate runs the commit-time checks of spec §4.5 against e, whose
// content hash (sig-free form) is given by signedHash. settings is the
// database's own "_settings" Doc; resolver services delegation
// hops when e's signer uses a delegation path.
func Validate(e *entry.Entry, signedHash []byte, settings *crdt.Doc, resolver SettingsResolver, verifier Verifier) error {
	resolved, err := Resolve(e.Sig.Key, settings, resolver)
	if err != nil {
		return eerr.Wrap(eerr.KindAuth, "auth_validate", "failed to resolve signer", err)
	}
	if resolved.Status == StatusRevoked {
		return eerr.AuthErr("auth_validate", "signing key has been revoked")
	}

	if e.Sig.Sig == nil {
		return eerr.AuthErr("auth_validate", "entry carries no signature")
	}
	sigBytes, err := base64.StdEncoding.DecodeString(*e.Sig.Sig)
	if err != nil {
		return eerr.Wrap(eerr.KindAuth, "auth_validate", "signature is not valid base64", err)
	}
	if verifier == nil {
		verifier = Ed25519Verifier{}
	}
	if !verifier.Verify(resolved.PubKey, signedHash, sigBytes) {
		return eerr.AuthErr("auth_validate", "signature verification failed")
	}

	for _, storeName := range e.Subtrees() {
		if storeName == types.SettingsStoreName {
			if !resolved.Permission.CanAdmin() {
				return eerr.AuthErr("auth_validate", fmt.Sprintf("writing %q requires Admin permission", storeName))
			}
			if err := validateSettingsKeyEdits(e, storeName, resolved.Permission, settings); err != nil {
				return err
			}
			if err := validateDelegationBoundsEdit(e, storeName, resolved.Permission, settings); err != nil {
				return err
			}
			continue
		}
		if !resolved.Permission.CanWrite() {
			return eerr.AuthErr("auth_validate", fmt.Sprintf("writing %q requires Write permission", storeName))
		}
	}
	return nil
}

// validateSettingsKeyEdits enforces the hierarchical key-edit rule
// (spec §4.5 step 5): an editor may create or modify an auth key only
// if its own effective permission dominates the target key's.
func validateSettingsKeyEdits(e *entry.Entry, storeName string, editorPermission Permission, priorSettings *crdt.Doc) error {
	data, err := e.Data(storeName)
	if err != nil {
		// A settings write that touches no payload (pure reference) has
		// nothing to validate.
		return nil
	}
	next := crdt.NewDoc()
	if uerr := next.UnmarshalJSON([]byte(data)); uerr != nil {
		return eerr.Serialization("auth_validate", "failed to decode staged settings", uerr)
	}
	nextAuth := LoadAuthDoc(next)
	priorAuth := LoadAuthDoc(priorSettings)

	for _, pubkey := range nextAuth.Keys() {
		v, _ := nextAuth.Get(pubkey)
		target, err := decodeAuthKey(pubkey, v)
		if err != nil {
			return err
		}
		if _, existed := priorAuth.Get(pubkey); existed {
			prior, err := decodeAuthKey(pubkey, mustGet(priorAuth, pubkey))
			if err == nil && prior.Permission == target.Permission && prior.Status == target.Status {
				continue // unchanged
			}
		}
		if !CanEditKey(editorPermission, target.Permission) {
			return eerr.AuthErr("auth_validate", fmt.Sprintf("insufficient permission to set key %q to %s", pubkey, target.Permission))
		}
	}
	return nil
}

// validateDelegationBoundsEdit enforces the delegation-authority rule
// (spec §4.5, "Delegation authority"): a key may only set or change
// delegation_bounds to a value whose maximum does not exceed its own
// effective permission. An edit that leaves delegation_bounds
// unchanged, or that removes it, has nothing to validate.
func validateDelegationBoundsEdit(e *entry.Entry, storeName string, editorPermission Permission, priorSettings *crdt.Doc) error {
	data, err := e.Data(storeName)
	if err != nil {
		return nil
	}
	next := crdt.NewDoc()
	if uerr := next.UnmarshalJSON([]byte(data)); uerr != nil {
		return eerr.Serialization("auth_validate", "failed to decode staged settings", uerr)
	}

	bounds, ok := delegationBoundsFor(next, 0)
	if !ok {
		return nil
	}
	if priorBounds, hadPrior := delegationBoundsFor(priorSettings, 0); hadPrior && boundsEqual(priorBounds, bounds) {
		return nil // unchanged
	}
	if !CanDelegateWith(editorPermission, bounds) {
		return eerr.AuthErr("auth_validate", fmt.Sprintf("insufficient permission to grant delegation bounds up to %s", bounds.Max))
	}
	return nil
}

func boundsEqual(a, b PermissionBounds) bool {
	if a.Max != b.Max {
		return false
	}
	if (a.Min == nil) != (b.Min == nil) {
		return false
	}
	return a.Min == nil || *a.Min == *b.Min
}

func mustGet(d *crdt.Doc, key string) crdt.Value {
	v, _ := d.Get(key)
	return v
}
