package auth

import (
	"fmt"

	"github.com/eideticadb/eidetica/pkg/crdt"
	"github.com/eideticadb/eidetica/pkg/eerr"
	"github.com/eideticadb/eidetica/pkg/types"
)

// KeyStatus is the lifecycle state of a stored AuthKey.
type KeyStatus string

const (
	StatusActive  KeyStatus = "Active"
	StatusRevoked KeyStatus = "Revoked"
)

// WildcardPubKey matches any signer; used for permissionless writes.
const WildcardPubKey = "*"

// AuthKey is one entry of a database's "_settings.auth" Doc, keyed by
// pubkey.
type AuthKey struct {
	PubKey      types.PeerId
	Permission  Permission
	Status      KeyStatus
	DisplayName string
}

// authDocKey is the well-known key under "_settings" holding the auth
// Doc.
const authDocKey = "auth"

// LoadAuthDoc returns the auth sub-Doc of settings, or an empty one if
// absent.
func LoadAuthDoc(settings *crdt.Doc) *crdt.Doc {
	v, ok := settings.Get(authDocKey)
	if !ok {
		return crdt.NewDoc()
	}
	d, ok := v.(*crdt.Doc)
	if !ok {
		return crdt.NewDoc()
	}
	return d
}

// StoreAuthKey upserts k into settings' auth Doc, keyed by pubkey.
func StoreAuthKey(settings *crdt.Doc, k AuthKey) error {
	auth := LoadAuthDoc(settings)
	entry := crdt.NewDoc()
	entry.SetString("pubkey", string(k.PubKey))
	entry.SetString("permission_level", k.Permission.Level.String())
	entry.SetInt("permission_priority", int64(k.Permission.Priority))
	entry.SetString("status", string(k.Status))
	if k.DisplayName != "" {
		entry.SetString("name", k.DisplayName)
	}
	auth.Set(string(k.PubKey), entry)
	settings.Set(authDocKey, auth)
	return nil
}

// RevokeAuthKey tombstones the status of the key identified by pubkey,
// leaving the record present (revocation is a status flip, not a
// delete, so history stays auditable).
func RevokeAuthKey(settings *crdt.Doc, pubkey types.PeerId) error {
	auth := LoadAuthDoc(settings)
	v, ok := auth.Get(string(pubkey))
	if !ok {
		return eerr.NotFound("auth_key", fmt.Sprintf("no auth key for pubkey %q", pubkey))
	}
	entry, ok := v.(*crdt.Doc)
	if !ok {
		return eerr.Corruption("auth_key", fmt.Sprintf("auth entry for %q is not a document", pubkey))
	}
	entry.SetString("status", string(StatusRevoked))
	auth.Set(string(pubkey), entry)
	settings.Set(authDocKey, auth)
	return nil
}

func decodeAuthKey(pubkey string, v crdt.Value) (AuthKey, error) {
	entry, ok := v.(*crdt.Doc)
	if !ok {
		return AuthKey{}, eerr.Corruption("auth_key", fmt.Sprintf("auth entry for %q is not a document", pubkey))
	}
	k := AuthKey{PubKey: types.PeerId(pubkey), Status: StatusActive}

	if lv, ok := entry.Get("permission_level"); ok {
		if lt, ok := lv.(crdt.Text); ok {
			switch string(lt) {
			case "Admin":
				k.Permission.Level = LevelAdmin
			case "Write":
				k.Permission.Level = LevelWrite
			default:
				k.Permission.Level = LevelRead
			}
		}
	}
	if pv, ok := entry.Get("permission_priority"); ok {
		if pi, ok := pv.(crdt.Int); ok {
			k.Permission.Priority = uint32(pi)
		}
	}
	if sv, ok := entry.Get("status"); ok {
		if st, ok := sv.(crdt.Text); ok && string(st) == string(StatusRevoked) {
			k.Status = StatusRevoked
		}
	}
	if nv, ok := entry.Get("name"); ok {
		if nt, ok := nv.(crdt.Text); ok {
			k.DisplayName = string(nt)
		}
	}
	return k, nil
}

// LookupByPubKey resolves pubkey directly against the auth Doc.
func LookupByPubKey(settings *crdt.Doc, pubkey types.PeerId) (AuthKey, error) {
	auth := LoadAuthDoc(settings)
	v, ok := auth.Get(string(pubkey))
	if !ok {
		return AuthKey{}, eerr.NotFound("auth_key", fmt.Sprintf("no auth key for pubkey %q", pubkey))
	}
	return decodeAuthKey(string(pubkey), v)
}

// LookupByName linearly scans the auth Doc for a key whose display
// name matches hint, used when a SigKey carries only a name hint.
func LookupByName(settings *crdt.Doc, hint string) (AuthKey, error) {
	auth := LoadAuthDoc(settings)
	for _, pubkey := range auth.Keys() {
		v, _ := auth.Get(pubkey)
		k, err := decodeAuthKey(pubkey, v)
		if err != nil {
			continue
		}
		if k.DisplayName == hint {
			return k, nil
		}
	}
	return AuthKey{}, eerr.NotFound("auth_key", fmt.Sprintf("no auth key named %q", hint))
}

// AllKeys returns every AuthKey in settings' auth Doc.
func AllKeys(settings *crdt.Doc) ([]AuthKey, error) {
	auth := LoadAuthDoc(settings)
	out := make([]AuthKey, 0, len(auth.Keys()))
	for _, pubkey := range auth.Keys() {
		v, _ := auth.Get(pubkey)
		k, err := decodeAuthKey(pubkey, v)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, nil
}

// CanEditKey implements the hierarchical key-edit rule (spec §4.5 step
// 5): editor may create/modify target iff editor.Permission is at
// least target.Permission, and, when the levels are equal, editor's
// priority is numerically <= target's (lower value = more senior).
func CanEditKey(editor, target Permission) bool {
	if editor.Level != target.Level {
		return editor.Level > target.Level
	}
	return editor.Priority <= target.Priority
}
