package transaction

import (
	"github.com/eideticadb/eidetica/pkg/auth"
	"github.com/eideticadb/eidetica/pkg/backend"
	"github.com/eideticadb/eidetica/pkg/eerr"
	"github.com/eideticadb/eidetica/pkg/entry"
	"github.com/eideticadb/eidetica/pkg/types"
)

// ApplyRemoteEntry admits an entry received from a sync peer: an entry
// already committed (and auth-validated) elsewhere, arriving here
// without a local Transaction to have produced it. It re-runs the same
// auth.Validate check Commit performs against the tree's prior settings
// at e's own parents, then persists it as Verified. A root entry (no
// parents) is admitted on trust, mirroring Commit's own trust-on-first-
// use treatment of a database's first entry.
//
// Returns (applied=false, nil) if e is already known, so callers
// pulling or pushing a batch can count how many were actually new.
func ApplyRemoteEntry(b backend.Backend, e *entry.Entry) (applied bool, err error) {
	if _, err := b.Get(e.ID()); err == nil {
		return false, nil
	} else if !eerr.Is(err, eerr.KindNotFound) {
		return false, err
	}

	if len(e.Parents) > 0 {
		priorSettings, _, err := materializeStoreAt(b, e.Tree, types.SettingsStoreName, e.Parents)
		if err != nil {
			return false, err
		}
		resolver := &settingsResolver{backend: b}
		if err := auth.Validate(e, []byte(e.ID()), priorSettings, resolver, nil); err != nil {
			return false, err
		}
	}

	if err := b.Put(types.Verified, e); err != nil {
		return false, err
	}
	return true, nil
}
