package instance

import (
	"sync"

	"github.com/eideticadb/eidetica/pkg/transaction"
	"github.com/eideticadb/eidetica/pkg/types"
)

// SyncPrefs are the per-database sync preferences a User attaches when
// tracking a database (spec §4.6's commit-callback fan-out).
type SyncPrefs struct {
	SyncEnabled  bool
	SyncOnCommit bool
}

// TrackedDatabase pairs a tree ID with the sync preferences a User has
// configured for it.
type TrackedDatabase struct {
	Tree  types.ID
	Prefs SyncPrefs
}

// User is a named signing identity with a set of databases it tracks
// for sync fan-out. A User's signer need not be the Instance's own
// device key — multiple users on one Instance can sign with distinct
// keys while sharing the same backend.
type User struct {
	mu      sync.RWMutex
	name    string
	signer  transaction.Signer
	tracked map[types.ID]TrackedDatabase
}

// NewUser creates a User identified by name, signing with signer.
func NewUser(name string, signer transaction.Signer) *User {
	return &User{name: name, signer: signer, tracked: make(map[types.ID]TrackedDatabase)}
}

// Name returns the user's registered name.
func (u *User) Name() string { return u.name }

// Signer returns the signing identity new Transactions for this user
// commit with.
func (u *User) Signer() transaction.Signer { return u.signer }

func (u *User) track(tree types.ID, prefs SyncPrefs) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.tracked[tree] = TrackedDatabase{Tree: tree, Prefs: prefs}
}

func (u *User) untrack(tree types.ID) {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.tracked, tree)
}

func (u *User) trackedDatabases() []TrackedDatabase {
	u.mu.RLock()
	defer u.mu.RUnlock()
	out := make([]TrackedDatabase, 0, len(u.tracked))
	for _, td := range u.tracked {
		out = append(out, td)
	}
	return out
}
