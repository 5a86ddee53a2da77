// Package instance implements the Instance (spec §4, "Global/process-
// wide state"): the single process-wide owner of a Backend, the local
// device's signing key, a registry of Users, and an optional sync
// engine. Grounded on cuemby-warren/pkg/manager.Manager as the
// process-wide-owner analogue, stripped of raft/cluster membership and
// re-pointed at backend+auth+sync ownership.
package instance

import (
	"fmt"
	"sync"

	"github.com/eideticadb/eidetica/pkg/backend"
	"github.com/eideticadb/eidetica/pkg/database"
	"github.com/eideticadb/eidetica/pkg/eerr"
	"github.com/eideticadb/eidetica/pkg/entry"
	"github.com/eideticadb/eidetica/pkg/events"
	"github.com/eideticadb/eidetica/pkg/transaction"
	"github.com/eideticadb/eidetica/pkg/types"
)

// SyncEngine is the narrow surface an Instance drives its optional
// background sync engine through. Defined here, not in pkg/sync, so
// pkg/instance never depends on pkg/sync's transport/protocol
// machinery — only a concrete *sync.Engine needs to satisfy it.
type SyncEngine interface {
	Start() error
	Stop() error
	NotifyLocalWrite(tree types.ID, e *entry.Entry)
}

// Instance is the process-wide owner described by spec §4: it holds
// the Backend, the local device's signing identity, every registered
// User, and, once enabled, a SyncEngine that local commits are
// reported to.
type Instance struct {
	mu sync.RWMutex

	backend backend.Backend
	device  transaction.Signer
	users   map[string]*User
	sync    SyncEngine
	events  *events.Broker
}

// Open binds an Instance to backend b using device as the local
// signing key. On first use against a fresh backend it records
// device's public key as the backend's instance metadata; on reuse it
// verifies the supplied device key matches what was recorded, refusing
// to open a backend with a different device's key.
func Open(b backend.Backend, device transaction.Signer) (*Instance, error) {
	meta, err := b.GetInstanceMetadata()
	if eerr.Is(err, eerr.KindNotFound) {
		meta = backend.InstanceMetadata{DeviceKeyPubKey: device.PeerID()}
		if err := b.SetInstanceMetadata(meta); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	} else if meta.DeviceKeyPubKey != device.PeerID() {
		return nil, eerr.Validation("instance_open", "signer does not match this backend's recorded device key")
	}

	return &Instance{
		backend: b,
		device:  device,
		users:   make(map[string]*User),
	}, nil
}

// Backend returns the Instance's storage layer.
func (in *Instance) Backend() backend.Backend { return in.backend }

// DeviceKey returns the local device's public signing identity.
func (in *Instance) DeviceKey() types.PeerId { return in.device.PeerID() }

// EnableSync starts engine and attaches it as the Instance's sync
// engine. Only one engine may be active at a time.
func (in *Instance) EnableSync(engine SyncEngine) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.sync != nil {
		return eerr.AlreadyExists("instance_sync", "sync engine already enabled")
	}
	if err := engine.Start(); err != nil {
		return err
	}
	in.sync = engine
	return nil
}

// DisableSync stops the active sync engine, if any.
func (in *Instance) DisableSync() error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.sync == nil {
		return nil
	}
	err := in.sync.Stop()
	in.sync = nil
	return err
}

// EnableEvents starts a change-feed Broker and attaches it as the
// Instance's events sink. Only one Broker may be active at a time.
func (in *Instance) EnableEvents() (*events.Broker, error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.events != nil {
		return nil, eerr.AlreadyExists("instance_events", "events broker already enabled")
	}
	b := events.NewBroker()
	b.Start()
	in.events = b
	return b, nil
}

// DisableEvents stops the active change-feed Broker, if any.
func (in *Instance) DisableEvents() {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.events == nil {
		return
	}
	in.events.Stop()
	in.events = nil
}

// Events returns the Instance's active change-feed Broker, or nil if
// EnableEvents has not been called.
func (in *Instance) Events() *events.Broker {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.events
}

// onLocalWrite is passed to every Database this Instance opens, so a
// commit on any database reaches the active sync engine and change
// feed without pkg/database or pkg/transaction depending on pkg/sync
// or pkg/events. It reads the committed entry's own Tree field rather
// than closing over one, since a newly created database's tree ID
// isn't known until after commit.
func (in *Instance) onLocalWrite(e *entry.Entry) {
	in.mu.RLock()
	engine := in.sync
	broker := in.events
	in.mu.RUnlock()
	if engine != nil {
		engine.NotifyLocalWrite(e.Tree, e)
	}
	if broker != nil {
		broker.Publish(events.Event{
			Type:    events.EventEntryCommitted,
			Tree:    e.Tree,
			EntryID: e.ID(),
			Height:  e.Height,
		})
	}
}

// CreateDatabase creates a brand-new database signed by the Instance's
// device key, named name.
func (in *Instance) CreateDatabase(name string) (*database.Database, error) {
	return database.Create(in.backend, in.device, name, in.onLocalWrite)
}

// LoadDatabase opens a handle to an existing database by tree ID,
// signed by the Instance's device key.
func (in *Instance) LoadDatabase(tree types.ID) (*database.Database, error) {
	return database.Load(in.backend, tree, in.device, in.onLocalWrite)
}

// RegisterUser adds u to the Instance's user registry. Returns
// AlreadyExists if a user with the same name is already registered.
func (in *Instance) RegisterUser(u *User) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if _, exists := in.users[u.Name()]; exists {
		return eerr.AlreadyExists("instance_user", fmt.Sprintf("user %q already registered", u.Name()))
	}
	in.users[u.Name()] = u
	return nil
}

// User looks up a registered user by name.
func (in *Instance) User(name string) (*User, error) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	u, ok := in.users[name]
	if !ok {
		return nil, eerr.NotFound("instance_user", fmt.Sprintf("no user %q registered", name))
	}
	return u, nil
}

// Users returns every registered user.
func (in *Instance) Users() []*User {
	in.mu.RLock()
	defer in.mu.RUnlock()
	out := make([]*User, 0, len(in.users))
	for _, u := range in.users {
		out = append(out, u)
	}
	return out
}

// TrackDatabase records prefs for db under user, driving the
// commit-callback fan-out described in spec §4.6.
func (in *Instance) TrackDatabase(user *User, db *database.Database, prefs SyncPrefs) {
	user.track(db.Tree(), prefs)
}

// TrackedDatabases returns every database user has tracked.
func (in *Instance) TrackedDatabases(user *User) []TrackedDatabase {
	return user.trackedDatabases()
}

// UntrackDatabase stops user from tracking db.
func (in *Instance) UntrackDatabase(user *User, db *database.Database) {
	user.untrack(db.Tree())
}
