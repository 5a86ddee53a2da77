package instance

import (
	"crypto/ed25519"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eideticadb/eidetica/pkg/backend"
	"github.com/eideticadb/eidetica/pkg/entry"
	"github.com/eideticadb/eidetica/pkg/events"
	"github.com/eideticadb/eidetica/pkg/transaction"
	"github.com/eideticadb/eidetica/pkg/types"
)

func newSigner(t *testing.T) transaction.Signer {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return transaction.NewEd25519Signer(priv)
}

func TestOpenRecordsDeviceKeyOnFreshBackend(t *testing.T) {
	b := backend.NewMemory()
	device := newSigner(t)

	in, err := Open(b, device)
	require.NoError(t, err)
	assert.Equal(t, device.PeerID(), in.DeviceKey())

	meta, err := b.GetInstanceMetadata()
	require.NoError(t, err)
	assert.Equal(t, device.PeerID(), meta.DeviceKeyPubKey)
}

func TestOpenRejectsMismatchedDeviceKey(t *testing.T) {
	b := backend.NewMemory()
	first := newSigner(t)
	_, err := Open(b, first)
	require.NoError(t, err)

	second := newSigner(t)
	_, err = Open(b, second)
	assert.Error(t, err)
}

func TestCreateAndLoadDatabaseRoundTrip(t *testing.T) {
	b := backend.NewMemory()
	device := newSigner(t)
	in, err := Open(b, device)
	require.NoError(t, err)

	db, err := in.CreateDatabase("journal")
	require.NoError(t, err)

	loaded, err := in.LoadDatabase(db.Tree())
	require.NoError(t, err)
	name, err := loaded.Name()
	require.NoError(t, err)
	assert.Equal(t, "journal", name)
}

type fakeSyncEngine struct {
	mu      sync.Mutex
	started bool
	stopped bool
	writes  []types.ID
}

func (f *fakeSyncEngine) Start() error { f.started = true; return nil }
func (f *fakeSyncEngine) Stop() error  { f.stopped = true; return nil }
func (f *fakeSyncEngine) NotifyLocalWrite(tree types.ID, e *entry.Entry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, tree)
}

func TestEnableSyncReceivesCommitNotifications(t *testing.T) {
	b := backend.NewMemory()
	device := newSigner(t)
	in, err := Open(b, device)
	require.NoError(t, err)

	engine := &fakeSyncEngine{}
	require.NoError(t, in.EnableSync(engine))
	assert.True(t, engine.started)

	db, err := in.CreateDatabase("notes")
	require.NoError(t, err)

	engine.mu.Lock()
	assert.Contains(t, engine.writes, db.Tree())
	engine.mu.Unlock()

	require.NoError(t, in.DisableSync())
	assert.True(t, engine.stopped)
}

func TestEnableSyncTwiceFails(t *testing.T) {
	b := backend.NewMemory()
	device := newSigner(t)
	in, err := Open(b, device)
	require.NoError(t, err)

	require.NoError(t, in.EnableSync(&fakeSyncEngine{}))
	assert.Error(t, in.EnableSync(&fakeSyncEngine{}))
}

func TestEnableEventsReceivesCommitNotifications(t *testing.T) {
	b := backend.NewMemory()
	device := newSigner(t)
	in, err := Open(b, device)
	require.NoError(t, err)

	broker, err := in.EnableEvents()
	require.NoError(t, err)
	assert.Same(t, broker, in.Events())

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	db, err := in.CreateDatabase("notes")
	require.NoError(t, err)

	ev := <-sub
	assert.Equal(t, events.EventEntryCommitted, ev.Type)
	assert.Equal(t, db.Tree(), ev.Tree)

	in.DisableEvents()
	assert.Nil(t, in.Events())
}

func TestEnableEventsTwiceFails(t *testing.T) {
	b := backend.NewMemory()
	device := newSigner(t)
	in, err := Open(b, device)
	require.NoError(t, err)

	_, err = in.EnableEvents()
	require.NoError(t, err)
	_, err = in.EnableEvents()
	assert.Error(t, err)
}

func TestRegisterUserAndTrackDatabase(t *testing.T) {
	b := backend.NewMemory()
	device := newSigner(t)
	in, err := Open(b, device)
	require.NoError(t, err)

	u := NewUser("alice", device)
	require.NoError(t, in.RegisterUser(u))
	assert.Error(t, in.RegisterUser(u))

	got, err := in.User("alice")
	require.NoError(t, err)
	assert.Same(t, u, got)

	db, err := in.CreateDatabase("shopping")
	require.NoError(t, err)

	in.TrackDatabase(u, db, SyncPrefs{SyncEnabled: true, SyncOnCommit: true})
	tracked := in.TrackedDatabases(u)
	require.Len(t, tracked, 1)
	assert.Equal(t, db.Tree(), tracked[0].Tree)

	in.UntrackDatabase(u, db)
	assert.Empty(t, in.TrackedDatabases(u))
}
