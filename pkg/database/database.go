// Package database implements the Database handle (spec §4, "Control
// flow"): a tree root ID bound to a signing key and a Backend, from
// which callers open Transactions. Database itself holds no staged
// state — every read and write happens through a Transaction.
package database

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/eideticadb/eidetica/pkg/auth"
	"github.com/eideticadb/eidetica/pkg/backend"
	"github.com/eideticadb/eidetica/pkg/crdt"
	"github.com/eideticadb/eidetica/pkg/eerr"
	"github.com/eideticadb/eidetica/pkg/entry"
	"github.com/eideticadb/eidetica/pkg/store"
	"github.com/eideticadb/eidetica/pkg/transaction"
	"github.com/eideticadb/eidetica/pkg/types"
)

// Database is a handle to one database's DAG: the backend that stores
// it, its tree ID, and the signing key new Transactions commit with.
type Database struct {
	backend backend.Backend
	tree    types.ID
	signer  transaction.Signer
	onWrite transaction.OnLocalWrite
}

// New wraps an existing tree with a Backend and signing key, without
// checking that the tree already has any entries. Prefer Create for a
// brand-new database and Load when the tree is expected to exist.
func New(b backend.Backend, tree types.ID, signer transaction.Signer, onWrite transaction.OnLocalWrite) *Database {
	return &Database{backend: b, tree: tree, signer: signer, onWrite: onWrite}
}

// Load wraps a tree that must already have at least one entry.
func Load(b backend.Backend, tree types.ID, signer transaction.Signer, onWrite transaction.OnLocalWrite) (*Database, error) {
	tips, err := b.GetTips(tree)
	if err != nil {
		return nil, err
	}
	if len(tips) == 0 {
		return nil, eerr.NotFound("database_load", fmt.Sprintf("database %q has no entries", tree))
	}
	return New(b, tree, signer, onWrite), nil
}

// Create mints a fresh tree ID, commits its root entry with name set
// and signer granted Admin permission over its own new database (spec
// §4.5's trust-on-first-use bootstrapping), and returns the resulting
// Database handle.
func Create(b backend.Backend, signer transaction.Signer, name string, onWrite transaction.OnLocalWrite) (*Database, error) {
	tree, err := newTreeID()
	if err != nil {
		return nil, err
	}
	db := New(b, tree, signer, onWrite)

	tx, err := db.NewTransaction()
	if err != nil {
		return nil, err
	}

	settings := store.NewSettingsStore(tx)
	if err := settings.SetName(name); err != nil {
		return nil, err
	}
	authDoc := crdt.NewDoc()
	if err := auth.StoreAuthKey(authDoc, auth.AuthKey{
		PubKey:     signer.PeerID(),
		Permission: auth.Admin(0),
		Status:     auth.StatusActive,
	}); err != nil {
		return nil, err
	}
	if err := settings.PutAuthDoc(authDoc); err != nil {
		return nil, err
	}

	if _, err := tx.Commit(); err != nil {
		return nil, err
	}
	return db, nil
}

// newTreeID mints an opaque stable identifier for a new database. It
// is independent of the root entry's own content hash (see DESIGN.md's
// "Tree ID minting" open question): the root entry's hash cannot
// include its own tree reference without an unresolvable fixed point,
// so tree IDs are minted separately, in the same "<algo>:<hex>" shape
// entry IDs use.
func newTreeID() (types.ID, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", eerr.Wrap(eerr.KindOperation, "database_create", "failed to mint tree id", err)
	}
	sum := sha256.Sum256(buf)
	return types.ID(fmt.Sprintf("%s:%s", entry.HashAlgo, hex.EncodeToString(sum[:]))), nil
}

// Tree returns the database's tree ID.
func (d *Database) Tree() types.ID { return d.tree }

// NewTransaction opens a Transaction against the database's current
// tips.
func (d *Database) NewTransaction() (*transaction.Transaction, error) {
	return transaction.New(d.backend, d.tree, d.signer, d.onWrite)
}

// NewTransactionWithTips opens a Transaction pinned to an explicit tip
// set.
func (d *Database) NewTransactionWithTips(tips []types.ID) (*transaction.Transaction, error) {
	return transaction.NewWithTips(d.backend, d.tree, tips, d.signer, d.onWrite)
}

// Tips returns the database's current main-tree tips.
func (d *Database) Tips() ([]types.ID, error) {
	return d.backend.GetTips(d.tree)
}

// Get returns a single entry by ID, scoped to this database's tree.
func (d *Database) Get(id types.ID) (*entry.Entry, error) {
	e, err := d.backend.Get(id)
	if err != nil {
		return nil, err
	}
	if !e.InTree(d.tree) {
		return nil, eerr.NotFound("database_get", fmt.Sprintf("entry %q does not belong to this database", id))
	}
	return e, nil
}

// History returns every entry in the database's tree, topologically
// sorted.
func (d *Database) History() ([]*entry.Entry, error) {
	return d.backend.GetTree(d.tree)
}

// Name reads the database's display name from its current settings
// state, opening a short-lived read-only transaction to materialize it.
func (d *Database) Name() (string, error) {
	tx, err := d.NewTransaction()
	if err != nil {
		return "", err
	}
	defer tx.Drop()
	settings := store.NewSettingsStore(tx)
	return settings.Name()
}
