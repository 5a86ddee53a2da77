// Package transaction implements Eidetica's staged-write lifecycle
// (spec §4.3): open against a tip frontier, materialize per-store CRDT
// state on demand, stage local edits in memory, and commit them as one
// signed, auth-validated Entry. A Transaction is single-use: once
// Commit or Drop has run, every further call fails with
// ErrAlreadyCommitted.
package transaction

import (
	"encoding/json"
	"sort"
	"sync"

	"github.com/eideticadb/eidetica/pkg/auth"
	"github.com/eideticadb/eidetica/pkg/backend"
	"github.com/eideticadb/eidetica/pkg/crdt"
	"github.com/eideticadb/eidetica/pkg/eerr"
	"github.com/eideticadb/eidetica/pkg/entry"
	"github.com/eideticadb/eidetica/pkg/metrics"
	"github.com/eideticadb/eidetica/pkg/store"
	"github.com/eideticadb/eidetica/pkg/types"
)

// OnLocalWrite is invoked after a Transaction commits successfully,
// letting a sync engine enqueue the new entry for propagation without
// pkg/transaction depending on pkg/sync. Nil is a valid no-op callback.
type OnLocalWrite func(e *entry.Entry)

// Transaction stages edits against one database's subtrees and commits
// them as a single signed Entry. Not safe for concurrent use by
// multiple goroutines on the same instance; each Transaction is meant
// to be opened, used, and committed or dropped by one caller.
type Transaction struct {
	mu sync.Mutex

	backend backend.Backend
	tree    types.ID
	signer  Signer
	onWrite OnLocalWrite

	baseTips []types.ID // main-tree tips this transaction was opened against
	isRoot   bool        // true when opened against an empty database

	staged       map[string]*crdt.Doc
	storeParents map[string][]types.ID // store tips observed at materialization time, per subtree

	sigKey    *entry.SigKey // overrides the direct-pubkey SigKey Commit would otherwise build
	committed bool
}

// SignAs overrides the SigKey Commit attaches to the produced entry,
// so a caller can commit as a delegated identity (spec §4.4's
// delegation path) rather than tx's own direct pubkey. tx.signer still
// performs the actual cryptographic signature; key is only the
// resolution hint auth.Validate follows on the other end.
func (tx *Transaction) SignAs(key entry.SigKey) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.sigKey = &key
}

// New opens a Transaction against tree's current tips.
func New(b backend.Backend, tree types.ID, signer Signer, onWrite OnLocalWrite) (*Transaction, error) {
	tips, err := b.GetTips(tree)
	if err != nil {
		return nil, err
	}
	return newTransaction(b, tree, tips, signer, onWrite)
}

// NewWithTips opens a Transaction pinned to an explicit tip set,
// letting a caller read/write a database as of a historical or
// remotely-advertised frontier. Every tip must already exist in b and
// belong to tree.
func NewWithTips(b backend.Backend, tree types.ID, tips []types.ID, signer Signer, onWrite OnLocalWrite) (*Transaction, error) {
	for _, id := range tips {
		e, err := b.Get(id)
		if err != nil {
			return nil, eerr.Wrap(eerr.KindValidation, "transaction_open", "invalid tip", err)
		}
		if !e.InTree(tree) {
			return nil, eerr.Validation("transaction_open", "tip does not belong to the given database")
		}
	}
	return newTransaction(b, tree, tips, signer, onWrite)
}

func newTransaction(b backend.Backend, tree types.ID, tips []types.ID, signer Signer, onWrite OnLocalWrite) (*Transaction, error) {
	return &Transaction{
		backend:      b,
		tree:         tree,
		signer:       signer,
		onWrite:      onWrite,
		baseTips:     tips,
		isRoot:       len(tips) == 0,
		staged:       make(map[string]*crdt.Doc),
		storeParents: make(map[string][]types.ID),
	}, nil
}

// ensureMaterialized loads and caches the converged Doc plus its
// store-parent tips for name, unless it is already staged.
func (tx *Transaction) ensureMaterialized(name string) (*crdt.Doc, error) {
	if d, ok := tx.staged[name]; ok {
		return d, nil
	}
	doc, tips, err := materializeStoreAt(tx.backend, tx.tree, name, tx.baseTips)
	if err != nil {
		return nil, err
	}
	tx.staged[name] = doc
	tx.storeParents[name] = tips
	return doc, nil
}

// StoreDoc implements store.Transaction: the current merged-plus-staged
// Doc for the named subtree.
func (tx *Transaction) StoreDoc(name string) (*crdt.Doc, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.committed {
		return nil, ErrAlreadyCommitted
	}
	return tx.ensureMaterialized(name)
}

// PutStoreDoc implements store.Transaction: stage doc as the subtree's
// new state, to be written back on Commit.
func (tx *Transaction) PutStoreDoc(name string, doc *crdt.Doc) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.committed {
		return ErrAlreadyCommitted
	}
	if _, ok := tx.storeParents[name]; !ok {
		if _, err := tx.ensureMaterialized(name); err != nil {
			return err
		}
	}
	tx.staged[name] = doc
	return nil
}

// SubtreeParents returns the store-parent tips name was materialized
// against, forcing materialization if name has not been touched yet.
func (tx *Transaction) SubtreeParents(name string) ([]types.ID, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.committed {
		return nil, ErrAlreadyCommitted
	}
	if _, err := tx.ensureMaterialized(name); err != nil {
		return nil, err
	}
	return tx.storeParents[name], nil
}

// UpdateSubtree stages a raw serialized Doc payload for name, for
// callers that already hold an encoded CRDT state (e.g. sync applying
// a remote entry's store data) rather than a live *crdt.Doc.
func (tx *Transaction) UpdateSubtree(name string, serializedData string) error {
	doc := crdt.NewDoc()
	if err := doc.UnmarshalJSON([]byte(serializedData)); err != nil {
		return eerr.Serialization("transaction_update_subtree", "failed to decode subtree payload", err)
	}
	return tx.PutStoreDoc(name, doc)
}

// Drop discards the transaction's staged edits without committing.
func (tx *Transaction) Drop() {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.committed = true
}

// subtreeNames returns every staged subtree name, sorted, so Commit
// produces deterministic StoreNode ordering.
func (tx *Transaction) subtreeNames() []string {
	names := make([]string, 0, len(tx.staged))
	for name := range tx.staged {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Commit builds an Entry from the transaction's staged edits, signs it
// with the transaction's signer, runs the auth validator against prior
// settings state, persists it through the backend, and invokes the
// on-local-write callback. It fails with ErrAlreadyCommitted if called
// twice on the same Transaction.
func (tx *Transaction) Commit() (*entry.Entry, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.committed {
		return nil, ErrAlreadyCommitted
	}
	if tx.signer == nil {
		return nil, eerr.Operation("transaction_commit", "transaction has no signer")
	}

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.CommitDuration)

	names := tx.subtreeNames()
	stores := make([]entry.StoreNode, 0, len(names)+1)
	for _, name := range names {
		data, err := json.Marshal(tx.staged[name])
		if err != nil {
			return nil, eerr.Serialization("transaction_commit", "failed to encode subtree state", err)
		}
		s := string(data)
		stores = append(stores, entry.StoreNode{
			Name:    name,
			Parents: tx.storeParents[name],
			Data:    &s,
		})
	}
	if tx.isRoot {
		stores = append(stores, entry.StoreNode{Name: types.RootMarker})
	}

	parentHeights := make([]int, len(tx.baseTips))
	for i, id := range tx.baseTips {
		e, err := tx.backend.Get(id)
		if err != nil {
			return nil, err
		}
		parentHeights[i] = e.Height
	}

	sigKey := entry.SigKey{PubKey: string(tx.signer.PeerID())}
	if tx.sigKey != nil {
		sigKey = *tx.sigKey
	}
	sig := entry.SigInfo{Key: sigKey}
	e, err := entry.Build(tx.tree, tx.baseTips, parentHeights, stores, sig)
	if err != nil {
		return nil, err
	}

	hash := []byte(e.ID())
	sigStr, err := tx.signer.Sign(hash)
	if err != nil {
		return nil, eerr.Wrap(eerr.KindAuth, "transaction_commit", "failed to sign entry", err)
	}
	e.Sig.Sig = &sigStr

	if !tx.isRoot {
		priorSettings, _, err := materializeStoreAt(tx.backend, tx.tree, types.SettingsStoreName, tx.baseTips)
		if err != nil {
			return nil, err
		}
		resolver := &settingsResolver{backend: tx.backend}
		if err := auth.Validate(e, hash, priorSettings, resolver, nil); err != nil {
			metrics.CommitValidationFailuresTotal.Inc()
			return nil, err
		}
	}

	// A transaction only ever reaches this point after successfully
	// signing with its own device key and passing auth.Validate (or
	// being the database's trust-on-first-use root), so the entry is
	// Verified from the moment it is local.
	if err := tx.backend.Put(types.Verified, e); err != nil {
		return nil, err
	}

	tx.committed = true
	metrics.EntriesCommittedTotal.Inc()
	if tx.onWrite != nil {
		tx.onWrite(e)
	}
	return e, nil
}

var _ store.Transaction = (*Transaction)(nil)
