// Package store implements Eidetica's typed views over a transaction's
// subtrees (spec §4 "Store abstractions"): DocStore for raw Doc access,
// Table[T] for UUID-keyed typed records, SettingsStore for the reserved
// "_settings" subtree, and Registry for the nested name->config mapping
// backing "_index" and transport-config subtrees. None of these types
// touch the backend directly — they all read and write through a
// Transaction's staged, merged Doc for their subtree name.
package store

import "github.com/eideticadb/eidetica/pkg/crdt"

// Transaction is the narrow surface a store view needs from a
// transaction: the current merged-plus-staged Doc for a named subtree,
// and a way to write back local edits. Implemented by
// pkg/transaction.Transaction.
type Transaction interface {
	StoreDoc(name string) (*crdt.Doc, error)
	PutStoreDoc(name string, doc *crdt.Doc) error
}

// DocStore is read/write access to a Doc at one subtree.
type DocStore struct {
	tx   Transaction
	name string
}

// NewDocStore opens a DocStore over the given subtree name within tx.
func NewDocStore(tx Transaction, name string) *DocStore {
	return &DocStore{tx: tx, name: name}
}

func (s *DocStore) doc() (*crdt.Doc, error) { return s.tx.StoreDoc(s.name) }

// Get returns the value at key.
func (s *DocStore) Get(key string) (crdt.Value, bool, error) {
	d, err := s.doc()
	if err != nil {
		return nil, false, err
	}
	v, ok := d.Get(key)
	return v, ok, nil
}

// GetPath traverses a dotted path within the store's Doc.
func (s *DocStore) GetPath(path string) (crdt.Value, bool, error) {
	d, err := s.doc()
	if err != nil {
		return nil, false, err
	}
	v, ok := d.GetPath(path)
	return v, ok, nil
}

// Set writes key = value and persists the change into the transaction's
// staging layer.
func (s *DocStore) Set(key string, value crdt.Value) error {
	d, err := s.doc()
	if err != nil {
		return err
	}
	d.Set(key, value)
	return s.tx.PutStoreDoc(s.name, d)
}

// SetPath writes a dotted path, creating intermediate Docs as needed.
func (s *DocStore) SetPath(path string, value crdt.Value) error {
	d, err := s.doc()
	if err != nil {
		return err
	}
	if err := d.SetPath(path, value); err != nil {
		return err
	}
	return s.tx.PutStoreDoc(s.name, d)
}

// Delete tombstones key.
func (s *DocStore) Delete(key string) error {
	d, err := s.doc()
	if err != nil {
		return err
	}
	d.Delete(key)
	return s.tx.PutStoreDoc(s.name, d)
}

// Doc returns the store's current Doc directly, for callers that need
// bulk access (e.g. Range, Keys).
func (s *DocStore) Doc() (*crdt.Doc, error) { return s.doc() }
