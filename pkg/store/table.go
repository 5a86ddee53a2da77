package store

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/eideticadb/eidetica/pkg/crdt"
	"github.com/eideticadb/eidetica/pkg/eerr"
)

// Table is a typed record store: UUIDv4-keyed, values serialized via a
// canonical JSON encoding of T. Deletes tombstone rather than remove,
// so record history and concurrent-delete semantics follow Doc's own.
type Table[T any] struct {
	tx   Transaction
	name string
}

// NewTable opens a Table[T] over the given subtree name within tx.
func NewTable[T any](tx Transaction, name string) *Table[T] {
	return &Table[T]{tx: tx, name: name}
}

func (t *Table[T]) doc() (*crdt.Doc, error) { return t.tx.StoreDoc(t.name) }

// Insert generates a new UUIDv4 key, stores value, and returns the key.
func (t *Table[T]) Insert(value T) (string, error) {
	id := uuid.NewString()
	if err := t.Set(id, value); err != nil {
		return "", err
	}
	return id, nil
}

// Set upserts value at the given key.
func (t *Table[T]) Set(id string, value T) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return eerr.Wrap(eerr.KindSerialization, "table_set", "failed to encode record", err)
	}
	d, err := t.doc()
	if err != nil {
		return err
	}
	d.Set(id, crdt.Text(raw))
	return t.tx.PutStoreDoc(t.name, d)
}

// Get decodes the record stored at id.
func (t *Table[T]) Get(id string) (T, error) {
	var zero T
	d, err := t.doc()
	if err != nil {
		return zero, err
	}
	v, ok := d.Get(id)
	if !ok {
		return zero, eerr.NotFound("table_get", fmt.Sprintf("no record %q", id))
	}
	text, ok := v.(crdt.Text)
	if !ok {
		return zero, eerr.Corruption("table_get", fmt.Sprintf("record %q is not a text payload", id))
	}
	var out T
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return zero, eerr.Wrap(eerr.KindSerialization, "table_get", "failed to decode record", err)
	}
	return out, nil
}

// Delete tombstones the record at id.
func (t *Table[T]) Delete(id string) error {
	d, err := t.doc()
	if err != nil {
		return err
	}
	d.Delete(id)
	return t.tx.PutStoreDoc(t.name, d)
}

// Search returns every live record for which predicate returns true,
// keyed by id.
func (t *Table[T]) Search(predicate func(id string, value T) bool) (map[string]T, error) {
	d, err := t.doc()
	if err != nil {
		return nil, err
	}
	out := make(map[string]T)
	var searchErr error
	d.Range(func(id string, v crdt.Value) {
		if searchErr != nil {
			return
		}
		text, ok := v.(crdt.Text)
		if !ok {
			return
		}
		var val T
		if jerr := json.Unmarshal([]byte(text), &val); jerr != nil {
			searchErr = eerr.Wrap(eerr.KindSerialization, "table_search", "failed to decode record", jerr)
			return
		}
		if predicate(id, val) {
			out[id] = val
		}
	})
	if searchErr != nil {
		return nil, searchErr
	}
	return out, nil
}

// All returns every live record keyed by id.
func (t *Table[T]) All() (map[string]T, error) {
	return t.Search(func(string, T) bool { return true })
}
