package store

import (
	"fmt"

	"github.com/eideticadb/eidetica/pkg/crdt"
	"github.com/eideticadb/eidetica/pkg/eerr"
)

// RegistryEntry is one record of a Registry: the subtree's declared
// type, its transport/config Doc, and its local settings Doc.
type RegistryEntry struct {
	Type     string
	Config   *crdt.Doc
	Settings *crdt.Doc
}

// Registry is a nested mapping name -> {type, config, settings},
// backing the "_index" metadata subtree and transport-config subtrees.
type Registry struct {
	*DocStore
}

// NewRegistry opens a Registry over the given subtree (conventionally
// types.IndexStoreName for the root index).
func NewRegistry(tx Transaction, name string) *Registry {
	return &Registry{DocStore: NewDocStore(tx, name)}
}

// Put upserts the registry entry for name.
func (r *Registry) Put(name string, entry RegistryEntry) error {
	d, err := r.doc()
	if err != nil {
		return err
	}
	nested := crdt.NewDoc()
	nested.SetString("type", entry.Type)
	if entry.Config != nil {
		nested.Set("config", entry.Config)
	}
	if entry.Settings != nil {
		nested.Set("settings", entry.Settings)
	}
	d.Set(name, nested)
	return r.tx.PutStoreDoc(r.name, d)
}

// Get resolves the registry entry for name.
func (r *Registry) Get(name string) (RegistryEntry, error) {
	d, err := r.doc()
	if err != nil {
		return RegistryEntry{}, err
	}
	v, ok := d.Get(name)
	if !ok {
		return RegistryEntry{}, eerr.NotFound("registry_get", fmt.Sprintf("no registry entry %q", name))
	}
	nested, ok := v.(*crdt.Doc)
	if !ok {
		return RegistryEntry{}, eerr.Corruption("registry_get", fmt.Sprintf("registry entry %q is not a document", name))
	}

	out := RegistryEntry{}
	if tv, ok := nested.Get("type"); ok {
		if t, ok := tv.(crdt.Text); ok {
			out.Type = string(t)
		}
	}
	if cv, ok := nested.Get("config"); ok {
		if c, ok := cv.(*crdt.Doc); ok {
			out.Config = c
		}
	}
	if sv, ok := nested.Get("settings"); ok {
		if s, ok := sv.(*crdt.Doc); ok {
			out.Settings = s
		}
	}
	return out, nil
}

// Names returns every registered subtree name.
func (r *Registry) Names() ([]string, error) {
	d, err := r.doc()
	if err != nil {
		return nil, err
	}
	return d.Keys(), nil
}

// Remove tombstones the registry entry for name.
func (r *Registry) Remove(name string) error {
	d, err := r.doc()
	if err != nil {
		return err
	}
	d.Delete(name)
	return r.tx.PutStoreDoc(r.name, d)
}
