package store

import "github.com/eideticadb/eidetica/pkg/crdt"

// HeightStrategy selects how a database computes store heights for
// entries it produces locally. MaxParentPlusOne is the only strategy
// spec.md fully specifies; the field exists so a database can record
// its choice for forward compatibility.
type HeightStrategy string

const HeightStrategyMaxParentPlusOne HeightStrategy = "max_parent_plus_one"

// SettingsStore is the DocStore specialization over the reserved
// "_settings" subtree: database name, auth configuration, and
// height-strategy.
type SettingsStore struct {
	*DocStore
}

// NewSettingsStore opens the SettingsStore for tx.
func NewSettingsStore(tx Transaction) *SettingsStore {
	return &SettingsStore{DocStore: NewDocStore(tx, "_settings")}
}

// Name returns the database's display name, or "" if unset.
func (s *SettingsStore) Name() (string, error) {
	v, ok, err := s.Get("name")
	if err != nil || !ok {
		return "", err
	}
	if t, ok := v.(crdt.Text); ok {
		return string(t), nil
	}
	return "", nil
}

// SetName sets the database's display name.
func (s *SettingsStore) SetName(name string) error {
	return s.Set("name", crdt.Text(name))
}

// AuthDoc returns the nested Doc at "auth", the key store consumed by
// pkg/auth.
func (s *SettingsStore) AuthDoc() (*crdt.Doc, error) {
	d, err := s.doc()
	if err != nil {
		return nil, err
	}
	v, ok := d.Get("auth")
	if !ok {
		return crdt.NewDoc(), nil
	}
	authDoc, ok := v.(*crdt.Doc)
	if !ok {
		return crdt.NewDoc(), nil
	}
	return authDoc, nil
}

// PutAuthDoc writes back the auth Doc after pkg/auth has modified it.
func (s *SettingsStore) PutAuthDoc(auth *crdt.Doc) error {
	d, err := s.doc()
	if err != nil {
		return err
	}
	d.Set("auth", auth)
	return s.tx.PutStoreDoc(s.name, d)
}

// HeightStrategy returns the configured height strategy, defaulting to
// MaxParentPlusOne.
func (s *SettingsStore) HeightStrategy() (HeightStrategy, error) {
	v, ok, err := s.Get("height_strategy")
	if err != nil {
		return "", err
	}
	if !ok {
		return HeightStrategyMaxParentPlusOne, nil
	}
	if t, ok := v.(crdt.Text); ok {
		return HeightStrategy(t), nil
	}
	return HeightStrategyMaxParentPlusOne, nil
}
