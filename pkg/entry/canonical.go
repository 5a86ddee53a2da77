package entry

import (
	"bytes"
	"encoding/json"
	"sort"
)

// canonicalize produces the deterministic byte form of e used for
// hashing: stores sorted by name (Build already sorts them, this is
// defensive), optional fields omitted when nil, and map-free throughout
// so encoding/json's key ordering never enters the picture.
func canonicalize(e *Entry) []byte {
	sorted := make([]StoreNode, len(e.Stores))
	copy(sorted, e.Stores)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	type canonStore struct {
		Name    string   `json:"name"`
		Parents []string `json:"parents,omitempty"`
		Data    *string  `json:"data,omitempty"`
		Height  *int     `json:"h,omitempty"`
	}
	stores := make([]canonStore, len(sorted))
	for i, s := range sorted {
		parents := make([]string, len(s.Parents))
		for j, p := range s.Parents {
			parents[j] = string(p)
		}
		stores[i] = canonStore{Name: s.Name, Parents: parents, Data: s.Data, Height: s.Height}
	}

	parents := make([]string, len(e.Parents))
	for i, p := range e.Parents {
		parents[i] = string(p)
	}

	type canonEntry struct {
		Tree    string       `json:"tree"`
		Parents []string     `json:"parents,omitempty"`
		Height  int          `json:"height"`
		Stores  []canonStore `json:"stores"`
		Sig     SigInfo      `json:"sig"`
	}
	ce := canonEntry{
		Tree:    string(e.Tree),
		Parents: parents,
		Height:  e.Height,
		Stores:  stores,
		Sig:     e.Sig,
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(ce)
	return bytes.TrimRight(buf.Bytes(), "\n")
}

// MarshalJSON implements the untagged SigKey union: delegation shape
// when Path is set, direct shape otherwise. Matches spec §6.
func (k SigKey) MarshalJSON() ([]byte, error) {
	if k.IsDelegation() {
		type delegation struct {
			Path []DelegationStep `json:"path"`
			Hint *KeyHint         `json:"hint,omitempty"`
		}
		return json.Marshal(delegation{Path: k.Path, Hint: k.Hint})
	}
	type direct struct {
		PubKey string `json:"pubkey,omitempty"`
		Name   string `json:"name,omitempty"`
	}
	return json.Marshal(direct{PubKey: k.PubKey, Name: k.Name})
}

// UnmarshalJSON tries the delegation shape first (a "path" field
// present), falling back to the direct shape, per spec §6.
func (k *SigKey) UnmarshalJSON(data []byte) error {
	var probe struct {
		Path   []DelegationStep `json:"path"`
		Hint   *KeyHint         `json:"hint"`
		PubKey string           `json:"pubkey"`
		Name   string           `json:"name"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	if len(probe.Path) > 0 {
		k.Path = probe.Path
		k.Hint = probe.Hint
		k.PubKey = ""
		k.Name = ""
		return nil
	}
	k.PubKey = probe.PubKey
	k.Name = probe.Name
	k.Path = nil
	k.Hint = nil
	return nil
}
