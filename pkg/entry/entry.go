// Package entry implements Eidetica's immutable, content-addressed,
// signature-bearing DAG unit. An Entry never changes after it is built;
// its ID is a deterministic hash of its canonical form.
package entry

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/eideticadb/eidetica/pkg/eerr"
	"github.com/eideticadb/eidetica/pkg/types"
)

// DelegationStep names one hop of a delegation path: the delegated
// database and the tip set its auth state must be evaluated at.
type DelegationStep struct {
	Tree types.ID   `json:"tree"`
	Tips []types.ID `json:"tips"`
}

// KeyHint narrows a delegation's final key resolution: either a pubkey
// or a display-name hint understood by the leaf database's auth state.
type KeyHint struct {
	PubKey string `json:"pubkey,omitempty"`
	Name   string `json:"name,omitempty"`
}

// SigKey identifies the signer of an Entry, either directly by pubkey
// (optionally hinted by display name) or through a delegation path
// into another database's auth state. Exactly one of the two shapes is
// populated; MarshalJSON/UnmarshalJSON implement the untagged-union
// encoding described in spec §6 (try delegation shape first, fall back
// to direct).
type SigKey struct {
	// Direct form.
	PubKey string `json:"pubkey,omitempty"`
	Name   string `json:"name,omitempty"`

	// Delegation form.
	Path []DelegationStep `json:"path,omitempty"`
	Hint *KeyHint         `json:"hint,omitempty"`
}

// IsDelegation reports whether k carries a delegation path.
func (k SigKey) IsDelegation() bool { return len(k.Path) > 0 }

// SigInfo pairs a SigKey with its (optional, until signed) signature.
type SigInfo struct {
	Key SigKey  `json:"key"`
	Sig *string `json:"sig,omitempty"`
}

// StoreNode is one store's contribution to an Entry: the store's name,
// its store-parent IDs, and its opaque serialized CRDT payload (absent
// for stores the entry only references, never present for the "_root"
// marker store of a root entry).
type StoreNode struct {
	Name    string     `json:"name"`
	Parents []types.ID `json:"parents,omitempty"`
	Data    *string    `json:"data,omitempty"`
	Height  *int       `json:"h,omitempty"`
}

// Entry is the atomic, immutable, content-addressed unit of an Eidetica
// database DAG.
type Entry struct {
	Tree    types.ID    `json:"tree"`
	Parents []types.ID  `json:"parents,omitempty"`
	Height  int         `json:"height"`
	Stores  []StoreNode `json:"stores"`
	Sig     SigInfo     `json:"sig"`

	id types.ID // memoized, computed by ID() on first call
}

// HashAlgo is the content-hash algorithm used to derive entry IDs. It is
// a backend-wide parameter (spec §9 open question): Eidetica picks
// sha256 and prefixes every ID with it, leaving algorithm migration to
// a future backend version field.
const HashAlgo = "sha256"

// Build validates structural invariants, computes height from parents
// (the caller supplies parent heights via parentHeights, indexed the
// same as parents), and returns a new immutable Entry. Root entries
// (empty parents) must carry the RootMarker store with no parents of
// its own.
func Build(tree types.ID, parents []types.ID, parentHeights []int, stores []StoreNode, sig SigInfo) (*Entry, error) {
	isRoot := len(parents) == 0

	for _, p := range parents {
		if p.Empty() {
			return nil, eerr.Validation("entry", "parent id must not be empty")
		}
	}

	if !isRoot {
		hasRealParent := false
		for _, s := range stores {
			if len(s.Parents) > 0 {
				hasRealParent = true
			}
			for _, p := range s.Parents {
				if p.Empty() {
					return nil, eerr.Validation("entry", "store parent id must not be empty")
				}
			}
		}
		_ = hasRealParent // stores may legitimately have no parents on first write
	} else {
		foundRoot := false
		for _, s := range stores {
			if s.Name == types.RootMarker {
				foundRoot = true
			}
		}
		if !foundRoot {
			return nil, eerr.Validation("entry", "root entry must carry the _root marker store")
		}
	}

	height := 0
	for _, h := range parentHeights {
		if h+1 > height {
			height = h + 1
		}
	}

	sorted := make([]StoreNode, len(stores))
	copy(sorted, stores)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	e := &Entry{
		Tree:    tree,
		Parents: append([]types.ID(nil), parents...),
		Height:  height,
		Stores:  sorted,
		Sig:     sig,
	}
	return e, nil
}

// IsRoot reports whether e has no main-tree parents.
func (e *Entry) IsRoot() bool { return len(e.Parents) == 0 }

// SubtreeParents returns the store-parent IDs for the named store, or
// nil if e does not touch that store.
func (e *Entry) SubtreeParents(name string) []types.ID {
	for _, s := range e.Stores {
		if s.Name == name {
			return s.Parents
		}
	}
	return nil
}

// Subtrees returns the names of every store e touches.
func (e *Entry) Subtrees() []string {
	names := make([]string, 0, len(e.Stores))
	for _, s := range e.Stores {
		names = append(names, s.Name)
	}
	return names
}

// InTree reports whether id is e's tree root or e itself belongs to it.
func (e *Entry) InTree(id types.ID) bool { return e.Tree == id }

// InSubtree reports whether e touches the named store.
func (e *Entry) InSubtree(name string) bool {
	for _, s := range e.Stores {
		if s.Name == name {
			return true
		}
	}
	return false
}

// Data returns the serialized payload for the named store.
func (e *Entry) Data(name string) (string, error) {
	for _, s := range e.Stores {
		if s.Name == name {
			if s.Data == nil {
				return "", eerr.NotFound("entry_data", fmt.Sprintf("store %q has no data on this entry", name))
			}
			return *s.Data, nil
		}
	}
	return "", eerr.NotFound("entry_data", fmt.Sprintf("entry does not touch store %q", name))
}

// ID returns the memoized content hash of e, computing it on first call.
func (e *Entry) ID() types.ID {
	if e.id == "" {
		e.id = e.computeID()
	}
	return e.id
}

// computeID hashes e's canonical form with Sig.Sig excluded.
func (e *Entry) computeID() types.ID {
	unsigned := *e
	unsigned.Sig = SigInfo{Key: e.Sig.Key}
	canon := canonicalize(&unsigned)
	sum := sha256.Sum256(canon)
	return types.ID(fmt.Sprintf("%s:%s", HashAlgo, hex.EncodeToString(sum[:])))
}

// Reseal recomputes and caches e's ID after Sig.Sig has been populated
// by the signing step. The ID is unaffected by Sig.Sig (computeID
// always strips it), but Reseal lets callers force recomputation if the
// Entry's unsigned fields changed in-place (they should not; kept for
// defensive symmetry with the Rust original's rehash-on-load path).
func (e *Entry) Reseal() types.ID {
	e.id = ""
	return e.ID()
}
