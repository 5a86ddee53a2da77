package auth

import (
	"fmt"

	"github.com/eideticadb/eidetica/pkg/crdt"
	"github.com/eideticadb/eidetica/pkg/eerr"
	"github.com/eideticadb/eidetica/pkg/entry"
	"github.com/eideticadb/eidetica/pkg/types"
)

// maxDelegationDepth bounds SigKey resolution so a pathological or
// cyclic delegation graph fails rather than recursing forever.
const maxDelegationDepth = 10

// SettingsResolver looks up another database's "_settings" Doc (whose
// "auth" key holds its keys) as of a given tip set. Implemented by the backend/transaction layer;
// kept as a narrow interface here so auth has no dependency on them.
type SettingsResolver interface {
	SettingsAt(tree types.ID, tips []types.ID) (*crdt.Doc, error)
}

// Resolved is the outcome of resolving a SigKey: the concrete signer
// and its effective permission after any delegation clamping.
type Resolved struct {
	PubKey     types.PeerId
	Permission Permission
	Status     KeyStatus
}

// Resolve looks up the signer named by key against settings (the
// signing database's own "_settings" Doc), following delegation
// hops through resolver as needed.
func Resolve(key entry.SigKey, settings *crdt.Doc, resolver SettingsResolver) (Resolved, error) {
	if !key.IsDelegation() {
		return resolveDirect(key, settings)
	}
	return resolveDelegation(key, settings, resolver, make(map[visitKey]bool), 0)
}

func resolveDirect(key entry.SigKey, settings *crdt.Doc) (Resolved, error) {
	if key.PubKey != "" {
		k, err := LookupByPubKey(settings, types.PeerId(key.PubKey))
		if err != nil {
			return Resolved{}, err
		}
		return Resolved{PubKey: k.PubKey, Permission: k.Permission, Status: k.Status}, nil
	}
	if key.Name != "" {
		k, err := LookupByName(settings, key.Name)
		if err != nil {
			return Resolved{}, err
		}
		return Resolved{PubKey: k.PubKey, Permission: k.Permission, Status: k.Status}, nil
	}
	return Resolved{}, eerr.Validation("auth_resolve", "direct SigKey has neither pubkey nor name")
}

type visitKey struct {
	tree types.ID
	step int
}

// resolveDelegation walks key.Path. At each step the bounds that apply
// are read from the *delegating* database's settings — parentSettings
// starts as settings, the database the SigKey was found in (spec.md
// §4.5: "apply this step's permission bounds (from the delegating
// entry in the parent database)") — not from the database the step
// names. Once a step's bounds are applied, that step's own settings
// become parentSettings for the next step, since the step's database
// is what delegates onward from there.
func resolveDelegation(key entry.SigKey, parentSettings *crdt.Doc, resolver SettingsResolver, visited map[visitKey]bool, depth int) (Resolved, error) {
	if len(key.Path) == 0 {
		return Resolved{}, eerr.Validation("auth_resolve", "delegation path must not be empty")
	}
	if depth+len(key.Path) > maxDelegationDepth {
		return Resolved{}, eerr.AuthErr("auth_resolve", "delegation depth exceeds maximum")
	}
	if resolver == nil {
		return Resolved{}, eerr.Operation("auth_resolve", "delegation requires a settings resolver")
	}

	var current Permission = Admin(0) // unbounded until the first hop's bounds apply
	settings := parentSettings

	for i, step := range key.Path {
		vk := visitKey{tree: step.Tree, step: i}
		if visited[vk] {
			return Resolved{}, eerr.AuthErr("auth_resolve", fmt.Sprintf("delegation cycle detected at tree %q step %d", step.Tree, i))
		}
		visited[vk] = true

		bounds, ok := delegationBoundsFor(settings, i)
		if ok {
			current = bounds.Clamp(current)
		}

		s, err := resolver.SettingsAt(step.Tree, step.Tips)
		if err != nil {
			return Resolved{}, err
		}
		settings = s
	}

	leaf := entry.SigKey{PubKey: "", Name: ""}
	if key.Hint != nil {
		leaf.PubKey = key.Hint.PubKey
		leaf.Name = key.Hint.Name
	}
	resolved, err := resolveDirect(leaf, settings)
	if err != nil {
		return Resolved{}, err
	}

	if resolved.Permission.Greater(current) {
		resolved.Permission = current
	}
	return resolved, nil
}

// delegationBoundsFor reads the delegation bounds a database attaches
// to path step i of an outgoing delegation, if any are configured. A
// database with no configured bounds for a step is treated as
// unbounded (the step contributes no additional clamp).
func delegationBoundsFor(settings *crdt.Doc, _ int) (PermissionBounds, bool) {
	v, ok := settings.Get("delegation_bounds")
	if !ok {
		return PermissionBounds{}, false
	}
	d, ok := v.(*crdt.Doc)
	if !ok {
		return PermissionBounds{}, false
	}
	maxV, ok := d.Get("max_level")
	if !ok {
		return PermissionBounds{}, false
	}
	maxLevelText, ok := maxV.(crdt.Text)
	if !ok {
		return PermissionBounds{}, false
	}
	maxPriority := int64(0)
	if p, ok := d.Get("max_priority"); ok {
		if pi, ok := p.(crdt.Int); ok {
			maxPriority = int64(pi)
		}
	}
	bounds := NewBounds(levelFromText(string(maxLevelText), uint32(maxPriority)))
	if minV, ok := d.Get("min_level"); ok {
		if minLevelText, ok := minV.(crdt.Text); ok {
			minPriority := int64(0)
			if p, ok := d.Get("min_priority"); ok {
				if pi, ok := p.(crdt.Int); ok {
					minPriority = int64(pi)
				}
			}
			bounds = bounds.WithMin(levelFromText(string(minLevelText), uint32(minPriority)))
		}
	}
	return bounds, true
}

func levelFromText(s string, priority uint32) Permission {
	switch s {
	case "Admin":
		return Admin(priority)
	case "Write":
		return Write(priority)
	default:
		return Read()
	}
}
