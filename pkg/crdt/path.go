package crdt

import (
	"fmt"
	"strings"

	"github.com/eideticadb/eidetica/pkg/eerr"
)

// splitPath breaks a dotted path ("a.b.c") into segments. An empty path
// yields no segments.
func splitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

// GetPath traverses a dotted path, returning the value at its end.
// Tombstones encountered mid-path are treated as absent.
func (d *Doc) GetPath(path string) (Value, bool) {
	segs := splitPath(path)
	if len(segs) == 0 {
		return d, true
	}
	cur := d
	for i, seg := range segs {
		v, ok := cur.Get(seg)
		if !ok {
			return nil, false
		}
		if i == len(segs)-1 {
			return v, true
		}
		next, ok := v.(*Doc)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return nil, false
}

// SetPath traverses a dotted path, creating intermediate Docs as
// needed, and sets the final segment to value. It is an error if an
// intermediate segment already holds a non-Doc, non-tombstoned value.
func (d *Doc) SetPath(path string, value Value) error {
	segs := splitPath(path)
	if len(segs) == 0 {
		return eerr.Validation("crdt_path", "path must not be empty")
	}
	cur := d
	for _, seg := range segs[:len(segs)-1] {
		existing, hasLive := cur.Get(seg)
		if !hasLive {
			child := NewDoc()
			cur.Set(seg, child)
			cur = child
			continue
		}
		child, ok := existing.(*Doc)
		if !ok {
			return eerr.Validation("crdt_path", fmt.Sprintf("path segment %q is not a document: %s", seg, kindOf(existing)))
		}
		cur = child
	}
	cur.Set(segs[len(segs)-1], value)
	return nil
}

// Modify loads the value at path (nil, false if absent), applies fn,
// and writes the result back via SetPath.
func (d *Doc) Modify(path string, fn func(Value, bool) Value) error {
	cur, ok := d.GetPath(path)
	next := fn(cur, ok)
	return d.SetPath(path, next)
}

// DeletePath tombstones the value at the end of path. Intermediate
// segments must already exist and be Docs; if any segment is missing
// this is a no-op (nothing to delete).
func (d *Doc) DeletePath(path string) error {
	segs := splitPath(path)
	if len(segs) == 0 {
		return eerr.Validation("crdt_path", "path must not be empty")
	}
	cur := d
	for _, seg := range segs[:len(segs)-1] {
		v, ok := cur.Get(seg)
		if !ok {
			return nil
		}
		child, ok := v.(*Doc)
		if !ok {
			return eerr.Validation("crdt_path", fmt.Sprintf("path segment %q is not a document: %s", seg, kindOf(v)))
		}
		cur = child
	}
	cur.Delete(segs[len(segs)-1])
	return nil
}
