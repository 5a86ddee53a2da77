package crdt

// Editor is a small fluent helper over GetPath/SetPath/Modify for
// nested edits, grounded on the ergonomics of the original
// implementation's value_editor (original_source crates/lib/src/store/
// value_editor.rs): callers chain At(...) to descend and Set/Delete/
// Get to act, instead of repeating dotted-path strings.
type Editor struct {
	doc  *Doc
	path string
}

// Editor returns a root editor over d.
func (d *Doc) Editor() Editor { return Editor{doc: d} }

// At descends into a nested path segment, returning a new Editor
// scoped to it. Chainable: d.Editor().At("a").At("b").Set(v) is
// equivalent to d.SetPath("a.b", v).
func (e Editor) At(segment string) Editor {
	if e.path == "" {
		return Editor{doc: e.doc, path: segment}
	}
	return Editor{doc: e.doc, path: e.path + "." + segment}
}

// Get returns the value at this editor's path.
func (e Editor) Get() (Value, bool) {
	if e.path == "" {
		return e.doc, true
	}
	return e.doc.GetPath(e.path)
}

// Set writes value at this editor's path, creating intermediate Docs.
func (e Editor) Set(value Value) error {
	if e.path == "" {
		return nil
	}
	return e.doc.SetPath(e.path, value)
}

// Delete tombstones the value at this editor's path.
func (e Editor) Delete() error {
	if e.path == "" {
		return nil
	}
	return e.doc.DeletePath(e.path)
}

// Modify applies fn to the current value at this editor's path and
// writes the result back.
func (e Editor) Modify(fn func(Value, bool) Value) error {
	if e.path == "" {
		return nil
	}
	return e.doc.Modify(e.path, fn)
}
