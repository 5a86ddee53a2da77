package crdt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocSetGetDelete(t *testing.T) {
	d := NewDoc()
	d.SetString("name", "alice")
	d.SetInt("age", 30)

	v, ok := d.Get("name")
	require.True(t, ok)
	assert.Equal(t, Text("alice"), v)

	d.Delete("name")
	_, ok = d.Get("name")
	assert.False(t, ok)
	assert.True(t, d.IsTombstoned("name"))
	assert.Equal(t, 1, d.Len())
}

func TestDocMergeNonOverlapping(t *testing.T) {
	a := NewDoc()
	a.SetString("x", "1")
	b := NewDoc()
	b.SetString("y", "2")

	m := Merge(a, b)
	vx, _ := m.Get("x")
	vy, _ := m.Get("y")
	assert.Equal(t, Text("1"), vx)
	assert.Equal(t, Text("2"), vy)
}

func TestDocMergeTombstoneWins(t *testing.T) {
	a := NewDoc()
	a.SetString("x", "1")
	b := NewDoc()
	b.Delete("x")

	assert.True(t, Merge(a, b).IsTombstoned("x"))
	// Deleted⊕any -> other: a live value merged onto a tombstone wins.
	v, ok := Merge(b, a).Get("x")
	assert.True(t, ok)
	assert.Equal(t, Text("1"), v)
}

func TestDocMergeAtomicReplacesWhole(t *testing.T) {
	a := NewDoc()
	a.SetString("x", "1")
	a.SetString("y", "2")

	b := NewDoc()
	b.SetString("x", "override")
	b.SetAtomic(true)

	m := Merge(a, b)
	assert.True(t, m.Atomic())
	vx, _ := m.Get("x")
	assert.Equal(t, Text("override"), vx)
	_, hasY := m.Get("y")
	assert.False(t, hasY)
}

func TestDocMergeAtomicContagious(t *testing.T) {
	a := NewDoc()
	a.SetAtomic(true)
	b := NewDoc()

	assert.True(t, Merge(a, b).Atomic())
	assert.True(t, Merge(b, a).Atomic())
}

func TestDocMergeAssociativeNonAtomic(t *testing.T) {
	a := NewDoc()
	a.SetString("x", "1")
	b := NewDoc()
	b.SetString("y", "2")
	c := NewDoc()
	c.SetString("z", "3")

	left := Merge(Merge(a, b), c)
	right := Merge(a, Merge(b, c))

	assert.ElementsMatch(t, left.AllKeys(), right.AllKeys())
	for _, k := range left.AllKeys() {
		lv, _ := left.Get(k)
		rv, _ := right.Get(k)
		assert.Equal(t, lv, rv)
	}
}

func TestDocMergeNestedRecurses(t *testing.T) {
	a := NewDoc()
	inner := NewDoc()
	inner.SetString("a", "1")
	a.Set("child", inner)

	b := NewDoc()
	inner2 := NewDoc()
	inner2.SetString("b", "2")
	b.Set("child", inner2)

	m := Merge(a, b)
	childVal, ok := m.Get("child")
	require.True(t, ok)
	child := childVal.(*Doc)
	_, hasA := child.Get("a")
	_, hasB := child.Get("b")
	assert.True(t, hasA)
	assert.True(t, hasB)
}

func TestDocCloneIsIndependent(t *testing.T) {
	a := NewDoc()
	a.SetString("x", "1")
	clone := a.Clone().(*Doc)
	clone.SetString("x", "2")

	v, _ := a.Get("x")
	assert.Equal(t, Text("1"), v)
}
