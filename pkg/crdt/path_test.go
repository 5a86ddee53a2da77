package crdt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetPathCreatesIntermediates(t *testing.T) {
	d := NewDoc()
	err := d.SetPath("a.b.c", Text("leaf"))
	require.NoError(t, err)

	v, ok := d.GetPath("a.b.c")
	require.True(t, ok)
	assert.Equal(t, Text("leaf"), v)
}

func TestSetPathRejectsNonDocIntermediate(t *testing.T) {
	d := NewDoc()
	d.SetString("a", "scalar")
	err := d.SetPath("a.b", Text("x"))
	assert.Error(t, err)
}

func TestDeletePathTombstones(t *testing.T) {
	d := NewDoc()
	require.NoError(t, d.SetPath("a.b", Text("x")))
	require.NoError(t, d.DeletePath("a.b"))

	_, ok := d.GetPath("a.b")
	assert.False(t, ok)
}

func TestModifyAppliesFunction(t *testing.T) {
	d := NewDoc()
	require.NoError(t, d.SetPath("counter", Int(1)))
	err := d.Modify("counter", func(v Value, ok bool) Value {
		if !ok {
			return Int(1)
		}
		return Int(v.(Int) + 1)
	})
	require.NoError(t, err)

	v, _ := d.GetPath("counter")
	assert.Equal(t, Int(2), v)
}
