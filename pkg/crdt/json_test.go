package crdt

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocJSONRoundTrip(t *testing.T) {
	d := NewDoc()
	d.SetString("name", "alice")
	d.SetInt("age", 30)
	d.Delete("ghost")

	b, err := json.Marshal(d)
	require.NoError(t, err)

	out := NewDoc()
	require.NoError(t, json.Unmarshal(b, out))

	v, ok := out.Get("name")
	require.True(t, ok)
	assert.Equal(t, Text("alice"), v)
	assert.True(t, out.IsTombstoned("ghost"))
}

func TestDocJSONAtomicFlag(t *testing.T) {
	d := NewDoc()
	d.SetAtomic(true)
	d.SetString("x", "1")

	b, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"_a":true`)

	out := NewDoc()
	require.NoError(t, json.Unmarshal(b, out))
	assert.True(t, out.Atomic())
}

func TestDocJSONDeterministicKeyOrder(t *testing.T) {
	d := NewDoc()
	d.SetString("zeta", "1")
	d.SetString("alpha", "2")

	b1, err := json.Marshal(d)
	require.NoError(t, err)
	b2, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, string(b1), string(b2))

	alphaIdx := indexOf(string(b1), `"alpha"`)
	zetaIdx := indexOf(string(b1), `"zeta"`)
	assert.True(t, alphaIdx < zetaIdx)
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

func TestDocJSONNestedListRoundTrip(t *testing.T) {
	d := NewDoc()
	l := NewList()
	l.Insert(0, Text("first"), "w1")
	l.Insert(1, Text("second"), "w2")
	d.Set("items", l)

	b, err := json.Marshal(d)
	require.NoError(t, err)

	out := NewDoc()
	require.NoError(t, json.Unmarshal(b, out))

	v, ok := out.Get("items")
	require.True(t, ok)
	list := v.(*List)
	assert.Equal(t, []Value{Text("first"), Text("second")}, list.Values())
}
