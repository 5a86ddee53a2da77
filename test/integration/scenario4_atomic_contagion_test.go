package integration

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/eideticadb/eidetica/pkg/crdt"
)

func scenario4Docs() (e1, e2, e3, e4 *crdt.Doc) {
	e1 = crdt.NewDoc()
	e1.SetString("old_key", "old")
	e1.SetInt("x", 1)

	e2 = crdt.NewDoc()
	e2.SetInt("y", 2)

	e3 = crdt.NewDoc()
	e3.SetString("algorithm", "aes-256")
	e3.SetString("key_id", "abc123")
	e3.SetAtomic(true)

	e4 = crdt.NewDoc()
	e4.SetString("key_id", "def456")
	return
}

// TestAtomicContagionAndAssociativity exercises spec scenario 4: an
// atomic Doc merged in anywhere in the chain replaces everything
// merged into it so far, and that contagion is associative regardless
// of how the chain is grouped.
func TestAtomicContagionAndAssociativity(t *testing.T) {
	e1, e2, e3, e4 := scenario4Docs()
	leftFold := crdt.Merge(crdt.Merge(crdt.Merge(e1, e2), e3), e4)

	e1b, e2b, e3b, e4b := scenario4Docs()
	grouped := crdt.Merge(crdt.Merge(e1b, e2b), crdt.Merge(e3b, e4b))

	for _, result := range []*crdt.Doc{leftFold, grouped} {
		assert.True(t, result.Atomic())
		assert.Equal(t, []string{"algorithm", "key_id"}, result.Keys())
		algo, ok := result.Get("algorithm")
		assert.True(t, ok)
		assert.Equal(t, crdt.Text("aes-256"), algo)
		keyID, ok := result.Get("key_id")
		assert.True(t, ok)
		assert.Equal(t, crdt.Text("def456"), keyID)
	}
}
