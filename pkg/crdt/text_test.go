package crdt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTextSeqInsertAndString(t *testing.T) {
	seq := NewTextSeq("r1")
	id1 := seq.InsertAfter(charID{}, false, 'h')
	id2 := seq.InsertAfter(id1, true, 'i')
	_ = id2

	assert.Equal(t, "hi", seq.String())
	assert.Equal(t, 2, seq.Len())
}

func TestTextSeqDeleteIsTombstone(t *testing.T) {
	seq := NewTextSeq("r1")
	id1 := seq.InsertAfter(charID{}, false, 'x')
	seq.Delete(id1)

	assert.Equal(t, "", seq.String())
	assert.Equal(t, 0, seq.Len())
}

func TestMergeTextConvergesConcurrentInserts(t *testing.T) {
	base := NewTextSeq("base")
	rootID := base.InsertAfter(charID{}, false, 'a')

	// A clone keeps its source's replica id; give each side its own so
	// their inserts get distinct charIDs, as two real replicas would.
	left := base.Clone().(*TextSeq)
	left.replica = "left"
	left.InsertAfter(rootID, true, 'b')

	right := base.Clone().(*TextSeq)
	right.replica = "right"
	right.InsertAfter(rootID, true, 'c')

	mergedLR := MergeText(left, right)
	mergedRL := MergeText(right, left)

	assert.Equal(t, mergedLR.String(), mergedRL.String())
	assert.Equal(t, 3, mergedLR.Len())
}

func TestMergeTextDeletionSurvives(t *testing.T) {
	base := NewTextSeq("base")
	id := base.InsertAfter(charID{}, false, 'z')

	left := base.Clone().(*TextSeq)
	left.Delete(id)

	right := base.Clone().(*TextSeq)

	merged := MergeText(left, right)
	assert.Equal(t, "", merged.String())
}
