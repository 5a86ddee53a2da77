package integration

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eideticadb/eidetica/pkg/crdt"
	"github.com/eideticadb/eidetica/pkg/store"
)

// TestBasicDAGGrowth exercises spec scenario 1: create a database, add
// three sequential entries, and check that the tip set, height, and
// get_tree/History ordering all reflect a single linear chain rooted
// at the database's creation entry.
func TestBasicDAGGrowth(t *testing.T) {
	inst := newOpenInstance(t)

	db, err := inst.CreateDatabase("log")
	require.NoError(t, err)

	var committedIDs []string
	for i := 0; i < 3; i++ {
		tx, err := db.NewTransaction()
		require.NoError(t, err)
		require.NoError(t, store.NewDocStore(tx, "entries").Set(fmt.Sprintf("e%d", i), crdt.Text(fmt.Sprintf("value-%d", i))))
		committed, err := tx.Commit()
		require.NoError(t, err)
		committedIDs = append(committedIDs, string(committed.ID()))
	}

	tips, err := db.Tips()
	require.NoError(t, err)
	require.Len(t, tips, 1)
	assert.Equal(t, committedIDs[len(committedIDs)-1], string(tips[0]))

	e3, err := db.Get(tips[0])
	require.NoError(t, err)
	assert.Equal(t, 3, e3.Height)

	history, err := db.History()
	require.NoError(t, err)
	require.Len(t, history, 4) // root + 3 commits

	foundRoot := false
	for _, e := range history {
		if e.IsRoot() {
			foundRoot = true
			assert.Equal(t, 0, e.Height)
		}
	}
	assert.True(t, foundRoot)
}
