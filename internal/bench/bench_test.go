// Package bench holds standalone benchmarks for the hot paths a
// production deployment cares about most: CRDT merge, entry hashing,
// and the backend's put/get_tree round trip. Colocated here rather
// than inside each package's own _test.go, matching the corpus
// convention of a dedicated benches target distinct from unit tests.
package bench

import (
	"crypto/ed25519"
	"fmt"
	"testing"

	"github.com/eideticadb/eidetica/pkg/backend"
	"github.com/eideticadb/eidetica/pkg/crdt"
	"github.com/eideticadb/eidetica/pkg/entry"
	"github.com/eideticadb/eidetica/pkg/instance"
	"github.com/eideticadb/eidetica/pkg/store"
	"github.com/eideticadb/eidetica/pkg/transaction"
	"github.com/eideticadb/eidetica/pkg/types"
)

func newSigner(tb testing.TB) transaction.Ed25519Signer {
	tb.Helper()
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		tb.Fatalf("generate key: %v", err)
	}
	return transaction.NewEd25519Signer(priv)
}

// BenchmarkDocMerge measures merging two docs of increasing size, half
// their keys overlapping (each overlapping key goes through the
// per-key mergeValue path).
func BenchmarkDocMerge(b *testing.B) {
	for _, size := range []int{10, 100, 1000} {
		b.Run(fmt.Sprintf("keys_%d", size), func(b *testing.B) {
			a := crdt.NewDoc()
			other := crdt.NewDoc()
			for i := 0; i < size; i++ {
				a.SetString(fmt.Sprintf("key_%d", i), fmt.Sprintf("a_%d", i))
			}
			for i := size / 2; i < size+size/2; i++ {
				other.SetString(fmt.Sprintf("key_%d", i), fmt.Sprintf("b_%d", i))
			}

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				crdt.Merge(a, other)
			}
		})
	}
}

// BenchmarkEntryID measures building a root entry and computing its
// content hash. Build returns an Entry with no memoized ID, so each
// iteration pays the full canonicalize-then-sha256 cost ID() does on
// first call.
func BenchmarkEntryID(b *testing.B) {
	stores := []entry.StoreNode{{Name: types.RootMarker}}
	sig := entry.SigInfo{Key: entry.SigKey{PubKey: "bench-key"}}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e, err := entry.Build("", nil, nil, stores, sig)
		if err != nil {
			b.Fatalf("build: %v", err)
		}
		_ = e.ID()
	}
}

// BenchmarkBackendPutGetTree measures a memory backend's Put/GetTree
// round trip against trees of varying depth, mirroring the
// add_entries/access_entries shape of a commit-heavy workload.
func BenchmarkBackendPutGetTree(b *testing.B) {
	for _, depth := range []int{10, 100} {
		b.Run(fmt.Sprintf("depth_%d", depth), func(b *testing.B) {
			signer := newSigner(b)
			be := backend.NewMemory()
			inst, err := instance.Open(be, signer)
			if err != nil {
				b.Fatalf("open instance: %v", err)
			}
			db, err := inst.CreateDatabase("bench")
			if err != nil {
				b.Fatalf("create database: %v", err)
			}
			for i := 0; i < depth; i++ {
				tx, err := db.NewTransaction()
				if err != nil {
					b.Fatalf("new transaction: %v", err)
				}
				table := store.NewTable[string](tx, "data")
				if _, err := table.Insert(fmt.Sprintf("value_%d", i)); err != nil {
					b.Fatalf("insert: %v", err)
				}
				if _, err := tx.Commit(); err != nil {
					b.Fatalf("commit: %v", err)
				}
			}

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := be.GetTree(db.Tree()); err != nil {
					b.Fatalf("get tree: %v", err)
				}
			}
		})
	}
}
