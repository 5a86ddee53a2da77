package registry

import "github.com/eideticadb/eidetica/pkg/crdt"

// stateText wraps raw JSON bytes as the crdt.Text value a DocStore can
// carry; these registries store opaque JSON-encoded records rather
// than structured Docs since their payloads (transport state, PeerInfo)
// are plain Go structs with no CRDT merge semantics of their own.
func stateText(raw []byte) crdt.Value { return crdt.Text(raw) }

func textBytes(v crdt.Value) ([]byte, bool) {
	t, ok := v.(crdt.Text)
	if !ok {
		return nil, false
	}
	return []byte(t), true
}
