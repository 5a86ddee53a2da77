package transport

import (
	"context"

	"github.com/eideticadb/eidetica/pkg/eerr"
	"github.com/eideticadb/eidetica/pkg/sync/protocol"
	"github.com/eideticadb/eidetica/pkg/types"
)

// P2P is the adapter point for spec §4.6's peer-to-peer transport
// (endpoint IDs, relay fallback). None of this module's example corpus
// carries a p2p networking dependency (no iroh/libp2p equivalent in
// go.mod), so this is an unimplemented stub rather than a hand-rolled
// protocol: every method fails with eerr.KindUnsupported until a real
// library is wired in. DetectType still routes "{...}"/node_id
// addresses here so callers fail closed with a clear error instead of
// silently treating a P2P address as HTTP.
type P2P struct{}

// NewP2P returns an unimplemented P2P transport.
func NewP2P() *P2P { return &P2P{} }

func (p *P2P) Start(bindAddr string) error {
	return eerr.Unsupported("p2p_transport", "p2p transport is not implemented")
}

func (p *P2P) Stop() error { return nil }

func (p *P2P) Send(ctx context.Context, address types.Address, req protocol.Request) (protocol.Response, error) {
	return protocol.Response{}, eerr.Unsupported("p2p_transport", "p2p transport is not implemented")
}

func (p *P2P) ServerAddress() string { return "" }
