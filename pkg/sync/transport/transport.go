// Package transport implements spec §4.6's pluggable Transport trait:
// a named endpoint a sync engine can start a server on, send requests
// over, and stop. Grounded on the lifecycle shape of
// cuemby-warren/pkg/api/server.go and pkg/client/client.go
// (Start/Stop/net.Listen), adapted from gRPC+mTLS to plain JSON-over-
// HTTP since spec.md mandates a JSON wire protocol and this module's
// go.mod carries no grpc/protobuf dependency to ground a gRPC transport
// on.
package transport

import (
	"context"
	"strings"

	"github.com/eideticadb/eidetica/pkg/sync/protocol"
	"github.com/eideticadb/eidetica/pkg/types"
)

// Transport is a pluggable endpoint kind a sync engine can register
// under a name (spec §4.6 "Transport registry"). A transport may be
// started as a server, used as a client to Send requests to remote
// addresses, or both.
type Transport interface {
	// Start begins listening for incoming requests at bindAddr. An
	// empty bindAddr lets the transport choose (e.g. ":0" for an
	// ephemeral TCP port). Start is a no-op error for a transport that
	// only ever acts as a client.
	Start(bindAddr string) error

	// Stop shuts the server down, if one was started. Stop on a
	// never-started transport is a no-op.
	Stop() error

	// Send delivers req to address and returns the peer's response.
	Send(ctx context.Context, address types.Address, req protocol.Request) (protocol.Response, error)

	// ServerAddress reports the address this transport's server is
	// reachable at, once started. Empty if not started.
	ServerAddress() string
}

// Transport type names used in types.Address.TransportType and the
// transport registry.
const (
	TypeHTTP = "http"
	TypeP2P  = "p2p"
)

// DetectType implements spec §4.6's transport auto-detection: an
// address string starting with '{' or containing "node_id" names a P2P
// endpoint descriptor; anything else is an HTTP address.
func DetectType(address string) string {
	if strings.HasPrefix(address, "{") || strings.Contains(address, "node_id") {
		return TypeP2P
	}
	return TypeHTTP
}
