package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/eideticadb/eidetica/pkg/eerr"
	"github.com/eideticadb/eidetica/pkg/sync/protocol"
	"github.com/eideticadb/eidetica/pkg/types"
)

// syncPath is the single endpoint an HTTP transport's server exposes;
// the request body's envelope Type field selects the operation, so one
// route suffices.
const syncPath = "/sync"

// HTTP is a Transport over plain JSON bodies on net/http, the grounded
// substitute for the teacher's gRPC+mTLS stack (spec.md mandates JSON
// wire framing and this module has no grpc dependency to build on).
type HTTP struct {
	handler *protocol.Handler
	client  *http.Client

	mu     sync.Mutex
	server *http.Server
	lis    net.Listener
	addr   string
}

// NewHTTP returns an HTTP transport. handler answers incoming requests
// once Start is called; handler may be nil for a client-only instance
// that never calls Start.
func NewHTTP(handler *protocol.Handler) *HTTP {
	return &HTTP{
		handler: handler,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Start begins listening at bindAddr ("" or ":0" for an ephemeral
// port) and serves incoming sync requests in a background goroutine.
func (h *HTTP) Start(bindAddr string) error {
	if h.handler == nil {
		return eerr.Unsupported("http_transport_start", "transport has no handler to serve requests with")
	}
	if bindAddr == "" {
		bindAddr = ":0"
	}
	lis, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return eerr.Wrap(eerr.KindTransport, "http_transport_start", "failed to listen", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc(syncPath, h.serveSync)
	srv := &http.Server{Handler: mux}

	h.mu.Lock()
	h.lis = lis
	h.server = srv
	h.addr = lis.Addr().String()
	h.mu.Unlock()

	go srv.Serve(lis) //nolint:errcheck

	return nil
}

// Stop gracefully shuts the server down, if one was started.
func (h *HTTP) Stop() error {
	h.mu.Lock()
	srv := h.server
	h.server = nil
	h.mu.Unlock()
	if srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return eerr.Wrap(eerr.KindTransport, "http_transport_stop", "failed to shut down server", err)
	}
	return nil
}

// ServerAddress reports the bound address, or "" if not started.
func (h *HTTP) ServerAddress() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.addr
}

// Send posts req to address's HTTP endpoint and decodes the response.
func (h *HTTP) Send(ctx context.Context, address types.Address, req protocol.Request) (protocol.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return protocol.Response{}, eerr.Wrap(eerr.KindSerialization, "http_transport_send", "failed to encode request", err)
	}

	url := fmt.Sprintf("http://%s%s", address.Address, syncPath)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return protocol.Response{}, eerr.Wrap(eerr.KindTransport, "http_transport_send", "failed to build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return protocol.Response{}, eerr.Wrap(eerr.KindTransport, "http_transport_send", "request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return protocol.Response{}, eerr.Wrap(eerr.KindTransport, "http_transport_send", "failed to read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return protocol.Response{}, eerr.Transport("http_transport_send", fmt.Sprintf("peer returned status %d: %s", resp.StatusCode, raw))
	}

	var out protocol.Response
	if err := json.Unmarshal(raw, &out); err != nil {
		return protocol.Response{}, eerr.Wrap(eerr.KindSerialization, "http_transport_send", "failed to decode response", err)
	}
	return out, nil
}

func (h *HTTP) serveSync(w http.ResponseWriter, r *http.Request) {
	var req protocol.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("malformed request: %v", err), http.StatusBadRequest)
		return
	}

	resp := h.handler.Dispatch(req)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, fmt.Sprintf("failed to encode response: %v", err), http.StatusInternalServerError)
	}
}
