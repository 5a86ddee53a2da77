// Package protocol defines Eidetica's JSON sync wire protocol (spec
// §4.6, §6): the request/response envelope a Transport carries between
// peers, and the server-side dispatcher that answers them. Grounded on
// original_source/crates/lib/src/sync/protocol.rs and peer.rs for exact
// request/response shapes, translated from Rust's tagged enums into a
// Go discriminated-union-by-string-Type envelope (encoding/json has no
// native enum, so the Type field plus one populated payload pointer
// per variant is the idiomatic substitute, mirroring entry.SigKey's
// own untagged-union precedent).
package protocol

import (
	"github.com/eideticadb/eidetica/pkg/auth"
	"github.com/eideticadb/eidetica/pkg/entry"
	"github.com/eideticadb/eidetica/pkg/types"
)

// RequestType discriminates a Request's populated payload field.
type RequestType string

const (
	RequestHandshake   RequestType = "Handshake"
	RequestSyncTree    RequestType = "SyncTree"
	RequestPushEntries RequestType = "PushEntries"
)

// ResponseType discriminates a Response's populated payload field.
type ResponseType string

const (
	ResponseHandshakeOk      ResponseType = "HandshakeOk"
	ResponseSyncTreeOk       ResponseType = "SyncTreeOk"
	ResponseBootstrapPending ResponseType = "BootstrapPending"
	ResponsePushOk           ResponseType = "PushOk"
	ResponseError            ResponseType = "Error"
)

// Handshake identifies the caller and its capabilities.
type Handshake struct {
	PubKey       types.PeerId `json:"pubkey"`
	Capabilities []string     `json:"capabilities,omitempty"`
}

// HandshakeOk answers a Handshake with the server's own identity.
type HandshakeOk struct {
	PubKey       types.PeerId `json:"pubkey"`
	Capabilities []string     `json:"capabilities,omitempty"`
}

// SyncTree requests the peer's state for one database. An empty
// OurTips means "I have nothing for this tree": the server answers with
// the whole tree, or, when RequestingKey is also set, runs the bootstrap
// path (see IsBootstrap). A non-empty OurTips requests the entries the
// server's frontier holds that aren't reachable from it.
//
// RequestingKey/RequestingKeyName/RequestedPermission are populated
// only for a bootstrap request: the device asking to be let in names
// the public key it would sign future entries with, a human-readable
// label for that key, and the permission level it's asking for.
type SyncTree struct {
	TreeID              types.ID     `json:"tree_id"`
	OurTips             []types.ID   `json:"our_tips"`
	PeerPubKey          types.PeerId `json:"peer_pubkey,omitempty"`
	RequestingKey       string       `json:"requesting_key,omitempty"`
	RequestingKeyName   string       `json:"requesting_key_name,omitempty"`
	RequestedPermission string       `json:"requested_permission,omitempty"`
}

// IsBootstrap reports whether this SyncTree is a bootstrap request:
// no local tips and a requesting key to evaluate for admission.
func (s SyncTree) IsBootstrap() bool { return len(s.OurTips) == 0 && s.RequestingKey != "" }

// SyncTreeOk carries the entries the requester's frontier is missing,
// topologically ordered so the client can Put them in order.
type SyncTreeOk struct {
	Entries []*entry.Entry `json:"entries"`
}

// BootstrapPending answers a bootstrap SyncTree when no auto-approve
// policy applies: the request was recorded for an administrator to
// decide on later.
type BootstrapPending struct {
	RequestID string `json:"request_id"`
	Message   string `json:"message"`
}

// ErrorResponse carries a server-side failure back to the caller.
type ErrorResponse struct {
	Message string `json:"message"`
}

// PushEntries carries entries the sender already holds for tree_id
// directly to a peer, for the commit-callback fan-out of spec §4.6's
// SendEntries queue command. Unlike SyncTree (a pull: the caller asks
// what it's missing), PushEntries is a genuine one-way send: spec §6's
// wire protocol only names the pull-shaped SyncTree/SyncTreeOk
// exchange, so this is an addition needed to make "fan out send
// commands to every linked peer" on commit actually deliver new
// entries rather than wait for the peer's own next pull.
type PushEntries struct {
	TreeID  types.ID       `json:"tree_id"`
	Entries []*entry.Entry `json:"entries"`
}

// PushOk acknowledges a PushEntries, reporting how many entries were
// newly applied (already-known entries are skipped, not re-applied).
type PushOk struct {
	Applied int `json:"applied"`
}

// Request is the envelope a Transport.Send carries to a peer. Exactly
// one of Handshake/SyncTree/PushEntries is populated, selected by Type.
type Request struct {
	Type        RequestType  `json:"type"`
	Handshake   *Handshake   `json:"handshake,omitempty"`
	SyncTree    *SyncTree    `json:"sync_tree,omitempty"`
	PushEntries *PushEntries `json:"push_entries,omitempty"`
}

// NewHandshakeRequest builds a Handshake Request.
func NewHandshakeRequest(h Handshake) Request {
	return Request{Type: RequestHandshake, Handshake: &h}
}

// NewSyncTreeRequest builds a SyncTree Request.
func NewSyncTreeRequest(s SyncTree) Request {
	return Request{Type: RequestSyncTree, SyncTree: &s}
}

// NewPushEntriesRequest builds a PushEntries Request.
func NewPushEntriesRequest(treeID types.ID, entries []*entry.Entry) Request {
	return Request{Type: RequestPushEntries, PushEntries: &PushEntries{TreeID: treeID, Entries: entries}}
}

// Response is the envelope a Transport.Send returns. Exactly one
// payload field is populated, selected by Type.
type Response struct {
	Type             ResponseType      `json:"type"`
	HandshakeOk      *HandshakeOk      `json:"handshake_ok,omitempty"`
	SyncTreeOk       *SyncTreeOk       `json:"sync_tree_ok,omitempty"`
	BootstrapPending *BootstrapPending `json:"bootstrap_pending,omitempty"`
	PushOk           *PushOk           `json:"push_ok,omitempty"`
	Error            *ErrorResponse    `json:"error,omitempty"`
}

// NewPushOkResponse builds a PushOk Response.
func NewPushOkResponse(applied int) Response {
	return Response{Type: ResponsePushOk, PushOk: &PushOk{Applied: applied}}
}

// NewErrorResponse builds an error Response.
func NewErrorResponse(message string) Response {
	return Response{Type: ResponseError, Error: &ErrorResponse{Message: message}}
}

// NewHandshakeOkResponse builds a HandshakeOk Response.
func NewHandshakeOkResponse(h HandshakeOk) Response {
	return Response{Type: ResponseHandshakeOk, HandshakeOk: &h}
}

// NewSyncTreeOkResponse builds a SyncTreeOk Response.
func NewSyncTreeOkResponse(entries []*entry.Entry) Response {
	return Response{Type: ResponseSyncTreeOk, SyncTreeOk: &SyncTreeOk{Entries: entries}}
}

// NewBootstrapPendingResponse builds a BootstrapPending Response.
func NewBootstrapPendingResponse(requestID, message string) Response {
	return Response{Type: ResponseBootstrapPending, BootstrapPending: &BootstrapPending{
		RequestID: requestID,
		Message:   message,
	}}
}

// permissionFromString maps the wire-level permission name of a
// bootstrap request to an auth.Permission at priority 0, defaulting to
// Read for an unrecognized or empty string.
func permissionFromString(s string) auth.Permission {
	switch s {
	case "Admin":
		return auth.Admin(0)
	case "Write":
		return auth.Write(0)
	default:
		return auth.Read()
	}
}

// PermissionFromString exposes permissionFromString to callers
// decoding a SyncTree.RequestedPermission (the bootstrap and handler
// packages both need it).
func PermissionFromString(s string) auth.Permission { return permissionFromString(s) }
