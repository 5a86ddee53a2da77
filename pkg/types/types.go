// Package types holds the identifier and wire-level value types shared
// across entry, crdt, auth, and sync: content-addressed IDs, peer
// identities, reserved store names, and sync/peer bookkeeping records.
package types

import (
	"fmt"
	"strings"
	"time"
)

// ID is an opaque, prefixed content hash in textual form "<algo>:<hex>",
// e.g. "sha256:ab12...". It is compared by equality and treated as a
// plain string for storage and serialization.
type ID string

// String implements fmt.Stringer.
func (id ID) String() string { return string(id) }

// Algo returns the hash algorithm prefix of id, or "" if id carries none.
func (id ID) Algo() string {
	if i := strings.IndexByte(string(id), ':'); i >= 0 {
		return string(id)[:i]
	}
	return ""
}

// Empty reports whether id is the zero value.
func (id ID) Empty() bool { return id == "" }

// PeerId is a textual public key, "ed25519:<base64>".
type PeerId string

func (p PeerId) String() string { return string(p) }

// NewPeerId formats a raw base64-encoded ed25519 public key as a PeerId.
func NewPeerId(base64Key string) PeerId {
	return PeerId(fmt.Sprintf("ed25519:%s", base64Key))
}

// RawKey strips the "ed25519:" prefix, returning the base64 payload.
func (p PeerId) RawKey() string {
	s := string(p)
	if i := strings.IndexByte(s, ':'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// RootMarker is the sentinel store name that appears in a root entry's
// store list instead of any real store parent list.
const RootMarker = "_root"

// SettingsStoreName is the reserved subtree name backing SettingsStore.
const SettingsStoreName = "_settings"

// IndexStoreName is the reserved subtree name backing the root-level
// Registry of stores/transport configs.
const IndexStoreName = "_index"

// VerificationStatus is the trust state of a stored entry.
type VerificationStatus string

const (
	Verified   VerificationStatus = "Verified"
	Unverified VerificationStatus = "Unverified"
	Failed     VerificationStatus = "Failed"
)

// Address identifies a reachable endpoint for a named transport.
type Address struct {
	TransportType string `json:"transport_type"`
	Address       string `json:"address"`
}

// PeerStatus is the lifecycle state of a known peer.
type PeerStatus string

const (
	PeerActive   PeerStatus = "Active"
	PeerInactive PeerStatus = "Inactive"
	PeerBlocked  PeerStatus = "Blocked"
)

// PeerInfo is a pubkey-keyed record of everything known about a remote
// peer: reachability, sync history, and connection health.
type PeerInfo struct {
	PubKey             PeerId     `json:"pubkey"`
	DisplayName        string     `json:"display_name,omitempty"`
	FirstSeen          time.Time  `json:"first_seen"`
	LastSeen           time.Time  `json:"last_seen"`
	Status             PeerStatus `json:"status"`
	Addresses          []Address  `json:"addresses,omitempty"`
	Connected          bool       `json:"connected"`
	LastSuccessfulSync *time.Time `json:"last_successful_sync,omitempty"`
	ConnectionAttempts int        `json:"connection_attempts"`
	LastError          string     `json:"last_error,omitempty"`
}

// BootstrapStatus is the approval state of a BootstrapRequest.
type BootstrapStatus string

const (
	BootstrapPendingStatus  BootstrapStatus = "Pending"
	BootstrapApprovedStatus BootstrapStatus = "Approved"
	BootstrapRejectedStatus BootstrapStatus = "Rejected"
)

// BootstrapRequest records a peer's request for initial key access to a
// database that has no local history for it.
type BootstrapRequest struct {
	ID                  string          `json:"id"`
	TreeID              ID              `json:"tree_id"`
	RequestingPubKey    PeerId          `json:"requesting_pubkey"`
	RequestingKeyName   string          `json:"requesting_key_name,omitempty"`
	RequestedPermission string          `json:"requested_permission"`
	Timestamp           time.Time       `json:"timestamp"`
	Status              BootstrapStatus `json:"status"`
	PeerAddress         *Address        `json:"peer_address,omitempty"`
	DecidedBy           PeerId          `json:"decided_by,omitempty"`
	DecidedAt           *time.Time      `json:"decided_at,omitempty"`
}
