// Package types defines the core data structures shared throughout
// Eidetica: content-addressed IDs, peer identities, and the peer/sync
// bookkeeping records (PeerInfo, BootstrapRequest, Address) that the
// sync engine and auth validator both depend on.
package types
