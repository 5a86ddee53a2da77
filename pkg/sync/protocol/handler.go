package protocol

import (
	"fmt"

	"github.com/eideticadb/eidetica/pkg/auth"
	"github.com/eideticadb/eidetica/pkg/backend"
	"github.com/eideticadb/eidetica/pkg/crdt"
	"github.com/eideticadb/eidetica/pkg/database"
	"github.com/eideticadb/eidetica/pkg/entry"
	"github.com/eideticadb/eidetica/pkg/store"
	"github.com/eideticadb/eidetica/pkg/sync/bootstrap"
	"github.com/eideticadb/eidetica/pkg/transaction"
	"github.com/eideticadb/eidetica/pkg/types"
)

// Databases opens a handle to an existing database by tree ID, signed
// by the server's own device key. Implemented by *instance.Instance.
type Databases interface {
	LoadDatabase(tree types.ID) (*database.Database, error)
}

// Handler is the server-side request dispatcher of spec §4.6: it
// answers Handshake and SyncTree requests, gating access by the
// server's own sync-enabled tracking and deciding bootstrap requests
// by policy.
type Handler struct {
	backend     backend.Backend
	databases   Databases
	bootstrap   *bootstrap.Manager
	localPeerID types.PeerId
	signer      transaction.Signer

	// SyncEnabled reports whether tree is registered for sync by any
	// local user with sync_enabled == true. A nil func treats every
	// tree as enabled, which is only appropriate for tests.
	SyncEnabled func(tree types.ID) bool
}

// NewHandler builds a Handler. signer is the local device's signing
// identity, used to commit an auto-approved bootstrap key addition.
func NewHandler(b backend.Backend, databases Databases, bm *bootstrap.Manager, localPeerID types.PeerId, signer transaction.Signer) *Handler {
	return &Handler{backend: b, databases: databases, bootstrap: bm, localPeerID: localPeerID, signer: signer}
}

func (h *Handler) syncEnabled(tree types.ID) bool {
	if h.SyncEnabled == nil {
		return true
	}
	return h.SyncEnabled(tree)
}

// Dispatch answers req, returning the Response to send back over
// whatever Transport carried the request.
func (h *Handler) Dispatch(req Request) Response {
	switch req.Type {
	case RequestHandshake:
		return h.handleHandshake(req.Handshake)
	case RequestSyncTree:
		return h.handleSyncTree(req.SyncTree)
	case RequestPushEntries:
		return h.handlePushEntries(req.PushEntries)
	default:
		return NewErrorResponse(fmt.Sprintf("unknown request type %q", req.Type))
	}
}

func (h *Handler) handlePushEntries(req *PushEntries) Response {
	if req == nil {
		return NewErrorResponse("push_entries request missing payload")
	}
	if !h.syncEnabled(req.TreeID) {
		return NewErrorResponse(notFoundForGating)
	}
	applied := 0
	for _, e := range req.Entries {
		ok, err := transaction.ApplyRemoteEntry(h.backend, e)
		if err != nil {
			return NewErrorResponse(err.Error())
		}
		if ok {
			applied++
		}
	}
	return NewPushOkResponse(applied)
}

func (h *Handler) handleHandshake(hs *Handshake) Response {
	if hs == nil {
		return NewErrorResponse("handshake request missing payload")
	}
	return NewHandshakeOkResponse(HandshakeOk{PubKey: h.localPeerID, Capabilities: []string{"sync-tree/1"}})
}

// notFoundForGating is the generic error text every gated rejection
// uses, so a caller probing for tracked databases can't distinguish
// "not tracked" from "genuinely doesn't exist" (spec §4.6 "sync-enabled
// gating").
const notFoundForGating = "database not found"

func (h *Handler) handleSyncTree(req *SyncTree) Response {
	if req == nil {
		return NewErrorResponse("sync_tree request missing payload")
	}
	if !h.syncEnabled(req.TreeID) {
		return NewErrorResponse(notFoundForGating)
	}

	if req.IsBootstrap() {
		return h.handleBootstrap(*req)
	}
	return h.handleIncremental(*req)
}

func (h *Handler) handleIncremental(req SyncTree) Response {
	full, err := h.backend.GetTree(req.TreeID)
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	if len(req.OurTips) == 0 {
		return NewSyncTreeOkResponse(full)
	}
	known, err := h.backend.GetTreeFromTips(req.TreeID, req.OurTips)
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	knownIDs := make(map[types.ID]bool, len(known))
	for _, e := range known {
		knownIDs[e.ID()] = true
	}
	missing := make([]*entry.Entry, 0, len(full))
	for _, e := range full {
		if !knownIDs[e.ID()] {
			missing = append(missing, e)
		}
	}
	return NewSyncTreeOkResponse(missing)
}

func (h *Handler) handleBootstrap(req SyncTree) Response {
	autoApprove, err := bootstrap.AutoApproveAllowed(h.backend, req.TreeID)
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	if !autoApprove {
		requestID, err := h.bootstrap.Create(types.BootstrapRequest{
			TreeID:              req.TreeID,
			RequestingPubKey:    types.PeerId(req.RequestingKey),
			RequestingKeyName:   req.RequestingKeyName,
			RequestedPermission: req.RequestedPermission,
		})
		if err != nil {
			return NewErrorResponse(err.Error())
		}
		return NewBootstrapPendingResponse(requestID, "bootstrap request recorded, awaiting administrator approval")
	}

	if err := h.admitBootstrapKey(req); err != nil {
		return NewErrorResponse(err.Error())
	}

	full, err := h.backend.GetTree(req.TreeID)
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	return NewSyncTreeOkResponse(full)
}

// admitBootstrapKey adds the requesting key to the target database's
// auth settings and commits, signed by the server's own device key
// (which must already hold Admin on the database for this to pass
// auth.Validate at commit time — true for any database this Instance
// created or was itself bootstrapped into as an admin).
func (h *Handler) admitBootstrapKey(req SyncTree) error {
	db, err := h.databases.LoadDatabase(req.TreeID)
	if err != nil {
		return err
	}
	tx, err := db.NewTransaction()
	if err != nil {
		return err
	}
	settings := store.NewSettingsStore(tx)
	authDoc, err := settings.AuthDoc()
	if err != nil {
		return err
	}
	if err := addAuthKey(authDoc, req); err != nil {
		return err
	}
	if err := settings.PutAuthDoc(authDoc); err != nil {
		return err
	}
	_, err = tx.Commit()
	return err
}

func addAuthKey(authDoc *crdt.Doc, req SyncTree) error {
	return auth.StoreAuthKey(authDoc, auth.AuthKey{
		PubKey:      types.PeerId(req.RequestingKey),
		Permission:  permissionFromString(req.RequestedPermission),
		Status:      auth.StatusActive,
		DisplayName: req.RequestingKeyName,
	})
}
