// Package bootstrap implements the bootstrap request lifecycle of spec
// §4.6: a device with no local history for a database asks a peer to
// admit it, the peer either auto-approves by policy or records a
// Pending request for an administrator, and an administrator later
// approves or rejects it. Grounded on
// original_source/crates/lib/src/sync/bootstrap.rs and
// bootstrap_request_manager.rs, with BootstrapRequest itself already
// modeled in pkg/types to match the wire shape sync/protocol exchanges.
package bootstrap

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/eideticadb/eidetica/pkg/auth"
	"github.com/eideticadb/eidetica/pkg/backend"
	"github.com/eideticadb/eidetica/pkg/crdt"
	"github.com/eideticadb/eidetica/pkg/database"
	"github.com/eideticadb/eidetica/pkg/eerr"
	"github.com/eideticadb/eidetica/pkg/metrics"
	"github.com/eideticadb/eidetica/pkg/store"
	"github.com/eideticadb/eidetica/pkg/transaction"
	"github.com/eideticadb/eidetica/pkg/types"
)

// requestsSubtree is the store name a Manager's bookkeeping database
// records bootstrap requests under.
const requestsSubtree = "bootstrap_requests"

// Manager persists BootstrapRequests in a dedicated system database
// (conventionally an Instance's sync bookkeeping database, distinct
// from any database a request names) and drives Pending -> Approved /
// Rejected transitions.
type Manager struct {
	sys *database.Database
}

// NewManager returns a Manager backed by sys, the system database a
// sync engine keeps its bookkeeping state in.
func NewManager(sys *database.Database) *Manager {
	return &Manager{sys: sys}
}

func (m *Manager) table(tx *transaction.Transaction) *store.Table[types.BootstrapRequest] {
	return store.NewTable[types.BootstrapRequest](tx, requestsSubtree)
}

// Create records a new Pending request and returns its ID.
func (m *Manager) Create(req types.BootstrapRequest) (string, error) {
	req.Status = types.BootstrapPendingStatus
	if req.Timestamp.IsZero() {
		req.Timestamp = time.Now().UTC()
	}
	id := uuid.NewString()
	req.ID = id

	tx, err := m.sys.NewTransaction()
	if err != nil {
		return "", err
	}
	if err := m.table(tx).Set(id, req); err != nil {
		return "", err
	}
	if _, err := tx.Commit(); err != nil {
		return "", err
	}
	metrics.BootstrapRequestsTotal.WithLabelValues("created").Inc()
	metrics.BootstrapRequestsPending.Inc()
	return id, nil
}

// Get returns the request identified by id.
func (m *Manager) Get(id string) (types.BootstrapRequest, error) {
	tx, err := m.sys.NewTransaction()
	if err != nil {
		return types.BootstrapRequest{}, err
	}
	defer tx.Drop()
	return m.table(tx).Get(id)
}

func (m *Manager) byStatus(status types.BootstrapStatus) (map[string]types.BootstrapRequest, error) {
	tx, err := m.sys.NewTransaction()
	if err != nil {
		return nil, err
	}
	defer tx.Drop()
	return m.table(tx).Search(func(_ string, r types.BootstrapRequest) bool {
		return r.Status == status
	})
}

// Pending returns every request awaiting a decision.
func (m *Manager) Pending() (map[string]types.BootstrapRequest, error) {
	return m.byStatus(types.BootstrapPendingStatus)
}

// Approved returns every approved request.
func (m *Manager) Approved() (map[string]types.BootstrapRequest, error) {
	return m.byStatus(types.BootstrapApprovedStatus)
}

// Rejected returns every rejected request.
func (m *Manager) Rejected() (map[string]types.BootstrapRequest, error) {
	return m.byStatus(types.BootstrapRejectedStatus)
}

func (m *Manager) updateStatus(id string, status types.BootstrapStatus, by types.PeerId) error {
	tx, err := m.sys.NewTransaction()
	if err != nil {
		return err
	}
	table := m.table(tx)
	req, err := table.Get(id)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	req.Status = status
	req.DecidedBy = by
	req.DecidedAt = &now
	if err := table.Set(id, req); err != nil {
		return err
	}
	_, err = tx.Commit()
	return err
}

// ApproveWithKey implements spec §4.6's approval flow: require the
// request still be Pending, require approver hold Admin on target,
// add the requesting key as an Active AuthKey at the originally
// requested permission, commit (re-checking permission at commit
// time), then flip the request to Approved.
func ApproveWithKey(m *Manager, target *database.Database, requestID string, approver transaction.Signer) error {
	req, err := m.Get(requestID)
	if err != nil {
		return err
	}
	if req.Status != types.BootstrapPendingStatus {
		return eerr.Validation("bootstrap_approve", fmt.Sprintf("request %q is not pending (status %s)", requestID, req.Status))
	}
	if err := requireAdmin(target, approver); err != nil {
		return err
	}

	tx, err := target.NewTransaction()
	if err != nil {
		return err
	}
	settings := store.NewSettingsStore(tx)
	authDoc, err := settings.AuthDoc()
	if err != nil {
		return err
	}
	if err := auth.StoreAuthKey(authDoc, auth.AuthKey{
		PubKey:      req.RequestingPubKey,
		Permission:  protocolPermission(req.RequestedPermission),
		Status:      auth.StatusActive,
		DisplayName: req.RequestingKeyName,
	}); err != nil {
		return err
	}
	if err := settings.PutAuthDoc(authDoc); err != nil {
		return err
	}
	if _, err := tx.Commit(); err != nil {
		return err
	}

	if err := m.updateStatus(requestID, types.BootstrapApprovedStatus, approver.PeerID()); err != nil {
		return err
	}
	metrics.BootstrapRequestsTotal.WithLabelValues("approved").Inc()
	metrics.BootstrapRequestsPending.Dec()
	return nil
}

// RejectWithKey requires the request be Pending and the rejecter hold
// Admin on target, then flips it to Rejected without touching auth.
func RejectWithKey(m *Manager, target *database.Database, requestID string, rejecter transaction.Signer) error {
	req, err := m.Get(requestID)
	if err != nil {
		return err
	}
	if req.Status != types.BootstrapPendingStatus {
		return eerr.Validation("bootstrap_reject", fmt.Sprintf("request %q is not pending (status %s)", requestID, req.Status))
	}
	if err := requireAdmin(target, rejecter); err != nil {
		return err
	}
	if err := m.updateStatus(requestID, types.BootstrapRejectedStatus, rejecter.PeerID()); err != nil {
		return err
	}
	metrics.BootstrapRequestsTotal.WithLabelValues("rejected").Inc()
	metrics.BootstrapRequestsPending.Dec()
	return nil
}

func requireAdmin(db *database.Database, signer transaction.Signer) error {
	tx, err := db.NewTransaction()
	if err != nil {
		return err
	}
	defer tx.Drop()
	settings := store.NewSettingsStore(tx)
	authDoc, err := settings.AuthDoc()
	if err != nil {
		return err
	}
	key, err := auth.LookupByPubKey(authDoc, signer.PeerID())
	if err != nil {
		return err
	}
	if !key.Permission.CanAdmin() {
		return eerr.AuthErr("bootstrap_admin_check", "key does not hold Admin permission on this database")
	}
	return nil
}

func protocolPermission(name string) auth.Permission {
	switch name {
	case "Admin":
		return auth.Admin(0)
	case "Write":
		return auth.Write(0)
	default:
		return auth.Read()
	}
}

// policyKey is the well-known auth-Doc key holding bootstrap policy,
// nested under "policy.bootstrap_auto_approve" (spec §4.6; confirmed
// against original_source's bootstrap_policy_bug_test.rs).
const policyKey = "policy"
const autoApproveKey = "bootstrap_auto_approve"

// AutoApproveAllowed resolves a tree's bootstrap auto-approve policy
// from its currently merged "_settings.auth" state (every tip, not
// just the root entry): either an explicit
// auth.policy.bootstrap_auto_approve == true, or a wildcard "*" key
// present with at least Write permission.
func AutoApproveAllowed(b backend.Backend, tree types.ID) (bool, error) {
	tx, err := transaction.New(b, tree, nil, nil)
	if err != nil {
		return false, err
	}
	defer tx.Drop()

	settings := store.NewSettingsStore(tx)
	authDoc, err := settings.AuthDoc()
	if err != nil {
		return false, err
	}

	if policyVal, ok := authDoc.Get(policyKey); ok {
		if policyDoc, ok := policyVal.(*crdt.Doc); ok {
			if flag, ok := policyDoc.Get(autoApproveKey); ok {
				if b, ok := flag.(crdt.Bool); ok && bool(b) {
					return true, nil
				}
			}
		}
	}

	if wildcard, err := auth.LookupByPubKey(authDoc, auth.WildcardPubKey); err == nil {
		if wildcard.Status == auth.StatusActive && wildcard.Permission.CanWrite() {
			return true, nil
		}
	}
	return false, nil
}
