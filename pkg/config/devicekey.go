package config

import (
	"crypto/ed25519"
	"fmt"
	"os"
	"path/filepath"

	"github.com/eideticadb/eidetica/pkg/eerr"
	"github.com/eideticadb/eidetica/pkg/transaction"
)

// LoadOrCreateDeviceKey returns the Ed25519Signer for
// c.Instance.DeviceKeyPath, generating and persisting a fresh key the
// first time a node starts. The file holds the raw 64-byte private key
// with owner-only permissions; none of this module's example corpus
// carries an OS keyring or secrets-manager dependency to ground a
// richer format on, so this is plain crypto/ed25519 plus os.
func (c Config) LoadOrCreateDeviceKey() (transaction.Ed25519Signer, error) {
	path := c.Instance.DeviceKeyPath
	if path == "" {
		return transaction.Ed25519Signer{}, eerr.Validation("config_device_key", "device_key_path is required")
	}

	data, err := os.ReadFile(path)
	if err == nil {
		if len(data) != ed25519.PrivateKeySize {
			return transaction.Ed25519Signer{}, eerr.Corruption("config_device_key", fmt.Sprintf("device key at %q has wrong length %d", path, len(data)))
		}
		return transaction.NewEd25519Signer(ed25519.PrivateKey(data)), nil
	}
	if !os.IsNotExist(err) {
		return transaction.Ed25519Signer{}, eerr.Operation("config_device_key", fmt.Sprintf("failed to read device key: %v", err))
	}

	_, priv, genErr := ed25519.GenerateKey(nil)
	if genErr != nil {
		return transaction.Ed25519Signer{}, eerr.Operation("config_device_key", fmt.Sprintf("failed to generate device key: %v", genErr))
	}
	if dir := filepath.Dir(path); dir != "." {
		if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
			return transaction.Ed25519Signer{}, eerr.Operation("config_device_key", fmt.Sprintf("failed to create device key directory: %v", mkErr))
		}
	}
	if writeErr := os.WriteFile(path, priv, 0o600); writeErr != nil {
		return transaction.Ed25519Signer{}, eerr.Operation("config_device_key", fmt.Sprintf("failed to persist device key: %v", writeErr))
	}
	return transaction.NewEd25519Signer(priv), nil
}
