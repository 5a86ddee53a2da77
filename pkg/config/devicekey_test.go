package config

import (
	"crypto/ed25519"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOrCreateDeviceKeyGeneratesOnFirstCall(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device.key")
	cfg := Default()
	cfg.Instance.DeviceKeyPath = path

	signer, err := cfg.LoadOrCreateDeviceKey()
	require.NoError(t, err)
	assert.NotEmpty(t, signer.PeerID())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, data, ed25519.PrivateKeySize)
}

func TestLoadOrCreateDeviceKeyIsStableAcrossCalls(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "device.key")
	cfg := Default()
	cfg.Instance.DeviceKeyPath = path

	first, err := cfg.LoadOrCreateDeviceKey()
	require.NoError(t, err)

	second, err := cfg.LoadOrCreateDeviceKey()
	require.NoError(t, err)

	assert.Equal(t, first.PeerID(), second.PeerID())
}

func TestLoadOrCreateDeviceKeyRequiresPath(t *testing.T) {
	cfg := Default()
	_, err := cfg.LoadOrCreateDeviceKey()
	assert.Error(t, err)
}

func TestLoadOrCreateDeviceKeyRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device.key")
	require.NoError(t, os.WriteFile(path, []byte("too short"), 0o600))

	cfg := Default()
	cfg.Instance.DeviceKeyPath = path
	_, err := cfg.LoadOrCreateDeviceKey()
	assert.Error(t, err)
}
