package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/eideticadb/eidetica/pkg/backend"
	"github.com/eideticadb/eidetica/pkg/backend/boltbackend"
	"github.com/eideticadb/eidetica/pkg/backend/sqlbackend"
	"github.com/eideticadb/eidetica/pkg/eerr"
)

// OpenBackend opens the backend.Backend named by c.Instance.Backend,
// creating c.Instance.DataDir first for a file-backed backend, the
// same way manager.NewManager ensures its own data directory exists
// before opening its store.
func (c Config) OpenBackend() (backend.Backend, error) {
	switch c.Instance.Backend {
	case BackendMemory, "":
		return backend.NewMemory(), nil
	case BackendBolt:
		if err := os.MkdirAll(c.Instance.DataDir, 0o755); err != nil {
			return nil, eerr.Operation("config_open_backend", fmt.Sprintf("failed to create data directory: %v", err))
		}
		return boltbackend.Open(filepath.Join(c.Instance.DataDir, "eidetica.db"))
	case BackendSQL:
		if c.Instance.SQLDriver != "" {
			return sqlbackend.OpenDriver(c.Instance.SQLDriver, c.Instance.SQLDSN)
		}
		return sqlbackend.Open(c.Instance.SQLDSN)
	default:
		return nil, eerr.Validation("config_open_backend", fmt.Sprintf("unknown backend %q", c.Instance.Backend))
	}
}
