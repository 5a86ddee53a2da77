package config

import (
	"fmt"

	"github.com/eideticadb/eidetica/pkg/eerr"
)

// Validate checks for configuration values that would otherwise fail
// later at open time with a less specific error.
func (c Config) Validate() error {
	switch c.Instance.Backend {
	case BackendMemory, BackendBolt, BackendSQL:
	default:
		return eerr.Validation("config_validate", fmt.Sprintf("unknown backend %q", c.Instance.Backend))
	}
	if c.Instance.Backend != BackendMemory && c.Instance.DataDir == "" {
		return eerr.Validation("config_validate", "data_dir is required for a file-backed backend")
	}
	if c.Instance.Backend == BackendSQL && c.Instance.SQLDSN == "" {
		return eerr.Validation("config_validate", "sql_dsn is required for the sql backend")
	}
	if c.Sync.QueueCapacity < 0 {
		return eerr.Validation("config_validate", "sync.queue_capacity cannot be negative")
	}
	return nil
}
