package config

import (
	"os"
	"strconv"
)

// applyEnvOverrides lets a handful of deployment-time settings be
// overridden without editing the YAML file, the same escape hatch the
// teacher's test harness uses for WARREN_BINARY/WARREN_TEST_DATA_DIR.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("EIDETICA_DATA_DIR"); v != "" {
		cfg.Instance.DataDir = v
	}
	if v := os.Getenv("EIDETICA_BACKEND"); v != "" {
		cfg.Instance.Backend = BackendKind(v)
	}
	if v := os.Getenv("EIDETICA_DEVICE_KEY_PATH"); v != "" {
		cfg.Instance.DeviceKeyPath = v
	}
	if v := os.Getenv("EIDETICA_SQL_DSN"); v != "" {
		cfg.Instance.SQLDSN = v
	}
	if v := os.Getenv("EIDETICA_SYNC_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Sync.Enabled = b
		}
	}
}
