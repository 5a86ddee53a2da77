// Package config loads the configuration an eideticad process starts
// from: where its Instance persists data, which backend it opens, and
// how its background sync engine is set up. Grounded on the teacher's
// flat Config structs (pkg/manager.Config's NodeID/BindAddr/DataDir)
// generalized from CLI-flag-only startup to a YAML file, with
// cmd/warren/apply.go's gopkg.in/yaml.v3 usage as the wire-format
// precedent.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// BackendKind selects which pkg/backend implementation an Instance opens.
type BackendKind string

const (
	BackendMemory BackendKind = "memory"
	BackendBolt   BackendKind = "bolt"
	BackendSQL    BackendKind = "sql"
)

// InstanceConfig configures the local Instance: which backend it opens,
// where a file-backed backend persists data, and where the device's
// signing key lives on disk.
type InstanceConfig struct {
	Backend       BackendKind `yaml:"backend"`
	DataDir       string      `yaml:"data_dir"`
	SQLDriver     string      `yaml:"sql_driver,omitempty"`
	SQLDSN        string      `yaml:"sql_dsn,omitempty"`
	DeviceKeyPath string      `yaml:"device_key_path"`
}

// TransportConfig configures one named sync transport the engine
// should register, and optionally serve on.
type TransportConfig struct {
	Name     string `yaml:"name"`
	BindAddr string `yaml:"bind_addr,omitempty"`
}

// SyncConfig configures the background sync engine: which transports
// it owns and how it times out and paces itself.
type SyncConfig struct {
	Enabled              bool              `yaml:"enabled"`
	Transports           []TransportConfig `yaml:"transports,omitempty"`
	ResyncInterval       time.Duration     `yaml:"resync_interval,omitempty"`
	RequestTimeout       time.Duration     `yaml:"request_timeout,omitempty"`
	QueueCapacity        int               `yaml:"queue_capacity,omitempty"`
	// AutoApproveBootstrap is parsed but read by no package: bootstrap
	// auto-approval is decided by bootstrap.AutoApproveAllowed from the
	// target database's own auth settings.
	AutoApproveBootstrap bool              `yaml:"auto_approve_bootstrap,omitempty"`
}

// Config is the top-level process configuration: a YAML file supplies
// it, with EIDETICA_* environment variables applied on top.
type Config struct {
	Instance InstanceConfig `yaml:"instance"`
	Sync     SyncConfig     `yaml:"sync"`
}

// Default returns the configuration a fresh node starts from absent
// any file or environment override: an in-memory backend with sync
// disabled, suited to a single-process smoke test rather than a
// production deployment.
func Default() Config {
	return Config{
		Instance: InstanceConfig{
			Backend: BackendMemory,
			DataDir: "./data",
		},
		Sync: SyncConfig{
			Enabled:        false,
			ResyncInterval: 30 * time.Second,
			RequestTimeout: 30 * time.Second,
			QueueCapacity:  256,
		},
	}
}

// Load reads and parses a YAML configuration file at path, starting
// from Default so the file only needs to set what it overrides, then
// applies EIDETICA_* environment overrides on top of the parsed result.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file: %w", err)
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}
