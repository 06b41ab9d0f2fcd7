package couchkit

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the configuration surface this extension consumes.
type Config struct {
	// Server is the store server address.
	Server string `json:"server" yaml:"server"`

	// Database is the database name documents and views live in.
	Database string `json:"database" yaml:"database"`

	// DisableAutoSync suppresses the per-request sync even on a manager
	// running in auto-sync mode.
	DisableAutoSync bool `json:"disable_auto_sync" yaml:"disable_auto_sync"`
}

// DefaultConfig returns the stock local-server configuration.
func DefaultConfig() *Config {
	return &Config{Server: "http://localhost:5984/"}
}

// LoadConfig reads a YAML config file over the defaults, then applies
// environment overrides. path may be "" to use defaults and environment
// only.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (cfg *Config) applyEnv() {
	if v := os.Getenv("COUCHDB_SERVER"); v != "" {
		cfg.Server = v
	}
	if v := os.Getenv("COUCHDB_DATABASE"); v != "" {
		cfg.Database = v
	}
	if v := os.Getenv("COUCHDB_DISABLE_AUTO_SYNC"); v == "1" || v == "true" {
		cfg.DisableAutoSync = true
	}
}

// Validate checks the configuration is usable.
func (cfg *Config) Validate() error {
	if cfg.Server == "" {
		return fmt.Errorf("config: server address is required")
	}
	if cfg.Database == "" {
		return fmt.Errorf("config: database name is required")
	}
	if !validateDBName(cfg.Database) {
		return fmt.Errorf("config: %q: %w", cfg.Database, ErrDatabaseInvalidName)
	}
	return nil
}
