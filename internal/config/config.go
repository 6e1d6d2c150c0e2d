// Package config defines the gateway process's command-line
// configuration using the standard flag package.
package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zcourts/dqlite/internal/gateway"
)

// Config holds the gateway process's runtime configuration.
type Config struct {
	Addr    string // Listen address (e.g. ":9190")
	DataDir string // Directory holding the SQLite file and WAL

	HeartbeatTimeout    time.Duration
	CheckpointThreshold int
	PageSize            int
	VFS                 string
	ReplicationPlugin   string
}

// DefineFlags registers command-line flags for gateway configuration.
// Call flag.Parse() separately after defining all flags.
func DefineFlags() *Config {
	c := &Config{}
	flag.StringVar(&c.Addr, "addr", ":9190", "listen address")
	flag.StringVar(&c.DataDir, "data-dir", defaultDataDir(), "data directory")
	flag.DurationVar(&c.HeartbeatTimeout, "heartbeat-timeout", 15*time.Second, "heartbeat interval advertised to clients")
	flag.IntVar(&c.CheckpointThreshold, "checkpoint-threshold", 1000, "WAL frames at or above which a commit triggers a cluster checkpoint")
	flag.IntVar(&c.PageSize, "page-size", 4096, "SQLite page size for newly created databases")
	flag.StringVar(&c.VFS, "vfs", "", "VFS name passed to the engine (the bundled SQLite engine does not apply it)")
	flag.StringVar(&c.ReplicationPlugin, "replication-plugin", "", "WAL replication plugin name (empty: none)")
	return c
}

// Validate checks the configuration values and ensures required
// directories exist.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr is required")
	}
	if c.CheckpointThreshold <= 0 {
		return fmt.Errorf("checkpoint-threshold must be positive")
	}
	if err := os.MkdirAll(c.DataDir, 0o750); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	return nil
}

// DBPath returns the path to the SQLite database file.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "gateway.db")
}

// GatewayOptions translates the process-level configuration into the
// per-connection Options a gateway.Gateway is constructed with.
func (c *Config) GatewayOptions() gateway.Options {
	return gateway.Options{
		HeartbeatTimeout:    c.HeartbeatTimeout,
		CheckpointThreshold: c.CheckpointThreshold,
		PageSize:            c.PageSize,
		VFS:                 c.VFS,
		ReplicationPlugin:   c.ReplicationPlugin,
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "dqlite-gw")
	}
	return filepath.Join(home, ".config", "dqlite-gw")
}
