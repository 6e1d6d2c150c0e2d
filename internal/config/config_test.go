package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zcourts/dqlite/internal/config"
)

func TestValidate_CreatesDataDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "gateway")
	c := &config.Config{Addr: ":9190", DataDir: dir, CheckpointThreshold: 1000}

	require.NoError(t, c.Validate())

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestValidate_RequiresAddr(t *testing.T) {
	c := &config.Config{DataDir: t.TempDir(), CheckpointThreshold: 1000}
	assert.Error(t, c.Validate())
}

func TestValidate_RequiresPositiveCheckpointThreshold(t *testing.T) {
	c := &config.Config{Addr: ":9190", DataDir: t.TempDir(), CheckpointThreshold: 0}
	assert.Error(t, c.Validate())
}

func TestDBPath(t *testing.T) {
	c := &config.Config{DataDir: "/var/lib/dqlite-gw"}
	assert.Equal(t, "/var/lib/dqlite-gw/gateway.db", c.DBPath())
}

func TestGatewayOptions_Translation(t *testing.T) {
	c := &config.Config{
		HeartbeatTimeout:    5 * time.Second,
		CheckpointThreshold: 2000,
		PageSize:            8192,
		VFS:                 "unix-excl",
		ReplicationPlugin:   "raft",
	}

	opts := c.GatewayOptions()
	assert.Equal(t, 5*time.Second, opts.HeartbeatTimeout)
	assert.Equal(t, 2000, opts.CheckpointThreshold)
	assert.Equal(t, 8192, opts.PageSize)
	assert.Equal(t, "unix-excl", opts.VFS)
	assert.Equal(t, "raft", opts.ReplicationPlugin)
}
