// Package solo implements cluster.Cluster for a single, unreplicated
// node. It is the default cluster used by cmd/dqlite-gw until a real
// raft-backed log is wired in: this node is always its own leader,
// carries no peers, and its barrier is trivially satisfied since there
// is no log to catch up with.
//
// Grounded on sanke08-Distributed-Cache's internal/cluster.ClusterState
// (leader-by-rule over a membership map), generalized down to the
// single-node case the spec's Non-goals require ("no cluster-membership
// changes").
package solo

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/zcourts/dqlite/internal/cluster"
)

// Cluster is a single-node cluster.Cluster implementation.
type Cluster struct {
	mu      sync.RWMutex
	id      uint64
	address string
	handles map[cluster.Handle]*sql.DB
}

// New creates a solo Cluster that identifies itself as node id at
// address (its own dial address, for symmetry with a real multi-node
// deployment — a solo node is still "the leader at this address").
func New(id uint64, address string) *Cluster {
	return &Cluster{
		id:      id,
		address: address,
		handles: make(map[cluster.Handle]*sql.DB),
	}
}

// Leader always returns this node's own address: a solo node is always
// its own (and only) leader.
func (c *Cluster) Leader(_ context.Context) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.address, true
}

// Servers returns the single-member peer list.
func (c *Cluster) Servers(_ context.Context) ([]cluster.Peer, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return []cluster.Peer{{ID: c.id, Address: c.address}}, nil
}

// Register records the *sql.DB behind an opaque handle so Checkpoint
// can later run a PRAGMA against it. handle must be a *sql.DB.
func (c *Cluster) Register(handle cluster.Handle) {
	db, ok := handle.(*sql.DB)
	if !ok {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handles[handle] = db
}

// Barrier is a no-op: there is no replication log to catch up with on
// a single, unreplicated node.
func (c *Cluster) Barrier(_ context.Context) error {
	return nil
}

// Checkpoint runs a truncating WAL checkpoint against the registered
// handle. A real cluster implementation would instead coordinate this
// across the whole raft log's followers; a solo node can simply ask
// SQLite to truncate, since it is the only reader and writer.
func (c *Cluster) Checkpoint(ctx context.Context, handle cluster.Handle) error {
	c.mu.RLock()
	db, ok := c.handles[handle]
	c.mu.RUnlock()
	if !ok {
		return fmt.Errorf("checkpoint: unknown handle")
	}
	_, err := db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)")
	return err
}
