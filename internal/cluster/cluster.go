// Package cluster defines the gateway's view of the replication cluster:
// leader discovery, peer listing, the commit-barrier, connection
// registration, and cluster-coordinated WAL checkpointing.
//
// The gateway core (package gateway) depends only on the Cluster
// interface below, never on a concrete implementation — this mirrors
// the spec's treatment of the cluster as an external collaborator
// reachable only through a capability set, not an embedding.
package cluster

import "context"

// Handle is the opaque local DB handle a Cluster implementation is
// handed on Register and Checkpoint. The gateway never interprets it;
// it exists purely so the cluster layer can correlate calls with the
// connection that issued them (e.g. to find the right raft log, or to
// run a checkpoint against the right *sql.DB).
type Handle any

// Peer identifies one cluster member.
type Peer struct {
	ID      uint64
	Address string
}

// Cluster is the capability set the gateway core requires from the
// replication layer. Every method may block; callers run it on the
// same goroutine that is servicing the client connection (see spec §5
// "Scheduling model" — the gateway is single-threaded and cooperative,
// and blocking here blocks that one connection, by design).
type Cluster interface {
	// Leader returns the current leader's dial address, or ("", false)
	// if no leader is currently known.
	Leader(ctx context.Context) (address string, ok bool)

	// Servers returns the current peer list.
	Servers(ctx context.Context) ([]Peer, error)

	// Register is called once, when a gateway's DB handle is first
	// opened. It has no return value by design — registration failures
	// are not supposed to fail the OPEN request (see spec §4.3).
	Register(handle Handle)

	// Barrier blocks until the local replicated state machine has
	// applied every log entry committed as of the call. It returns a
	// non-zero-equivalent error when the barrier cannot be satisfied
	// (e.g. this node has lost leadership or the log is unavailable).
	Barrier(ctx context.Context) error

	// Checkpoint performs a cluster-coordinated WAL truncation for the
	// given handle. Its error is intentionally not surfaced to the
	// client (see spec §4.6, §9) — callers should still log it.
	Checkpoint(ctx context.Context, handle Handle) error
}
