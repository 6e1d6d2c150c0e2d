package gateway

import "time"

// Options is the gateway's immutable, read-only configuration (spec
// §3). It is consumed once per connection and never mutated by the
// gateway itself.
type Options struct {
	// HeartbeatTimeout is echoed back in the WELCOME response and used
	// by the client to size its own heartbeat interval.
	HeartbeatTimeout time.Duration

	// CheckpointThreshold is the WAL size, in frames, at or above which
	// a commit triggers a cluster-coordinated checkpoint (spec §4.6).
	// It does not gate the local passive checkpoint, which runs after
	// every commit whatever the WAL size.
	CheckpointThreshold int

	// PageSize is the SQLite page size used when opening a DB handle.
	PageSize int

	// VFS is the name of the VFS the engine should use when opening a
	// DB handle. Empty means the engine's default VFS.
	VFS string

	// ReplicationPlugin names the WAL-replication plugin the engine
	// should install on newly opened connections. This repository's
	// engine adapter does not itself implement replication (that is
	// the cluster layer's concern — see internal/cluster); the field
	// is carried through so a future engine adapter backed by a
	// replicating VFS has somewhere to read it from.
	ReplicationPlugin string
}
