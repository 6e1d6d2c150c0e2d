package gateway

import (
	"context"
	"log/slog"

	"github.com/zcourts/dqlite/internal/cluster"
	"github.com/zcourts/dqlite/internal/engine/walcheck"
	"github.com/zcourts/dqlite/internal/metrics"
)

// checkpointHook drives spec §4.6's post-commit checkpoint trigger: an
// Exec or ExecSQL that actually wrote to the WAL consults an Inspector
// to decide whether the WAL has grown past the configured threshold
// and, if so, asks the cluster to coordinate a checkpoint.
type checkpointHook struct {
	inspector walcheck.Inspector
	threshold int
	cluster   cluster.Cluster
}

func newCheckpointHook(inspector walcheck.Inspector, threshold int, clu cluster.Cluster) *checkpointHook {
	return &checkpointHook{inspector: inspector, threshold: threshold, cluster: clu}
}

// afterCommit is called once per write that completes successfully. Its
// own errors are never surfaced to the client (spec §4.6, §9) — a
// checkpoint failure doesn't invalidate the write that triggered it.
//
// TryCheckpoint both decides and performs the local PASSIVE checkpoint
// in one call (SQLite has no peek-only frame-count query), so the
// threshold below only gates the cluster-coordinated Checkpoint, not
// whether local WAL frames get copied into the database file on this
// commit (see DESIGN.md, internal/engine/walcheck).
func (h *checkpointHook) afterCommit(ctx context.Context, handle cluster.Handle) {
	if h == nil {
		return
	}

	result, err := h.inspector.TryCheckpoint(ctx)
	if err != nil {
		metrics.CheckpointsTotal.WithLabelValues("error").Inc()
		slog.Default().Warn("wal checkpoint inspection failed", "error", err)
		return
	}
	if result.Busy {
		metrics.CheckpointsTotal.WithLabelValues("busy").Inc()
		return
	}
	if result.LogFrames < h.threshold {
		return
	}

	if err := h.cluster.Checkpoint(ctx, handle); err != nil {
		metrics.CheckpointsTotal.WithLabelValues("error").Inc()
		slog.Default().Warn("cluster checkpoint failed", "error", err)
		return
	}
	metrics.CheckpointsTotal.WithLabelValues("ok").Inc()
}
