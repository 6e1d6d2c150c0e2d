// Package gateway implements the per-connection request-dispatch
// gateway described by SPEC_FULL.md §2-§9: the concurrency-controlled
// request/response slot machine, the statement lifecycle inside a
// connection, control/data-plane interleaving, the WAL-checkpoint
// trigger, and the streaming cursor protocol.
//
// Its SQL engine, cluster and WAL-inspection collaborators are all
// interfaces (engine.Conn/Stmt, cluster.Cluster, walcheck.Inspector) —
// exactly the external collaborators the spec names in §6. Beyond those
// it imports internal/metrics, internal/util/sanitize and the
// Prometheus client (for timing the barrier). The wire
// codec, the TCP accept loop, and process-level config/logging all
// live above this package, in cmd/dqlite-gw.
package gateway

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/zcourts/dqlite/internal/cluster"
	"github.com/zcourts/dqlite/internal/engine"
	"github.com/zcourts/dqlite/internal/engine/walcheck"
	"github.com/zcourts/dqlite/internal/gwproto"
	"github.com/zcourts/dqlite/internal/metrics"
)

// OpenFunc opens a new engine connection for an OPEN request. It is
// injected rather than hardwired to a concrete package so tests can
// supply a fake engine without an on-disk SQLite file.
type OpenFunc func(ctx context.Context, name string, flags uint64, opts Options) (engine.Conn, walcheck.Inspector, error)

// Gateway is the per-connection state machine described by spec §3. A
// Gateway is created on connection accept and destroyed on connection
// close; it must never be shared across connections (Non-goal: "no
// multi-connection multiplexing inside a single gateway instance").
type Gateway struct {
	clientID uint64

	slots [numSlots]requestContext

	db *dbHandle

	cluster cluster.Cluster
	options Options
	open    OpenFunc

	callbacks Callbacks

	heartbeat int64

	checkpointer *checkpointHook

	log *slog.Logger
}

// New creates a Gateway for one client connection. open is called at
// most once, by the OPEN handler.
func New(clu cluster.Cluster, options Options, open OpenFunc, callbacks Callbacks) *Gateway {
	return &Gateway{
		cluster:   clu,
		options:   options,
		open:      open,
		callbacks: callbacks,
		log:       slog.With("component", "gateway"),
	}
}

// Accept reports whether the slot designated for typ is currently
// free (spec §4.1).
func (g *Gateway) Accept(typ gwproto.Type) bool {
	return !g.slots[typ.Slot()].busy()
}

// Handle is the gateway's single entry point. It returns a non-zero
// error only when the designated slot was busy (spec §4.1); in every
// other case it invokes Flush exactly once and returns nil.
func (g *Gateway) Handle(ctx context.Context, req *gwproto.Request) error {
	slotIdx := req.Type.Slot()
	slot := &g.slots[slotIdx]

	if slot.busy() {
		return fmt.Errorf("concurrent request limit exceeded")
	}
	slot.request = req

	resp := g.dispatch(ctx, req)
	g.flush(slotIdx, resp)
	return nil
}

// dispatch routes req to its handler. Every path returns a rendered
// Response; none of the handlers call Flush themselves, keeping
// "exactly one flush per handle call" structurally true except for the
// streaming continuation path in Flushed.
func (g *Gateway) dispatch(ctx context.Context, req *gwproto.Request) gwproto.Response {
	metrics.RequestsTotal.WithLabelValues(req.Type.String()).Inc()

	resp := g.route(ctx, req)
	if resp.Variant == gwproto.VariantFailure {
		metrics.RequestFailuresTotal.WithLabelValues(req.Type.String(), fmt.Sprintf("%d", resp.Code)).Inc()
	}
	return resp
}

// route is dispatch's opcode switch, split out so dispatch can wrap it
// uniformly with the failure-counting above.
func (g *Gateway) route(ctx context.Context, req *gwproto.Request) gwproto.Response {
	switch req.Type {
	case gwproto.TypeLeader:
		return g.handleLeader(ctx)
	case gwproto.TypeClient:
		return g.handleClient(ctx, req)
	case gwproto.TypeHeartbeat:
		return g.handleHeartbeat(ctx, req)
	case gwproto.TypeOpen:
		return g.handleOpen(ctx, req)
	case gwproto.TypePrepare:
		return g.handlePrepare(ctx, req)
	case gwproto.TypeExec:
		return g.handleExec(ctx, req)
	case gwproto.TypeQuery:
		return g.handleQuery(ctx, req)
	case gwproto.TypeFinalize:
		return g.handleFinalize(ctx, req)
	case gwproto.TypeExecSQL:
		return g.handleExecSQL(ctx, req)
	case gwproto.TypeQuerySQL:
		return g.handleQuerySQL(ctx, req)
	case gwproto.TypeInterrupt:
		return g.handleInterrupt(req)
	default:
		return failure(gwproto.ErrCodeError, fmt.Sprintf("invalid request type %d", req.Type))
	}
}

// flush records the response into the slot and invokes the
// transport's flush callback exactly once.
func (g *Gateway) flush(slotIdx int, resp gwproto.Response) {
	slot := &g.slots[slotIdx]
	slot.response = resp
	g.callbacks.Flush(&slot.response)
}

// Flushed is the completion callback the transport invokes once it has
// finished writing response's payload to the wire (spec §4.1). It
// locates the owning slot by pointer identity, releases per-response
// dynamic memory, and — if the slot holds a suspended streaming cursor
// — produces and flushes the next batch.
func (g *Gateway) Flushed(ctx context.Context, response *gwproto.Response) {
	slotIdx, slot := g.slotOf(response)
	if slot == nil {
		return
	}

	releaseDynamics(response)

	if slot.cursor != nil {
		resp := g.runStreamBatch(ctx, slot)
		g.flush(slotIdx, resp)
		return
	}

	slot.free()
}

// Aborted is a no-op hook the transport may call instead of Flushed
// when a queued response will never be written (spec §4.1, §9). The
// gateway deliberately does not free response dynamics here — per the
// documented caveat, a transport that calls Aborted must not have
// already called Flush for that response via the normal path, or the
// slot will leak until connection teardown. Real transports should
// prefer always calling Flushed, even for a response they are about to
// discard, specifically to avoid this leak.
func (g *Gateway) Aborted(_ *gwproto.Response) {}

// slotOf finds the slot whose response pointer is response.
func (g *Gateway) slotOf(response *gwproto.Response) (int, *requestContext) {
	for i := range g.slots {
		if &g.slots[i].response == response {
			return i, &g.slots[i]
		}
	}
	return -1, nil
}

// Close cascades connection teardown through the DB handle, every
// still-open statement, and response buffers (spec §3 "Lifecycle").
func (g *Gateway) Close() error {
	if g.db == nil {
		return nil
	}
	g.log.Debug("closing gateway connection", "client_id", g.clientID)
	err := g.db.close()
	g.db = nil
	return err
}

// lookupDB implements spec §4.4's DB lookup: the gateway's DB must be
// non-null and its id must equal id.
func (g *Gateway) lookupDB(id uint32) (*dbHandle, bool) {
	if g.db == nil || g.db.id != id {
		return nil, false
	}
	return g.db, true
}

// barrier implements the log barrier that prefaces every PREPARE, EXEC,
// QUERY, FINALIZE, EXEC_SQL, and QUERY_SQL request (spec §4.4): it
// blocks until the local replicated state machine has applied every
// entry committed as of this call, so a read started here observes a
// state at least as fresh as the latest committed index. A non-zero
// result aborts the request with a FAILURE response before DB/statement
// lookup ever runs.
func (g *Gateway) barrier(ctx context.Context) (gwproto.Response, bool) {
	timer := prometheus.NewTimer(metrics.BarrierDuration)
	defer timer.ObserveDuration()

	if err := g.cluster.Barrier(ctx); err != nil {
		return failure(gwproto.ErrCodeError, "raft barrier failed: "+err.Error()), false
	}
	return gwproto.Response{}, true
}
