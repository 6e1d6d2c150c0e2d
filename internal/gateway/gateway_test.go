package gateway_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zcourts/dqlite/internal/cluster"
	"github.com/zcourts/dqlite/internal/engine"
	"github.com/zcourts/dqlite/internal/engine/walcheck"
	"github.com/zcourts/dqlite/internal/gateway"
	"github.com/zcourts/dqlite/internal/gwproto"
	"github.com/zcourts/dqlite/internal/util/testutil"
)

func unusedOpen(context.Context, string, uint64, gateway.Options) (engine.Conn, walcheck.Inspector, error) {
	return nil, nil, fmt.Errorf("open should not be called in this test")
}

// harness wraps a Gateway with a scriptable Flush callback: autoFlush
// true calls Flushed synchronously (simulating a transport that writes
// and reports completion inline), false leaves the response pending so
// a test can assert on slot-busy behavior before driving Flushed itself.
type harness struct {
	mu        sync.Mutex
	autoFlush bool
	gw        *gateway.Gateway
	pending   *gwproto.Response
	history   []gwproto.Response
}

func newHarness(clu *fakeCluster, opts gateway.Options, open gateway.OpenFunc, autoFlush bool) *harness {
	h := &harness{autoFlush: autoFlush}
	h.gw = gateway.New(clu, opts, open, gateway.Callbacks{Flush: h.flush})
	return h
}

func (h *harness) flush(resp *gwproto.Response) {
	h.mu.Lock()
	h.pending = resp
	h.history = append(h.history, *resp)
	auto := h.autoFlush
	h.mu.Unlock()
	if auto {
		h.gw.Flushed(context.Background(), resp)
	}
}

func (h *harness) flushPending() {
	h.mu.Lock()
	p := h.pending
	h.mu.Unlock()
	if p != nil {
		h.gw.Flushed(context.Background(), p)
	}
}

func (h *harness) last() gwproto.Response {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.history[len(h.history)-1]
}

func TestHandle_RejectsConcurrentRequestOnBusySlot(t *testing.T) {
	h := newHarness(&fakeCluster{}, gateway.Options{}, unusedOpen, false)

	require.NoError(t, h.gw.Handle(context.Background(), &gwproto.Request{Type: gwproto.TypeHeartbeat, Timestamp: 1}))
	assert.False(t, h.gw.Accept(gwproto.TypeHeartbeat))

	err := h.gw.Handle(context.Background(), &gwproto.Request{Type: gwproto.TypeHeartbeat, Timestamp: 2})
	assert.Error(t, err)

	// The data-plane slot is unaffected: heartbeat lives on the control slot.
	assert.True(t, h.gw.Accept(gwproto.TypeClient))

	h.flushPending()
	assert.True(t, h.gw.Accept(gwproto.TypeHeartbeat))
}

func TestHandleOpen_SecondOpenReturnsBusy(t *testing.T) {
	clu := &fakeCluster{}
	conn := &fakeConn{prepareFn: func(context.Context, string) (engine.Stmt, string, error) {
		return nil, "", fmt.Errorf("unused")
	}}
	opens := 0
	open := func(ctx context.Context, name string, flags uint64, opts gateway.Options) (engine.Conn, walcheck.Inspector, error) {
		opens++
		return conn, &fakeInspector{}, nil
	}
	h := newHarness(clu, gateway.Options{}, open, true)

	require.NoError(t, h.gw.Handle(context.Background(), &gwproto.Request{Type: gwproto.TypeOpen, Name: "test"}))
	assert.Equal(t, gwproto.VariantDB, h.last().Variant)

	require.NoError(t, h.gw.Handle(context.Background(), &gwproto.Request{Type: gwproto.TypeOpen, Name: "test"}))
	second := h.last()
	assert.Equal(t, gwproto.VariantFailure, second.Variant)
	assert.Equal(t, gwproto.ErrCodeBusy, second.Code)

	assert.Equal(t, 1, opens)
	assert.Len(t, clu.registered, 1)
}

func TestHandleHeartbeat_ReturnsServersAndAdvancesTimestamp(t *testing.T) {
	clu := &fakeCluster{peers: []cluster.Peer{{ID: 1, Address: "10.0.0.1:9190"}}}
	h := newHarness(clu, gateway.Options{HeartbeatTimeout: 5 * time.Second}, unusedOpen, true)

	require.NoError(t, h.gw.Handle(context.Background(), &gwproto.Request{Type: gwproto.TypeHeartbeat, Timestamp: 100}))
	resp := h.last()
	assert.Equal(t, gwproto.VariantServers, resp.Variant)
	require.Len(t, resp.List, 1)
	assert.Equal(t, uint64(1), resp.List[0].ID)

	// An out-of-order heartbeat is accepted, not rejected (spec: stale
	// heartbeats are harmless — the gateway just keeps the latest it saw).
	require.NoError(t, h.gw.Handle(context.Background(), &gwproto.Request{Type: gwproto.TypeHeartbeat, Timestamp: 1}))
	assert.Equal(t, gwproto.VariantServers, h.last().Variant)
}

func TestHandleLeaderAndClient(t *testing.T) {
	clu := &fakeCluster{leaderAddr: "10.0.0.1:9190", leaderOK: true, peers: []cluster.Peer{{ID: 1, Address: "10.0.0.1:9190"}}}
	h := newHarness(clu, gateway.Options{HeartbeatTimeout: 5 * time.Second}, unusedOpen, true)

	require.NoError(t, h.gw.Handle(context.Background(), &gwproto.Request{Type: gwproto.TypeLeader}))
	leaderResp := h.last()
	assert.Equal(t, gwproto.VariantServer, leaderResp.Variant)
	assert.Equal(t, "10.0.0.1:9190", leaderResp.Address)

	require.NoError(t, h.gw.Handle(context.Background(), &gwproto.Request{Type: gwproto.TypeClient, ClientID: 42}))
	clientResp := h.last()
	assert.Equal(t, gwproto.VariantWelcome, clientResp.Variant)
	assert.Equal(t, int64(5000), clientResp.HeartbeatTimeout)
}

func TestHandleLeader_NoLeaderReturnsNoMemFailure(t *testing.T) {
	clu := &fakeCluster{leaderOK: false}
	h := newHarness(clu, gateway.Options{}, unusedOpen, true)

	require.NoError(t, h.gw.Handle(context.Background(), &gwproto.Request{Type: gwproto.TypeLeader}))
	resp := h.last()
	assert.Equal(t, gwproto.VariantFailure, resp.Variant)
	assert.Equal(t, gwproto.ErrCodeNoMem, resp.Code)
}

func openingConn(conn *fakeConn) gateway.OpenFunc {
	return func(ctx context.Context, name string, flags uint64, opts gateway.Options) (engine.Conn, walcheck.Inspector, error) {
		return conn, &fakeInspector{}, nil
	}
}

func TestPrepareExecFinalize_Lifecycle(t *testing.T) {
	stmt := &fakeStmt{}
	stmt.result.lastInsertID, stmt.result.rowsAffected = 7, 1
	conn := &fakeConn{prepareFn: func(context.Context, string) (engine.Stmt, string, error) {
		return stmt, "", nil
	}}
	h := newHarness(&fakeCluster{}, gateway.Options{CheckpointThreshold: 1000}, openingConn(conn), true)
	ctx := context.Background()

	require.NoError(t, h.gw.Handle(ctx, &gwproto.Request{Type: gwproto.TypeOpen}))
	dbID := h.last().DBID

	require.NoError(t, h.gw.Handle(ctx, &gwproto.Request{Type: gwproto.TypePrepare, DB: dbID, SQL: "INSERT INTO t VALUES (?)"}))
	prepResp := h.last()
	require.Equal(t, gwproto.VariantStmt, prepResp.Variant)
	stmtID := prepResp.StmtID

	require.NoError(t, h.gw.Handle(ctx, &gwproto.Request{Type: gwproto.TypeExec, DB: dbID, Stmt: stmtID, Values: []gwproto.Value{{Data: int64(1)}}}))
	execResp := h.last()
	assert.Equal(t, gwproto.VariantResult, execResp.Variant)
	assert.Equal(t, int64(7), execResp.LastInsertID)
	assert.Equal(t, int64(1), execResp.RowsAffected)

	require.NoError(t, h.gw.Handle(ctx, &gwproto.Request{Type: gwproto.TypeFinalize, DB: dbID, Stmt: stmtID}))
	assert.Equal(t, gwproto.VariantEmpty, h.last().Variant)
	assert.True(t, stmt.finalized)

	// The statement id is no longer valid once finalized.
	require.NoError(t, h.gw.Handle(ctx, &gwproto.Request{Type: gwproto.TypeExec, DB: dbID, Stmt: stmtID}))
	assert.Equal(t, gwproto.VariantFailure, h.last().Variant)
	assert.Equal(t, gwproto.ErrCodeNotFound, h.last().Code)
}

func TestPrepare_BarrierFailureShortCircuitsBeforeLookup(t *testing.T) {
	conn := &fakeConn{prepareFn: func(context.Context, string) (engine.Stmt, string, error) {
		t.Fatal("prepare must not run when the barrier fails")
		return nil, "", nil
	}}
	clu := &fakeCluster{barrierErr: fmt.Errorf("not leader")}
	h := newHarness(clu, gateway.Options{}, openingConn(conn), true)
	ctx := context.Background()

	require.NoError(t, h.gw.Handle(ctx, &gwproto.Request{Type: gwproto.TypeOpen}))
	dbID := h.last().DBID

	require.NoError(t, h.gw.Handle(ctx, &gwproto.Request{Type: gwproto.TypePrepare, DB: dbID, SQL: "SELECT 1"}))
	resp := h.last()
	assert.Equal(t, gwproto.VariantFailure, resp.Variant)
	assert.Equal(t, gwproto.ErrCodeError, resp.Code)
}

func TestHandleQuerySQL_EmptySQLFailsInsteadOfPanicking(t *testing.T) {
	// Mirrors engine/sqlite.Conn.Prepare's real contract: an empty (or
	// whitespace-only) compile unit returns a nil Stmt with no error.
	conn := &fakeConn{prepareFn: func(context.Context, string) (engine.Stmt, string, error) {
		return nil, "", nil
	}}
	h := newHarness(&fakeCluster{}, gateway.Options{}, openingConn(conn), true)
	ctx := context.Background()

	require.NoError(t, h.gw.Handle(ctx, &gwproto.Request{Type: gwproto.TypeOpen}))
	dbID := h.last().DBID

	require.NoError(t, h.gw.Handle(ctx, &gwproto.Request{Type: gwproto.TypeQuerySQL, DB: dbID, SQL: ""}))
	resp := h.last()
	assert.Equal(t, gwproto.VariantFailure, resp.Variant)
}

func TestHandleQuery_SingleBatchCompletesImmediately(t *testing.T) {
	rows := []gwproto.Row{{int64(1), "a"}, {int64(2), "b"}, {int64(3), "c"}}
	stmt := &fakeStmt{rows: rows}
	conn := &fakeConn{prepareFn: func(context.Context, string) (engine.Stmt, string, error) { return stmt, "", nil }}
	h := newHarness(&fakeCluster{}, gateway.Options{}, openingConn(conn), true)
	ctx := context.Background()

	require.NoError(t, h.gw.Handle(ctx, &gwproto.Request{Type: gwproto.TypeOpen}))
	dbID := h.last().DBID
	require.NoError(t, h.gw.Handle(ctx, &gwproto.Request{Type: gwproto.TypePrepare, DB: dbID, SQL: "SELECT * FROM t"}))
	stmtID := h.last().StmtID

	require.NoError(t, h.gw.Handle(ctx, &gwproto.Request{Type: gwproto.TypeQuery, DB: dbID, Stmt: stmtID}))
	resp := h.last()
	assert.Equal(t, gwproto.VariantRows, resp.Variant)
	assert.Equal(t, gwproto.RowsDone, resp.Mark)
	assert.Len(t, resp.Rows, 3)

	// The data slot is free again: the statement was not anonymous, so
	// it survives the stream and can be queried again.
	assert.True(t, h.gw.Accept(gwproto.TypeQuery))
}

func TestHandleQuery_MultiBatchStreamingAcrossAsyncFlushed(t *testing.T) {
	total := 150 // > 2*streamBatchSize(64): expect batches 64, 64, 22(done)
	rows := make([]gwproto.Row, total)
	for i := range rows {
		rows[i] = gwproto.Row{int64(i)}
	}
	stmt := &fakeStmt{rows: rows}
	conn := &fakeConn{prepareFn: func(context.Context, string) (engine.Stmt, string, error) { return stmt, "", nil }}

	var mu sync.Mutex
	var seen []gwproto.Response
	done := false

	var gw *gateway.Gateway
	gw = gateway.New(&fakeCluster{}, gateway.Options{}, openingConn(conn), gateway.Callbacks{
		Flush: func(resp *gwproto.Response) {
			mu.Lock()
			seen = append(seen, *resp)
			if resp.Variant == gwproto.VariantRows && resp.Mark == gwproto.RowsDone {
				done = true
			}
			mu.Unlock()

			if resp.Variant != gwproto.VariantRows {
				// OPEN/PREPARE responses free their slot inline, so the
				// test's own setup calls below can proceed deterministically.
				gw.Flushed(context.Background(), resp)
				return
			}
			// Simulate an asynchronous transport: each ROWS batch's write
			// completes on another goroutine, arbitrarily later. Only this
			// gateway-driven continuation chain touches gw concurrently
			// with the test goroutine from here on.
			go gw.Flushed(context.Background(), resp)
		},
	})

	ctx := context.Background()
	require.NoError(t, gw.Handle(ctx, &gwproto.Request{Type: gwproto.TypeOpen}))
	require.NoError(t, gw.Handle(ctx, &gwproto.Request{Type: gwproto.TypePrepare, SQL: "SELECT * FROM big"}))

	var stmtID uint32
	mu.Lock()
	stmtID = seen[len(seen)-1].StmtID
	mu.Unlock()

	require.NoError(t, gw.Handle(ctx, &gwproto.Request{Type: gwproto.TypeQuery, Stmt: stmtID}))

	testutil.RequireEventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return done
	}, "streaming query never reached its terminal batch")

	mu.Lock()
	defer mu.Unlock()
	var rowsSeen int
	var marks []gwproto.RowsMark
	for _, r := range seen {
		if r.Variant == gwproto.VariantRows {
			rowsSeen += len(r.Rows)
			marks = append(marks, r.Mark)
		}
	}
	assert.Equal(t, total, rowsSeen)
	assert.Equal(t, []gwproto.RowsMark{gwproto.RowsPart, gwproto.RowsPart, gwproto.RowsDone}, marks)
}

func TestHandleInterrupt_FinalizesAnonymousStreamingStatement(t *testing.T) {
	rows := make([]gwproto.Row, 200)
	for i := range rows {
		rows[i] = gwproto.Row{int64(i)}
	}
	stmt := &fakeStmt{rows: rows}
	conn := &fakeConn{prepareFn: func(_ context.Context, sql string) (engine.Stmt, string, error) {
		first, tail := splitOnSemicolon(sql)
		if first == "" {
			return nil, "", nil
		}
		return stmt, tail, nil
	}}

	var last gwproto.Response
	var gw *gateway.Gateway
	gw = gateway.New(&fakeCluster{}, gateway.Options{}, openingConn(conn), gateway.Callbacks{
		Flush: func(resp *gwproto.Response) {
			last = *resp
			if resp.Variant == gwproto.VariantRows {
				// Leave the first batch's Flushed undelivered, as if the
				// transport is still mid-write — the stream must stay
				// suspended so INTERRUPT has something to cancel.
				return
			}
			gw.Flushed(context.Background(), resp)
		},
	})
	ctx := context.Background()

	require.NoError(t, gw.Handle(ctx, &gwproto.Request{Type: gwproto.TypeOpen}))
	require.NoError(t, gw.Handle(ctx, &gwproto.Request{Type: gwproto.TypeQuerySQL, SQL: "SELECT * FROM big"}))
	require.Equal(t, gwproto.VariantRows, last.Variant)
	require.Equal(t, gwproto.RowsPart, last.Mark)
	assert.False(t, gw.Accept(gwproto.TypeQuery), "data slot should still be busy mid-stream")

	require.NoError(t, gw.Handle(ctx, &gwproto.Request{Type: gwproto.TypeInterrupt}))
	assert.Equal(t, gwproto.VariantEmpty, last.Variant)
	assert.True(t, stmt.finalized, "an anonymous QUERY_SQL statement must be finalized on interrupt")
	assert.True(t, gw.Accept(gwproto.TypeQuery), "interrupt must free the data slot")
}

func TestHandleExecSQL_BindsOnlyFirstStatement(t *testing.T) {
	var execCount int
	var bound [][]gwproto.Value
	conn := &fakeConn{prepareFn: func(_ context.Context, sql string) (engine.Stmt, string, error) {
		first, tail := splitOnSemicolon(sql)
		if first == "" {
			return nil, "", nil
		}
		s := &fakeStmt{}
		s.result.lastInsertID = int64(10 + execCount)
		return &trackingStmt{fakeStmt: s, onExec: func() { execCount++ }, onBind: func(v []gwproto.Value) { bound = append(bound, v) }}, tail, nil
	}}
	h := newHarness(&fakeCluster{}, gateway.Options{}, openingConn(conn), true)
	ctx := context.Background()

	require.NoError(t, h.gw.Handle(ctx, &gwproto.Request{Type: gwproto.TypeOpen}))
	require.NoError(t, h.gw.Handle(ctx, &gwproto.Request{
		Type:   gwproto.TypeExecSQL,
		SQL:    "INSERT INTO t VALUES (?); INSERT INTO t2 VALUES (1)",
		Values: []gwproto.Value{{Data: int64(9)}},
	}))

	resp := h.last()
	require.Equal(t, gwproto.VariantResult, resp.Variant)
	assert.Equal(t, 2, execCount)
	assert.Equal(t, int64(11), resp.LastInsertID, "result reflects the last statement executed")
	require.Len(t, bound, 1, "only the first statement is bound")
}

// trackingStmt wraps a fakeStmt to observe Bind/Exec calls without
// changing fakeStmt's row-stepping behavior.
type trackingStmt struct {
	*fakeStmt
	onBind func([]gwproto.Value)
	onExec func()
}

func (t *trackingStmt) Bind(values []gwproto.Value) error {
	if t.onBind != nil {
		t.onBind(values)
	}
	return t.fakeStmt.Bind(values)
}

func (t *trackingStmt) Exec(ctx context.Context) (int64, int64, error) {
	if t.onExec != nil {
		t.onExec()
	}
	return t.fakeStmt.Exec(ctx)
}

func TestHandleExec_AboveThresholdTriggersClusterCheckpoint(t *testing.T) {
	clu := &fakeCluster{}
	stmt := &fakeStmt{}
	conn := &fakeConn{prepareFn: func(context.Context, string) (engine.Stmt, string, error) { return stmt, "", nil }}
	inspector := &fakeInspector{result: walcheck.Result{LogFrames: 5000}}
	open := func(ctx context.Context, name string, flags uint64, opts gateway.Options) (engine.Conn, walcheck.Inspector, error) {
		return conn, inspector, nil
	}
	h := newHarness(clu, gateway.Options{CheckpointThreshold: 1000}, open, true)
	ctx := context.Background()

	require.NoError(t, h.gw.Handle(ctx, &gwproto.Request{Type: gwproto.TypeOpen}))
	require.NoError(t, h.gw.Handle(ctx, &gwproto.Request{Type: gwproto.TypePrepare, SQL: "INSERT INTO t VALUES (1)"}))
	stmtID := h.last().StmtID

	require.NoError(t, h.gw.Handle(ctx, &gwproto.Request{Type: gwproto.TypeExec, Stmt: stmtID}))

	assert.Equal(t, 1, clu.checkpointCalls)
}

func TestHandleExec_BelowThresholdSkipsClusterCheckpoint(t *testing.T) {
	clu := &fakeCluster{}
	stmt := &fakeStmt{}
	conn := &fakeConn{prepareFn: func(context.Context, string) (engine.Stmt, string, error) { return stmt, "", nil }}
	inspector := &fakeInspector{result: walcheck.Result{LogFrames: 10}}
	open := func(ctx context.Context, name string, flags uint64, opts gateway.Options) (engine.Conn, walcheck.Inspector, error) {
		return conn, inspector, nil
	}
	h := newHarness(clu, gateway.Options{CheckpointThreshold: 1000}, open, true)
	ctx := context.Background()

	require.NoError(t, h.gw.Handle(ctx, &gwproto.Request{Type: gwproto.TypeOpen}))
	require.NoError(t, h.gw.Handle(ctx, &gwproto.Request{Type: gwproto.TypePrepare, SQL: "INSERT INTO t VALUES (1)"}))
	stmtID := h.last().StmtID

	require.NoError(t, h.gw.Handle(ctx, &gwproto.Request{Type: gwproto.TypeExec, Stmt: stmtID}))

	assert.Equal(t, 0, clu.checkpointCalls)
}

func TestHandleExec_BusyCheckpointIsNotAnError(t *testing.T) {
	clu := &fakeCluster{}
	stmt := &fakeStmt{}
	conn := &fakeConn{prepareFn: func(context.Context, string) (engine.Stmt, string, error) { return stmt, "", nil }}
	inspector := &fakeInspector{result: walcheck.Result{Busy: true, LogFrames: 5000}}
	open := func(ctx context.Context, name string, flags uint64, opts gateway.Options) (engine.Conn, walcheck.Inspector, error) {
		return conn, inspector, nil
	}
	h := newHarness(clu, gateway.Options{CheckpointThreshold: 1000}, open, true)
	ctx := context.Background()

	require.NoError(t, h.gw.Handle(ctx, &gwproto.Request{Type: gwproto.TypeOpen}))
	require.NoError(t, h.gw.Handle(ctx, &gwproto.Request{Type: gwproto.TypePrepare, SQL: "INSERT INTO t VALUES (1)"}))
	stmtID := h.last().StmtID

	require.NoError(t, h.gw.Handle(ctx, &gwproto.Request{Type: gwproto.TypeExec, Stmt: stmtID}))
	resp := h.last()
	assert.Equal(t, gwproto.VariantResult, resp.Variant, "a postponed checkpoint never surfaces as a client-visible failure")
	assert.Equal(t, 0, clu.checkpointCalls)
}
