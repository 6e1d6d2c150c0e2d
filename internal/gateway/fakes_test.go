package gateway_test

import (
	"context"
	"strings"
	"sync"

	"github.com/zcourts/dqlite/internal/cluster"
	"github.com/zcourts/dqlite/internal/engine"
	"github.com/zcourts/dqlite/internal/engine/walcheck"
	"github.com/zcourts/dqlite/internal/gwproto"
)

// fakeStmt is a minimal engine.Stmt backed by a fixed row set, used to
// drive the gateway's PREPARE/EXEC/QUERY handlers without a real SQL
// engine underneath.
type fakeStmt struct {
	sql    string
	rows   []gwproto.Row
	pos    int
	last   gwproto.Row
	bound  []gwproto.Value
	result struct{ lastInsertID, rowsAffected int64 }
	stepErr   error
	finalized bool
}

func (s *fakeStmt) ParamCount() int { return 1 }

func (s *fakeStmt) Bind(values []gwproto.Value) error {
	s.bound = values
	return nil
}

func (s *fakeStmt) Exec(context.Context) (int64, int64, error) {
	return s.result.lastInsertID, s.result.rowsAffected, nil
}

func (s *fakeStmt) Step(context.Context) (engine.StepResult, error) {
	if s.stepErr != nil {
		return engine.StepDone, s.stepErr
	}
	if s.pos >= len(s.rows) {
		return engine.StepDone, nil
	}
	row := s.rows[s.pos]
	s.pos++
	s.last = row
	return engine.StepRow, nil
}

func (s *fakeStmt) Row() gwproto.Row { return s.last }

func (s *fakeStmt) Reset() error {
	s.pos = 0
	s.bound = nil
	return nil
}

func (s *fakeStmt) Finalize() error {
	s.finalized = true
	return nil
}

// fakeConn is a minimal engine.Conn whose Prepare is driven by a
// caller-supplied function, so each test can control exactly what
// statement a given SQL string compiles to.
type fakeConn struct {
	mu        sync.Mutex
	prepareFn func(ctx context.Context, sql string) (engine.Stmt, string, error)
	closed    bool
	rawHandle any
}

func (c *fakeConn) Prepare(ctx context.Context, sql string) (engine.Stmt, string, error) {
	return c.prepareFn(ctx, sql)
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) Raw() any { return c.rawHandle }

// splitOnSemicolon is a test-only stand-in for the real engine's
// statement-tail splitting, sufficient for the simple multi-statement
// SQL strings these tests construct.
func splitOnSemicolon(sql string) (first, tail string) {
	idx := strings.IndexByte(sql, ';')
	if idx < 0 {
		return strings.TrimSpace(sql), ""
	}
	return strings.TrimSpace(sql[:idx+1]), strings.TrimSpace(sql[idx+1:])
}

// fakeInspector is a scriptable walcheck.Inspector.
type fakeInspector struct {
	result walcheck.Result
	err    error
}

func (f *fakeInspector) TryCheckpoint(context.Context) (walcheck.Result, error) {
	return f.result, f.err
}

// fakeCluster is a scriptable cluster.Cluster, standing in for
// internal/cluster/solo in tests that don't need a real single-node
// implementation.
type fakeCluster struct {
	mu sync.Mutex

	leaderAddr string
	leaderOK   bool
	peers      []cluster.Peer

	registered []cluster.Handle

	barrierErr     error
	checkpointErr  error
	checkpointCalls int
}

func (c *fakeCluster) Leader(context.Context) (string, bool) {
	return c.leaderAddr, c.leaderOK
}

func (c *fakeCluster) Servers(context.Context) ([]cluster.Peer, error) {
	return c.peers, nil
}

func (c *fakeCluster) Register(handle cluster.Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.registered = append(c.registered, handle)
}

func (c *fakeCluster) Barrier(context.Context) error {
	return c.barrierErr
}

func (c *fakeCluster) Checkpoint(context.Context, cluster.Handle) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checkpointCalls++
	return c.checkpointErr
}
