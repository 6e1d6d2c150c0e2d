// Package engine defines the gateway's view of the local SQL engine: a
// connection that can prepare statements, and a statement that can be
// bound, stepped, and finalized. The real SQL engine and its VFS are
// explicitly outside this repository's scope (see spec §1) — this
// package is the seam the gateway core (package gateway) dispatches
// through, and internal/engine/sqlite is its one concrete,
// modernc.org/sqlite-backed implementation.
package engine

import (
	"context"

	"github.com/zcourts/dqlite/internal/gwproto"
)

// StepResult reports what happened on one call to Stmt.Step.
type StepResult int

const (
	// StepRow indicates another row is available via Stmt.Row.
	StepRow StepResult = iota
	// StepDone indicates the statement has no more rows (or, for a
	// non-SELECT statement, has finished executing).
	StepDone
)

// Conn is a single local SQL connection, analogous to the spec's DB
// handle. Implementations must serialize access internally if needed;
// the gateway core never calls Conn concurrently with itself (spec §5:
// single-threaded, cooperative scheduling), but a WAL hook callback
// invoked from the engine's own commit path may run on the same
// goroutine as the triggering Exec/ExecSQL call.
type Conn interface {
	// Prepare compiles the first statement in sql, returning the
	// compiled Stmt and the residual, unparsed text (empty when sql
	// contained exactly one statement).
	Prepare(ctx context.Context, sql string) (stmt Stmt, tail string, err error)

	// Close releases the connection and all of its still-open
	// statements.
	Close() error

	// Raw exposes the underlying handle for use by a walcheck.Inspector or a
	// cluster.Cluster implementation (e.g. *sql.DB). Callers must not
	// assume a specific concrete type beyond what their own adapter
	// pairing guarantees.
	Raw() any
}

// Stmt is one compiled, bindable SQL statement. Exec and the Step/Row
// pair are kept separate (rather than unified behind a single Step
// call) because the spec's EXEC and QUERY opcodes drive genuinely
// different engine operations: EXEC runs a statement to completion and
// reports insert id/rows affected, QUERY iterates a row at a time.
type Stmt interface {
	// ParamCount returns the number of bindable parameters in the
	// compiled statement.
	ParamCount() int

	// Bind binds a positional tuple of values to the statement's
	// parameters, in order. Re-binding resets any prior bindings and
	// cursor position.
	Bind(values []gwproto.Value) error

	// Exec runs the statement to completion, returning the last insert
	// row id and the number of rows affected.
	Exec(ctx context.Context) (lastInsertID, rowsAffected int64, err error)

	// Step advances a query statement by one row. It returns StepDone
	// once no more rows are available.
	Step(ctx context.Context) (StepResult, error)

	// Row returns the current row's column values. Valid only
	// immediately after a Step call that returned StepRow.
	Row() gwproto.Row

	// Reset rewinds the statement so it can be stepped again without
	// recompiling, clearing any bound values and closing any open
	// query cursor.
	Reset() error

	// Finalize releases the compiled statement. After Finalize, no
	// other method may be called.
	Finalize() error
}
