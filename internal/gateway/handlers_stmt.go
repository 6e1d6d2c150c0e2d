package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/zcourts/dqlite/internal/engine"
	"github.com/zcourts/dqlite/internal/gwproto"
	"github.com/zcourts/dqlite/internal/metrics"
)

// streamBatchSize caps the number of rows a single ROWS response
// carries (spec §4.4: large result sets are streamed in batches rather
// than buffered whole in memory).
const streamBatchSize = 64

// handlePrepare compiles req.SQL against the open DB and adds the
// resulting statement to its arena (spec §4.4).
func (g *Gateway) handlePrepare(ctx context.Context, req *gwproto.Request) gwproto.Response {
	if resp, ok := g.barrier(ctx); !ok {
		return resp
	}
	db, ok := g.lookupDB(req.DB)
	if !ok {
		return failure(gwproto.ErrCodeNotFound, fmt.Sprintf("no db with id %d", req.DB))
	}

	stmt, _, err := db.conn.Prepare(ctx, req.SQL)
	if err != nil {
		return engineFailure(err)
	}

	id := db.addStmt(stmt)
	return stmtResponse(req.DB, id, stmt.ParamCount())
}

// handleExec binds req.Values to the named statement and runs it to
// completion (spec §4.4).
func (g *Gateway) handleExec(ctx context.Context, req *gwproto.Request) gwproto.Response {
	if resp, ok := g.barrier(ctx); !ok {
		return resp
	}
	db, ok := g.lookupDB(req.DB)
	if !ok {
		return failure(gwproto.ErrCodeNotFound, fmt.Sprintf("no db with id %d", req.DB))
	}
	stmt, ok := db.stmt(req.Stmt)
	if !ok {
		return failure(gwproto.ErrCodeNotFound, fmt.Sprintf("no stmt with id %d", req.Stmt))
	}

	if err := stmt.Bind(req.Values); err != nil {
		return engineFailure(err)
	}
	lastInsertID, rowsAffected, err := stmt.Exec(ctx)
	if err != nil {
		return engineFailure(err)
	}

	g.checkpointer.afterCommit(ctx, db.conn.Raw())
	return resultResponse(lastInsertID, rowsAffected)
}

// handleQuery binds req.Values and begins streaming the statement's
// result set, flushing the first batch directly and suspending further
// batches behind the data slot's Flushed continuation (spec §4.4).
func (g *Gateway) handleQuery(ctx context.Context, req *gwproto.Request) gwproto.Response {
	if resp, ok := g.barrier(ctx); !ok {
		return resp
	}
	db, ok := g.lookupDB(req.DB)
	if !ok {
		return failure(gwproto.ErrCodeNotFound, fmt.Sprintf("no db with id %d", req.DB))
	}
	stmt, ok := db.stmt(req.Stmt)
	if !ok {
		return failure(gwproto.ErrCodeNotFound, fmt.Sprintf("no stmt with id %d", req.Stmt))
	}

	if err := stmt.Bind(req.Values); err != nil {
		return engineFailure(err)
	}

	cursor := &streamCursor{dbID: req.DB, stmtID: req.Stmt}
	return g.beginStream(ctx, cursor)
}

// handleFinalize releases a prepared statement and makes its id
// reusable (spec §4.4).
func (g *Gateway) handleFinalize(ctx context.Context, req *gwproto.Request) gwproto.Response {
	if resp, ok := g.barrier(ctx); !ok {
		return resp
	}
	db, ok := g.lookupDB(req.DB)
	if !ok {
		return failure(gwproto.ErrCodeNotFound, fmt.Sprintf("no db with id %d", req.DB))
	}
	if err := db.removeStmt(req.Stmt); err != nil {
		return failure(gwproto.ErrCodeNotFound, err.Error())
	}
	return emptyResponse()
}

// handleExecSQL is the plain-SQL convenience form of PREPARE+EXEC+
// FINALIZE (spec §4.5): req.SQL may hold more than one statement,
// separated by semicolons; req.Values binds only the first, matching
// the wire protocol's "one parameter set" convention for this opcode.
func (g *Gateway) handleExecSQL(ctx context.Context, req *gwproto.Request) gwproto.Response {
	if resp, ok := g.barrier(ctx); !ok {
		return resp
	}
	db, ok := g.lookupDB(req.DB)
	if !ok {
		return failure(gwproto.ErrCodeNotFound, fmt.Sprintf("no db with id %d", req.DB))
	}

	sql := req.SQL
	var lastInsertID, rowsAffected int64
	bound := false

	for strings.TrimSpace(sql) != "" {
		stmt, tail, err := db.conn.Prepare(ctx, sql)
		if err != nil {
			return engineFailure(err)
		}
		if stmt == nil {
			// The remaining text compiled to no executable statement
			// (e.g. a bare ";" fragment) — stop, per spec §4.5.
			break
		}

		if !bound {
			if err := stmt.Bind(req.Values); err != nil {
				_ = stmt.Finalize()
				return engineFailure(err)
			}
			bound = true
		}

		lastInsertID, rowsAffected, err = stmt.Exec(ctx)
		finalizeErr := stmt.Finalize()
		if err != nil {
			return engineFailure(err)
		}
		if finalizeErr != nil {
			return engineFailure(finalizeErr)
		}

		sql = tail
	}

	g.checkpointer.afterCommit(ctx, db.conn.Raw())
	return resultResponse(lastInsertID, rowsAffected)
}

// handleQuerySQL is the plain-SQL convenience form of PREPARE+QUERY
// (spec §4.5): every statement but the last runs to completion as a
// plain exec; the last is bound to req.Values and streamed exactly as
// QUERY would stream it.
func (g *Gateway) handleQuerySQL(ctx context.Context, req *gwproto.Request) gwproto.Response {
	if resp, ok := g.barrier(ctx); !ok {
		return resp
	}
	db, ok := g.lookupDB(req.DB)
	if !ok {
		return failure(gwproto.ErrCodeNotFound, fmt.Sprintf("no db with id %d", req.DB))
	}

	sql := req.SQL
	var stmt engine.Stmt
	for {
		var tail string
		var err error
		stmt, tail, err = db.conn.Prepare(ctx, sql)
		if err != nil {
			return engineFailure(err)
		}
		if stmt == nil {
			return failure(gwproto.ErrCodeError, "no sql statement to query")
		}
		if strings.TrimSpace(tail) == "" {
			break
		}
		if _, _, err := stmt.Exec(ctx); err != nil {
			_ = stmt.Finalize()
			return engineFailure(err)
		}
		if err := stmt.Finalize(); err != nil {
			return engineFailure(err)
		}
		sql = tail
	}

	if err := stmt.Bind(req.Values); err != nil {
		_ = stmt.Finalize()
		return engineFailure(err)
	}

	cursor := &streamCursor{dbID: req.DB, anon: stmt}
	return g.beginStream(ctx, cursor)
}

// beginStream installs cursor on the data slot and produces its first
// batch.
func (g *Gateway) beginStream(ctx context.Context, cursor *streamCursor) gwproto.Response {
	slot := &g.slots[slotData]
	slot.cursor = cursor
	return g.runStreamBatch(ctx, slot)
}

// runStreamBatch steps the slot's cursor statement up to streamBatchSize
// times, stopping early on StepDone, and clears the cursor once the
// stream is exhausted (an anonymous QUERY_SQL statement is finalized
// at that point, since the client never learns its arena id).
func (g *Gateway) runStreamBatch(ctx context.Context, slot *requestContext) gwproto.Response {
	cursor := slot.cursor
	db, ok := g.lookupDB(cursor.dbID)
	if !ok {
		slot.cursor = nil
		return failure(gwproto.ErrCodeNotFound, "database closed mid-stream")
	}
	stmt, ok := cursor.stmt(db)
	if !ok {
		slot.cursor = nil
		return failure(gwproto.ErrCodeNotFound, "statement finalized mid-stream")
	}

	rows := make([]gwproto.Row, 0, streamBatchSize)
	for len(rows) < streamBatchSize {
		result, err := stmt.Step(ctx)
		if err != nil {
			slot.cursor = nil
			if cursor.anon != nil {
				_ = stmt.Finalize()
			}
			return engineFailure(err)
		}
		if result == engine.StepDone {
			slot.cursor = nil
			if cursor.anon != nil {
				_ = stmt.Finalize()
			}
			metrics.StreamingBatchesTotal.Inc()
			return rowsResponse(rows, gwproto.RowsDone)
		}
		rows = append(rows, stmt.Row())
	}

	metrics.StreamingBatchesTotal.Inc()
	return rowsResponse(rows, gwproto.RowsPart)
}
