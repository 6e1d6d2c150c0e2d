package gateway

import (
	"fmt"

	"github.com/zcourts/dqlite/internal/engine"
)

// dbHandle is the gateway's single DB handle (spec §3). Its id is
// always 0 — a gateway opens at most one DB handle for its whole
// lifetime (spec invariant).
type dbHandle struct {
	id   uint32
	conn engine.Conn

	stmts    []engine.Stmt // dense vector, indexed by statement id
	freeList []uint32      // ids available for reuse, LIFO
	lastErr  string
}

func newDBHandle(conn engine.Conn) *dbHandle {
	return &dbHandle{conn: conn}
}

// addStmt inserts stmt into the arena and returns its id. Per spec
// §4.9 ("Arena + index for statements"), a free-list index is reused
// only after the statement it named has been finalized.
func (d *dbHandle) addStmt(stmt engine.Stmt) uint32 {
	if n := len(d.freeList); n > 0 {
		id := d.freeList[n-1]
		d.freeList = d.freeList[:n-1]
		d.stmts[id] = stmt
		return id
	}
	id := uint32(len(d.stmts))
	d.stmts = append(d.stmts, stmt)
	return id
}

// stmt looks up a statement by id. The bool is false for an id that
// was never issued, or was issued and then finalized.
func (d *dbHandle) stmt(id uint32) (engine.Stmt, bool) {
	if int(id) >= len(d.stmts) || d.stmts[id] == nil {
		return nil, false
	}
	return d.stmts[id], true
}

// removeStmt finalizes and evicts the statement at id, making its id
// eligible for reuse by a later prepare.
func (d *dbHandle) removeStmt(id uint32) error {
	stmt, ok := d.stmt(id)
	if !ok {
		return fmt.Errorf("no stmt with id %d", id)
	}
	err := stmt.Finalize()
	d.stmts[id] = nil
	d.freeList = append(d.freeList, id)
	return err
}

// close finalizes every live statement (ignoring individual finalize
// errors — the connection is going away regardless) and closes the
// underlying engine connection.
func (d *dbHandle) close() error {
	for id, stmt := range d.stmts {
		if stmt != nil {
			_ = stmt.Finalize()
			d.stmts[id] = nil
		}
	}
	d.freeList = nil
	return d.conn.Close()
}
