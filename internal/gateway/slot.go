package gateway

import (
	"github.com/zcourts/dqlite/internal/engine"
	"github.com/zcourts/dqlite/internal/gwproto"
)

// slotData, slotControl index the Gateway's two request contexts.
// Slot 0 carries data-plane requests, slot 1 carries control-plane
// requests (spec §3).
const (
	slotData = iota
	slotControl
	numSlots
)

// requestContext is one pre-allocated request/response slot (spec §3).
type requestContext struct {
	request  *gwproto.Request // nil when the slot is free
	cursor   *streamCursor    // non-nil while a query streams in batches
	response gwproto.Response
}

// streamCursor is the suspended state of an in-progress streaming
// query. A QUERY request names an arena statement by (dbID, stmtID); a
// QUERY_SQL request compiles its own statement on the fly, which has
// no arena id to give back to the client, so it is held directly in
// anon instead and finalized when the stream completes.
type streamCursor struct {
	dbID   uint32
	stmtID uint32
	anon   engine.Stmt
}

// stmt resolves the cursor's statement, looking it up in db's arena
// unless the cursor owns an anonymous one.
func (c *streamCursor) stmt(db *dbHandle) (engine.Stmt, bool) {
	if c.anon != nil {
		return c.anon, true
	}
	return db.stmt(c.stmtID)
}

func (rc *requestContext) busy() bool {
	return rc.request != nil
}

func (rc *requestContext) free() {
	rc.request = nil
	rc.cursor = nil
}
