package gateway

import (
	"context"

	"github.com/zcourts/dqlite/internal/gwproto"
)

// handleOpen implements spec §4.3: a gateway may open exactly one DB
// handle for its entire lifetime. A second OPEN is rejected with
// ErrCodeBusy rather than silently replacing the first, so a
// misbehaving client can't leak the original connection's statements.
func (g *Gateway) handleOpen(ctx context.Context, req *gwproto.Request) gwproto.Response {
	if g.db != nil {
		return failure(gwproto.ErrCodeBusy, "a database for this connection is already open")
	}

	conn, inspector, err := g.open(ctx, req.Name, req.Flags, g.options)
	if err != nil {
		return engineFailure(err)
	}

	g.db = newDBHandle(conn)
	g.checkpointer = newCheckpointHook(inspector, g.options.CheckpointThreshold, g.cluster)

	// Registration failures are not surfaced to the client (spec §4.3):
	// the DB handle is still perfectly usable locally even if the
	// cluster never learns about it.
	g.cluster.Register(conn.Raw())

	return dbResponse(g.db.id)
}
