package gateway

import (
	"github.com/zcourts/dqlite/internal/cluster"
	"github.com/zcourts/dqlite/internal/engine"
	"github.com/zcourts/dqlite/internal/gwproto"
	"github.com/zcourts/dqlite/internal/util/sanitize"
)

// failure builds a FAILURE response. message is sanitized before it is
// ever placed on the wire (spec §9: a client must never be able to
// smuggle terminal control sequences back to another client via an
// echoed error message).
func failure(code gwproto.ErrCode, message string) gwproto.Response {
	return gwproto.Response{
		Variant: gwproto.VariantFailure,
		Code:    code,
		Message: sanitize.Message(message),
	}
}

// engineFailure renders err, unwrapped from the engine package's error
// type when possible, as a FAILURE response.
func engineFailure(err error) gwproto.Response {
	return failure(engine.CodeOf(err), engine.MessageOf(err))
}

func emptyResponse() gwproto.Response {
	return gwproto.Response{Variant: gwproto.VariantEmpty}
}

func serverResponse(address string) gwproto.Response {
	return gwproto.Response{Variant: gwproto.VariantServer, Address: address}
}

func serversResponse(peers []cluster.Peer) gwproto.Response {
	list := make([]gwproto.Peer, len(peers))
	for i, p := range peers {
		list[i] = gwproto.Peer{ID: p.ID, Address: p.Address}
	}
	return gwproto.Response{Variant: gwproto.VariantServers, List: list}
}

func welcomeResponse(heartbeatTimeoutMillis int64) gwproto.Response {
	return gwproto.Response{Variant: gwproto.VariantWelcome, HeartbeatTimeout: heartbeatTimeoutMillis}
}

func dbResponse(id uint32) gwproto.Response {
	return gwproto.Response{Variant: gwproto.VariantDB, DBID: id}
}

func stmtResponse(db, id uint32, params int) gwproto.Response {
	return gwproto.Response{
		Variant:    gwproto.VariantStmt,
		StmtDB:     db,
		StmtID:     id,
		StmtParams: uint64(params),
	}
}

func resultResponse(lastInsertID, rowsAffected int64) gwproto.Response {
	return gwproto.Response{
		Variant:      gwproto.VariantResult,
		LastInsertID: lastInsertID,
		RowsAffected: rowsAffected,
	}
}

func rowsResponse(rows []gwproto.Row, mark gwproto.RowsMark) gwproto.Response {
	return gwproto.Response{Variant: gwproto.VariantRows, Rows: rows, Mark: mark}
}

// releaseDynamics drops a flushed response's heap-backed payloads
// (spec §4.7: the gateway, not the transport, owns this memory until
// Flushed is called). Leaving stale slices referenced after flush
// would pin them for the lifetime of the request-context slot, which
// is reused indefinitely over the life of a connection.
func releaseDynamics(r *gwproto.Response) {
	r.Address = ""
	r.List = nil
	r.Rows = nil
	r.Message = ""
}
