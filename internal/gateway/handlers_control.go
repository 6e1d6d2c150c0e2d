package gateway

import (
	"context"

	"github.com/zcourts/dqlite/internal/gwproto"
)

// handleLeader answers a LEADER request with the current leader's dial
// address. A missing leader is reported as FAILURE{NOMEM} rather than
// NOTFOUND/UNAVAILABLE — preserved bit-for-bit from the source gateway
// this protocol is wire-compatible with, even though those codes would
// describe the condition more accurately (spec §4.2, §9 Open Question:
// kept rather than refined, since nothing else in this revision touches
// wire compatibility).
func (g *Gateway) handleLeader(ctx context.Context) gwproto.Response {
	address, ok := g.cluster.Leader(ctx)
	if !ok {
		return failure(gwproto.ErrCodeNoMem, "failed to get cluster leader")
	}
	return serverResponse(address)
}

// handleClient records the caller's self-reported client id and
// answers with a WELCOME carrying the configured heartbeat interval
// (spec §4.2: CLIENT is a placeholder handshake — the client id it
// reports is not yet validated or stored beyond this connection).
func (g *Gateway) handleClient(_ context.Context, req *gwproto.Request) gwproto.Response {
	g.clientID = req.ClientID
	return welcomeResponse(g.options.HeartbeatTimeout.Milliseconds())
}

// handleHeartbeat answers a HEARTBEAT with the current peer list and
// records the timestamp the client reported (spec §4.2: heartbeats
// must be monotonically increasing per connection, enforced here
// rather than rejected, since a stale heartbeat is harmless — the
// gateway simply keeps the latest).
func (g *Gateway) handleHeartbeat(ctx context.Context, req *gwproto.Request) gwproto.Response {
	peers, err := g.cluster.Servers(ctx)
	if err != nil {
		return failure(gwproto.ErrCodeError, "failed to get cluster servers: "+err.Error())
	}
	if req.Timestamp > g.heartbeat {
		g.heartbeat = req.Timestamp
	}
	return serversResponse(peers)
}

// handleInterrupt cancels any in-progress streaming query on the data
// slot (spec §4.8). It is itself a control-plane request so a stuck
// streaming query on the data slot can still be interrupted.
func (g *Gateway) handleInterrupt(req *gwproto.Request) gwproto.Response {
	slot := &g.slots[slotData]
	if cursor := slot.cursor; cursor != nil {
		if db, ok := g.lookupDB(cursor.dbID); ok {
			if stmt, ok := cursor.stmt(db); ok {
				_ = stmt.Reset()
				if cursor.anon != nil {
					_ = stmt.Finalize()
				}
			}
		}
		slot.free()
	}
	return emptyResponse()
}
