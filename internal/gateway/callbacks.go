package gateway

import "github.com/zcourts/dqlite/internal/gwproto"

// FlushFunc is invoked exactly once per request, or once per streaming
// batch, with the response to write to the wire. The caller must
// invoke the matching Flushed (or Aborted) call before the owning slot
// can accept a new request (spec §6.3).
type FlushFunc func(response *gwproto.Response)

// Callbacks holds the transport-supplied continuations a Gateway
// drives. There is no "aborted" func field here because Aborted is a
// method on Gateway itself (spec §4.1) invoked directly by the
// transport, not something the gateway calls out to.
type Callbacks struct {
	Flush FlushFunc
}
