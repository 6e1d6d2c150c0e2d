package wire

import "encoding/gob"

// gwproto.Value.Data and gwproto.Row entries are interface{}-typed
// column values; gob must be told the concrete types it will see
// flowing through those fields, since it is not aware of them from the
// struct definition alone.
func init() {
	gob.Register(int64(0))
	gob.Register(float64(0))
	gob.Register("")
	gob.Register([]byte(nil))
	gob.Register(true)
}
