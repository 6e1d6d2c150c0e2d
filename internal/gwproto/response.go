package gwproto

// ErrCode is the small, SQLite-compatible error code space carried in
// FAILURE responses. Values mirror the codes the real wire protocol
// uses (see the driver-side enumeration in cowsql's client driver):
// mostly plain SQLite primary result codes, plus a few gateway-local
// protocol codes above the SQLite range.
type ErrCode uint64

const (
	ErrCodeOK       ErrCode = 0
	ErrCodeError    ErrCode = 1 // SQLITE_ERROR
	ErrCodeBusy     ErrCode = 5 // SQLITE_BUSY
	ErrCodeNoMem    ErrCode = 7 // SQLITE_NOMEM
	ErrCodeNotFound ErrCode = 12 // SQLITE_NOTFOUND

	// ErrCodeProtocol is a gateway-local code (outside the SQLite
	// primary-result-code range) for slot-admission and framing
	// failures that never reach the wire as a FAILURE response.
	ErrCodeProtocol ErrCode = 0xFFFF
)

// RowsMark distinguishes a partial batch from the terminal batch of a
// streaming query response.
type RowsMark int

const (
	RowsPart RowsMark = iota
	RowsDone
)

// Row is one decoded result row, as a slice of column values in
// statement-declared column order.
type Row []any

// Response is a closed sum type: exactly one field group is populated,
// selected by Variant. Ownership of any heap-backed data (Server's
// Address, Servers' List) belongs to the Response until it has been
// flushed — see gateway.Gateway.Flushed.
type Response struct {
	Variant Variant

	// Failure
	Code    ErrCode
	Message string

	// Server
	Address string

	// Servers
	List []Peer

	// Welcome
	HeartbeatTimeout int64

	// DB
	DBID uint32

	// Stmt
	StmtDB     uint32
	StmtID     uint32
	StmtParams uint64

	// Result
	LastInsertID int64
	RowsAffected int64

	// Rows
	Rows []Row
	Mark RowsMark
}

// Variant is the discriminant of Response.
type Variant int

const (
	VariantFailure Variant = iota
	VariantServer
	VariantServers
	VariantWelcome
	VariantDB
	VariantStmt
	VariantResult
	VariantRows
	VariantEmpty
)

// Peer is one entry of a Servers response: a cluster member's id and
// dial address.
type Peer struct {
	ID      uint64
	Address string
}
