// Package gwproto defines the gateway's request and response payloads.
//
// These are the decoded, in-memory shapes of the wire protocol described
// by github.com/canonical/dqlite: a request always targets one of the
// opcodes below, and a handler always produces exactly one of the
// Response variants. Encoding these to and from bytes is the concern of
// package wire, not this package — gwproto only names the shapes the
// gateway core operates on.
package gwproto

// Type identifies the kind of a Request, and therefore which slot it
// targets and which handler processes it.
type Type int

const (
	TypeLeader Type = iota
	TypeClient
	TypeHeartbeat
	TypeOpen
	TypePrepare
	TypeExec
	TypeQuery
	TypeFinalize
	TypeExecSQL
	TypeQuerySQL
	TypeInterrupt
)

// String returns the opcode name, used in "invalid request type" errors
// and in log lines.
func (t Type) String() string {
	switch t {
	case TypeLeader:
		return "Leader"
	case TypeClient:
		return "Client"
	case TypeHeartbeat:
		return "Heartbeat"
	case TypeOpen:
		return "Open"
	case TypePrepare:
		return "Prepare"
	case TypeExec:
		return "Exec"
	case TypeQuery:
		return "Query"
	case TypeFinalize:
		return "Finalize"
	case TypeExecSQL:
		return "ExecSQL"
	case TypeQuerySQL:
		return "QuerySQL"
	case TypeInterrupt:
		return "Interrupt"
	default:
		return "Unknown"
	}
}

// Slot reports which request-context slot a request type targets.
// Slot 0 is data-plane, slot 1 is control-plane.
func (t Type) Slot() int {
	switch t {
	case TypeHeartbeat, TypeInterrupt:
		return 1
	default:
		return 0
	}
}

// Value is a single bound parameter. Name is empty for positional
// parameters, which is all the wire protocol currently sends.
type Value struct {
	Name string
	Data any
}

// Request is the decoded form of one inbound protocol message. Exactly
// one of the typed payload fields is meaningful, selected by Type.
type Request struct {
	Type Type

	// Client
	ClientID uint64

	// Heartbeat
	Timestamp int64

	// Open
	Name  string
	Flags uint64
	VFS   string

	// Prepare / ExecSQL / QuerySQL
	SQL string

	// Prepare / Exec / Query / Finalize / ExecSQL / QuerySQL / Interrupt
	DB   uint32
	Stmt uint32

	// Exec / Query / ExecSQL / QuerySQL
	Values []Value
}
