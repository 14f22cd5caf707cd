package protocol

import "encoding/json"

// Reserved protocol-level message types.
const (
	CreateSession = "createSession"
	Resolve       = "resolve"
	Reject        = "reject"
)

// DefaultNamespace is prefixed to every wire type except createSession.
const DefaultNamespace = "SIMID:"

// Envelope is the unit carried across the boundary. Type holds the wire
// form, namespace included.
type Envelope struct {
	SessionID string          `json:"sessionId"`
	MessageID int             `json:"messageId"`
	Type      string          `json:"type"`
	Args      json.RawMessage `json:"args,omitempty"`
}

// Kind classifies a wire type.
type Kind int

const (
	KindForeign Kind = iota
	KindCreateSession
	KindResolve
	KindReject
	KindDomain
)

func (k Kind) String() string {
	switch k {
	case KindCreateSession:
		return "create_session"
	case KindResolve:
		return "resolve"
	case KindReject:
		return "reject"
	case KindDomain:
		return "domain"
	default:
		return "foreign"
	}
}

// IsProtocol reports whether k is one of the reserved control kinds.
func (k Kind) IsProtocol() bool {
	return k == KindCreateSession || k == KindResolve || k == KindReject
}
