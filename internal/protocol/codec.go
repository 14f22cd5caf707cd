package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidEnvelope = errors.New("invalid envelope")
	ErrEmptyType       = errors.New("message type is required")
)

// Codec encodes and decodes envelopes for one namespace.
type Codec struct {
	namespace string
}

func NewCodec(namespace string) Codec {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return Codec{namespace: namespace}
}

// WireType returns the on-the-wire form of a bare type. createSession is
// the only type sent without the namespace.
func (c Codec) WireType(bare string) string {
	if bare == CreateSession || strings.HasPrefix(bare, c.namespace) {
		return bare
	}
	return c.namespace + bare
}

// Classify splits a wire type into its kind and bare type. resolve and
// reject are accepted both bare and namespaced.
func (c Codec) Classify(wireType string) (Kind, string) {
	bare, namespaced := strings.CutPrefix(wireType, c.namespace)
	switch {
	case !namespaced && bare == CreateSession:
		return KindCreateSession, CreateSession
	case bare == Resolve:
		return KindResolve, Resolve
	case bare == Reject:
		return KindReject, Reject
	case bare == CreateSession:
		return KindForeign, wireType
	case namespaced && bare != "":
		return KindDomain, bare
	default:
		return KindForeign, wireType
	}
}

// Encode builds the wire string for one outbound message.
func (c Codec) Encode(msgType string, args any, sessionID string, messageID int) (string, error) {
	if msgType == "" {
		return "", ErrEmptyType
	}
	payload, err := marshalArgs(args)
	if err != nil {
		return "", fmt.Errorf("encode args for %s: %w", msgType, err)
	}
	env := Envelope{
		SessionID: sessionID,
		MessageID: messageID,
		Type:      c.WireType(msgType),
		Args:      payload,
	}
	b, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("encode envelope: %w", err)
	}
	return string(b), nil
}

type wireEnvelope struct {
	SessionID *string         `json:"sessionId"`
	MessageID *int            `json:"messageId"`
	Type      *string         `json:"type"`
	Args      json.RawMessage `json:"args"`
}

// Decode parses a wire string. Anything that is not a complete envelope
// yields ErrInvalidEnvelope.
func (c Codec) Decode(raw string) (Envelope, error) {
	var w wireEnvelope
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	if w.SessionID == nil || w.MessageID == nil || w.Type == nil || *w.Type == "" {
		return Envelope{}, fmt.Errorf("%w: missing required field", ErrInvalidEnvelope)
	}
	return Envelope{
		SessionID: *w.SessionID,
		MessageID: *w.MessageID,
		Type:      *w.Type,
		Args:      w.Args,
	}, nil
}

func marshalArgs(args any) (json.RawMessage, error) {
	switch v := args.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return v, nil
	case []byte:
		if !json.Valid(v) {
			return nil, errors.New("args bytes are not valid JSON")
		}
		return v, nil
	}
	return json.Marshal(args)
}
