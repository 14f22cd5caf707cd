// Package session owns the session identifier and the handshake state
// that gates inbound traffic.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/HsiangNianian/simid-bridge/internal/protocol"
)

var (
	ErrHandshakeInProgress = errors.New("session handshake already in progress")
	ErrSessionActive       = errors.New("session already active")
)

type State int

const (
	Uninitialized State = iota
	Requested
	Active
)

func (s State) String() string {
	switch s {
	case Requested:
		return "SESSION_REQUESTED"
	case Active:
		return "SESSION_ACTIVE"
	default:
		return "UNINITIALIZED"
	}
}

// NewID returns a random UUID-v4 string.
func NewID() string {
	id, err := uuid.NewRandom()
	if err != nil {
		return fmt.Sprintf("session-%d", time.Now().UTC().UnixNano())
	}
	return id.String()
}

// Manager tracks one session lifecycle. It is not safe for concurrent use.
type Manager struct {
	state       State
	id          string
	proposed    string
	handshakeID int
}

func NewManager() *Manager {
	return &Manager{}
}

func (m *Manager) State() State {
	return m.state
}

// ID is the canonical session id, empty until a session is active.
func (m *Manager) ID() string {
	return m.id
}

// Proposed is the id offered in the outstanding createSession request.
func (m *Manager) Proposed() string {
	return m.proposed
}

// Begin moves UNINITIALIZED to SESSION_REQUESTED for the createSession
// message handshakeID.
func (m *Manager) Begin(proposed string, handshakeID int) error {
	switch m.state {
	case Requested:
		return ErrHandshakeInProgress
	case Active:
		return ErrSessionActive
	}
	m.state = Requested
	m.proposed = proposed
	m.handshakeID = handshakeID
	return nil
}

// Abort returns an unanswered or rejected handshake to UNINITIALIZED.
func (m *Manager) Abort(handshakeID int) {
	if m.state == Requested && m.handshakeID == handshakeID {
		m.Reset()
	}
}

// Adopt activates the session. An empty id falls back to the proposed one.
func (m *Manager) Adopt(id string) {
	if id == "" {
		id = m.proposed
	}
	m.id = id
	m.state = Active
	m.proposed = ""
	m.handshakeID = 0
}

func (m *Manager) Reset() {
	*m = Manager{}
}

// IsHandshakeReply reports whether env answers the outstanding
// createSession request.
func (m *Manager) IsHandshakeReply(kind protocol.Kind, env protocol.Envelope) bool {
	return m.state == Requested &&
		(kind == protocol.KindResolve || kind == protocol.KindReject) &&
		env.MessageID == m.handshakeID
}

// Validate decides whether env may touch engine state at all.
func (m *Manager) Validate(kind protocol.Kind, env protocol.Envelope) bool {
	if m.id == "" {
		if kind == protocol.KindCreateSession && m.state == Uninitialized {
			return true
		}
		return m.IsHandshakeReply(kind, env)
	}
	return env.SessionID == m.id
}
