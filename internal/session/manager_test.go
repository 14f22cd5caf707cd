package session

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HsiangNianian/simid-bridge/internal/protocol"
)

func TestNewIDIsUUIDv4(t *testing.T) {
	a, b := NewID(), NewID()
	assert.NotEqual(t, a, b)
	parsed, err := uuid.Parse(a)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(4), parsed.Version())
}

func TestHandshakeLifecycle(t *testing.T) {
	m := NewManager()
	assert.Equal(t, Uninitialized, m.State())

	require.NoError(t, m.Begin("P1", 1))
	assert.Equal(t, Requested, m.State())
	assert.Equal(t, "P1", m.Proposed())
	assert.ErrorIs(t, m.Begin("P2", 2), ErrHandshakeInProgress)

	m.Adopt("S1")
	assert.Equal(t, Active, m.State())
	assert.Equal(t, "S1", m.ID())
	assert.ErrorIs(t, m.Begin("P3", 3), ErrSessionActive)

	m.Reset()
	assert.Equal(t, Uninitialized, m.State())
	assert.Empty(t, m.ID())
}

func TestAdoptFallsBackToProposed(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Begin("P1", 1))
	m.Adopt("")
	assert.Equal(t, "P1", m.ID())
}

func TestAbortOnlyMatchingHandshake(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Begin("P1", 4))
	m.Abort(5)
	assert.Equal(t, Requested, m.State())
	m.Abort(4)
	assert.Equal(t, Uninitialized, m.State())
}

func TestValidateUnset(t *testing.T) {
	m := NewManager()
	assert.True(t, m.Validate(protocol.KindCreateSession, protocol.Envelope{SessionID: "X", Type: protocol.CreateSession}))
	assert.False(t, m.Validate(protocol.KindDomain, protocol.Envelope{SessionID: "", Type: "NS:foo"}))
	assert.False(t, m.Validate(protocol.KindResolve, protocol.Envelope{SessionID: "S1", MessageID: 1}))
}

func TestValidateRequested(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Begin("P1", 1))

	assert.True(t, m.Validate(protocol.KindResolve, protocol.Envelope{SessionID: "S1", MessageID: 1}))
	assert.True(t, m.Validate(protocol.KindReject, protocol.Envelope{SessionID: "", MessageID: 1}))
	assert.False(t, m.Validate(protocol.KindResolve, protocol.Envelope{SessionID: "S1", MessageID: 2}))
	assert.False(t, m.Validate(protocol.KindDomain, protocol.Envelope{SessionID: "P1", MessageID: 1}))
	assert.False(t, m.Validate(protocol.KindCreateSession, protocol.Envelope{SessionID: "X"}))
}

func TestValidateActive(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Begin("P1", 1))
	m.Adopt("S1")

	assert.True(t, m.Validate(protocol.KindDomain, protocol.Envelope{SessionID: "S1"}))
	assert.True(t, m.Validate(protocol.KindResolve, protocol.Envelope{SessionID: "S1", MessageID: 9}))
	assert.False(t, m.Validate(protocol.KindDomain, protocol.Envelope{SessionID: "S2"}))
	assert.False(t, m.Validate(protocol.KindCreateSession, protocol.Envelope{SessionID: "S2"}))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "UNINITIALIZED", Uninitialized.String())
	assert.Equal(t, "SESSION_REQUESTED", Requested.String())
	assert.Equal(t, "SESSION_ACTIVE", Active.String())
}
