package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/HsiangNianian/simid-bridge/internal/protocol"
)

func TestDispatchInRegistrationOrder(t *testing.T) {
	r := NewRegistry(nil)
	var order []string
	r.Add("foo", func(protocol.Envelope) { order = append(order, "A") })
	r.Add("foo", func(protocol.Envelope) { order = append(order, "B") })
	r.Add("bar", func(protocol.Envelope) { order = append(order, "bar") })

	n := r.Dispatch("foo", protocol.Envelope{MessageID: 2, Type: "NS:foo"})
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"A", "B"}, order)
}

func TestDispatchKeepsDuplicates(t *testing.T) {
	r := NewRegistry(nil)
	calls := 0
	fn := func(protocol.Envelope) { calls++ }
	r.Add("foo", fn)
	r.Add("foo", fn)
	r.Add("foo", nil)

	assert.Equal(t, 2, r.Len("foo"))
	r.Dispatch("foo", protocol.Envelope{})
	assert.Equal(t, 2, calls)
}

func TestDispatchSurvivesPanickingListener(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	r := NewRegistry(zap.New(core))
	var got []string
	r.Add("foo", func(protocol.Envelope) {
		got = append(got, "A")
		panic("creative blew up")
	})
	r.Add("foo", func(protocol.Envelope) { got = append(got, "B") })

	n := r.Dispatch("foo", protocol.Envelope{MessageID: 3})
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"A", "B"}, got)
	assert.Equal(t, 1, logs.FilterMessage("listener failed").Len())
}

func TestDispatchWithoutListenersLogsDiagnostic(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	r := NewRegistry(zap.New(core))

	n := r.Dispatch("unknown", protocol.Envelope{MessageID: 4, SessionID: "S1"})
	assert.Zero(t, n)
	entries := logs.FilterMessage("no listeners for message, dropped").All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, "unknown", entries[0].ContextMap()["type"])
	}
}

func TestClearDropsListeners(t *testing.T) {
	r := NewRegistry(nil)
	r.Add("foo", func(protocol.Envelope) {})
	r.Clear()
	assert.Zero(t, r.Len("foo"))
	assert.Nil(t, r.Snapshot("foo"))
}

func TestSnapshotIsIsolated(t *testing.T) {
	r := NewRegistry(nil)
	r.Add("foo", func(protocol.Envelope) {})
	snap := r.Snapshot("foo")
	r.Add("foo", func(protocol.Envelope) {})
	assert.Len(t, snap, 1)
	assert.Equal(t, 2, r.Len("foo"))
}
