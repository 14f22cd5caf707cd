package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipeDeliversToPeer(t *testing.T) {
	player, creative := Pipe()
	var atCreative, atPlayer []string
	creative.Subscribe(func(raw string) { atCreative = append(atCreative, raw) })
	player.Subscribe(func(raw string) { atPlayer = append(atPlayer, raw) })

	require.NoError(t, player.Post("hello"))
	require.NoError(t, creative.Post("back"))

	assert.Equal(t, []string{"hello"}, atCreative)
	assert.Equal(t, []string{"back"}, atPlayer)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	a, b := Pipe()
	n := 0
	stop := b.Subscribe(func(string) { n++ })
	require.NoError(t, a.Post("1"))
	stop()
	stop()
	require.NoError(t, a.Post("2"))
	assert.Equal(t, 1, n)
	assert.Zero(t, b.Len())
}

func TestFanoutOrder(t *testing.T) {
	var f Fanout
	var got []int
	f.Subscribe(func(string) { got = append(got, 1) })
	stop := f.Subscribe(func(string) { got = append(got, 2) })
	f.Subscribe(func(string) { got = append(got, 3) })
	stop()

	assert.Equal(t, 2, f.Deliver("x"))
	assert.Equal(t, []int{1, 3}, got)
}

func TestClosedEndpoint(t *testing.T) {
	a, _ := Pipe()
	require.NoError(t, a.Close())
	assert.ErrorIs(t, a.Post("x"), ErrClosed)
}

func TestRecorderAndTargetFunc(t *testing.T) {
	var r Recorder
	var tgt Target = TargetFunc(r.Post)
	require.NoError(t, tgt.Post("a"))
	require.NoError(t, tgt.Post("b"))
	assert.Equal(t, []string{"a", "b"}, r.Sent())
}
