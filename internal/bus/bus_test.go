package bus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HsiangNianian/simid-bridge/internal/engine"
	"github.com/HsiangNianian/simid-bridge/internal/protocol"
)

func TestMemoryBusPublishSubscribe(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBus()
	var got []string
	unsub, err := b.Subscribe(ctx, "room:a:player", func(p string) { got = append(got, p) })
	require.NoError(t, err)

	require.NoError(t, b.Publish(ctx, "room:a:player", "one"))
	require.NoError(t, b.Publish(ctx, "room:a:creative", "elsewhere"))
	unsub()
	require.NoError(t, b.Publish(ctx, "room:a:player", "two"))

	assert.Equal(t, []string{"one"}, got)
}

func TestMemoryBusClaims(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBus()
	now := time.Unix(1700000000, 0)
	b.now = func() time.Time { return now }
	key := ClaimKey("a", RolePlayer)

	ok, err := b.Claim(ctx, key, "conn-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.Claim(ctx, key, "conn-2", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// Refresh by the holder succeeds.
	ok, err = b.Claim(ctx, key, "conn-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, b.Release(ctx, key, "conn-2"))
	ok, _ = b.Claim(ctx, key, "conn-2", time.Minute)
	assert.False(t, ok, "release by non-owner must not free the claim")

	now = now.Add(2 * time.Minute)
	ok, _ = b.Claim(ctx, key, "conn-2", time.Minute)
	assert.True(t, ok, "expired claim can be taken")

	require.NoError(t, b.Release(ctx, key, "conn-2"))
	ok, _ = b.Claim(ctx, key, "conn-3", time.Minute)
	assert.True(t, ok)
}

func TestRoles(t *testing.T) {
	assert.Equal(t, RoleCreative, RolePlayer.Peer())
	assert.Equal(t, RolePlayer, RoleCreative.Peer())
	assert.True(t, RolePlayer.Valid())
	assert.False(t, Role("host").Valid())
	assert.Equal(t, "room:a:creative", InboxChannel("a", RoleCreative))
}

func TestEndpointsCarryHandshake(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBus()

	playerEnd, err := NewEndpoint(ctx, b, InboxChannel("r1", RoleCreative), InboxChannel("r1", RolePlayer))
	require.NoError(t, err)
	defer playerEnd.Close()
	creativeEnd, err := NewEndpoint(ctx, b, InboxChannel("r1", RolePlayer), InboxChannel("r1", RoleCreative))
	require.NoError(t, err)
	defer creativeEnd.Close()

	player := engine.New(playerEnd)
	creative := engine.New(creativeEnd)
	defer player.Listen(playerEnd)()
	defer creative.Listen(creativeEnd)()
	player.AddListener(protocol.CreateSession, func(env protocol.Envelope) {
		_ = player.Resolve(env, nil)
	})

	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	id, err := creative.CreateSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, player.SessionID())
}
