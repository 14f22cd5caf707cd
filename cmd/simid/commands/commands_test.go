package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HsiangNianian/simid-bridge/internal/bus"
	"github.com/HsiangNianian/simid-bridge/internal/config"
)

func TestParseSends(t *testing.T) {
	msgs, err := parseSends([]string{"Creative:getMediaState", `Creative:log={"message":"a=b"}`})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "Creative:getMediaState", msgs[0].Type)
	assert.Nil(t, msgs[0].Args)
	assert.Equal(t, "Creative:log", msgs[1].Type)
	assert.JSONEq(t, `{"message":"a=b"}`, string(msgs[1].Args))

	_, err = parseSends([]string{"=1"})
	assert.Error(t, err)
	_, err = parseSends([]string{"Creative:log={oops"})
	assert.Error(t, err)
}

func TestRelayURL(t *testing.T) {
	cfg = config.Default()
	cfg.Relay.PlayerPath = "/ws/player"
	cfg.Relay.CreativePath = "/ws/creative"

	u, err := relayURL("ws://relay.test:8080/", bus.RoleCreative, "ad break 1")
	require.NoError(t, err)
	assert.Equal(t, "ws://relay.test:8080/ws/creative?room=ad+break+1", u)

	u, err = relayURL("wss://edge.test/simid", bus.RolePlayer, "r1")
	require.NoError(t, err)
	assert.Equal(t, "wss://edge.test/simid/ws/player?room=r1", u)
}
