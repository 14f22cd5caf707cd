package wsconn

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HsiangNianian/simid-bridge/internal/transport"
)

func echoServer(t *testing.T, token string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn := New(ws, nil)
		conn.Subscribe(func(raw string) { _ = conn.Post("echo:" + raw) })
		_ = conn.Run(context.Background())
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestConnRoundTrip(t *testing.T) {
	srv := echoServer(t, "secret")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := Dial(ctx, wsURL(srv), "secret", nil)
	require.NoError(t, err)
	got := make(chan string, 1)
	c.Subscribe(func(raw string) { got <- raw })

	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.NoError(t, c.Post(`{"type":"createSession"}`))
	select {
	case raw := <-got:
		assert.Equal(t, `echo:{"type":"createSession"}`, raw)
	case <-ctx.Done():
		t.Fatal("no echo received")
	}

	require.NoError(t, c.Close())
	assert.NoError(t, <-done)
	assert.ErrorIs(t, c.Post("late"), transport.ErrClosed)
}

func TestDialUnauthorized(t *testing.T) {
	srv := echoServer(t, "secret")
	_, err := Dial(context.Background(), wsURL(srv), "wrong", nil)
	var dialErr *DialError
	require.True(t, errors.As(err, &dialErr))
	assert.Equal(t, http.StatusUnauthorized, dialErr.StatusCode)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	srv := echoServer(t, "")
	ctx, cancel := context.WithCancel(context.Background())
	c, err := Dial(ctx, wsURL(srv), "", nil)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop")
	}
}
