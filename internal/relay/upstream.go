package relay

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/HsiangNianian/simid-bridge/internal/engine"
	"github.com/HsiangNianian/simid-bridge/internal/transport/wsconn"
)

const defaultReconnectInterval = 5 * time.Second

// Upstream keeps one client connection to a relay alive.
type Upstream struct {
	URL               string
	AuthToken         string
	ReconnectInterval time.Duration
	Log               *zap.Logger
}

// AttachFunc wires a fresh connection in and returns how to unwire it.
type AttachFunc func(conn *wsconn.Conn) (detach func())

// Run dials the relay, hands each live connection to attach, and redials
// every ReconnectInterval after a failure or drop until ctx ends. Only a
// refused auth or malformed request ends it early.
func (u Upstream) Run(ctx context.Context, attach AttachFunc) error {
	interval := u.ReconnectInterval
	if interval <= 0 {
		interval = defaultReconnectInterval
	}
	log := u.Log
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("url", u.URL))

	for {
		if ctx.Err() != nil {
			return nil
		}

		conn, err := wsconn.Dial(ctx, u.URL, u.AuthToken, log)
		if err != nil {
			if permanent(err) {
				return err
			}
			log.Warn("connect upstream failed", zap.Error(err))
			if !sleep(ctx, interval) {
				return nil
			}
			continue
		}
		log.Info("upstream connected")

		detach := attach(conn)
		err = conn.Run(ctx)
		detach()
		_ = conn.Close()
		if ctx.Err() != nil {
			return nil
		}
		log.Info("upstream disconnected", zap.Error(err))
		if !sleep(ctx, interval) {
			return nil
		}
	}
}

// BindEngine points e at each new connection and detaches it on drop.
// Session state, listeners and pending requests are left alone, so an
// active session carries across a reconnect.
func BindEngine(e *engine.Engine) AttachFunc {
	return func(conn *wsconn.Conn) func() {
		stop := e.Listen(conn)
		e.SetTarget(conn)
		return func() {
			e.SetTarget(nil)
			stop()
		}
	}
}

func permanent(err error) bool {
	var dialErr *wsconn.DialError
	if !errors.As(err, &dialErr) {
		return false
	}
	return dialErr.StatusCode == http.StatusUnauthorized || dialErr.StatusCode == http.StatusBadRequest
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
