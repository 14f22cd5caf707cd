package commands

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/HsiangNianian/simid-bridge/internal/bus"
	"github.com/HsiangNianian/simid-bridge/internal/engine"
	"github.com/HsiangNianian/simid-bridge/internal/relay"
	"github.com/HsiangNianian/simid-bridge/internal/transport"
	"github.com/HsiangNianian/simid-bridge/internal/transport/wsconn"
)

// link drives an engine over one attachment until ctx ends. ready fires
// each time the engine is wired to a live transport.
type link struct {
	run   func(ctx context.Context, e *engine.Engine, ready func()) error
	close func() error
}

func newEngine(t transport.Target) *engine.Engine {
	policy, _ := engine.ParseResetPolicy(cfg.Engine.ResetPolicy)
	return engine.New(t,
		engine.WithNamespace(cfg.Engine.Namespace),
		engine.WithRequestTypes(cfg.Engine.RequestTypes...),
		engine.WithResetPolicy(policy),
		engine.WithLogger(logger.With(zap.String("component", "engine"))),
	)
}

// connect attaches as role, either straight onto the redis bus or through
// the websocket relay. Relay connections are redialed after a drop.
func connect(ctx context.Context, role bus.Role, viaBus bool) (*link, error) {
	room := cfg.Client.Room
	if viaBus {
		if cfg.Bus.RedisAddr == "" {
			return nil, fmt.Errorf("--via-bus needs bus.redis_addr")
		}
		rb := bus.NewRedisBus(cfg.Bus.RedisAddr, cfg.Bus.ChannelPrefix, logger)
		ep, err := bus.NewEndpoint(ctx, rb, bus.InboxChannel(room, role.Peer()), bus.InboxChannel(room, role))
		if err != nil {
			_ = rb.Close()
			return nil, err
		}
		logger.Info("attached to bus", zap.String("room", room), zap.String("role", string(role)))
		return &link{
			run: func(ctx context.Context, e *engine.Engine, ready func()) error {
				defer e.Listen(ep)()
				e.SetTarget(ep)
				ready()
				<-ctx.Done()
				return nil
			},
			close: func() error {
				_ = ep.Close()
				return rb.Close()
			},
		}, nil
	}

	target, err := relayURL(cfg.Client.RelayURL, role, room)
	if err != nil {
		return nil, err
	}
	up := relay.Upstream{
		URL:               target,
		AuthToken:         cfg.Client.AuthToken,
		ReconnectInterval: cfg.Client.ReconnectInterval(),
		Log:               logger.With(zap.String("role", string(role))),
	}
	return &link{
		run: func(ctx context.Context, e *engine.Engine, ready func()) error {
			bind := relay.BindEngine(e)
			return up.Run(ctx, func(conn *wsconn.Conn) func() {
				detach := bind(conn)
				ready()
				return detach
			})
		},
		close: func() error { return nil },
	}, nil
}

func relayURL(base string, role bus.Role, room string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid relay url %q: %w", base, err)
	}
	path := cfg.Relay.PlayerPath
	if role == bus.RoleCreative {
		path = cfg.Relay.CreativePath
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	q := u.Query()
	q.Set("room", room)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
