// Package relay forwards wire strings between a player and a creative that
// join the same room over websockets. Forwarding goes through a bus so the
// two sides may be attached to different relay instances.
package relay

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/HsiangNianian/simid-bridge/internal/bus"
	"github.com/HsiangNianian/simid-bridge/internal/protocol"
	"github.com/HsiangNianian/simid-bridge/internal/session"
	"github.com/HsiangNianian/simid-bridge/internal/transport/wsconn"
)

const defaultClaimTTL = 30 * time.Second

type Hub struct {
	bus        bus.Bus
	authToken  string
	instanceID string
	claimTTL   time.Duration
	log        *zap.Logger
	codec      protocol.Codec

	upgrader websocket.Upgrader

	connMu sync.RWMutex
	conns  map[string]*wsconn.Conn
}

func NewHub(b bus.Bus, authToken string, claimTTL time.Duration, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	if claimTTL <= 0 {
		claimTTL = defaultClaimTTL
	}
	return &Hub{
		bus:        b,
		authToken:  authToken,
		instanceID: session.NewID(),
		claimTTL:   claimTTL,
		log:        log,
		codec:      protocol.NewCodec(""),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
		conns: make(map[string]*wsconn.Conn),
	}
}

func (h *Hub) HandlePlayer(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, bus.RolePlayer)
}

func (h *Hub) HandleCreative(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, bus.RoleCreative)
}

// Count returns the number of connections attached to this instance.
func (h *Hub) Count() int {
	h.connMu.RLock()
	defer h.connMu.RUnlock()
	return len(h.conns)
}

func (h *Hub) handle(w http.ResponseWriter, r *http.Request, role bus.Role) {
	if h.authToken != "" && r.Header.Get("Authorization") != "Bearer "+h.authToken {
		h.log.Info("unauthorized", zap.String("role", string(role)), zap.String("remote", r.RemoteAddr))
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	room := r.URL.Query().Get("room")
	if room == "" {
		http.Error(w, "room is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	key := bus.ClaimKey(room, role)
	owner := h.instanceID + "/" + session.NewID()
	claimed, err := h.bus.Claim(ctx, key, owner, h.claimTTL)
	if err != nil {
		h.log.Error("claim failed", zap.String("room", room), zap.String("role", string(role)), zap.Error(err))
		http.Error(w, "claim failed", http.StatusServiceUnavailable)
		return
	}
	if !claimed {
		h.log.Info("role already taken", zap.String("room", room), zap.String("role", string(role)))
		http.Error(w, "role already connected", http.StatusConflict)
		return
	}
	defer func() {
		if err := h.bus.Release(context.WithoutCancel(ctx), key, owner); err != nil {
			h.log.Warn("release claim failed", zap.String("room", room), zap.Error(err))
		}
	}()

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("upgrade failed", zap.String("role", string(role)), zap.Error(err))
		return
	}
	conn := wsconn.New(ws, h.log)
	h.serve(context.WithoutCancel(ctx), conn, room, role, key, owner)
}

func (h *Hub) serve(ctx context.Context, conn *wsconn.Conn, room string, role bus.Role, key, owner string) {
	log := h.log.With(zap.String("room", room), zap.String("role", string(role)))
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer func() { _ = conn.Close() }()

	unsubscribe, err := h.bus.Subscribe(ctx, bus.InboxChannel(room, role), func(payload string) {
		h.logEvent(log, "forward bus->"+string(role), payload)
		if err := conn.Post(payload); err != nil {
			log.Warn("write failed", zap.Error(err))
		}
	})
	if err != nil {
		log.Error("subscribe failed", zap.Error(err))
		return
	}
	defer unsubscribe()

	peer := bus.InboxChannel(room, role.Peer())
	conn.Subscribe(func(raw string) {
		h.logEvent(log, "recv "+string(role)+"->bus", raw)
		if err := h.bus.Publish(ctx, peer, raw); err != nil {
			log.Warn("publish failed", zap.Error(err))
		}
	})

	// Registered only once both directions are wired.
	h.connMu.Lock()
	h.conns[owner] = conn
	count := len(h.conns)
	h.connMu.Unlock()
	log.Info("connected", zap.String("remote", conn.RemoteAddr()), zap.Int("active", count))

	defer func() {
		h.connMu.Lock()
		delete(h.conns, owner)
		count := len(h.conns)
		h.connMu.Unlock()
		log.Info("disconnected", zap.Int("active", count))
	}()

	go h.keepClaim(ctx, log, conn, key, owner)

	if err := conn.Run(ctx); err != nil {
		log.Info("read failed", zap.Error(err))
	}
}

// keepClaim refreshes the role claim for as long as conn is open and drops
// conn once another owner holds the claim.
func (h *Hub) keepClaim(ctx context.Context, log *zap.Logger, conn *wsconn.Conn, key, owner string) {
	interval := h.claimTTL / 3
	if interval <= 0 {
		interval = h.claimTTL
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		ok, err := h.bus.Claim(ctx, key, owner, h.claimTTL)
		if err != nil {
			if ctx.Err() == nil {
				log.Warn("refresh claim failed", zap.Error(err))
			}
			continue
		}
		if !ok {
			log.Warn("claim lost, dropping connection")
			_ = conn.Close()
			return
		}
	}
}

// Close drops every connection attached to this instance.
func (h *Hub) Close() {
	h.connMu.RLock()
	conns := make([]*wsconn.Conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.connMu.RUnlock()
	for _, c := range conns {
		_ = c.Close()
	}
}

func (h *Hub) logEvent(log *zap.Logger, prefix, raw string) {
	env, err := h.codec.Decode(raw)
	if err != nil {
		log.Debug(prefix, zap.Bool("envelope", false), zap.Int("bytes", len(raw)))
		return
	}
	log.Debug(prefix,
		zap.String("type", env.Type),
		zap.Int("msg_id", env.MessageID),
		zap.String("session_id", env.SessionID),
	)
}
