// Package bus carries wire strings between relay instances and keeps the
// per-room role claims that stop two players joining one room.
package bus

import (
	"context"
	"sync"
	"time"

	"github.com/HsiangNianian/simid-bridge/internal/transport"
)

type Bus interface {
	Publish(ctx context.Context, channel, payload string) error
	// Subscribe delivers payloads published on channel to fn until the
	// returned func is called.
	Subscribe(ctx context.Context, channel string, fn func(payload string)) (unsubscribe func(), err error)
	// Claim takes key for owner if free or expired.
	Claim(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	// Release frees key if owner still holds it.
	Release(ctx context.Context, key, owner string) error
	Close() error
}

type claim struct {
	owner    string
	expireAt time.Time
}

// MemoryBus is a single-process Bus.
type MemoryBus struct {
	mu       sync.RWMutex
	channels map[string]*transport.Fanout
	claims   map[string]claim
	now      func() time.Time
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		channels: make(map[string]*transport.Fanout),
		claims:   make(map[string]claim),
		now:      time.Now,
	}
}

func (m *MemoryBus) Publish(_ context.Context, channel, payload string) error {
	m.mu.RLock()
	f := m.channels[channel]
	m.mu.RUnlock()
	if f != nil {
		f.Deliver(payload)
	}
	return nil
}

func (m *MemoryBus) Subscribe(_ context.Context, channel string, fn func(string)) (func(), error) {
	m.mu.Lock()
	f, ok := m.channels[channel]
	if !ok {
		f = &transport.Fanout{}
		m.channels[channel] = f
	}
	m.mu.Unlock()
	return f.Subscribe(fn), nil
}

func (m *MemoryBus) Claim(_ context.Context, key, owner string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if c, ok := m.claims[key]; ok && c.owner != owner && now.Before(c.expireAt) {
		return false, nil
	}
	m.claims[key] = claim{owner: owner, expireAt: now.Add(ttl)}
	return true, nil
}

func (m *MemoryBus) Release(_ context.Context, key, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.claims[key]; ok && c.owner == owner {
		delete(m.claims, key)
	}
	return nil
}

func (m *MemoryBus) Close() error {
	return nil
}
