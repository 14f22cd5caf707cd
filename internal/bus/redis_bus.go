package bus

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// releaseScript deletes a claim only when the caller still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisBus struct {
	client *redis.Client
	prefix string
	log    *zap.Logger
}

func NewRedisBus(addr, prefix string, log *zap.Logger) *RedisBus {
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisBus{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		prefix: prefix,
		log:    log,
	}
}

func (r *RedisBus) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisBus) Publish(ctx context.Context, channel, payload string) error {
	return r.client.Publish(ctx, r.prefix+channel, payload).Err()
}

func (r *RedisBus) Subscribe(ctx context.Context, channel string, fn func(string)) (func(), error) {
	ps := r.client.Subscribe(ctx, r.prefix+channel)
	// Wait for the subscription confirmation so nothing published after
	// Subscribe returns is missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}
	go func() {
		for msg := range ps.Channel() {
			fn(msg.Payload)
		}
		r.log.Debug("bus subscription closed", zap.String("channel", channel))
	}()
	return func() { _ = ps.Close() }, nil
}

func (r *RedisBus) Claim(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	k := r.prefix + key
	ok, err := r.client.SetNX(ctx, k, owner, ttl).Result()
	if err != nil || ok {
		return ok, err
	}
	current, err := r.client.Get(ctx, k).Result()
	if err == redis.Nil {
		return r.client.SetNX(ctx, k, owner, ttl).Result()
	}
	if err != nil {
		return false, err
	}
	if current != owner {
		return false, nil
	}
	return true, r.client.Expire(ctx, k, ttl).Err()
}

func (r *RedisBus) Release(ctx context.Context, key, owner string) error {
	return releaseScript.Run(ctx, r.client, []string{r.prefix + key}, owner).Err()
}

func (r *RedisBus) Close() error {
	return r.client.Close()
}
