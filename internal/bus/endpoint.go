package bus

import (
	"context"

	"github.com/HsiangNianian/simid-bridge/internal/transport"
)

// Endpoint exposes a pair of bus channels as a transport: Post publishes
// on the outbound channel and subscribers see the inbound channel.
type Endpoint struct {
	transport.Fanout

	ctx         context.Context
	bus         Bus
	outbound    string
	unsubscribe func()
}

func NewEndpoint(ctx context.Context, b Bus, outbound, inbound string) (*Endpoint, error) {
	e := &Endpoint{ctx: ctx, bus: b, outbound: outbound}
	unsub, err := b.Subscribe(ctx, inbound, func(payload string) { e.Deliver(payload) })
	if err != nil {
		return nil, err
	}
	e.unsubscribe = unsub
	return e, nil
}

func (e *Endpoint) Post(raw string) error {
	return e.bus.Publish(e.ctx, e.outbound, raw)
}

func (e *Endpoint) Close() error {
	e.unsubscribe()
	return nil
}
