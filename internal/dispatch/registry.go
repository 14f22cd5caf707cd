// Package dispatch fans inbound informational messages out to listeners
// registered by bare message type.
package dispatch

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/HsiangNianian/simid-bridge/internal/protocol"
)

// Listener observes one inbound envelope.
type Listener func(env protocol.Envelope)

// Registry keeps an ordered, append-only listener list per type. Callers
// provide their own synchronisation.
type Registry struct {
	log       *zap.Logger
	listeners map[string][]Listener
}

func NewRegistry(log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		log:       log,
		listeners: make(map[string][]Listener),
	}
}

// Add appends fn to the list for msgType. Duplicates are kept.
func (r *Registry) Add(msgType string, fn Listener) {
	if fn == nil {
		return
	}
	r.listeners[msgType] = append(r.listeners[msgType], fn)
}

// Snapshot returns a copy of the listeners for msgType so they can be
// invoked after the caller releases its lock.
func (r *Registry) Snapshot(msgType string) []Listener {
	ls := r.listeners[msgType]
	if len(ls) == 0 {
		return nil
	}
	out := make([]Listener, len(ls))
	copy(out, ls)
	return out
}

// Dispatch invokes every listener for bareType in order and returns how
// many ran to completion.
func (r *Registry) Dispatch(bareType string, env protocol.Envelope) int {
	return Invoke(r.log, bareType, r.Snapshot(bareType), env)
}

func (r *Registry) Len(msgType string) int {
	return len(r.listeners[msgType])
}

func (r *Registry) Clear() {
	r.listeners = make(map[string][]Listener)
}

// Invoke runs listeners in order. A panicking listener is logged and the
// remaining listeners still run.
func Invoke(log *zap.Logger, bareType string, listeners []Listener, env protocol.Envelope) int {
	if len(listeners) == 0 {
		log.Info("no listeners for message, dropped",
			zap.String("type", bareType),
			zap.Int("msg_id", env.MessageID),
			zap.String("session_id", env.SessionID),
		)
		return 0
	}
	ok := 0
	for i, fn := range listeners {
		if err := call(fn, env); err != nil {
			log.Warn("listener failed",
				zap.String("type", bareType),
				zap.Int("msg_id", env.MessageID),
				zap.Int("listener", i),
				zap.Error(err),
			)
			continue
		}
		ok++
	}
	return ok
}

func call(fn Listener, env protocol.Envelope) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener panic: %v", r)
		}
	}()
	fn(env)
	return nil
}
