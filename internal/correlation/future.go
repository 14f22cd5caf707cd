package correlation

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// RejectError carries the args of a reject message back to the caller.
type RejectError struct {
	MessageID int
	Args      json.RawMessage
}

func (e *RejectError) Error() string {
	if len(e.Args) == 0 {
		return fmt.Sprintf("message %d rejected", e.MessageID)
	}
	return fmt.Sprintf("message %d rejected: %s", e.MessageID, e.Args)
}

// Future is the result of a response-requiring send. It settles at most
// once, with the args of the matching resolve or a *RejectError.
type Future struct {
	id   int
	once sync.Once
	done chan struct{}

	value json.RawMessage
	err   error
}

func newFuture(id int) *Future {
	return &Future{id: id, done: make(chan struct{})}
}

func (f *Future) MessageID() int {
	return f.id
}

// Done is closed once the future has settled.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

func (f *Future) Settled() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the future settles or ctx ends. Giving up on the wait
// does not release the pending slot.
func (f *Future) Wait(ctx context.Context) (json.RawMessage, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *Future) settle(value json.RawMessage, err error) bool {
	settled := false
	f.once.Do(func() {
		f.value = value
		f.err = err
		settled = true
		close(f.done)
	})
	return settled
}

var resolved = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// Ack is the result of a fire-and-forget send: resolved on creation,
// carries no payload and never rejects.
type Ack struct {
	id int
}

func NewAck(id int) Ack {
	return Ack{id: id}
}

func (a Ack) MessageID() int {
	return a.id
}

func (a Ack) Done() <-chan struct{} {
	return resolved
}

func (a Ack) Wait(context.Context) error {
	return nil
}
