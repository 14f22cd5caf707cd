// Package transport defines the string-posting boundary the engine talks
// through, plus an in-memory pipe for harnesses and tests.
package transport

import (
	"errors"
	"sync"
)

var ErrClosed = errors.New("transport closed")

// Target receives outbound wire strings. Post is fire-and-forget.
type Target interface {
	Post(raw string) error
}

// Source delivers inbound wire strings to subscribers until unsubscribed.
type Source interface {
	Subscribe(fn func(raw string)) (unsubscribe func())
}

type Transport interface {
	Target
	Source
}

// TargetFunc adapts a function to Target.
type TargetFunc func(raw string) error

func (f TargetFunc) Post(raw string) error {
	return f(raw)
}

// Fanout is a subscriber set shared by the transport adapters.
type Fanout struct {
	mu   sync.RWMutex
	next int
	subs map[int]func(string)
	ids  []int
}

func (f *Fanout) Subscribe(fn func(raw string)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subs == nil {
		f.subs = make(map[int]func(string))
	}
	f.next++
	id := f.next
	f.subs[id] = fn
	f.ids = append(f.ids, id)

	var once sync.Once
	return func() {
		once.Do(func() { f.remove(id) })
	}
}

func (f *Fanout) remove(id int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subs, id)
	for i, v := range f.ids {
		if v == id {
			f.ids = append(f.ids[:i], f.ids[i+1:]...)
			break
		}
	}
}

// Deliver hands raw to every subscriber in subscription order and
// returns how many were called.
func (f *Fanout) Deliver(raw string) int {
	f.mu.RLock()
	fns := make([]func(string), 0, len(f.ids))
	for _, id := range f.ids {
		fns = append(fns, f.subs[id])
	}
	f.mu.RUnlock()
	for _, fn := range fns {
		fn(raw)
	}
	return len(fns)
}

func (f *Fanout) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.ids)
}

// Endpoint is one side of an in-memory Pipe. Post delivers synchronously
// to the peer's subscribers on the caller's goroutine.
type Endpoint struct {
	Fanout

	mu     sync.Mutex
	peer   *Endpoint
	closed bool
}

// Pipe returns two connected endpoints.
func Pipe() (*Endpoint, *Endpoint) {
	a, b := &Endpoint{}, &Endpoint{}
	a.peer, b.peer = b, a
	return a, b
}

func (e *Endpoint) Post(raw string) error {
	e.mu.Lock()
	closed, peer := e.closed, e.peer
	e.mu.Unlock()
	if closed {
		return ErrClosed
	}
	peer.Deliver(raw)
	return nil
}

func (e *Endpoint) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// Recorder is a Target that keeps every posted string.
type Recorder struct {
	mu   sync.Mutex
	sent []string
}

func (r *Recorder) Post(raw string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, raw)
	return nil
}

func (r *Recorder) Sent() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.sent))
	copy(out, r.sent)
	return out
}
