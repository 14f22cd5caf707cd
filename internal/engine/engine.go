package engine

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/HsiangNianian/simid-bridge/internal/correlation"
	"github.com/HsiangNianian/simid-bridge/internal/dispatch"
	"github.com/HsiangNianian/simid-bridge/internal/protocol"
	"github.com/HsiangNianian/simid-bridge/internal/session"
	"github.com/HsiangNianian/simid-bridge/internal/transport"
)

// Waiter is the common view of a Future and an Ack.
type Waiter interface {
	MessageID() int
	Done() <-chan struct{}
}

type Engine struct {
	log          *zap.Logger
	namespace    string
	codec        protocol.Codec
	requestTypes map[string]struct{}
	resetPolicy  ResetPolicy

	mu        sync.Mutex
	target    transport.Target
	lastID    int
	table     *correlation.Table
	listeners *dispatch.Registry
	session   *session.Manager
}

func New(target transport.Target, opts ...Option) *Engine {
	e := &Engine{
		log:          zap.NewNop(),
		namespace:    protocol.DefaultNamespace,
		requestTypes: make(map[string]struct{}),
		target:       target,
		table:        correlation.NewTable(),
		session:      session.NewManager(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.codec = protocol.NewCodec(e.namespace)
	e.listeners = dispatch.NewRegistry(e.log)
	return e
}

// SetTarget redirects outbound traffic without touching protocol state.
func (e *Engine) SetTarget(target transport.Target) {
	e.mu.Lock()
	e.target = target
	e.mu.Unlock()
}

// Listen subscribes Receive to src. The returned func unsubscribes.
func (e *Engine) Listen(src transport.Source) (stop func()) {
	return src.Subscribe(e.Receive)
}

func (e *Engine) IsRequestType(msgType string) bool {
	_, ok := e.requestTypes[msgType]
	return ok
}

func (e *Engine) SessionID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.ID()
}

func (e *Engine) State() session.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.State()
}

// LastMessageID is the most recently issued message id, 0 before any send.
func (e *Engine) LastMessageID() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastID
}

// PendingRequests lists the ids still waiting for a response.
func (e *Engine) PendingRequests() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.table.Pending()
}

// AddListener registers fn for the bare message type.
func (e *Engine) AddListener(msgType string, fn dispatch.Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners.Add(msgType, fn)
}

// Send routes to Request or Notify depending on msgType.
func (e *Engine) Send(msgType string, args any) (Waiter, error) {
	if e.IsRequestType(msgType) {
		f, err := e.Request(msgType, args)
		if err != nil {
			return nil, err
		}
		return f, nil
	}
	a, err := e.Notify(msgType, args)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Request sends a response-requiring message. The pending entry exists
// before the message is posted.
func (e *Engine) Request(msgType string, args any) (*correlation.Future, error) {
	if err := checkDomainType(msgType); err != nil {
		return nil, err
	}
	if !e.IsRequestType(msgType) {
		return nil, fmt.Errorf("%w: %s", ErrNotRequest, msgType)
	}

	e.mu.Lock()
	id := e.lastID + 1
	raw, err := e.codec.Encode(msgType, args, e.outboundSessionID(), id)
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}
	e.lastID = id
	f, err := e.table.Register(id)
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}
	target := e.target
	e.mu.Unlock()

	if err := e.post(target, msgType, id, raw); err != nil {
		e.mu.Lock()
		e.table.Remove(id)
		e.mu.Unlock()
		return nil, err
	}
	return f, nil
}

// Notify sends a fire-and-forget message.
func (e *Engine) Notify(msgType string, args any) (correlation.Ack, error) {
	if err := checkDomainType(msgType); err != nil {
		return correlation.Ack{}, err
	}
	if e.IsRequestType(msgType) {
		return correlation.Ack{}, fmt.Errorf("%w: %s", ErrRequiresResponse, msgType)
	}

	e.mu.Lock()
	id := e.lastID + 1
	raw, err := e.codec.Encode(msgType, args, e.outboundSessionID(), id)
	if err != nil {
		e.mu.Unlock()
		return correlation.Ack{}, err
	}
	e.lastID = id
	target := e.target
	e.mu.Unlock()

	if err := e.post(target, msgType, id, raw); err != nil {
		return correlation.Ack{}, err
	}
	return correlation.NewAck(id), nil
}

// StartSession sends createSession with a fresh session id and returns the
// handshake future without waiting for it.
func (e *Engine) StartSession() (*correlation.Future, error) {
	e.mu.Lock()
	id := e.lastID + 1
	proposed := session.NewID()
	if err := e.session.Begin(proposed, id); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	raw, err := e.codec.Encode(protocol.CreateSession, nil, proposed, id)
	if err != nil {
		e.session.Abort(id)
		e.mu.Unlock()
		return nil, err
	}
	e.lastID = id
	f, err := e.table.Register(id)
	if err != nil {
		e.session.Abort(id)
		e.mu.Unlock()
		return nil, err
	}
	target := e.target
	e.mu.Unlock()

	e.log.Info("session requested", zap.String("proposed_session_id", proposed), zap.Int("msg_id", id))
	if err := e.post(target, protocol.CreateSession, id, raw); err != nil {
		e.mu.Lock()
		e.table.Remove(id)
		e.session.Abort(id)
		e.mu.Unlock()
		return nil, err
	}
	return f, nil
}

// CreateSession runs the handshake and returns the adopted session id.
// A ctx that ends first leaves the handshake in flight.
func (e *Engine) CreateSession(ctx context.Context) (string, error) {
	f, err := e.StartSession()
	if err != nil {
		return "", err
	}
	if _, err := f.Wait(ctx); err != nil {
		return "", err
	}
	return e.SessionID(), nil
}

// Resolve answers an inbound request; the reply reuses its message id.
func (e *Engine) Resolve(incoming protocol.Envelope, args any) error {
	return e.reply(protocol.Resolve, incoming, args)
}

// Reject answers an inbound request with an application failure.
func (e *Engine) Reject(incoming protocol.Envelope, args any) error {
	return e.reply(protocol.Reject, incoming, args)
}

func (e *Engine) reply(kind string, incoming protocol.Envelope, args any) error {
	e.mu.Lock()
	raw, err := e.codec.Encode(kind, args, e.outboundSessionID(), incoming.MessageID)
	target := e.target
	e.mu.Unlock()
	if err != nil {
		return err
	}
	return e.post(target, kind, incoming.MessageID, raw)
}

// Reset returns the engine to UNINITIALIZED, dropping listeners and
// pending requests. Message ids keep counting. Under ResetAbandon the
// returned ids belong to futures that will never settle.
func (e *Engine) Reset() []int {
	e.mu.Lock()
	var ids []int
	if e.resetPolicy == ResetReject {
		ids = e.table.RejectAll(ErrSessionReset)
	} else {
		ids = e.table.Clear()
	}
	prev := e.session.ID()
	e.session.Reset()
	e.listeners.Clear()
	e.mu.Unlock()

	e.log.Info("session reset",
		zap.String("session_id", prev),
		zap.Stringer("policy", e.resetPolicy),
		zap.Ints("pending_msg_ids", ids),
	)
	return ids
}

// Receive is the inbound entry point. Invalid, foreign and misaddressed
// input is dropped without error.
func (e *Engine) Receive(raw string) {
	env, err := e.codec.Decode(raw)
	if err != nil {
		e.log.Debug("drop non-protocol input", zap.Error(err))
		return
	}
	kind, bare := e.codec.Classify(env.Type)
	if kind == protocol.KindForeign {
		e.log.Debug("drop foreign message type", zap.String("type", env.Type), zap.Int("msg_id", env.MessageID))
		return
	}

	e.mu.Lock()
	if !e.session.Validate(kind, env) {
		state := e.session.State()
		e.mu.Unlock()
		e.log.Debug("drop message failing session validation",
			zap.String("type", env.Type),
			zap.Int("msg_id", env.MessageID),
			zap.String("session_id", env.SessionID),
			zap.Stringer("state", state),
		)
		return
	}

	var listeners []dispatch.Listener
	switch kind {
	case protocol.KindCreateSession:
		if e.session.State() != session.Uninitialized || env.SessionID == "" {
			e.mu.Unlock()
			e.log.Debug("drop createSession", zap.String("session_id", env.SessionID), zap.Int("msg_id", env.MessageID))
			return
		}
		e.session.Adopt(env.SessionID)
		listeners = e.listeners.Snapshot(protocol.CreateSession)
	case protocol.KindResolve, protocol.KindReject:
		outcome := correlation.OutcomeResolve
		if kind == protocol.KindReject {
			outcome = correlation.OutcomeReject
		}
		handshake := e.session.IsHandshakeReply(kind, env)
		if handshake {
			if outcome == correlation.OutcomeResolve {
				e.session.Adopt(env.SessionID)
				listeners = e.listeners.Snapshot(protocol.CreateSession)
			} else {
				e.session.Abort(env.MessageID)
			}
		}
		if !e.table.Settle(env.MessageID, outcome, env.Args) {
			e.log.Debug("drop response for unknown message id", zap.Stringer("outcome", outcome), zap.Int("msg_id", env.MessageID))
		}
	case protocol.KindDomain:
		listeners = e.listeners.Snapshot(bare)
	}
	e.mu.Unlock()

	e.logEvent("recv", kind, env)
	if kind == protocol.KindDomain {
		dispatch.Invoke(e.log, bare, listeners, env)
		return
	}
	if len(listeners) > 0 {
		dispatch.Invoke(e.log, protocol.CreateSession, listeners, env)
	}
}

// outboundSessionID must be called with mu held.
func (e *Engine) outboundSessionID() string {
	if id := e.session.ID(); id != "" {
		return id
	}
	return e.session.Proposed()
}

func (e *Engine) post(target transport.Target, msgType string, id int, raw string) error {
	if target == nil {
		return ErrNoTarget
	}
	if err := target.Post(raw); err != nil {
		e.log.Warn("send failed", zap.String("type", msgType), zap.Int("msg_id", id), zap.Error(err))
		return fmt.Errorf("post %s: %w", msgType, err)
	}
	e.log.Debug("send", zap.String("type", msgType), zap.Int("msg_id", id))
	return nil
}

func (e *Engine) logEvent(prefix string, kind protocol.Kind, env protocol.Envelope) {
	e.log.Debug(prefix,
		zap.Stringer("kind", kind),
		zap.String("type", env.Type),
		zap.Int("msg_id", env.MessageID),
		zap.String("session_id", env.SessionID),
	)
}

func checkDomainType(msgType string) error {
	switch msgType {
	case "":
		return protocol.ErrEmptyType
	case protocol.CreateSession, protocol.Resolve, protocol.Reject:
		return fmt.Errorf("%w: %s", ErrReservedType, msgType)
	}
	return nil
}
