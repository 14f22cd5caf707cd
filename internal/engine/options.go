package engine

import (
	"errors"

	"go.uber.org/zap"
)

var (
	ErrNoTarget         = errors.New("no transport target")
	ErrNotRequest       = errors.New("message type does not take a response")
	ErrRequiresResponse = errors.New("message type requires a response")
	ErrReservedType     = errors.New("reserved protocol message type")

	// ErrSessionReset rejects pending requests under ResetReject.
	ErrSessionReset = errors.New("session reset")
)

// ResetPolicy decides what happens to pending requests on Reset.
type ResetPolicy int

const (
	// ResetAbandon drops pending entries without settling their futures.
	ResetAbandon ResetPolicy = iota
	// ResetReject rejects every pending future with ErrSessionReset.
	ResetReject
)

func (p ResetPolicy) String() string {
	if p == ResetReject {
		return "reject"
	}
	return "abandon"
}

// ParseResetPolicy maps a config string to a policy. Unknown values are
// reported with ok false.
func ParseResetPolicy(s string) (ResetPolicy, bool) {
	switch s {
	case "", "abandon":
		return ResetAbandon, true
	case "reject":
		return ResetReject, true
	}
	return ResetAbandon, false
}

type Option func(*Engine)

func WithNamespace(ns string) Option {
	return func(e *Engine) { e.namespace = ns }
}

// WithRequestTypes marks bare types whose sends wait for resolve/reject.
func WithRequestTypes(types ...string) Option {
	return func(e *Engine) {
		for _, t := range types {
			if t != "" {
				e.requestTypes[t] = struct{}{}
			}
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

func WithResetPolicy(p ResetPolicy) Option {
	return func(e *Engine) { e.resetPolicy = p }
}
