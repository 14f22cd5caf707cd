// Package engine wires the codec, correlation table, dispatch registry and
// session manager into the player/creative messaging protocol.
//
// An Engine posts wire strings to a transport.Target and consumes inbound
// strings through Receive, usually via Listen on a transport.Source.
// Request-type sends return a *correlation.Future settled by the peer's
// resolve or reject; every other send returns an already-resolved
// correlation.Ack. The handshake moves the engine through
// UNINITIALIZED, SESSION_REQUESTED and SESSION_ACTIVE; Reset returns it to
// UNINITIALIZED.
//
// The Engine is safe for concurrent use. Listeners run without the engine
// lock held, so they may call back into the engine.
package engine
