// Package conn manages the lifecycle of persistent client connections:
// a state machine driven by transport open/message/close events, with a
// per-connection agent that decodes and dispatches inbound commands.
package conn

import "time"

// Session is the transport-level handle for one persistent connection.
// The transport layer implements it; the connection state machine only
// drives it.
type Session interface {
	// ID identifies the session for logging.
	ID() string

	// Valid reports whether the session is usable. An open with an
	// invalid session transitions straight to closed.
	Valid() bool

	// NativeKeepalive reports whether the transport maintains its own
	// keepalive. When false, the connection starts a heartbeat scoped
	// to its lifetime.
	NativeKeepalive() bool

	// Send delivers data to the peer.
	Send(data []byte) error

	// StartKeepalive begins periodic keepalive probes.
	StartKeepalive(interval time.Duration)

	// StopKeepalive stops keepalive probes.
	StopKeepalive()

	// Close terminates the session.
	Close() error
}
