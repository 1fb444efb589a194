package domain

import "context"

// Platform is the messaging-platform session the relay listens on.
// Implementations own authentication, session persistence, and
// reconnection; the relay only consumes the event stream.
type Platform interface {
	// Connect establishes the platform session. It may block for an
	// unbounded time on first-run interactive authorization.
	Connect(ctx context.Context) error

	// Authorized reports whether the session is usable after Connect.
	Authorized() bool

	// Events returns the stream of incoming message notifications,
	// scoped to the watched conversations. The channel is closed when
	// the platform connection terminates.
	Events() <-chan Message

	// Disconnect tears the session down. Safe to call on a session
	// that never connected.
	Disconnect() error
}
