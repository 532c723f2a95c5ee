package channel

import (
	"context"

	"github.com/agentstation/queuelink/pkg/events"
)

// Dialer opens an authenticated connection to the event stream.
type Dialer interface {
	Dial(ctx context.Context, token string) (Conn, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, token string) (Conn, error)

// Dial calls f.
func (f DialerFunc) Dial(ctx context.Context, token string) (Conn, error) {
	return f(ctx, token)
}

// Conn is one live connection. Receive blocks until the next event arrives
// or the connection fails; Close unblocks it. A *errors.ParseError from
// Receive reports a single malformed frame and leaves the connection usable.
type Conn interface {
	Receive() (events.Event, error)
	Close() error
}

// Reauthenticator is implemented by connections that can switch to a new
// token without reconnecting.
type Reauthenticator interface {
	Reauthenticate(ctx context.Context, token string) error
}
