package channel

// State is the lifecycle state of the event channel's connection.
type State int

const (
	// Disconnected is the initial state and the state while no session is authenticated.
	Disconnected State = iota
	// Connecting means a dial is in flight.
	Connecting
	// Connected means events are flowing.
	Connected
	// Reconnecting means the connection was lost and a retry is scheduled,
	// or is parked waiting for a refreshed token.
	Reconnecting
	// Failed means the retry budget is spent. Only a new authenticated
	// session moves the channel out of Failed.
	Failed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Connection is a snapshot of the channel's link. A new value is published
// for every transition.
type Connection struct {
	State State
	// RetryCount is the number of failed attempts since the last successful connect.
	RetryCount int
	// LastError is the failure that caused the current state, if any.
	LastError error
}

// Degraded reports whether live updates are currently unavailable for an
// authenticated user.
func (c Connection) Degraded() bool {
	return c.State == Reconnecting || c.State == Failed
}
