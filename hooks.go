package queuelink

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/agentstation/queuelink/pkg/channel"
	"github.com/agentstation/queuelink/pkg/session"
)

// Compile-time interface check to ensure proper implementation.
var _ Hooks = (*client)(nil)

// Hook function types for client events
type (
	// SessionChangeHook is called with every new session snapshot
	SessionChangeHook func(s session.Session)

	// ConnectionChangeHook is called when the event channel changes state
	ConnectionChangeHook func(c channel.Connection)
)

// Hooks provides event callback registration.
type Hooks interface {
	// OnSessionChange registers a callback for session transitions
	OnSessionChange(SessionChangeHook)

	// OnConnectionChange registers a callback for event channel transitions
	OnConnectionChange(ConnectionChangeHook)
}

// hooks manages event callbacks
type hooks struct {
	logger             *zerolog.Logger
	mu                 sync.RWMutex
	onSessionChange    []SessionChangeHook
	onConnectionChange []ConnectionChangeHook
}

// newHooks creates a new hooks instance
func newHooks(logger *zerolog.Logger) *hooks {
	return &hooks{logger: logger}
}

// OnSessionChange registers a callback for session transitions.
func (c *client) OnSessionChange(fn SessionChangeHook) {
	c.hooks.mu.Lock()
	defer c.hooks.mu.Unlock()
	c.hooks.onSessionChange = append(c.hooks.onSessionChange, fn)
}

// OnConnectionChange registers a callback for event channel transitions.
func (c *client) OnConnectionChange(fn ConnectionChangeHook) {
	c.hooks.mu.Lock()
	defer c.hooks.mu.Unlock()
	c.hooks.onConnectionChange = append(c.hooks.onConnectionChange, fn)
}

// triggerSessionChange runs the session hooks. Hooks may register further
// hooks; those see the next change.
func (h *hooks) triggerSessionChange(s session.Session) {
	h.mu.RLock()
	fns := append([]SessionChangeHook(nil), h.onSessionChange...)
	h.mu.RUnlock()

	for _, fn := range fns {
		h.run("session", func() { fn(s.Clone()) })
	}
}

// triggerConnectionChange runs the connection hooks.
func (h *hooks) triggerConnectionChange(conn channel.Connection) {
	h.mu.RLock()
	fns := append([]ConnectionChangeHook(nil), h.onConnectionChange...)
	h.mu.RUnlock()

	for _, fn := range fns {
		h.run("connection", func() { fn(conn) })
	}
}

// run calls one hook. A panic is logged and the remaining hooks still run.
func (h *hooks) run(kind string, call func()) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error().
				Str("hook", kind).
				Interface("panic", r).
				Msg("Client hook panicked")
		}
	}()
	call()
}
