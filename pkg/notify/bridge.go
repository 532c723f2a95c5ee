// Package notify turns channel events into user notifications and cache
// invalidations. It performs no I/O itself; both outputs go to collaborators.
package notify

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/agentstation/queuelink/pkg/channel"
	"github.com/agentstation/queuelink/pkg/events"
	"github.com/agentstation/queuelink/pkg/logging"
	"github.com/agentstation/queuelink/pkg/session"
)

// Renderer shows a notification. Fire-and-forget.
type Renderer interface {
	Show(Descriptor)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(Descriptor)

// Show calls f.
func (f RendererFunc) Show(d Descriptor) { f(d) }

// Invalidator marks a cached server resource stale. Fire-and-forget.
type Invalidator interface {
	Invalidate(key string)
}

// InvalidatorFunc adapts a function to Invalidator.
type InvalidatorFunc func(key string)

// Invalidate calls f.
func (f InvalidatorFunc) Invalidate(key string) { f(key) }

// Subscriber is the part of the event channel the bridge needs.
type Subscriber interface {
	Subscribe(h channel.Handler, kinds ...events.Kind) channel.Subscription
}

// Bridge forwards events to a Renderer and an Invalidator.
type Bridge struct {
	renderer    Renderer
	invalidator Invalidator
	logger      *zerolog.Logger

	mu       sync.Mutex
	degraded bool
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(b *Bridge) {
		b.logger = logger
	}
}

// New creates a Bridge. Either collaborator may be nil.
func New(renderer Renderer, invalidator Invalidator, opts ...Option) *Bridge {
	b := &Bridge{renderer: renderer, invalidator: invalidator}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = logging.Component(b.logger, "notify")
	return b
}

// Attach subscribes the bridge to every event kind.
func (b *Bridge) Attach(sub Subscriber) channel.Subscription {
	return sub.Subscribe(b.Handle)
}

// Handle renders e and invalidates the keys it affects.
func (b *Bridge) Handle(e events.Event) error {
	d, keys := Describe(e)
	if !d.IsZero() {
		b.show(d)
	}
	if b.invalidator != nil {
		for _, k := range keys {
			b.invalidator.Invalidate(k)
		}
	}
	b.logger.Debug().Str("kind", string(e.Kind)).Strs("keys", keys).Msg("Event bridged")
	return nil
}

// SessionExpired tells the user a failed refresh signed them out.
func (b *Bridge) SessionExpired(s session.Session) {
	msg := s.Message
	if msg == "" {
		msg = "Your session has expired. Please sign in again."
	}
	b.show(Descriptor{Severity: SeverityInfo, Title: "Signed out", Message: msg})
}

// ConnectionChanged shows a passive indicator when live updates stop and
// when they come back.
func (b *Bridge) ConnectionChanged(c channel.Connection) {
	b.mu.Lock()
	was := b.degraded
	switch c.State {
	case channel.Failed:
		b.degraded = true
	case channel.Connected, channel.Disconnected:
		b.degraded = false
	}
	now := b.degraded
	b.mu.Unlock()

	switch {
	case now && !was:
		b.show(Descriptor{
			Severity: SeverityWarning,
			Title:    "Live updates paused",
			Message:  "Live updates are unavailable. Queue and appointment status may be out of date.",
		})
	case was && !now && c.State == channel.Connected:
		b.show(Descriptor{Severity: SeverityInfo, Title: "Live updates resumed", Message: "Live updates resumed."})
	}
}

func (b *Bridge) show(d Descriptor) {
	if b.renderer != nil {
		b.renderer.Show(d)
	}
}
