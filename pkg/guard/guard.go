package guard

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/agentstation/queuelink/pkg/logging"
	"github.com/agentstation/queuelink/pkg/session"
)

// Navigator performs redirects decided by the guard.
type Navigator interface {
	// RedirectToLogin shows the login view; from is the path to return to after sign-in.
	RedirectToLogin(from string)
	// RedirectToHome shows the home view.
	RedirectToHome()
}

// Guard tracks the current view and re-evaluates it on every session change,
// so access lost mid-visit is revoked immediately.
type Guard struct {
	src    session.Source
	nav    Navigator
	routes Routes
	logger *zerolog.Logger

	mu       sync.Mutex
	path     string
	decision Decision
	stop     func()
}

// Option configures a Guard.
type Option func(*Guard)

// WithLogger sets the logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(g *Guard) {
		g.logger = logger
	}
}

// New creates a Guard positioned at the home path and starts observing src.
// A nil navigator only records decisions.
func New(src session.Source, nav Navigator, routes Routes, opts ...Option) *Guard {
	g := &Guard{
		src:      src,
		nav:      nav,
		routes:   routes,
		path:     HomePath,
		decision: Allow,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = logging.Component(g.logger, "guard")
	g.stop = src.Observe(g.reevaluate)
	return g
}

// Navigate requests path. On Allow the guard moves there; otherwise it
// moves to the redirect target and tells the navigator.
func (g *Guard) Navigate(path string) Decision {
	return g.resolve(normalize(path), g.src.Current())
}

// Current returns the path being shown and the decision that put it there.
func (g *Guard) Current() (string, Decision) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.path, g.decision
}

// Close stops observing the session.
func (g *Guard) Close() {
	g.mu.Lock()
	stop := g.stop
	g.stop = nil
	g.mu.Unlock()
	if stop != nil {
		stop()
	}
}

func (g *Guard) reevaluate(s session.Session) {
	g.mu.Lock()
	path := g.path
	g.mu.Unlock()

	if d := g.resolve(path, s); d != Allow {
		g.logger.Info().
			Str("path", path).
			Str("decision", d.String()).
			Str("session", s.Status.String()).
			Msg("Access revoked")
	}
}

func (g *Guard) resolve(path string, s session.Session) Decision {
	d := g.routes.Match(path).Decide(s)

	g.mu.Lock()
	g.decision = d
	switch d {
	case Allow:
		g.path = path
	case RedirectToLogin:
		g.path = LoginPath
	case RedirectToHome:
		g.path = HomePath
	}
	g.mu.Unlock()

	if g.nav == nil {
		return d
	}
	switch d {
	case RedirectToLogin:
		g.nav.RedirectToLogin(path)
	case RedirectToHome:
		g.nav.RedirectToHome()
	}
	return d
}
