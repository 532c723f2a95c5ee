// Package queuelink is the client core of a government service queue
// platform. It keeps the signed-in session, holds a live event stream open
// for that session and decides which views the user may see.
//
// A Client wires the components together:
//   - the auth gateway is the only writer of the session
//   - the event channel follows the session, reconnecting with backoff
//   - the notification bridge turns events into notices and cache invalidations
//   - the route guard re-checks the current view on every session change
//
// Example usage:
//
//	c, err := queuelink.New(
//	    queuelink.WithBaseURL("https://queue.example.gov/api"),
//	    queuelink.WithEventURL("wss://queue.example.gov/events"),
//	    queuelink.WithSessionFile("~/.queuelink/session.yaml"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close()
//
//	if _, err := c.Restore(ctx); err != nil {
//	    log.Printf("resume failed: %v", err)
//	}
//
//	c.OnConnectionChange(func(conn channel.Connection) {
//	    log.Printf("live updates: %s", conn.State)
//	})
//
//	s, err := c.Login(ctx, auth.Credentials{Identifier: "ana@example.com", Secret: "..."})
//	if err != nil {
//	    log.Fatal(errors.UserMessage(err))
//	}
//	log.Printf("signed in as %s", s.UserID)
package queuelink

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/agentstation/queuelink/internal/persistence"
	"github.com/agentstation/queuelink/internal/schedule"
	"github.com/agentstation/queuelink/internal/transport"
	"github.com/agentstation/queuelink/pkg/auth"
	"github.com/agentstation/queuelink/pkg/channel"
	"github.com/agentstation/queuelink/pkg/errors"
	"github.com/agentstation/queuelink/pkg/events"
	"github.com/agentstation/queuelink/pkg/guard"
	"github.com/agentstation/queuelink/pkg/logging"
	"github.com/agentstation/queuelink/pkg/notify"
	"github.com/agentstation/queuelink/pkg/session"
)

// Compile-time interface checks to ensure proper implementation.
var (
	_ Client   = (*client)(nil)
	_ Sessions = (*client)(nil)
	_ Events   = (*client)(nil)
)

// Client is the process-wide queue client.
type Client interface {

	// Sessions handles sign-in state
	Sessions

	// Events provides the live event stream
	Events

	// Navigation gates views by session
	Navigation

	// AutoRefresher controls proactive token refresh
	AutoRefresher

	// Persistence resumes a saved session
	Persistence

	// Hooks provides access to event callback registration
	Hooks

	// HTTPClient returns a client for authenticated data requests. It sends
	// the current token and refreshes once when a request is refused.
	HTTPClient() *http.Client

	// Close tears down the event stream, scheduled work and observers.
	Close() error
}

// Sessions performs authentication operations.
type Sessions interface {
	// Session returns the current session snapshot
	Session() session.Session

	// Login signs in with an email or phone number and a password
	Login(ctx context.Context, creds auth.Credentials) (session.Session, error)

	// Register creates an account and signs in
	Register(ctx context.Context, profile auth.Profile) (session.Session, error)

	// Logout signs out. It never fails
	Logout(ctx context.Context) error

	// Refresh renews the access token
	Refresh(ctx context.Context) (session.Session, error)
}

// Events exposes the live event stream.
type Events interface {
	// Subscribe registers h for the given kinds, or all kinds when none are given
	Subscribe(h channel.Handler, kinds ...events.Kind) (channel.Subscription, error)

	// Unsubscribe removes a subscription
	Unsubscribe(sub channel.Subscription)

	// Connection returns the event channel's state
	Connection() channel.Connection
}

// client is the internal implementation of the Client interface.
type client struct {
	options *options
	logger  *zerolog.Logger
	clock   clock.Clock

	gateway *auth.Gateway
	channel *channel.Channel // nil when no event stream is configured
	bridge  *notify.Bridge
	guard   *guard.Guard
	file    *persistence.File // nil when no session file is configured
	http    *http.Client

	// saved is set once the file holds a signed-in session.
	saved atomic.Bool

	// auto refresh state
	refreshMu      sync.Mutex
	refreshEnabled bool
	refreshTask    *schedule.Task

	hooks  *hooks
	stops  []func()
	closed atomic.Bool
}

// New creates a Client with an Anonymous session. Either WithBaseURL or
// WithBackend is required; the event stream is optional.
func New(opts ...Option) (Client, error) {
	o, err := defaults().apply(opts...)
	if err != nil {
		return nil, errors.NewConfigError("client", "invalid option", err)
	}

	logger := logging.Component(o.logger, "client")
	c := &client{
		options: o,
		logger:  logger,
		clock:   o.clock,
		hooks:   newHooks(logger),
	}

	var api *transport.Client
	if o.baseURL != "" {
		clientOpts := []transport.ClientOption{transport.WithClientLogger(o.logger)}
		if o.httpClient != nil {
			clientOpts = append(clientOpts, transport.WithHTTPClient(o.httpClient))
		}
		api = transport.New(o.baseURL, clientOpts...)
	}

	backend := o.backend
	if backend == nil {
		if api == nil {
			return nil, errors.NewConfigError("client", "a base URL or backend is required", nil)
		}
		backend = transport.NewBackend(api)
	}

	c.gateway = auth.New(backend,
		auth.WithLogger(o.logger),
		auth.WithClock(o.clock),
		auth.WithTimeout(o.requestTimeout),
	)
	store := c.gateway.Store()

	c.http = &http.Client{
		Timeout: o.requestTimeout,
		Transport: &transport.RefreshingTransport{
			Base:    baseTransport(o.httpClient),
			Source:  store,
			Handler: c.gateway,
		},
	}

	renderer := o.renderer
	if renderer == nil {
		renderer = logRenderer(logger)
	}
	c.bridge = notify.New(renderer, o.invalidator, notify.WithLogger(o.logger))
	c.gateway.OnExpired(c.bridge.SessionExpired)

	routes := guard.DefaultRoutes()
	if o.routes != nil {
		routes = *o.routes
	}
	c.guard = guard.New(store, o.navigator, routes, guard.WithLogger(o.logger))

	if o.sessionFile != "" {
		c.file = persistence.New(o.sessionFile,
			persistence.WithPassphrase(o.passphrase),
			persistence.WithLogger(o.logger),
		)
		c.stops = append(c.stops, store.Observe(c.persist))
	}

	c.stops = append(c.stops,
		store.Observe(c.hooks.triggerSessionChange),
		store.Observe(c.reschedule),
	)

	dialer := o.dialer
	if dialer == nil && o.eventURL != "" {
		dialer = transport.NewWSDialer(o.eventURL, o.logger)
	}
	if dialer != nil {
		c.channel = channel.New(store, dialer,
			channel.WithLogger(o.logger),
			channel.WithClock(o.clock),
			channel.WithBackoff(o.backoff),
			channel.WithMaxRetries(o.maxRetries),
		)
		c.bridge.Attach(c.channel)
		c.stops = append(c.stops,
			c.channel.OnStateChange(c.bridge.ConnectionChanged),
			c.channel.OnStateChange(c.hooks.triggerConnectionChange),
		)
		c.channel.Start()
	}

	if o.autoRefresh {
		if err := c.AutoRefreshOn(); err != nil {
			_ = c.Close()
			return nil, errors.NewConfigError("client", "starting auto-refresh", err)
		}
	}

	logger.Debug().
		Str("base_url", o.baseURL).
		Bool("events", c.channel != nil).
		Bool("persisted", c.file != nil).
		Msg("Client created")

	return c, nil
}

// Session returns the current session snapshot.
func (c *client) Session() session.Session {
	return c.gateway.Store().Current()
}

// Login signs in with an email or phone number and a password.
func (c *client) Login(ctx context.Context, creds auth.Credentials) (session.Session, error) {
	if c.closed.Load() {
		return c.Session(), errors.ErrClosed
	}
	return c.gateway.Login(ctx, creds)
}

// Register creates an account and signs in.
func (c *client) Register(ctx context.Context, profile auth.Profile) (session.Session, error) {
	if c.closed.Load() {
		return c.Session(), errors.ErrClosed
	}
	return c.gateway.Register(ctx, profile)
}

// Logout signs out and removes the saved session. It never fails.
func (c *client) Logout(ctx context.Context) error {
	err := c.gateway.Logout(ctx)
	if c.file != nil {
		if err := c.file.Clear(); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to remove saved session")
		}
		c.saved.Store(false)
	}
	return err
}

// Refresh renews the access token.
func (c *client) Refresh(ctx context.Context) (session.Session, error) {
	if c.closed.Load() {
		return c.Session(), errors.ErrClosed
	}
	return c.gateway.Refresh(ctx)
}

// Subscribe registers h on the event stream.
func (c *client) Subscribe(h channel.Handler, kinds ...events.Kind) (channel.Subscription, error) {
	if c.channel == nil {
		return channel.Subscription{}, errors.NewConfigError("client", "no event stream configured", nil)
	}
	if c.closed.Load() {
		return channel.Subscription{}, errors.ErrClosed
	}
	return c.channel.Subscribe(h, kinds...), nil
}

// Unsubscribe removes a subscription. Unknown subscriptions are ignored.
func (c *client) Unsubscribe(sub channel.Subscription) {
	if c.channel != nil {
		c.channel.Unsubscribe(sub)
	}
}

// Connection returns the event channel's state. Without an event stream it
// is always Disconnected.
func (c *client) Connection() channel.Connection {
	if c.channel == nil {
		return channel.Connection{State: channel.Disconnected}
	}
	return c.channel.Connection()
}

// HTTPClient returns a client for authenticated data requests.
func (c *client) HTTPClient() *http.Client {
	return c.http
}

func baseTransport(hc *http.Client) http.RoundTripper {
	if hc != nil && hc.Transport != nil {
		return hc.Transport
	}
	return http.DefaultTransport
}

// logRenderer shows notifications in the log.
func logRenderer(logger *zerolog.Logger) notify.RendererFunc {
	return func(d notify.Descriptor) {
		var ev *zerolog.Event
		switch d.Severity {
		case notify.SeverityError:
			ev = logger.Error()
		case notify.SeverityWarning:
			ev = logger.Warn()
		default:
			ev = logger.Info()
		}
		ev.Str("severity", string(d.Severity)).Str("title", d.Title).Msg(d.Message)
	}
}
