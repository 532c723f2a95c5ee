// Package channel maintains the live event stream for the signed-in user.
//
// The channel follows the session store: it connects while the session is
// Authenticated, reconnects with backoff when the transport fails, parks
// while a token refresh is in flight and disconnects deliberately when the
// user signs out. Events are delivered on the connection's read goroutine,
// in the order the transport produced them, to every matching subscriber.
// Events addressed to another user are dropped. Nothing is replayed after a
// reconnect.
package channel

import (
	"context"
	stderrors "errors"
	"slices"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/agentstation/queuelink/internal/schedule"
	"github.com/agentstation/queuelink/pkg/errors"
	"github.com/agentstation/queuelink/pkg/logging"
	"github.com/agentstation/queuelink/pkg/session"
)

// Channel owns at most one live connection at a time.
type Channel struct {
	src         session.Source
	dialer      Dialer
	logger      *zerolog.Logger
	clock       clock.Clock
	backoff     Backoff
	maxRetries  int
	dialTimeout time.Duration

	mu      sync.Mutex
	conn    Connection
	gen     uint64 // advances on every teardown; work from an older gen is stale
	live    Conn
	token   string
	userID  string
	retry   *schedule.Task
	abort   context.CancelFunc
	started bool
	closed  bool
	stop    func()

	// state change fan-out; see publish
	listeners   []listener
	nextID      uint64
	pending     []Connection
	dispatching bool

	subsMu sync.Mutex
	subs   []subscriber
}

type listener struct {
	id uint64
	fn func(Connection)
}

// New creates a Disconnected channel. Call Start to begin following src.
func New(src session.Source, dialer Dialer, opts ...Option) *Channel {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return &Channel{
		src:         src,
		dialer:      dialer,
		logger:      logging.Component(o.logger, "channel"),
		clock:       o.clock,
		backoff:     o.backoff,
		maxRetries:  o.maxRetries,
		dialTimeout: o.dialTimeout,
		conn:        Connection{State: Disconnected},
	}
}

// Start begins observing the session. It is a no-op after the first call
// and after Close.
func (c *Channel) Start() {
	c.mu.Lock()
	if c.started || c.closed {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()

	stop := c.src.Observe(func(session.Session) { c.reconcile() })

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		stop()
		return
	}
	c.stop = stop
	c.mu.Unlock()

	c.reconcile()
}

// Close tears down the connection, cancels any scheduled retry and stops
// following the session. It is idempotent.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	stop := c.stop
	c.stop = nil
	c.teardownLocked()
	c.setLocked(Connection{State: Disconnected})
	c.mu.Unlock()

	if stop != nil {
		stop()
	}
	c.publish()
	return nil
}

// Connection returns the current connection snapshot.
func (c *Channel) Connection() Connection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

// OnStateChange registers fn for every connection transition, in order.
func (c *Channel) OnStateChange(fn func(Connection)) func() {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.listeners = append(c.listeners, listener{id: id, fn: fn})
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.listeners = slices.DeleteFunc(c.listeners, func(l listener) bool { return l.id == id })
	}
}

// reconcile moves the channel toward what the current session calls for.
// It always reads the latest snapshot, so a late call never applies a
// stale one.
func (c *Channel) reconcile() {
	c.mu.Lock()
	if c.closed || !c.started {
		c.mu.Unlock()
		return
	}
	s := c.src.Current()

	switch {
	case s.IsAuthenticated():
		c.authenticatedLocked(s)
	case s.Status == session.Refreshing && s.UserID == c.userID:
		c.parkLocked()
	default:
		if c.conn.State != Disconnected {
			c.logger.Info().Str("session", s.Status.String()).Msg("Session ended, disconnecting")
		}
		c.teardownLocked()
		c.token, c.userID = "", ""
		c.setLocked(Connection{State: Disconnected})
	}
	c.mu.Unlock()
	c.publish()
}

func (c *Channel) authenticatedLocked(s session.Session) {
	sameUser := s.UserID == c.userID
	sameToken := s.Token == c.token

	switch c.conn.State {
	case Connected:
		if sameUser && sameToken {
			return
		}
		if sameUser {
			if r, ok := c.live.(Reauthenticator); ok {
				c.token = s.Token
				go c.reauthenticate(c.gen, r, s.Token)
				return
			}
		}
	case Connecting:
		if sameUser && sameToken {
			return
		}
	case Reconnecting:
		if sameUser && sameToken && c.retry.Pending() {
			return
		}
	}

	// Disconnected, Failed, a parked Reconnecting, a new user or a new
	// token that cannot be applied in place: start over.
	c.teardownLocked()
	c.token, c.userID = s.Token, s.UserID
	c.connectLocked(0, nil)
}

// parkLocked drops the connection while a refresh is in flight. The channel
// waits in Reconnecting without scheduling an attempt; the refreshed token
// resumes it.
func (c *Channel) parkLocked() {
	switch c.conn.State {
	case Connected:
		c.teardownLocked()
		c.setLocked(Connection{State: Reconnecting, RetryCount: c.conn.RetryCount})
		c.logger.Debug().Msg("Token refreshing, connection parked")
	case Connecting:
		c.teardownLocked()
		c.setLocked(Connection{State: Disconnected})
	case Reconnecting:
		c.retry.Cancel()
		c.retry = nil
	}
}

// connectLocked starts a dial as attempt retries+1.
func (c *Channel) connectLocked(retries int, lastErr error) {
	c.gen++
	gen, token := c.gen, c.token
	ctx, cancel := c.clock.WithTimeout(context.Background(), c.dialTimeout)
	c.abort = cancel
	c.setLocked(Connection{State: Connecting, RetryCount: retries, LastError: lastErr})

	go c.dial(ctx, gen, token)
}

func (c *Channel) dial(ctx context.Context, gen uint64, token string) {
	conn, err := c.dialer.Dial(ctx, token)

	c.mu.Lock()
	if gen != c.gen || c.closed {
		c.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	if c.abort != nil {
		c.abort()
		c.abort = nil
	}
	if err != nil {
		c.failedLocked(err)
		c.mu.Unlock()
		c.publish()
		return
	}

	c.live = conn
	c.setLocked(Connection{State: Connected})
	c.logger.Info().Str("user_id", c.userID).Msg("Event channel connected")
	c.mu.Unlock()
	c.publish()

	c.read(gen, conn)
}

// read delivers events from conn until it fails.
func (c *Channel) read(gen uint64, conn Conn) {
	for {
		e, err := conn.Receive()
		if err != nil {
			var parseErr *errors.ParseError
			if stderrors.As(err, &parseErr) {
				c.logger.Warn().Err(err).Msg("Dropped malformed event")
				continue
			}
			c.lost(gen, err)
			return
		}

		c.mu.Lock()
		current := gen == c.gen
		c.mu.Unlock()
		if !current {
			return
		}
		if !e.AppliesTo(c.src.Current().UserID) {
			c.logger.Debug().Str("kind", string(e.Kind)).Msg("Dropped event for another user")
			continue
		}
		c.dispatch(e)
	}
}

func (c *Channel) reauthenticate(gen uint64, r Reauthenticator, token string) {
	ctx, cancel := c.clock.WithTimeout(context.Background(), c.dialTimeout)
	defer cancel()
	if err := r.Reauthenticate(ctx, token); err != nil {
		c.lost(gen, err)
		return
	}
	c.logger.Debug().Msg("Event channel re-authenticated")
}

// lost handles a transport failure on the connection of generation gen.
func (c *Channel) lost(gen uint64, err error) {
	c.mu.Lock()
	if gen != c.gen || c.closed {
		c.mu.Unlock()
		return
	}
	c.logger.Warn().Err(err).Msg("Event channel lost")
	c.teardownLocked()
	c.failedLocked(err)
	c.mu.Unlock()
	c.publish()
}

// failedLocked records a failed attempt and schedules the next one, or
// gives up once the retry budget is spent.
func (c *Channel) failedLocked(err error) {
	retries := c.conn.RetryCount + 1
	if retries > c.maxRetries {
		exhausted := &errors.ChannelExhaustedError{Attempts: retries, Err: err}
		c.setLocked(Connection{State: Failed, RetryCount: retries, LastError: exhausted})
		c.logger.Error().Err(err).Int("attempts", retries).Msg("Event channel gave up")
		return
	}

	delay := c.backoff.Delay(retries)
	gen := c.gen
	c.setLocked(Connection{State: Reconnecting, RetryCount: retries, LastError: err})
	c.retry = schedule.After(c.clock, delay, func() { c.retryAttempt(gen) })
	c.logger.Debug().Int("attempt", retries).Dur("delay", delay).Msg("Reconnect scheduled")
}

func (c *Channel) retryAttempt(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.closed || c.conn.State != Reconnecting {
		c.mu.Unlock()
		return
	}
	c.retry = nil
	c.connectLocked(c.conn.RetryCount, c.conn.LastError)
	c.mu.Unlock()
	c.publish()
}

// teardownLocked invalidates in-flight work and closes the live connection.
func (c *Channel) teardownLocked() {
	c.gen++
	if c.abort != nil {
		c.abort()
		c.abort = nil
	}
	c.retry.Cancel()
	c.retry = nil
	if c.live != nil {
		live := c.live
		c.live = nil
		go func() { _ = live.Close() }()
	}
}

func (c *Channel) setLocked(next Connection) {
	prev := c.conn
	if next.State == prev.State && next.RetryCount == prev.RetryCount &&
		next.LastError == nil && prev.LastError == nil {
		return
	}
	if next.State != prev.State {
		c.logger.Debug().
			Str("from", prev.State.String()).
			Str("to", next.State.String()).
			Int("retry", next.RetryCount).
			Msg("Channel state changed")
	}
	c.conn = next
	c.pending = append(c.pending, next)
}

// publish delivers queued transitions to listeners. Only one goroutine
// delivers at a time; transitions queued meanwhile are picked up by it, so
// listeners see them in order and may call back into the channel.
func (c *Channel) publish() {
	c.mu.Lock()
	if c.dispatching {
		c.mu.Unlock()
		return
	}
	c.dispatching = true
	for len(c.pending) > 0 {
		next := c.pending[0]
		c.pending = c.pending[1:]
		targets := slices.Clone(c.listeners)
		c.mu.Unlock()

		for _, l := range targets {
			c.notify(l.fn, next)
		}

		c.mu.Lock()
	}
	c.dispatching = false
	c.mu.Unlock()
}

// notify runs one listener. A panicking listener is logged and skipped.
func (c *Channel) notify(fn func(Connection), next Connection) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().
				Interface("panic", r).
				Str("state", next.State.String()).
				Msg("Connection listener panicked")
		}
	}()
	fn(next)
}
