// Package auth performs login, registration, logout and token refresh
// against the backend and is the only writer of the session store.
//
// At most one login, registration, refresh or restore is in flight at a
// time. A call made while another is pending joins it and receives the same
// result without a second backend call. Logout supersedes whatever is
// pending: the pending call's result is discarded and its callers receive
// errors.ErrSuperseded.
package auth

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/agentstation/queuelink/internal/tokens"
	"github.com/agentstation/queuelink/pkg/constants"
	"github.com/agentstation/queuelink/pkg/errors"
	"github.com/agentstation/queuelink/pkg/logging"
	"github.com/agentstation/queuelink/pkg/session"
)

// flightKey is shared by every state-changing operation so they coalesce.
const flightKey = "session"

// Gateway drives the session state machine.
type Gateway struct {
	backend Backend
	store   *session.Store
	logger  *zerolog.Logger
	clock   clock.Clock
	timeout time.Duration

	flights singleflight.Group
	// epoch advances on logout; results from an older epoch are dropped.
	epoch atomic.Uint64

	mu        sync.Mutex
	onExpired []func(session.Session)
}

// New creates a Gateway with an Anonymous session.
func New(backend Backend, opts ...Option) *Gateway {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return &Gateway{
		backend: backend,
		store:   session.NewStore(),
		logger:  logging.Component(o.logger, "auth"),
		clock:   o.clock,
		timeout: o.timeout,
	}
}

// Store returns the read side of the session store.
func (g *Gateway) Store() session.Source {
	return g.store
}

// OnExpired registers fn to run after a failed refresh signs the user out.
// fn receives the Expired snapshot.
func (g *Gateway) OnExpired(fn func(session.Session)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onExpired = append(g.onExpired, fn)
}

// Login validates creds locally and exchanges them for a session.
//
// A rejected login moves the session through Error to Anonymous and returns
// a *errors.CredentialsError. A network failure or timeout leaves the session
// as it was and returns a retryable error.
func (g *Gateway) Login(ctx context.Context, creds Credentials) (session.Session, error) {
	creds = creds.Normalize()
	if err := creds.Validate(); err != nil {
		return g.store.Current(), err
	}
	return g.do(ctx, "login", func(ctx context.Context) (Grant, error) {
		return g.backend.Login(ctx, creds.Identifier, creds.Secret)
	})
}

// Register validates profile locally, creates the account and signs it in.
// A duplicate email or phone is returned as a *errors.ConflictError.
func (g *Gateway) Register(ctx context.Context, profile Profile) (session.Session, error) {
	profile = profile.Normalize()
	if err := profile.Validate(); err != nil {
		return g.store.Current(), err
	}
	return g.do(ctx, "register", func(ctx context.Context) (Grant, error) {
		return g.backend.Register(ctx, profile)
	})
}

// Logout signs the user out immediately and then tells the backend.
// It always returns nil; a failed backend call is only logged.
func (g *Gateway) Logout(ctx context.Context) error {
	var prev session.Session
	g.store.Update(func(cur session.Session) (session.Session, bool) {
		prev = cur
		g.epoch.Add(1)
		return session.New(), true
	})
	g.flights.Forget(flightKey)

	if prev.Token == "" {
		return nil
	}
	g.logger.Debug().Str("user_id", prev.UserID).Msg("Signed out")

	callCtx, cancel := g.clock.WithTimeout(context.WithoutCancel(ctx), constants.LogoutTimeout)
	defer cancel()
	if err := g.backend.Logout(callCtx, prev.Token); err != nil {
		g.logger.Warn().Err(err).Str("user_id", prev.UserID).Msg("Backend logout failed")
	}
	return nil
}

// Refresh exchanges the refresh token for a new access token.
// Any failure expires the session: it moves through Expired to Anonymous
// and the OnExpired callbacks run.
func (g *Gateway) Refresh(ctx context.Context) (session.Session, error) {
	v, err, _ := g.flights.Do(flightKey, func() (any, error) {
		return g.refresh(ctx)
	})
	return v.(session.Session), err
}

// HandleAuthorizationFailure reacts to a request refused for an expired
// token by refreshing.
func (g *Gateway) HandleAuthorizationFailure(ctx context.Context) error {
	g.logger.Debug().Msg("Authorization failure reported, refreshing")
	_, err := g.Refresh(ctx)
	return err
}

// Restore re-validates a persisted session. A persisted token that is
// expired or refused by the backend leaves the session Anonymous and is not
// an error; only a failure to reach the backend is returned.
func (g *Gateway) Restore(ctx context.Context, persisted session.Session) (session.Session, error) {
	if persisted.Token == "" {
		return g.store.Current(), nil
	}
	now := g.clock.Now()
	if tokens.Expired(persisted.Token, now) ||
		(!persisted.TokenExpiry.IsZero() && !persisted.TokenExpiry.After(now)) {
		g.logger.Debug().Msg("Persisted token expired, staying anonymous")
		return g.store.Current(), nil
	}

	v, err, _ := g.flights.Do(flightKey, func() (any, error) {
		return g.restore(ctx, persisted)
	})
	return v.(session.Session), err
}

func (g *Gateway) do(ctx context.Context, op string, call func(context.Context) (Grant, error)) (session.Session, error) {
	v, err, shared := g.flights.Do(flightKey, func() (any, error) {
		return g.authenticate(ctx, op, call)
	})
	if shared {
		g.logger.Debug().Str("operation", op).Msg("Joined pending operation")
	}
	return v.(session.Session), err
}

func (g *Gateway) authenticate(ctx context.Context, op string, call func(context.Context) (Grant, error)) (session.Session, error) {
	// A signed-in user keeps the current session until the new one is
	// granted, so a failed re-login changes nothing observers can see.
	prev, epoch := g.begin(func(cur session.Session) (session.Session, bool) {
		if cur.Status == session.Authenticated {
			return cur, false
		}
		return session.Session{Status: session.Authenticating}, true
	})

	grant, err := g.call(ctx, op, call)
	if err != nil && prev.Status == session.Authenticated {
		g.logger.Debug().Str("operation", op).Err(err).Msg("Sign-in failed, keeping current session")
		return g.store.Current(), err
	}
	if err != nil {
		if errors.IsCredentials(err) || errors.IsConflict(err) {
			failed := session.Session{Status: session.Error, Message: errors.UserMessage(err)}
			if !g.commit(epoch, failed) {
				return g.store.Current(), errors.ErrSuperseded
			}
			g.commit(epoch, session.New())
			g.logger.Debug().Str("operation", op).Err(err).Msg("Credentials rejected")
			return failed, err
		}
		g.commit(epoch, prev)
		return g.store.Current(), err
	}

	next := g.fromGrant(grant, session.Session{})
	if !g.commit(epoch, next) {
		return g.store.Current(), errors.ErrSuperseded
	}
	g.logger.Debug().Str("operation", op).Object("session", next).Msg("Authenticated")
	return next, nil
}

func (g *Gateway) refresh(ctx context.Context) (session.Session, error) {
	var prev session.Session
	_, epoch := g.begin(func(cur session.Session) (session.Session, bool) {
		prev = cur
		if cur.Status != session.Authenticated {
			return cur, false
		}
		cur.Status = session.Refreshing
		return cur, true
	})
	if prev.Status != session.Authenticated {
		return prev, errors.ErrNotAuthenticated
	}

	presented := prev.RefreshToken
	if presented == "" {
		presented = prev.Token
	}
	grant, err := g.call(ctx, "refresh", func(ctx context.Context) (Grant, error) {
		return g.backend.Refresh(ctx, presented)
	})
	if err != nil {
		return g.expire(epoch, prev, err)
	}

	next := g.fromGrant(grant, prev)
	if !g.commit(epoch, next) {
		return g.store.Current(), errors.ErrSuperseded
	}
	g.logger.Debug().Object("session", next).Msg("Token refreshed")
	return next, nil
}

func (g *Gateway) restore(ctx context.Context, persisted session.Session) (session.Session, error) {
	prev, epoch := g.begin(func(session.Session) (session.Session, bool) {
		return session.Session{Status: session.Authenticating}, true
	})

	var id Identity
	_, err := g.call(ctx, "verify", func(ctx context.Context) (Grant, error) {
		var err error
		id, err = g.backend.Verify(ctx, persisted.Token)
		return Grant{Token: persisted.Token}, err
	})
	if err != nil {
		retryable := errors.IsRetryable(err) && !errors.IsAuthorizationExpired(err)
		if retryable {
			g.commit(epoch, prev)
		} else {
			g.commit(epoch, session.New())
		}
		g.logger.Debug().Err(err).Msg("Persisted session rejected")
		if retryable {
			return g.store.Current(), err
		}
		return g.store.Current(), nil
	}

	next := g.fromGrant(Grant{
		UserID:       id.UserID,
		Roles:        id.Roles,
		Token:        persisted.Token,
		RefreshToken: persisted.RefreshToken,
		ExpiresAt:    persisted.TokenExpiry,
	}, persisted)
	if !g.commit(epoch, next) {
		return g.store.Current(), errors.ErrSuperseded
	}
	g.logger.Debug().Object("session", next).Msg("Session restored")
	return next, nil
}

// expire moves the session through Expired to Anonymous and runs the
// OnExpired callbacks.
func (g *Gateway) expire(epoch uint64, prev session.Session, cause error) (session.Session, error) {
	expired := session.Session{
		UserID:  prev.UserID,
		Roles:   prev.Roles,
		Status:  session.Expired,
		Message: "Your session has expired. Please sign in again.",
	}
	if !g.commit(epoch, expired) {
		return g.store.Current(), errors.ErrSuperseded
	}
	g.commit(epoch, session.New())
	g.logger.Info().Err(cause).Str("user_id", prev.UserID).Msg("Refresh failed, session expired")

	g.mu.Lock()
	callbacks := append([]func(session.Session){}, g.onExpired...)
	g.mu.Unlock()
	for _, fn := range callbacks {
		fn(expired.Clone())
	}

	return session.New(), &errors.AuthorizationExpiredError{Endpoint: "refresh", Err: cause}
}

// begin applies fn and returns the snapshot it replaced along with the
// current epoch.
func (g *Gateway) begin(fn func(session.Session) (session.Session, bool)) (session.Session, uint64) {
	var prev session.Session
	var epoch uint64
	g.store.Update(func(cur session.Session) (session.Session, bool) {
		prev = cur
		epoch = g.epoch.Load()
		return fn(cur)
	})
	return prev, epoch
}

// commit writes next unless a logout has happened since epoch was taken.
func (g *Gateway) commit(epoch uint64, next session.Session) bool {
	stale := false
	g.store.Update(func(cur session.Session) (session.Session, bool) {
		if g.epoch.Load() != epoch {
			stale = true
			return cur, false
		}
		return next, true
	})
	return !stale
}

// call runs a backend call under the gateway's deadline. The caller's
// cancellation is not propagated because joined callers share the result.
func (g *Gateway) call(ctx context.Context, op string, fn func(context.Context) (Grant, error)) (Grant, error) {
	if logging.RequestID(ctx) == "" {
		ctx = logging.WithRequestID(ctx, uuid.NewString())
	}
	callCtx, cancel := g.clock.WithTimeout(context.WithoutCancel(ctx), g.timeout)
	defer cancel()

	grant, err := fn(callCtx)
	if err == nil && grant.Token == "" {
		return grant, &errors.APIError{Endpoint: op, Message: "response carried no access token"}
	}
	if err != nil && stderrors.Is(callCtx.Err(), context.DeadlineExceeded) && !errors.IsTimeout(err) {
		err = errors.NewTimeoutError(op, g.timeout.String(), err.Error())
	}
	if err != nil {
		g.logger.Debug().
			Str("operation", op).
			Str("request_id", logging.RequestID(callCtx)).
			Err(err).
			Msg("Backend call failed")
	}
	return grant, err
}

// fromGrant builds an Authenticated session, keeping identity fields from
// base when the grant omits them.
func (g *Gateway) fromGrant(grant Grant, base session.Session) session.Session {
	next := base.Clone()
	next.Status = session.Authenticated
	next.Message = ""
	next.Token = grant.Token
	if grant.UserID != "" {
		next.UserID = grant.UserID
	}
	if len(grant.Roles) > 0 {
		next.Roles = append([]session.Role(nil), grant.Roles...)
	}
	if grant.RefreshToken != "" {
		next.RefreshToken = grant.RefreshToken
	}

	next.TokenExpiry = grant.ExpiresAt
	if next.TokenExpiry.IsZero() {
		next.TokenExpiry = tokens.ExpiresAt(grant.Token)
	}
	if next.TokenExpiry.IsZero() {
		next.TokenExpiry = g.clock.Now().Add(constants.DefaultTokenLifetime)
	}
	return next
}
