package queuelink

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agentstation/queuelink/pkg/auth"
	"github.com/agentstation/queuelink/pkg/channel"
	"github.com/agentstation/queuelink/pkg/events"
	"github.com/agentstation/queuelink/pkg/guard"
	"github.com/agentstation/queuelink/pkg/notify"
	"github.com/agentstation/queuelink/pkg/session"
)

// fakeBackend is an in-memory auth.Backend.
type fakeBackend struct {
	mu           sync.Mutex
	expiresIn    time.Duration
	now          func() time.Time
	verifyErr    error
	refreshErr   error
	refreshToken string

	loginCalls   atomic.Int32
	refreshCalls atomic.Int32
	verifyCalls  atomic.Int32
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{expiresIn: time.Hour, now: time.Now, refreshToken: "access-2"}
}

func (f *fakeBackend) grant(token string) auth.Grant {
	f.mu.Lock()
	defer f.mu.Unlock()
	return auth.Grant{
		UserID:       "user-1",
		Roles:        []session.Role{session.RoleCitizen},
		Token:        token,
		RefreshToken: "refresh-1",
		ExpiresAt:    f.now().Add(f.expiresIn),
	}
}

func (f *fakeBackend) Login(_ context.Context, _, _ string) (auth.Grant, error) {
	f.loginCalls.Add(1)
	return f.grant("access-1"), nil
}

func (f *fakeBackend) Register(_ context.Context, _ auth.Profile) (auth.Grant, error) {
	return f.grant("access-1"), nil
}

func (f *fakeBackend) Refresh(_ context.Context, _ string) (auth.Grant, error) {
	f.refreshCalls.Add(1)
	f.mu.Lock()
	err, token := f.refreshErr, f.refreshToken
	f.mu.Unlock()
	if err != nil {
		return auth.Grant{}, err
	}
	return f.grant(token), nil
}

func (f *fakeBackend) Logout(_ context.Context, _ string) error {
	return nil
}

func (f *fakeBackend) Verify(_ context.Context, _ string) (auth.Identity, error) {
	f.verifyCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.verifyErr != nil {
		return auth.Identity{}, f.verifyErr
	}
	return auth.Identity{UserID: "user-1", Roles: []session.Role{session.RoleStaff}}, nil
}

// fakeConn delivers events pushed onto its channel.
type fakeConn struct {
	events chan events.Event
	closed chan struct{}
	once   sync.Once
}

func (c *fakeConn) Receive() (events.Event, error) {
	select {
	case e := <-c.events:
		return e, nil
	case <-c.closed:
		return events.Event{}, io.EOF
	}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

// fakeDialer hands out connections and records the tokens used.
type fakeDialer struct {
	mu     sync.Mutex
	conns  []*fakeConn
	tokens []string
}

func (d *fakeDialer) Dial(_ context.Context, token string) (channel.Conn, error) {
	c := &fakeConn{events: make(chan events.Event, 8), closed: make(chan struct{})}
	d.mu.Lock()
	d.conns = append(d.conns, c)
	d.tokens = append(d.tokens, token)
	d.mu.Unlock()
	return c, nil
}

func (d *fakeDialer) last() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

// recorder captures notifications, invalidations and redirects.
type recorder struct {
	mu          sync.Mutex
	shown       []notify.Descriptor
	invalidated []string
	redirects   []string
}

func (r *recorder) Show(d notify.Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shown = append(r.shown, d)
}

func (r *recorder) Invalidate(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invalidated = append(r.invalidated, key)
}

func (r *recorder) RedirectToLogin(from string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.redirects = append(r.redirects, guard.LoginPath+"?from="+from)
}

func (r *recorder) RedirectToHome() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.redirects = append(r.redirects, guard.HomePath)
}

func (r *recorder) snapshot() (shown []notify.Descriptor, invalidated, redirects []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Descriptor(nil), r.shown...),
		append([]string(nil), r.invalidated...),
		append([]string(nil), r.redirects...)
}
