package auth

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agentstation/queuelink/pkg/logging"
	"github.com/agentstation/queuelink/pkg/session"
)

// fakeBackend is an in-memory Backend. A non-nil gate blocks Login and
// Refresh until it is closed.
type fakeBackend struct {
	mu sync.Mutex

	loginGrant   Grant
	loginErr     error
	refreshGrant Grant
	refreshErr   error
	logoutErr    error
	identity     Identity
	verifyErr    error
	registerErr  error
	gate         chan struct{}

	loginCalls    atomic.Int32
	refreshCalls  atomic.Int32
	logoutCalls   atomic.Int32
	verifyCalls   atomic.Int32
	registerCalls atomic.Int32

	lastIdentifier string
	lastRequestID  string
	lastRefresh    string
	lastProfile    Profile
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		loginGrant: Grant{
			UserID:       "user-1",
			Roles:        []session.Role{session.RoleCitizen},
			Token:        "access-1",
			RefreshToken: "refresh-1",
			ExpiresAt:    time.Now().Add(time.Hour),
		},
		refreshGrant: Grant{
			Token:     "access-2",
			ExpiresAt: time.Now().Add(2 * time.Hour),
		},
		identity: Identity{UserID: "user-1", Roles: []session.Role{session.RoleStaff}},
	}
}

func (f *fakeBackend) wait(ctx context.Context) error {
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()
	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeBackend) Login(ctx context.Context, identifier, _ string) (Grant, error) {
	f.loginCalls.Add(1)
	f.mu.Lock()
	f.lastIdentifier = identifier
	f.lastRequestID = logging.RequestID(ctx)
	f.mu.Unlock()
	if err := f.wait(ctx); err != nil {
		return Grant{}, err
	}
	return f.loginGrant, f.loginErr
}

func (f *fakeBackend) Register(_ context.Context, profile Profile) (Grant, error) {
	f.registerCalls.Add(1)
	f.mu.Lock()
	f.lastProfile = profile
	f.mu.Unlock()
	return f.loginGrant, f.registerErr
}

func (f *fakeBackend) Refresh(ctx context.Context, refreshToken string) (Grant, error) {
	f.refreshCalls.Add(1)
	f.mu.Lock()
	f.lastRefresh = refreshToken
	f.mu.Unlock()
	if err := f.wait(ctx); err != nil {
		return Grant{}, err
	}
	return f.refreshGrant, f.refreshErr
}

func (f *fakeBackend) Logout(context.Context, string) error {
	f.logoutCalls.Add(1)
	return f.logoutErr
}

func (f *fakeBackend) Verify(context.Context, string) (Identity, error) {
	f.verifyCalls.Add(1)
	return f.identity, f.verifyErr
}
