package queuelink

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/queuelink/pkg/errors"
	"github.com/agentstation/queuelink/pkg/session"
)

func newRefreshHarness(t *testing.T, expiresIn time.Duration, opts ...Option) (Client, *fakeBackend, *clock.Mock) {
	t.Helper()
	mock := clock.NewMock()
	backend := newFakeBackend()
	backend.now = mock.Now
	backend.expiresIn = expiresIn

	base := []Option{WithBackend(backend), WithClock(mock), WithRefreshLead(time.Minute)}
	c := newTestClient(t, append(base, opts...)...)

	_, err := c.Login(context.Background(), creds)
	require.NoError(t, err)
	return c, backend, mock
}

func TestAutoRefresh(t *testing.T) {
	t.Run("refreshes lead before expiry", func(t *testing.T) {
		c, backend, mock := newRefreshHarness(t, 10*time.Minute)

		mock.Add(8 * time.Minute)
		assert.Never(t, func() bool { return backend.refreshCalls.Load() > 0 }, 50*time.Millisecond, 5*time.Millisecond)

		mock.Add(time.Minute)
		require.Eventually(t, func() bool {
			return c.Session().Token == "access-2"
		}, time.Second, 5*time.Millisecond)
		assert.Equal(t, int32(1), backend.refreshCalls.Load())
		assert.Equal(t, session.Authenticated, c.Session().Status)

		// rescheduled from the new expiry
		mock.Add(8 * time.Minute)
		assert.Never(t, func() bool { return backend.refreshCalls.Load() > 1 }, 50*time.Millisecond, 5*time.Millisecond)
		mock.Add(time.Minute)
		require.Eventually(t, func() bool { return backend.refreshCalls.Load() == 2 }, time.Second, 5*time.Millisecond)
	})

	t.Run("near expiry waits the minimum delay", func(t *testing.T) {
		_, backend, mock := newRefreshHarness(t, 30*time.Second)

		mock.Add(500 * time.Millisecond)
		assert.Never(t, func() bool { return backend.refreshCalls.Load() > 0 }, 50*time.Millisecond, 5*time.Millisecond)

		mock.Add(500 * time.Millisecond)
		require.Eventually(t, func() bool { return backend.refreshCalls.Load() == 1 }, time.Second, 5*time.Millisecond)
	})

	t.Run("off cancels", func(t *testing.T) {
		c, backend, mock := newRefreshHarness(t, 10*time.Minute)

		require.NoError(t, c.AutoRefreshOff())
		mock.Add(10 * time.Minute)
		assert.Never(t, func() bool { return backend.refreshCalls.Load() > 0 }, 50*time.Millisecond, 5*time.Millisecond)

		require.NoError(t, c.AutoRefreshOn())
		mock.Add(time.Second)
		require.Eventually(t, func() bool { return backend.refreshCalls.Load() == 1 }, time.Second, 5*time.Millisecond)
	})

	t.Run("disabled by option", func(t *testing.T) {
		_, backend, mock := newRefreshHarness(t, 10*time.Minute, WithAutoRefresh(false))

		mock.Add(10 * time.Minute)
		assert.Never(t, func() bool { return backend.refreshCalls.Load() > 0 }, 50*time.Millisecond, 5*time.Millisecond)
	})

	t.Run("logout cancels", func(t *testing.T) {
		c, backend, mock := newRefreshHarness(t, 10*time.Minute)

		require.NoError(t, c.Logout(context.Background()))
		mock.Add(10 * time.Minute)
		assert.Never(t, func() bool { return backend.refreshCalls.Load() > 0 }, 50*time.Millisecond, 5*time.Millisecond)
	})

	t.Run("failure signs out and notifies", func(t *testing.T) {
		rec := &recorder{}
		c, backend, mock := newRefreshHarness(t, 10*time.Minute, WithRenderer(rec))
		backend.mu.Lock()
		backend.refreshErr = &errors.CredentialsError{Operation: "refresh", Message: "Invalid token"}
		backend.mu.Unlock()

		mock.Add(9 * time.Minute)
		require.Eventually(t, func() bool {
			return c.Session().Status == session.Anonymous
		}, time.Second, 5*time.Millisecond)
		require.Eventually(t, func() bool {
			shown, _, _ := rec.snapshot()
			return len(shown) == 1
		}, time.Second, 5*time.Millisecond)
		shown, _, _ := rec.snapshot()
		assert.Equal(t, "Signed out", shown[0].Title)
	})
}
