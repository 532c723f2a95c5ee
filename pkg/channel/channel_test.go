package channel

import (
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/queuelink/pkg/errors"
	"github.com/agentstation/queuelink/pkg/events"
	"github.com/agentstation/queuelink/pkg/session"
)

const wait = 2 * time.Second

func signedIn(user, token string) session.Session {
	return session.Session{
		UserID:      user,
		Roles:       []session.Role{session.RoleCitizen},
		Token:       token,
		TokenExpiry: time.Now().Add(time.Hour),
		Status:      session.Authenticated,
	}
}

type harness struct {
	store  *session.Store
	dialer *fakeDialer
	clock  *clock.Mock
	ch     *Channel
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		store:  session.NewStore(),
		dialer: newFakeDialer(),
		clock:  clock.NewMock(),
	}
	logger := zerolog.Nop()
	base := []Option{
		WithLogger(&logger),
		WithClock(h.clock),
		WithBackoff(Backoff{Base: time.Second, Max: 4 * time.Second}),
	}
	h.ch = New(h.store, h.dialer, append(base, opts...)...)
	t.Cleanup(func() { _ = h.ch.Close() })
	return h
}

func (h *harness) waitState(t *testing.T, want State) {
	t.Helper()
	require.Eventually(t, func() bool {
		return h.ch.Connection().State == want
	}, wait, time.Millisecond, "want %s, have %s", want, h.ch.Connection().State)
}

func (h *harness) nextConn(t *testing.T) *fakeConn {
	t.Helper()
	select {
	case c := <-h.dialer.conns:
		return c
	case <-time.After(wait):
		t.Fatal("no connection dialed")
		return nil
	}
}

func event(kind events.Kind, target string, payload any) events.Event {
	return events.Event{Kind: kind, Timestamp: time.Now(), TargetUserID: target, Payload: payload}
}

// collector records deliveries from a handler.
type collector struct {
	mu  sync.Mutex
	got []events.Event
}

func (c *collector) handle(e events.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, e)
	return nil
}

func (c *collector) events() []events.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]events.Event(nil), c.got...)
}

func (c *collector) len() int {
	return len(c.events())
}

func TestStaysDisconnectedWhileAnonymous(t *testing.T) {
	h := newHarness(t)
	h.ch.Start()

	assert.Equal(t, Disconnected, h.ch.Connection().State)
	time.Sleep(10 * time.Millisecond)
	assert.Empty(t, h.dialer.dialed())
}

func TestConnectsWhenAuthenticated(t *testing.T) {
	h := newHarness(t)
	var mu sync.Mutex
	var states []State
	h.ch.OnStateChange(func(c Connection) {
		mu.Lock()
		states = append(states, c.State)
		mu.Unlock()
	})

	h.store.Set(signedIn("u1", "tok-1"))
	h.ch.Start()
	h.waitState(t, Connected)
	assert.Equal(t, []string{"tok-1"}, h.dialer.dialed())

	h.store.Set(session.New())
	h.waitState(t, Disconnected)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []State{Connecting, Connected, Disconnected}, states)
}

func TestDeliveryOrderAndFiltering(t *testing.T) {
	h := newHarness(t)
	h.store.Set(signedIn("u1", "tok-1"))

	all, queueOnly := &collector{}, &collector{}
	h.ch.Subscribe(all.handle)
	h.ch.Subscribe(queueOnly.handle, events.QueuePositionUpdated)

	h.ch.Start()
	conn := h.nextConn(t)

	conn.events <- event(events.QueuePositionUpdated, "u1", events.QueuePosition{Position: 3})
	conn.events <- event(events.AppointmentStatusChanged, "u2", events.AppointmentStatus{AppointmentID: "foreign"})
	conn.events <- event(events.QueuePositionUpdated, "u1", events.QueuePosition{Position: 2})
	conn.events <- event(events.SystemNotice, "", events.Notice{Message: "broadcast"})

	require.Eventually(t, func() bool { return all.len() == 3 }, wait, time.Millisecond)

	got := all.events()
	assert.Equal(t, 3, got[0].Payload.(events.QueuePosition).Position)
	assert.Equal(t, 2, got[1].Payload.(events.QueuePosition).Position)
	assert.Equal(t, events.SystemNotice, got[2].Kind)

	q := queueOnly.events()
	require.Len(t, q, 2)
	assert.Equal(t, 3, q[0].Payload.(events.QueuePosition).Position)
}

func TestFailingSubscriberDoesNotBlockOthers(t *testing.T) {
	h := newHarness(t)
	h.store.Set(signedIn("u1", "tok-1"))

	after := &collector{}
	h.ch.Subscribe(func(events.Event) error { return stderrors.New("render failed") })
	h.ch.Subscribe(func(events.Event) error { panic("boom") })
	h.ch.Subscribe(after.handle)

	h.ch.Start()
	conn := h.nextConn(t)
	conn.events <- event(events.SystemNotice, "u1", events.Notice{Message: "hi"})
	conn.events <- event(events.SystemNotice, "u1", events.Notice{Message: "again"})

	require.Eventually(t, func() bool { return after.len() == 2 }, wait, time.Millisecond)
	assert.Equal(t, Connected, h.ch.Connection().State)
}

func TestUnsubscribeDuringDelivery(t *testing.T) {
	h := newHarness(t)
	h.store.Set(signedIn("u1", "tok-1"))

	first, last := &collector{}, &collector{}
	h.ch.Subscribe(first.handle)
	var self Subscription
	selfCalls := 0
	self = h.ch.Subscribe(func(events.Event) error {
		selfCalls++
		h.ch.Unsubscribe(self)
		return nil
	})
	h.ch.Subscribe(last.handle)
	h.ch.Unsubscribe(Subscription{ID: "unknown"})

	h.ch.Start()
	conn := h.nextConn(t)
	conn.events <- event(events.SystemNotice, "u1", events.Notice{Message: "one"})
	conn.events <- event(events.SystemNotice, "u1", events.Notice{Message: "two"})

	require.Eventually(t, func() bool { return last.len() == 2 }, wait, time.Millisecond)
	assert.Equal(t, 2, first.len())
	assert.Equal(t, 1, selfCalls)
}

func TestDuplicateSubscriptionsBothDeliver(t *testing.T) {
	h := newHarness(t)
	h.store.Set(signedIn("u1", "tok-1"))

	c := &collector{}
	a := h.ch.Subscribe(c.handle)
	b := h.ch.Subscribe(c.handle)
	assert.NotEqual(t, a, b)

	h.ch.Start()
	conn := h.nextConn(t)
	conn.events <- event(events.SystemNotice, "u1", events.Notice{})
	require.Eventually(t, func() bool { return c.len() == 2 }, wait, time.Millisecond)
}

func TestReconnectsWithBackoff(t *testing.T) {
	h := newHarness(t)
	h.store.Set(signedIn("u1", "tok-1"))
	h.ch.Start()

	conn := h.nextConn(t)
	h.waitState(t, Connected)

	h.dialer.mu.Lock()
	h.dialer.errs = []error{stderrors.New("refused")}
	h.dialer.mu.Unlock()

	conn.fail <- stderrors.New("connection reset")
	h.waitState(t, Reconnecting)
	assert.Equal(t, 1, h.ch.Connection().RetryCount)

	// first retry after base delay fails
	h.clock.Add(time.Second)
	require.Eventually(t, func() bool {
		c := h.ch.Connection()
		return c.State == Reconnecting && c.RetryCount == 2
	}, wait, time.Millisecond)

	// second retry waits twice as long
	h.clock.Add(time.Second)
	time.Sleep(10 * time.Millisecond)
	assert.Len(t, h.dialer.dialed(), 2)
	h.clock.Add(time.Second)

	h.nextConn(t)
	h.waitState(t, Connected)
	assert.Equal(t, 0, h.ch.Connection().RetryCount)
	assert.True(t, conn.isClosed())
}

func TestPanickingListenerDoesNotStopChannel(t *testing.T) {
	h := newHarness(t)
	h.ch.OnStateChange(func(c Connection) {
		if c.State == Reconnecting {
			panic("listener bug")
		}
	})
	var mu sync.Mutex
	var states []State
	h.ch.OnStateChange(func(c Connection) {
		mu.Lock()
		states = append(states, c.State)
		mu.Unlock()
	})

	h.store.Set(signedIn("u1", "tok-1"))
	h.ch.Start()
	conn := h.nextConn(t)
	h.waitState(t, Connected)

	conn.fail <- stderrors.New("connection reset")
	h.waitState(t, Reconnecting)

	h.clock.Add(time.Second)
	h.nextConn(t)
	h.waitState(t, Connected)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []State{Connecting, Connected, Reconnecting, Connecting, Connected}, states)
}

func TestExhaustionThenNewSession(t *testing.T) {
	h := newHarness(t, WithMaxRetries(2))
	refused := stderrors.New("refused")
	h.dialer.errs = []error{refused, refused, refused}

	h.store.Set(signedIn("u1", "tok-1"))
	h.ch.Start()

	h.waitState(t, Reconnecting)
	h.clock.Add(time.Second)
	require.Eventually(t, func() bool { return h.ch.Connection().RetryCount == 2 }, wait, time.Millisecond)
	h.clock.Add(2 * time.Second)
	h.waitState(t, Failed)

	c := h.ch.Connection()
	assert.True(t, c.Degraded())
	assert.ErrorIs(t, c.LastError, errors.ErrChannelExhausted)
	assert.ErrorIs(t, c.LastError, refused)

	// Failed stays put until a new authenticated session arrives.
	h.clock.Add(time.Minute)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, Failed, h.ch.Connection().State)

	h.store.Set(signedIn("u1", "tok-2"))
	h.waitState(t, Connected)
	assert.Equal(t, "tok-2", h.dialer.dialed()[3])
}

func TestLogoutWhileReconnectingDisconnects(t *testing.T) {
	h := newHarness(t)
	h.dialer.errs = []error{stderrors.New("refused")}
	h.store.Set(signedIn("u1", "tok-1"))
	h.ch.Start()
	h.waitState(t, Reconnecting)

	h.store.Set(session.New())
	h.waitState(t, Disconnected)

	h.clock.Add(time.Minute)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, Disconnected, h.ch.Connection().State)
	assert.Len(t, h.dialer.dialed(), 1)
}

func TestLeavingAuthenticatedWhileConnecting(t *testing.T) {
	h := newHarness(t)
	h.dialer.block = make(chan struct{})
	h.store.Set(signedIn("u1", "tok-1"))
	h.ch.Start()
	h.waitState(t, Connecting)

	h.store.Set(session.Session{Status: session.Expired, UserID: "u1"})
	assert.Equal(t, Disconnected, h.ch.Connection().State)

	close(h.dialer.block)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, Disconnected, h.ch.Connection().State)
}

func TestRefreshParksAndResumes(t *testing.T) {
	h := newHarness(t)
	s := signedIn("u1", "tok-1")
	h.store.Set(s)
	h.ch.Start()
	first := h.nextConn(t)
	h.waitState(t, Connected)

	refreshing := s.Clone()
	refreshing.Status = session.Refreshing
	h.store.Set(refreshing)
	h.waitState(t, Reconnecting)
	require.Eventually(t, first.isClosed, wait, time.Millisecond)

	h.clock.Add(time.Minute)
	time.Sleep(10 * time.Millisecond)
	assert.Len(t, h.dialer.dialed(), 1)

	h.store.Set(signedIn("u1", "tok-2"))
	h.nextConn(t)
	h.waitState(t, Connected)
	assert.Equal(t, []string{"tok-1", "tok-2"}, h.dialer.dialed())
}

func TestTokenChangeReauthenticatesInPlace(t *testing.T) {
	h := newHarness(t)
	h.dialer.reauth = true
	h.store.Set(signedIn("u1", "tok-1"))
	h.ch.Start()
	conn := h.nextConn(t)
	h.waitState(t, Connected)

	h.store.Set(signedIn("u1", "tok-2"))

	rc := reauthConn{conn}
	require.Eventually(t, func() bool { return len(rc.reauthTokens()) == 1 }, wait, time.Millisecond)
	assert.Equal(t, []string{"tok-2"}, rc.reauthTokens())
	assert.Len(t, h.dialer.dialed(), 1)
	assert.Equal(t, Connected, h.ch.Connection().State)
}

func TestUserSwitchReconnects(t *testing.T) {
	h := newHarness(t)
	h.dialer.reauth = true
	h.store.Set(signedIn("u1", "tok-1"))
	h.ch.Start()
	first := h.nextConn(t)
	h.waitState(t, Connected)

	h.store.Set(signedIn("u2", "tok-9"))
	h.nextConn(t)
	h.waitState(t, Connected)
	require.Eventually(t, first.isClosed, wait, time.Millisecond)
	assert.Equal(t, []string{"tok-1", "tok-9"}, h.dialer.dialed())
}

func TestMalformedFrameKeepsConnection(t *testing.T) {
	h := newHarness(t)
	h.store.Set(signedIn("u1", "tok-1"))
	c := &collector{}
	h.ch.Subscribe(c.handle)
	h.ch.Start()
	conn := h.nextConn(t)

	conn.fail <- &errors.ParseError{Format: "json", Message: "unexpected EOF"}
	conn.events <- event(events.SystemNotice, "u1", events.Notice{})
	require.Eventually(t, func() bool { return c.len() == 1 }, wait, time.Millisecond)
	assert.Equal(t, Connected, h.ch.Connection().State)
}

func TestClose(t *testing.T) {
	h := newHarness(t)
	h.store.Set(signedIn("u1", "tok-1"))
	h.ch.Start()
	conn := h.nextConn(t)
	h.waitState(t, Connected)

	require.NoError(t, h.ch.Close())
	require.NoError(t, h.ch.Close())
	assert.Equal(t, Disconnected, h.ch.Connection().State)
	require.Eventually(t, conn.isClosed, wait, time.Millisecond)

	// A closed channel ignores the session.
	h.store.Set(signedIn("u1", "tok-2"))
	h.ch.Start()
	time.Sleep(10 * time.Millisecond)
	assert.Len(t, h.dialer.dialed(), 1)
}
