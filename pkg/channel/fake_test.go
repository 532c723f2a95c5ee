package channel

import (
	"context"
	"io"
	"sync"

	"github.com/agentstation/queuelink/pkg/events"
)

type fakeConn struct {
	events chan events.Event
	fail   chan error
	closed chan struct{}
	once   sync.Once

	mu     sync.Mutex
	tokens []string
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		events: make(chan events.Event, 16),
		fail:   make(chan error, 1),
		closed: make(chan struct{}),
	}
}

func (f *fakeConn) Receive() (events.Event, error) {
	select {
	case e := <-f.events:
		return e, nil
	case err := <-f.fail:
		return events.Event{}, err
	case <-f.closed:
		return events.Event{}, io.EOF
	}
}

func (f *fakeConn) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeConn) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

// reauthConn is a fakeConn that accepts new tokens in place.
type reauthConn struct {
	*fakeConn
}

func (r reauthConn) Reauthenticate(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens = append(r.tokens, token)
	return nil
}

func (r reauthConn) reauthTokens() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.tokens...)
}

type fakeDialer struct {
	mu     sync.Mutex
	tokens []string
	errs   []error
	block  chan struct{}
	reauth bool
	conns  chan *fakeConn
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{conns: make(chan *fakeConn, 32)}
}

func (d *fakeDialer) Dial(ctx context.Context, token string) (Conn, error) {
	d.mu.Lock()
	d.tokens = append(d.tokens, token)
	var err error
	if len(d.errs) > 0 {
		err, d.errs = d.errs[0], d.errs[1:]
	}
	block, reauth := d.block, d.reauth
	d.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}

	conn := newFakeConn()
	d.conns <- conn
	if reauth {
		return reauthConn{conn}, nil
	}
	return conn, nil
}

func (d *fakeDialer) dialed() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.tokens...)
}
