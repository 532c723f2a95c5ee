package session

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/agentstation/queuelink/pkg/logging"
)

// Observer receives every new Session snapshot, in the order changes occur.
type Observer func(Session)

// Source is the read side of the Store. Every component except the auth
// gateway depends on Source rather than on *Store.
type Source interface {
	// Current returns the latest snapshot.
	Current() Session
	// Observe registers o and returns a func that removes it.
	Observe(o Observer) (cancel func())
}

type observer struct {
	id uint64
	fn Observer
}

// Store is the single shared session cell.
//
// Current never blocks. Writes are serialized and queued; the first writer
// delivers the queue to observers before returning, so a write made from
// inside an observer is delivered after the current round and every observer
// sees changes in the order they were made.
type Store struct {
	current atomic.Pointer[Session]

	mu          sync.Mutex
	observers   []observer
	nextID      uint64
	pending     []Session
	dispatching bool
}

var _ Source = (*Store)(nil)

// NewStore returns a store holding an Anonymous session.
func NewStore() *Store {
	s := &Store{}
	initial := New()
	s.current.Store(&initial)
	return s
}

// Current returns the latest snapshot.
func (s *Store) Current() Session {
	return s.current.Load().Clone()
}

// Observe registers o. The returned func is idempotent.
func (s *Store) Observe(o Observer) func() {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.observers = append(s.observers, observer{id: id, fn: o})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.observers = slices.DeleteFunc(s.observers, func(ob observer) bool {
			return ob.id == id
		})
	}
}

// Set replaces the session. Writing a snapshot equal to the current one is a no-op.
func (s *Store) Set(next Session) {
	s.Update(func(Session) (Session, bool) {
		return next, true
	})
}

// Update applies fn to the current snapshot while holding the write lock.
// When fn reports false, or returns a snapshot equal to the current one,
// nothing is written and Update returns false.
func (s *Store) Update(fn func(cur Session) (Session, bool)) bool {
	s.mu.Lock()
	cur := s.current.Load()
	next, ok := fn(cur.Clone())
	if !ok || cur.Equal(next) {
		s.mu.Unlock()
		return false
	}
	next = next.Clone()
	s.current.Store(&next)
	s.pending = append(s.pending, next)

	if s.dispatching {
		s.mu.Unlock()
		return true
	}
	s.dispatching = true
	for len(s.pending) > 0 {
		snap := s.pending[0]
		s.pending = s.pending[1:]
		targets := slices.Clone(s.observers)
		s.mu.Unlock()

		for _, ob := range targets {
			notify(ob.fn, snap.Clone())
		}

		s.mu.Lock()
	}
	s.dispatching = false
	s.mu.Unlock()
	return true
}

func notify(fn Observer, snap Session) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error().
				Str("component", "session").
				Str("panic", fmt.Sprint(r)).
				Msg("Session observer panicked")
		}
	}()
	fn(snap)
}
