package channel

import (
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/agentstation/queuelink/pkg/events"
)

// Handler receives events. A returned error is logged and does not affect
// delivery to other subscribers.
type Handler func(events.Event) error

// Subscription identifies one registered handler.
type Subscription struct {
	ID string
}

type subscriber struct {
	id      string
	handler Handler
	kinds   []events.Kind
}

func (s subscriber) wants(k events.Kind) bool {
	return len(s.kinds) == 0 || slices.Contains(s.kinds, k)
}

// Subscribe registers h for the given kinds, or for every kind when none
// are given. Subscribing the same handler twice yields two deliveries.
func (c *Channel) Subscribe(h Handler, kinds ...events.Kind) Subscription {
	sub := subscriber{
		id:      uuid.NewString(),
		handler: h,
		kinds:   slices.Clone(kinds),
	}

	c.subsMu.Lock()
	c.subs = append(c.subs, sub)
	c.subsMu.Unlock()

	c.logger.Debug().Str("subscription", sub.id).Int("kinds", len(kinds)).Msg("Subscribed")
	return Subscription{ID: sub.id}
}

// Unsubscribe removes sub. Unknown subscriptions are ignored. It is safe to
// call from inside a handler; the event being delivered still reaches every
// subscriber that was registered when its delivery began.
func (c *Channel) Unsubscribe(sub Subscription) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	c.subs = slices.DeleteFunc(c.subs, func(s subscriber) bool {
		return s.id == sub.ID
	})
}

// dispatch delivers e to a snapshot of the subscribers in registration order.
func (c *Channel) dispatch(e events.Event) {
	c.subsMu.Lock()
	targets := slices.Clone(c.subs)
	c.subsMu.Unlock()

	for _, s := range targets {
		if !s.wants(e.Kind) {
			continue
		}
		if err := invoke(s.handler, e); err != nil {
			c.logger.Warn().Err(err).
				Str("subscription", s.id).
				Str("kind", string(e.Kind)).
				Msg("Subscriber failed")
		}
	}
}

func invoke(h Handler, e events.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return h(e)
}
