package channel

import (
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/agentstation/queuelink/pkg/constants"
	"github.com/agentstation/queuelink/pkg/logging"
)

type options struct {
	logger      *zerolog.Logger
	clock       clock.Clock
	backoff     Backoff
	maxRetries  int
	dialTimeout time.Duration
}

// Option configures a Channel.
type Option func(*options)

func defaultOptions() *options {
	return &options{
		logger:      logging.Default(),
		clock:       clock.New(),
		backoff:     DefaultBackoff(),
		maxRetries:  constants.MaxReconnectAttempts,
		dialTimeout: constants.DefaultDialTimeout,
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithClock sets the clock that drives reconnect delays.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithBackoff sets the reconnect delay policy.
func WithBackoff(b Backoff) Option {
	return func(o *options) {
		o.backoff = b
	}
}

// WithMaxRetries sets how many reconnect attempts are made before Failed.
func WithMaxRetries(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.maxRetries = n
		}
	}
}

// WithDialTimeout bounds each connection attempt.
func WithDialTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.dialTimeout = d
		}
	}
}
