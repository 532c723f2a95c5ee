package auth

import (
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/agentstation/queuelink/pkg/constants"
	"github.com/agentstation/queuelink/pkg/logging"
)

type options struct {
	logger  *zerolog.Logger
	clock   clock.Clock
	timeout time.Duration
}

// Option configures a Gateway.
type Option func(*options)

func defaultOptions() *options {
	return &options{
		logger:  logging.Default(),
		clock:   clock.New(),
		timeout: constants.DefaultRequestTimeout,
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithClock sets the clock used for expiry checks and call deadlines.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithTimeout bounds every backend call. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}
