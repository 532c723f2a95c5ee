package queuelink

import (
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/agentstation/queuelink/pkg/auth"
	"github.com/agentstation/queuelink/pkg/channel"
	"github.com/agentstation/queuelink/pkg/constants"
	"github.com/agentstation/queuelink/pkg/errors"
	"github.com/agentstation/queuelink/pkg/guard"
	"github.com/agentstation/queuelink/pkg/notify"
)

// options holds the client configuration.
type options struct {
	baseURL  string
	eventURL string

	backend    auth.Backend
	dialer     channel.Dialer
	httpClient *http.Client

	logger *zerolog.Logger
	clock  clock.Clock

	requestTimeout time.Duration
	backoff        channel.Backoff
	maxRetries     int

	autoRefresh bool
	refreshLead time.Duration

	sessionFile string
	passphrase  string

	renderer    notify.Renderer
	invalidator notify.Invalidator
	navigator   guard.Navigator
	routes      *guard.Routes
}

// Option is a function that configures a Client.
type Option func(*options) error

// defaults returns a new options with default values.
func defaults() *options {
	return &options{
		clock:          clock.New(),
		requestTimeout: constants.DefaultRequestTimeout,
		backoff:        channel.DefaultBackoff(),
		maxRetries:     constants.MaxReconnectAttempts,
		autoRefresh:    true,
		refreshLead:    constants.RefreshLead,
	}
}

// apply applies the given options, stopping at the first error.
func (o *options) apply(opts ...Option) (*options, error) {
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// WithBaseURL configures the backend API root, e.g. "https://queue.example.gov/api".
func WithBaseURL(url string) Option {
	return func(o *options) error {
		if url == "" {
			return &errors.ValidationError{Field: "baseURL", Message: "cannot be empty"}
		}
		o.baseURL = url
		return nil
	}
}

// WithEventURL configures the websocket URL of the event stream.
func WithEventURL(url string) Option {
	return func(o *options) error {
		if url == "" {
			return &errors.ValidationError{Field: "eventURL", Message: "cannot be empty"}
		}
		o.eventURL = url
		return nil
	}
}

// WithBackend replaces the HTTP backend. It takes precedence over WithBaseURL
// for authentication calls.
func WithBackend(b auth.Backend) Option {
	return func(o *options) error {
		o.backend = b
		return nil
	}
}

// WithDialer replaces the websocket dialer. It takes precedence over WithEventURL.
func WithDialer(d channel.Dialer) Option {
	return func(o *options) error {
		o.dialer = d
		return nil
	}
}

// WithHTTPClient sets the HTTP client used for backend calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) error {
		o.httpClient = hc
		return nil
	}
}

// WithLogger sets the logger shared by every component.
func WithLogger(logger *zerolog.Logger) Option {
	return func(o *options) error {
		o.logger = logger
		return nil
	}
}

// WithClock sets the clock that drives timeouts, reconnect delays and
// proactive refresh.
func WithClock(c clock.Clock) Option {
	return func(o *options) error {
		if c == nil {
			return &errors.ValidationError{Field: "clock", Message: "cannot be nil"}
		}
		o.clock = c
		return nil
	}
}

// WithRequestTimeout bounds each authentication call.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) error {
		if d <= 0 {
			return &errors.ValidationError{Field: "requestTimeout", Value: d, Message: "must be positive"}
		}
		o.requestTimeout = d
		return nil
	}
}

// WithBackoff sets the reconnect delay policy of the event channel.
func WithBackoff(b channel.Backoff) Option {
	return func(o *options) error {
		if b.Base <= 0 || b.Max < b.Base {
			return &errors.ValidationError{Field: "backoff", Value: b, Message: "base must be positive and max at least base"}
		}
		o.backoff = b
		return nil
	}
}

// WithMaxRetries sets how many reconnect attempts the event channel makes
// before giving up.
func WithMaxRetries(n int) Option {
	return func(o *options) error {
		if n < 0 {
			return &errors.ValidationError{Field: "maxRetries", Value: n, Message: "cannot be negative"}
		}
		o.maxRetries = n
		return nil
	}
}

// WithAutoRefresh configures whether tokens are refreshed ahead of expiry.
func WithAutoRefresh(enabled bool) Option {
	return func(o *options) error {
		o.autoRefresh = enabled
		return nil
	}
}

// WithRefreshLead configures how long before expiry the proactive refresh runs.
func WithRefreshLead(d time.Duration) Option {
	return func(o *options) error {
		if d < 0 {
			return &errors.ValidationError{Field: "refreshLead", Value: d, Message: "cannot be negative"}
		}
		o.refreshLead = d
		return nil
	}
}

// WithSessionFile persists the signed-in session at path so Restore can
// resume it after a restart.
func WithSessionFile(path string) Option {
	return func(o *options) error {
		o.sessionFile = path
		return nil
	}
}

// WithPassphrase encrypts the tokens in the session file.
func WithPassphrase(passphrase string) Option {
	return func(o *options) error {
		o.passphrase = passphrase
		return nil
	}
}

// WithRenderer sets where user-visible notifications go. By default they
// are logged.
func WithRenderer(r notify.Renderer) Option {
	return func(o *options) error {
		o.renderer = r
		return nil
	}
}

// WithInvalidator sets the data cache that live events invalidate.
func WithInvalidator(inv notify.Invalidator) Option {
	return func(o *options) error {
		o.invalidator = inv
		return nil
	}
}

// WithNavigator sets who performs redirects decided by the route guard.
func WithNavigator(nav guard.Navigator) Option {
	return func(o *options) error {
		o.navigator = nav
		return nil
	}
}

// WithRoutes replaces the default route table.
func WithRoutes(routes guard.Routes) Option {
	return func(o *options) error {
		o.routes = &routes
		return nil
	}
}
