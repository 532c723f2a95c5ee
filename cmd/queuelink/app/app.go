// Package app provides the application context for the queuelink CLI.
// It owns the loaded configuration and the queue client shared by every
// command.
package app

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/agentstation/queuelink"
	"github.com/agentstation/queuelink/cmd/application"
	"github.com/agentstation/queuelink/internal/cache"
	"github.com/agentstation/queuelink/internal/cmd/alerts"
	"github.com/agentstation/queuelink/pkg/channel"
	"github.com/agentstation/queuelink/pkg/errors"
	"github.com/agentstation/queuelink/pkg/notify"
)

// Ensure App implements application.Application at compile time.
var _ application.Application = (*App)(nil)

// App represents the queuelink application with all its dependencies.
type App struct {
	// Version information
	version string
	commit  string
	date    string
	builtBy string

	config *Config
	logger *zerolog.Logger
	out    io.Writer

	// cache receives invalidations from live events
	cache *cache.ResourceCache

	// Client instance (lazy-initialized, singleton)
	mu     sync.Mutex
	client queuelink.Client
	ctx    context.Context
}

// New creates a new App instance with the given version information.
func New(version, commit, date, builtBy string, opts ...Option) (*App, error) {
	app := &App{
		version: version,
		commit:  commit,
		date:    date,
		builtBy: builtBy,
		out:     os.Stdout,
		ctx:     context.Background(),
	}

	// Apply options first so WithConfig skips loading.
	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}

	if app.config == nil {
		config, err := LoadConfig("")
		if err != nil {
			return nil, err
		}
		app.config = config
	}

	if app.logger == nil {
		logger := NewLogger(app.config)
		app.logger = &logger
	}

	app.cache = cache.New(0, 0, app.logger)
	return app, nil
}

// Version returns the version information.
func (a *App) Version() string {
	return a.version
}

// Commit returns the git commit hash.
func (a *App) Commit() string {
	return a.commit
}

// Date returns the build date.
func (a *App) Date() string {
	return a.date
}

// BuiltBy returns the build system identifier.
func (a *App) BuiltBy() string {
	return a.builtBy
}

// Config returns the application configuration.
func (a *App) Config() *Config {
	return a.config
}

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger {
	return a.logger
}

// Out returns where command output is written.
func (a *App) Out() io.Writer {
	return a.out
}

// Client returns the queue client, creating it on first use and resuming
// the saved session. A saved session that cannot be re-validated because
// the backend is unreachable is logged, not returned.
func (a *App) Client() (queuelink.Client, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.client != nil {
		return a.client, nil
	}

	if a.config.APIURL == "" {
		return nil, errors.NewConfigError("api_url", "set --api-url or "+EnvPrefix+"_API_URL", nil)
	}

	client, err := queuelink.New(a.clientOptions()...)
	if err != nil {
		return nil, err
	}

	if _, err := client.Restore(a.ctx); err != nil {
		a.logger.Warn().Err(err).Msg("Could not resume saved session")
	}

	a.client = client
	return client, nil
}

// Shutdown performs graceful shutdown of the application.
func (a *App) Shutdown(_ context.Context) error {
	a.mu.Lock()
	client := a.client
	a.client = nil
	a.mu.Unlock()

	if client != nil {
		return client.Close()
	}
	return nil
}

// clientOptions constructs client options from the app configuration.
func (a *App) clientOptions() []queuelink.Option {
	opts := []queuelink.Option{
		queuelink.WithBaseURL(a.config.APIURL),
		queuelink.WithLogger(a.logger),
		queuelink.WithRequestTimeout(a.config.RequestTimeout),
		queuelink.WithMaxRetries(a.config.MaxRetries),
		queuelink.WithBackoff(channel.Backoff{
			Base:   a.config.BackoffBase,
			Max:    a.config.BackoffMax,
			Jitter: channel.DefaultBackoff().Jitter,
		}),
		queuelink.WithRefreshLead(a.config.RefreshLead),
		queuelink.WithRenderer(a.renderer()),
		queuelink.WithInvalidator(a.cache),
	}

	if a.config.EventsURL != "" {
		opts = append(opts, queuelink.WithEventURL(a.config.EventsURL))
	}
	if a.config.SessionFile != "" {
		opts = append(opts,
			queuelink.WithSessionFile(a.config.SessionFile),
			queuelink.WithPassphrase(a.config.SessionPassphrase),
		)
	}
	return opts
}

// renderer prints notifications as one line each.
func (a *App) renderer() notify.Renderer {
	if a.config.NoColor {
		return alerts.NewWriter(a.out, alerts.WithColor(false))
	}
	return alerts.NewWriter(a.out)
}

// Option is a functional option for configuring the App.
type Option func(*App) error

// WithConfig sets a custom configuration.
func WithConfig(config *Config) Option {
	return func(a *App) error {
		a.config = config
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(a *App) error {
		a.logger = logger
		return nil
	}
}

// WithOutput sets where command output is written.
func WithOutput(w io.Writer) Option {
	return func(a *App) error {
		a.out = w
		return nil
	}
}

// WithClient sets a custom client instance (useful for testing).
func WithClient(c queuelink.Client) Option {
	return func(a *App) error {
		a.client = c
		return nil
	}
}
