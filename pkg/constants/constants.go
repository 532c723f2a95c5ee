// Package constants provides shared constants used throughout the queuelink client.
// This includes timeouts, reconnect limits, file permissions, and other values
// that should be consistent across the library and the CLI.
package constants

import "time"

// Timeout constants define various timeout durations used in the client
const (
	// DefaultRequestTimeout is the upper bound for a single backend call
	DefaultRequestTimeout = 10 * time.Second

	// DefaultDialTimeout is the timeout for opening the event stream
	DefaultDialTimeout = 10 * time.Second

	// LogoutTimeout bounds the best-effort backend logout call
	LogoutTimeout = 5 * time.Second

	// ShutdownTimeout is the time allowed for teardown in the CLI
	ShutdownTimeout = 5 * time.Second
)

// Reconnect constants define the event channel backoff policy
const (
	// ReconnectBaseDelay is the delay before the first reconnect attempt
	ReconnectBaseDelay = 1 * time.Second

	// ReconnectMaxDelay caps the exponential reconnect delay
	ReconnectMaxDelay = 30 * time.Second

	// ReconnectJitter is the fraction of the delay added as random jitter (0..1)
	ReconnectJitter = 0.5

	// MaxReconnectAttempts is the retry budget before the channel enters Failed
	MaxReconnectAttempts = 8
)

// Event stream keepalive constants
const (
	// WriteWait is the time allowed to write a frame to the server
	WriteWait = 10 * time.Second

	// PongWait is the time allowed to read the next pong from the server
	PongWait = 60 * time.Second

	// PingPeriod is how often liveness pings are sent. Must be less than PongWait.
	PingPeriod = (PongWait * 9) / 10

	// MaxMessageSize is the largest event frame accepted from the server
	MaxMessageSize = 64 * 1024
)

// Session constants
const (
	// RefreshLead is how long before token expiry a proactive refresh runs
	RefreshLead = 60 * time.Second

	// MinRefreshDelay keeps a near-expired token from scheduling a busy loop
	MinRefreshDelay = 1 * time.Second

	// DefaultTokenLifetime is assumed when neither the backend nor the token states an expiry
	DefaultTokenLifetime = 1 * time.Hour
)

// File permission constants define standard Unix file permissions
const (
	// DirPermissions is the default permission for created directories (rwxr-xr-x)
	DirPermissions = 0755

	// FilePermissions is the default permission for log files (rw-r--r--)
	FilePermissions = 0644

	// SecureFilePermissions is for sensitive files like persisted tokens (rw-------)
	SecureFilePermissions = 0600
)

// Cache constants
const (
	// CacheTTL is the default time-to-live for cached resources
	CacheTTL = 5 * time.Minute

	// CacheCleanupInterval is how often to clean expired cache entries
	CacheCleanupInterval = 10 * time.Minute
)

// Path constants
const (
	// DefaultSessionFile is the default location of the persisted session
	DefaultSessionFile = "~/.queuelink/session.yaml"

	// DefaultConfigName is the config file name searched in $HOME and the working directory
	DefaultConfigName = ".queuelink"
)
