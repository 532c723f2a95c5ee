package app

import (
	stderrors "errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/agentstation/queuelink/pkg/channel"
	"github.com/agentstation/queuelink/pkg/constants"
	"github.com/agentstation/queuelink/pkg/errors"
)

// EnvPrefix prefixes every environment variable the CLI reads.
const EnvPrefix = "QUEUELINK"

// Config holds the application configuration loaded from various sources
// including config files, environment variables, and .env files.
type Config struct {
	// Global flags
	Verbose bool
	Quiet   bool
	NoColor bool

	// Config file
	ConfigFile string

	// Backend
	APIURL         string
	EventsURL      string
	RequestTimeout time.Duration

	// Saved session
	SessionFile       string
	SessionPassphrase string

	// Event stream
	MaxRetries  int
	BackoffBase time.Duration
	BackoffMax  time.Duration

	// Token refresh
	RefreshLead time.Duration

	// Logging configuration
	LogLevel  string
	LogFormat string
	LogOutput string
}

// LoadConfig loads configuration from all sources in order of precedence:
// 1. Command-line flags (handled by cobra)
// 2. Environment variables (QUEUELINK_API_URL, ...)
// 3. .env files
// 4. Config file (~/.queuelink.yaml)
// 5. Defaults
func LoadConfig(configFile string) (*Config, error) {
	// Load .env files first (before Viper env binding)
	loadEnvFiles()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(constants.DefaultConfigName)
	}

	if err := v.ReadInConfig(); err != nil {
		// A missing default config is fine; a named file that cannot be read is not.
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !stderrors.As(err, &notFound) {
			return nil, errors.NewConfigError("config", "cannot read config file", err)
		}
	}

	config := &Config{
		ConfigFile: v.ConfigFileUsed(),

		APIURL:         v.GetString("api_url"),
		EventsURL:      v.GetString("events_url"),
		RequestTimeout: v.GetDuration("request_timeout"),

		SessionFile:       v.GetString("session_file"),
		SessionPassphrase: v.GetString("session_passphrase"),

		MaxRetries:  v.GetInt("max_retries"),
		BackoffBase: v.GetDuration("backoff_base"),
		BackoffMax:  v.GetDuration("backoff_max"),

		RefreshLead: v.GetDuration("refresh_lead"),

		LogLevel:  v.GetString("log_level"),
		LogFormat: v.GetString("log_format"),
		LogOutput: v.GetString("log_output"),
	}

	return config, config.Validate()
}

// setDefaults registers the default of every key so AutomaticEnv sees them.
func setDefaults(v *viper.Viper) {
	backoff := channel.DefaultBackoff()
	v.SetDefault("api_url", "")
	v.SetDefault("events_url", "")
	v.SetDefault("request_timeout", constants.DefaultRequestTimeout)
	v.SetDefault("session_file", constants.DefaultSessionFile)
	v.SetDefault("session_passphrase", "")
	v.SetDefault("max_retries", constants.MaxReconnectAttempts)
	v.SetDefault("backoff_base", backoff.Base)
	v.SetDefault("backoff_max", backoff.Max)
	v.SetDefault("refresh_lead", constants.RefreshLead)
	v.SetDefault("log_level", "")
	v.SetDefault("log_format", "auto")
	v.SetDefault("log_output", "stderr")
}

// Validate checks values that would otherwise fail later with a less
// helpful message.
func (c *Config) Validate() error {
	switch {
	case c.RequestTimeout <= 0:
		return &errors.ValidationError{Field: "request_timeout", Value: c.RequestTimeout, Message: "must be positive"}
	case c.MaxRetries < 0:
		return &errors.ValidationError{Field: "max_retries", Value: c.MaxRetries, Message: "cannot be negative"}
	case c.BackoffBase <= 0 || c.BackoffMax < c.BackoffBase:
		return &errors.ValidationError{Field: "backoff_max", Value: c.BackoffMax, Message: "backoff_base must be positive and backoff_max at least backoff_base"}
	case c.RefreshLead < 0:
		return &errors.ValidationError{Field: "refresh_lead", Value: c.RefreshLead, Message: "cannot be negative"}
	}
	return nil
}

// UpdateFromFlags updates config values from parsed command flags.
// This should be called after cobra parses flags to ensure flag
// values take precedence over config file and env vars.
func (c *Config) UpdateFromFlags(verbose, quiet, noColor bool, logLevel, apiURL, eventsURL string) {
	c.Verbose = verbose
	c.Quiet = quiet
	c.NoColor = noColor
	if logLevel != "" {
		c.LogLevel = logLevel
	}
	if apiURL != "" {
		c.APIURL = apiURL
	}
	if eventsURL != "" {
		c.EventsURL = eventsURL
	}
}

// loadEnvFiles loads environment variables from .env files.
func loadEnvFiles() {
	// Load never overrides a set variable, so .env.local goes first to win over .env.
	for _, envFile := range []string{".env.local", ".env"} {
		_ = godotenv.Load(envFile)
	}
}
