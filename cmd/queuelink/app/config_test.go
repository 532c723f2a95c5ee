package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/agentstation/queuelink/pkg/constants"
	"github.com/agentstation/queuelink/pkg/errors"
)

// isolate points HOME and the working directory at an empty temp dir so no
// real config or .env file leaks into the test.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Chdir(dir)
	return dir
}

// TestLoadConfig verifies defaults when nothing is configured.
func TestLoadConfig(t *testing.T) {
	isolate(t)

	config, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	if config.RequestTimeout != constants.DefaultRequestTimeout {
		t.Errorf("RequestTimeout = %v, want %v", config.RequestTimeout, constants.DefaultRequestTimeout)
	}
	if config.SessionFile != constants.DefaultSessionFile {
		t.Errorf("SessionFile = %q, want %q", config.SessionFile, constants.DefaultSessionFile)
	}
	if config.MaxRetries != constants.MaxReconnectAttempts {
		t.Errorf("MaxRetries = %d, want %d", config.MaxRetries, constants.MaxReconnectAttempts)
	}
	if config.LogFormat == "" {
		t.Error("LogFormat not set to default")
	}
	if config.APIURL != "" {
		t.Errorf("APIURL = %q, want empty", config.APIURL)
	}
}

// TestConfig_EnvironmentVariables verifies QUEUELINK_* variables are read.
func TestConfig_EnvironmentVariables(t *testing.T) {
	isolate(t)
	t.Setenv("QUEUELINK_API_URL", "https://queue.example.com/api")
	t.Setenv("QUEUELINK_EVENTS_URL", "wss://queue.example.com/events")
	t.Setenv("QUEUELINK_REFRESH_LEAD", "90s")
	t.Setenv("QUEUELINK_MAX_RETRIES", "3")

	config, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	if config.APIURL != "https://queue.example.com/api" {
		t.Errorf("APIURL = %q", config.APIURL)
	}
	if config.EventsURL != "wss://queue.example.com/events" {
		t.Errorf("EventsURL = %q", config.EventsURL)
	}
	if config.RefreshLead != 90*time.Second {
		t.Errorf("RefreshLead = %v, want 1m30s", config.RefreshLead)
	}
	if config.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", config.MaxRetries)
	}
}

// TestConfig_DotEnv verifies .env files in the working directory are loaded.
func TestConfig_DotEnv(t *testing.T) {
	dir := isolate(t)
	// Registered so the variable godotenv sets is restored after the test.
	t.Setenv("QUEUELINK_API_URL", "")
	os.Unsetenv("QUEUELINK_API_URL")

	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("QUEUELINK_API_URL=http://localhost:5000/api\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	config, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}
	if config.APIURL != "http://localhost:5000/api" {
		t.Errorf("APIURL = %q, want value from .env", config.APIURL)
	}
}

// TestConfig_File verifies a named config file is read and a missing one fails.
func TestConfig_File(t *testing.T) {
	dir := isolate(t)

	path := filepath.Join(dir, "queuelink.yaml")
	content := "api_url: https://queue.example.com/api\nsession_file: " + filepath.Join(dir, "s.yaml") + "\nbackoff_base: 2s\nbackoff_max: 1m\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}
	if config.ConfigFile != path {
		t.Errorf("ConfigFile = %q, want %q", config.ConfigFile, path)
	}
	if config.BackoffBase != 2*time.Second || config.BackoffMax != time.Minute {
		t.Errorf("backoff = %v..%v, want 2s..1m", config.BackoffBase, config.BackoffMax)
	}

	if _, err := LoadConfig(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("LoadConfig() with a missing named file should fail")
	}
}

// TestConfig_Validate verifies invalid values are rejected.
func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{
			RequestTimeout: time.Second,
			MaxRetries:     1,
			BackoffBase:    time.Second,
			BackoffMax:     time.Minute,
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"valid", func(*Config) {}, ""},
		{"zero timeout", func(c *Config) { c.RequestTimeout = 0 }, "request_timeout"},
		{"negative retries", func(c *Config) { c.MaxRetries = -1 }, "max_retries"},
		{"max below base", func(c *Config) { c.BackoffMax = time.Millisecond }, "backoff_max"},
		{"negative lead", func(c *Config) { c.RefreshLead = -time.Second }, "refresh_lead"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := c.Validate()
			if tt.field == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			var valErr *errors.ValidationError
			if !errorsAs(err, &valErr) {
				t.Fatalf("Validate() = %v, want ValidationError", err)
			}
			if valErr.Field != tt.field {
				t.Errorf("Field = %q, want %q", valErr.Field, tt.field)
			}
		})
	}
}

// TestConfig_UpdateFromFlags verifies flags win over loaded values.
func TestConfig_UpdateFromFlags(t *testing.T) {
	c := &Config{APIURL: "https://from-env", LogLevel: "warn"}

	c.UpdateFromFlags(true, false, true, "", "", "wss://events")
	if c.APIURL != "https://from-env" {
		t.Errorf("empty flag replaced APIURL: %q", c.APIURL)
	}
	if c.LogLevel != "warn" {
		t.Errorf("empty flag replaced LogLevel: %q", c.LogLevel)
	}
	if !c.Verbose || !c.NoColor || c.EventsURL != "wss://events" {
		t.Errorf("flags not applied: %+v", c)
	}

	c.UpdateFromFlags(false, false, false, "debug", "https://from-flag", "")
	if c.APIURL != "https://from-flag" || c.LogLevel != "debug" {
		t.Errorf("flags not applied: %+v", c)
	}
}
