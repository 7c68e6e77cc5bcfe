// Package config loads and validates the BookmarkRelay YAML configuration.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultNewTabURL is the url native separators point at when new_tab_url is unset.
const DefaultNewTabURL = "chrome://newtab/"

// Config holds the full application configuration loaded from YAML.
type Config struct {
	// NativeBookmarks is the Netscape bookmark HTML file holding the native
	// profile.
	NativeBookmarks string `yaml:"native_bookmarks"`

	// StateDB is the SQLite file for local state. Defaults to
	// ~/.local/share/bookmarkrelay/state.db.
	StateDB string `yaml:"state_db,omitempty"`

	// ToolbarSync controls whether the native bookmarks bar takes part in
	// syncing. Defaults to true.
	ToolbarSync *bool `yaml:"sync_bookmarks_toolbar"`

	// NewTabURL is the url given to native separators.
	NewTabURL string `yaml:"new_tab_url"`

	// SyncDelay is how long the queue processor waits after draining before
	// the sync pass. Maximum 5s. Defaults to 100ms if unset.
	SyncDelay time.Duration `yaml:"sync_delay"`

	// Remote configures an S3-compatible bucket holding the synced tree.
	// Omit the block to keep everything in the state DB.
	Remote *RemoteConfig `yaml:"remote,omitempty"`

	// Telemetry configures optional OpenTelemetry export via OTLP gRPC.
	// Omit the block entirely to disable telemetry.
	Telemetry *TelemetryConfig `yaml:"telemetry,omitempty"`
}

// RemoteConfig holds the object store settings.
type RemoteConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
	Region    string `yaml:"region"`

	// Prefix is prepended to every object name, e.g. "laptop/".
	Prefix string `yaml:"prefix"`

	// Timeout bounds each request. Defaults to 30s.
	Timeout time.Duration `yaml:"timeout"`
}

// TelemetryConfig holds optional OpenTelemetry settings.
type TelemetryConfig struct {
	// OTLPEndpoint is the gRPC host:port of the OTLP collector (e.g. "localhost:4317").
	OTLPEndpoint string `yaml:"otlp_endpoint"`

	// Insecure disables TLS for the collector connection. Use for local collectors.
	Insecure bool `yaml:"insecure"`

	// ServiceName overrides the OTel service.name attribute. Defaults to "bookmarkrelay".
	ServiceName string `yaml:"service_name"`

	// Headers contains key-value pairs sent as gRPC metadata on every OTLP
	// request, e.g. Authorization: "Bearer <token>".
	Headers map[string]string `yaml:"headers,omitempty"`
}

// SyncBookmarksToolbar reports whether the native toolbar is synced.
func (c *Config) SyncBookmarksToolbar() bool {
	return c.ToolbarSync == nil || *c.ToolbarSync
}

// DefaultPath returns the default config file path: ~/.config/bookmarkrelay/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "bookmarkrelay", "config.yaml"), nil
}

// Load reads and validates the configuration file at the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening config file %q: %w", path, err)
	}
	defer f.Close()

	var cfg Config
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true) // reject unknown keys to catch typos early
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %q: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Write validates c and saves it as YAML at path, creating parent
// directories. The file may hold remote credentials, so it is private to the
// user.
func (c *Config) Write(path string) error {
	if err := c.validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file %q: %w", path, err)
	}
	return nil
}

// validate checks required fields and fills in defaults.
func (c *Config) validate() error {
	if c.NativeBookmarks == "" {
		return fmt.Errorf("native_bookmarks is required")
	}

	if c.NewTabURL == "" {
		c.NewTabURL = DefaultNewTabURL
	}
	if u, err := url.Parse(c.NewTabURL); err != nil || u.Scheme == "" {
		return fmt.Errorf("new_tab_url %q must be an absolute URL", c.NewTabURL)
	}

	if c.SyncDelay == 0 {
		c.SyncDelay = 100 * time.Millisecond
	}
	if c.SyncDelay < 0 {
		return fmt.Errorf("sync_delay %v must not be negative", c.SyncDelay)
	}
	if c.SyncDelay > 5*time.Second {
		return fmt.Errorf("sync_delay %v is too long (maximum 5s)", c.SyncDelay)
	}

	if r := c.Remote; r != nil {
		if r.Endpoint == "" {
			return fmt.Errorf("remote.endpoint is required when remote is configured")
		}
		if r.Bucket == "" {
			return fmt.Errorf("remote.bucket is required when remote is configured")
		}
		if r.AccessKey == "" || r.SecretKey == "" {
			return fmt.Errorf("remote.access_key and remote.secret_key are required")
		}
		if r.Timeout == 0 {
			r.Timeout = 30 * time.Second
		}
	}

	if c.Telemetry != nil {
		if c.Telemetry.OTLPEndpoint == "" {
			return fmt.Errorf("telemetry.otlp_endpoint is required when telemetry is configured")
		}
	}

	return nil
}
