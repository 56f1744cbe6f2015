package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App   ApplicationConfig `yaml:"app"`
	Auth  AuthConfig        `yaml:"auth"`
	API   APIConfig         `yaml:"api"`
	Cache CacheConfig       `yaml:"cache"`
	Run   RunConfig         `yaml:"run"`
	Web   WebConfig         `yaml:"web"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.API.Validate(); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	return c.Run.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// AuthConfig holds authentication configuration for the Compass JSON API.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// APIConfig points at the monitor backend.
type APIConfig struct {
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"token"`
	// IAPAssertion is sent when the incoming request carries none.
	IAPAssertion string        `yaml:"iap_assertion"`
	Timeout      time.Duration `yaml:"timeout"`
	UserAgent    string        `yaml:"user_agent"`
}

// Validate validates the backend configuration.
func (c *APIConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.Required, is.RequestURL),
		validation.Field(&c.Timeout, validation.Min(time.Second)),
	)
}

// CacheConfig controls report and monitor list caching.
type CacheConfig struct {
	ReportTTL   time.Duration `yaml:"report_ttl"`
	MonitorsTTL time.Duration `yaml:"monitors_ttl"`
	// SnapshotPath is the SQLite file holding the last good report per
	// monitor. Empty disables snapshots.
	SnapshotPath string `yaml:"snapshot_path"`
}

// Validate validates the cache configuration.
func (c *CacheConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.ReportTTL, validation.Min(time.Duration(0))),
		validation.Field(&c.MonitorsTTL, validation.Min(time.Duration(0))),
	)
}

// RunConfig limits on-demand runs per monitor.
type RunConfig struct {
	MinInterval time.Duration `yaml:"min_interval"`
	Burst       int           `yaml:"burst"`
}

// Validate validates the run configuration.
func (c *RunConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MinInterval, validation.Min(time.Duration(0))),
		validation.Field(&c.Burst, validation.Required, validation.Min(1), validation.Max(100)),
	)
}

// WebConfig holds browser UI configuration.
type WebConfig struct {
	// TemplatesDir, when set, serves templates from disk and reloads them on change.
	TemplatesDir string `yaml:"templates_dir"`
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		API: APIConfig{
			BaseURL:   "http://localhost:5000",
			Timeout:   2 * time.Minute,
			UserAgent: "compass",
		},
		Cache: CacheConfig{
			ReportTTL:    5 * time.Minute,
			MonitorsTTL:  30 * time.Second,
			SnapshotPath: "./compass.db",
		},
		Run: RunConfig{
			MinInterval: time.Minute,
			Burst:       1,
		},
	}
}
