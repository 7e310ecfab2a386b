package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/ansuz/internal/staleness"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Vault   VaultConfig       `yaml:"vault"`
	Cache   CacheConfig       `yaml:"cache"`
	Session SessionConfig     `yaml:"session"`
	Refresh RefreshConfig     `yaml:"refresh"`
	Names   NamesConfig       `yaml:"names"`
	Auth    AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{&c.App, &c.Vault, &c.Cache, &c.Session, &c.Refresh, &c.Names} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return c.Auth.Validate()
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

// VaultConfig holds the path to the Markdown vault directory.
type VaultConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// CacheConfig sizes the directive caches.
type CacheConfig struct {
	GlobalSize   int `yaml:"global_size"`
	PerNoteNotes int `yaml:"per_note_notes"`
	PerNoteSize  int `yaml:"per_note_size"`
	// EvictionFraction is the share of global entries kept when the cache
	// is shrunk under memory pressure.
	EvictionFraction float64  `yaml:"eviction_fraction"`
	L2               L2Config `yaml:"l2"`
}

// Validate validates the cache configuration.
func (c *CacheConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.GlobalSize, validation.Required, validation.Min(1)),
		validation.Field(&c.PerNoteNotes, validation.Required, validation.Min(1)),
		validation.Field(&c.PerNoteSize, validation.Required, validation.Min(1)),
		validation.Field(&c.EvictionFraction, validation.Required, validation.Min(0.0).Exclusive(), validation.Max(1.0)),
		validation.Field(&c.L2),
	)
}

// Persistent cache drivers.
const (
	L2DriverSQLite = "sqlite"
	L2DriverBolt   = "bolt"
)

// L2Config holds the persistent cache tier configuration.
type L2Config struct {
	Enabled    bool          `yaml:"enabled"`
	Driver     string        `yaml:"driver"`
	SQLitePath string        `yaml:"sqlite_path"`
	BoltPath   string        `yaml:"bolt_path"`
	Timeout    time.Duration `yaml:"timeout"`
}

// Validate validates the persistent tier configuration.
func (c L2Config) Validate() error {
	sqlite := c.Enabled && c.Driver != L2DriverBolt
	return validation.ValidateStruct(&c,
		validation.Field(&c.Driver, validation.In(L2DriverSQLite, L2DriverBolt)),
		validation.Field(&c.SQLitePath, validation.When(sqlite, validation.Required)),
		validation.Field(&c.BoltPath, validation.When(c.Enabled && c.Driver == L2DriverBolt, validation.Required)),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	)
}

// SessionConfig holds edit session configuration.
type SessionConfig struct {
	Expiry time.Duration `yaml:"expiry"`
}

// Validate validates the session configuration.
func (c *SessionConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Expiry, validation.Required, validation.Min(time.Second)),
	)
}

// RefreshConfig holds the refresh scheduler configuration.
type RefreshConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// Validate validates the refresh configuration.
func (c *RefreshConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Interval, validation.Required, validation.Min(time.Second)),
	)
}

// NamesConfig selects how name-search dependencies invalidate.
type NamesConfig struct {
	Policy staleness.Policy `yaml:"policy"`
}

// Validate validates the names configuration.
func (c *NamesConfig) Validate() error {
	if c.Policy == "" {
		c.Policy = staleness.PolicyAll
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Policy, validation.In(staleness.PolicyAll, staleness.PolicyPathScoped)),
	)
}

// AuthConfig holds authentication configuration.
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
	// Normalise empty mode to "disabled" for backward compatibility.
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

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Vault: VaultConfig{
			Path: "./vault",
		},
		Cache: CacheConfig{
			GlobalSize:       1000,
			PerNoteNotes:     200,
			PerNoteSize:      100,
			EvictionFraction: 0.5,
			L2: L2Config{
				Driver:     L2DriverSQLite,
				SQLitePath: "./ansuz.db",
				BoltPath:   "./ansuz.bolt",
				Timeout:    5 * time.Second,
			},
		},
		Session: SessionConfig{
			Expiry: 5 * time.Minute,
		},
		Refresh: RefreshConfig{
			Interval: 30 * time.Second,
		},
		Names: NamesConfig{
			Policy: staleness.PolicyAll,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
