// Package config loads the reconciler's runtime configuration from the
// environment.
package config

import (
	"context"
	"fmt"
	"time"

	envconfig "github.com/sethvargo/go-envconfig"
)

// Configurer exposes the configuration needed by every component of the
// reconciler.
type Configurer interface {
	LogConfigurer
	MetricsConfigurer
	DACConfigurer
	AuthConfigurer
	APIConfigurer
	StoreConfigurer
}

// StoreConfigurer exposes the Approved-User Projection's store settings.
type StoreConfigurer interface {
	StoreDSN() string
}

type LogConfigurer interface {
	LogLevel() string
	LogFormat() string
}

type MetricsConfigurer interface {
	MetricsAddress() string
}

// DACConfigurer exposes the DAC identifier to reconcile.
type DACConfigurer interface {
	DacID() string
}

// AuthConfigurer exposes the Token Manager (A) settings.
type AuthConfigurer interface {
	AuthBaseURL() string
	AuthRealmName() string
	ClientID() string
	IdentityUsername() string
	IdentityPassword() string
	TokenVerificationPublicKey() string
}

// APIConfigurer exposes the API Client (B) settings.
type APIConfigurer interface {
	APIBaseURL() string
	MaxRequestLimit() int
	MaxRequestInterval() time.Duration
	DefaultPageLimit() int
	DefaultPageOffset() int
	MaxBatchSize() int
}

// Config is the envconfig-populated configuration root.
type Config struct {
	DAC     DACConfig     `env:", prefix=DAC_RECONCILER_DAC_"`
	Auth    AuthConfig    `env:", prefix=DAC_RECONCILER_AUTH_"`
	API     APIConfig     `env:", prefix=DAC_RECONCILER_API_"`
	Store   StoreConfig   `env:", prefix=DAC_RECONCILER_STORE_"`
	Metrics MetricsConfig `env:", prefix=DAC_RECONCILER_METRICS_"`
	Log     LogConfig     `env:", prefix=DAC_RECONCILER_LOG_"`
}

// StoreConfig carries the DSN for the authoritative approved-applications
// database.
type StoreConfig struct {
	DSN string `env:"DSN, required"`
}

// DACConfig carries the accession id of the DAC under reconciliation.
type DACConfig struct {
	// ID is the DacId accession being reconciled, e.g. EGAC00000000001.
	ID string `env:"ID, required"`
}

// AuthConfig carries the Token Manager settings and secrets.
type AuthConfig struct {
	BaseURL       string `env:"BASE_URL, required"`
	RealmName     string `env:"REALM_NAME, default=dac"`
	ClientID      string `env:"CLIENT_ID, required"`
	Username      string `env:"IDENTITY_USERNAME, required"`
	Password      string `env:"IDENTITY_PASSWORD, required"`
	PublicKeyPath string `env:"TOKEN_PUBLIC_KEY_PATH, required"`
}

// APIConfig carries the API Client settings.
type APIConfig struct {
	BaseURL            string        `env:"BASE_URL, required"`
	MaxRequestLimit    int           `env:"MAX_REQUEST_LIMIT, default=3"`
	MaxRequestInterval time.Duration `env:"MAX_REQUEST_INTERVAL, default=1s"`
	DefaultPageLimit   int           `env:"DEFAULT_PAGE_LIMIT, default=50"`
	DefaultPageOffset  int           `env:"DEFAULT_PAGE_OFFSET, default=0"`
	MaxBatchSize       int           `env:"MAX_BATCH_SIZE, default=2000"`
}

// MetricsConfig carries the metrics endpoint settings.
type MetricsConfig struct {
	Address string `env:"ADDR, default=:8080"`
}

// LogConfig carries the log level/format settings.
type LogConfig struct {
	Level  string `env:"LEVEL, default=info"`
	Format string `env:"FORMAT, default=console"`
}

func (c *Config) DacID() string                        { return c.DAC.ID }
func (c *Config) AuthBaseURL() string                   { return c.Auth.BaseURL }
func (c *Config) AuthRealmName() string                 { return c.Auth.RealmName }
func (c *Config) ClientID() string                      { return c.Auth.ClientID }
func (c *Config) IdentityUsername() string              { return c.Auth.Username }
func (c *Config) IdentityPassword() string              { return c.Auth.Password }
func (c *Config) TokenVerificationPublicKey() string    { return c.Auth.PublicKeyPath }
func (c *Config) APIBaseURL() string                    { return c.API.BaseURL }
func (c *Config) MaxRequestLimit() int                  { return c.API.MaxRequestLimit }
func (c *Config) MaxRequestInterval() time.Duration     { return c.API.MaxRequestInterval }
func (c *Config) DefaultPageLimit() int                 { return c.API.DefaultPageLimit }
func (c *Config) DefaultPageOffset() int                { return c.API.DefaultPageOffset }
func (c *Config) MaxBatchSize() int                     { return c.API.MaxBatchSize }
func (c *Config) StoreDSN() string                      { return c.Store.DSN }
func (c *Config) MetricsAddress() string                { return c.Metrics.Address }
func (c *Config) LogLevel() string                      { return c.Log.Level }
func (c *Config) LogFormat() string                     { return c.Log.Format }

// String renders the configuration for startup logging. Secrets are
// deliberately omitted.
func (c *Config) String() string {
	return fmt.Sprintf(
		"DAC [ ID: %s ] API [ BaseURL: %s MaxRequestLimit: %d MaxRequestInterval: %s DefaultPageLimit: %d MaxBatchSize: %d ] Auth [ BaseURL: %s RealmName: %s ClientID: %s ] Store [ DSN: <redacted> ] Log [ Level: %s Format: %s ] Metrics [ Address: %s ]",
		c.DAC.ID, c.API.BaseURL, c.API.MaxRequestLimit, c.API.MaxRequestInterval, c.API.DefaultPageLimit, c.API.MaxBatchSize,
		c.Auth.BaseURL, c.Auth.RealmName, c.Auth.ClientID,
		c.Log.Level, c.Log.Format, c.Metrics.Address,
	)
}

// NewConfiguration loads the Config from the environment.
func NewConfiguration() (Configurer, error) {
	var cfg Config
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		return nil, fmt.Errorf("envconfig.Process error: %w", err)
	}
	return &cfg, nil
}
