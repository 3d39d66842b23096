// Package config loads and validates the daemon configuration from defaults,
// an optional TOML file and SOKOPAY_-prefixed environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/sokopay/ledgerd/internal/storage/relationaldb"
)

// Environments.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// Config is the full daemon configuration.
type Config struct {
	// Environment selects runtime behavior. In development, webhook
	// signature verification is stubbed to accept; this must be off in
	// production.
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`

	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Providers ProvidersConfig `mapstructure:"providers"`

	configPath string
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig configures the relational store.
type DatabaseConfig struct {
	// URL is the connection string: postgres://... or a sqlite file path.
	URL               string        `mapstructure:"url"`
	Driver            string        `mapstructure:"driver"`
	MaxOpenConns      int           `mapstructure:"max_open_conns"`
	MaxIdleConns      int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime   time.Duration `mapstructure:"conn_max_lifetime"`
	DefaultTimeout    time.Duration `mapstructure:"default_timeout"`
	SettlementTimeout time.Duration `mapstructure:"settlement_timeout"`
}

// ProvidersConfig holds payment-provider credentials.
type ProvidersConfig struct {
	// FlutterwaveSecretHash is compared against the verif-hash header.
	FlutterwaveSecretHash string `mapstructure:"flutterwave_secret_hash"`
}

// IsDevelopment reports whether the daemon runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}

// GetConfigPath returns the path the configuration was loaded from, if any.
func (c *Config) GetConfigPath() string {
	return c.configPath
}

// RelationalConfig translates the database section into the storage config.
func (c *Config) RelationalConfig() *relationaldb.Config {
	rc := relationaldb.NewConfig()
	rc.DSN = c.Database.URL
	rc.Driver = c.Database.Driver
	if rc.Driver == "" {
		rc.Driver = relationaldb.DriverFromDSN(c.Database.URL)
	}
	if c.Database.MaxOpenConns > 0 {
		rc.MaxOpenConns = c.Database.MaxOpenConns
	}
	if c.Database.MaxIdleConns > 0 {
		rc.MaxIdleConns = c.Database.MaxIdleConns
	}
	if c.Database.ConnMaxLifetime > 0 {
		rc.ConnMaxLifetime = c.Database.ConnMaxLifetime
	}
	if c.Database.DefaultTimeout > 0 {
		rc.DefaultTimeout = c.Database.DefaultTimeout
	}
	if c.Database.SettlementTimeout > 0 {
		rc.SettlementTimeout = c.Database.SettlementTimeout
	}
	if rc.Driver == "sqlite" {
		rc.MaxOpenConns = 1
		rc.MaxIdleConns = 1
	}
	return rc
}

// Validate checks the complete configuration.
func (c *Config) Validate() error {
	switch c.Environment {
	case EnvDevelopment, EnvProduction, EnvTest:
	default:
		return fmt.Errorf("unknown environment: %s", c.Environment)
	}

	switch c.LogLevel {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level: %s", c.LogLevel)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.URL == "" {
		return fmt.Errorf("database url is required")
	}

	if c.Environment == EnvProduction && c.Providers.FlutterwaveSecretHash == "" {
		return fmt.Errorf("flutterwave secret hash is required in production")
	}

	return c.RelationalConfig().Validate()
}
