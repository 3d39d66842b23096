package relationaldb

import (
	"fmt"
	"strings"
	"time"
)

// Config contains database configuration settings
type Config struct {
	// Driver is "postgres" or "sqlite".
	Driver string `json:"driver" mapstructure:"driver"`
	// DSN is the connection string: a postgres:// URL or a sqlite file path.
	DSN string `json:"dsn" mapstructure:"dsn"`

	// Connection pool settings
	MaxOpenConns    int           `json:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`

	// DefaultTimeout bounds connection checks and plain transactions.
	DefaultTimeout time.Duration `json:"default_timeout" mapstructure:"default_timeout"`

	// SettlementTimeout is the hard ceiling on one settlement transaction.
	SettlementTimeout time.Duration `json:"settlement_timeout" mapstructure:"settlement_timeout"`
}

// NewConfig creates a Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Driver:            "postgres",
		MaxOpenConns:      25,
		MaxIdleConns:      5,
		ConnMaxLifetime:   time.Hour,
		DefaultTimeout:    30 * time.Second,
		SettlementTimeout: 10 * time.Second,
	}
}

// SQLiteConfig creates a sqlite configuration for the given file path.
// A single connection serializes all writers, which stands in for
// serializable isolation on this driver.
func SQLiteConfig(path string) *Config {
	c := NewConfig()
	c.Driver = "sqlite"
	c.DSN = path
	c.MaxOpenConns = 1
	c.MaxIdleConns = 1
	return c
}

// Validate checks the configuration for common errors.
func (c *Config) Validate() error {
	switch c.Driver {
	case "postgres", "postgresql":
		c.Driver = "postgres"
	case "sqlite", "sqlite3":
		c.Driver = "sqlite"
	default:
		return fmt.Errorf("%w: %s", ErrInvalidDriver, c.Driver)
	}

	if c.DSN == "" {
		return ErrMissingDSN
	}
	if c.MaxOpenConns < 0 || c.MaxIdleConns < 0 {
		return fmt.Errorf("connection pool sizes must be >= 0")
	}
	if c.DefaultTimeout <= 0 || c.SettlementTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	return nil
}

// DriverFromDSN guesses the driver from a connection string.
func DriverFromDSN(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres"
	}
	// lib/pq keyword/value form, e.g. "host=... dbname=...".
	if strings.Contains(dsn, "host=") || strings.Contains(dsn, "dbname=") {
		return "postgres"
	}
	return "sqlite"
}

// String returns a loggable representation with credentials redacted.
func (c *Config) String() string {
	dsn := c.DSN
	if at := strings.Index(dsn, "@"); at > 0 {
		if scheme := strings.Index(dsn, "://"); scheme > 0 && scheme < at {
			dsn = dsn[:scheme+3] + "***" + dsn[at:]
		}
	}
	return fmt.Sprintf("Config{Driver: %s, DSN: %s}", c.Driver, dsn)
}
