package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Load loads configuration in priority order:
// 1. Default values
// 2. Configuration file (ledgerd.toml), when present
// 3. Environment variables (SOKOPAY_ prefix)
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file does not exist: %s", configPath)
		}
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	}

	v.SetEnvPrefix("SOKOPAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Flat aliases so the conventional deployment variables work without a
	// section prefix: SOKOPAY_DATABASE_URL, SOKOPAY_PORT,
	// SOKOPAY_FLUTTERWAVE_SECRET_HASH.
	bindAliases(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	config.configPath = configPath

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", EnvDevelopment)
	v.SetDefault("log_level", "info")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)

	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.default_timeout", 30*time.Second)
	v.SetDefault("database.settlement_timeout", 10*time.Second)
}

func bindAliases(v *viper.Viper) {
	aliases := map[string]string{
		"database.url":                      "SOKOPAY_DATABASE_URL",
		"server.port":                       "SOKOPAY_PORT",
		"providers.flutterwave_secret_hash": "SOKOPAY_FLUTTERWAVE_SECRET_HASH",
		"environment":                       "SOKOPAY_ENVIRONMENT",
		"log_level":                         "SOKOPAY_LOG_LEVEL",
	}
	for key, env := range aliases {
		// BindEnv only errors on an empty key.
		_ = v.BindEnv(key, env)
	}
}
