// Package config provides Viper-based hierarchical configuration for the
// ledger engine: defaults, then an optional config file, then environment
// variables with the LEDGER prefix. A .env file is loaded first if present.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	Server struct {
		Addr string `mapstructure:"addr" yaml:"addr"`
	} `mapstructure:"server" yaml:"server"`

	Store struct {
		Path string `mapstructure:"path" yaml:"path"`
	} `mapstructure:"store" yaml:"store"`

	Cache struct {
		EntityTTLSeconds int `mapstructure:"entity_ttl_seconds" yaml:"entity_ttl_seconds"`
		SearchTTLSeconds int `mapstructure:"search_ttl_seconds" yaml:"search_ttl_seconds"`
		SearchSize       int `mapstructure:"search_size" yaml:"search_size"`
	} `mapstructure:"cache" yaml:"cache"`

	Validation struct {
		Strict bool `mapstructure:"strict" yaml:"strict"`
	} `mapstructure:"validation" yaml:"validation"`

	Log struct {
		Level  string `mapstructure:"level" yaml:"level"`
		Format string `mapstructure:"format" yaml:"format"`
	} `mapstructure:"log" yaml:"log"`
}

// EntityTTL returns the entity cache TTL as a duration.
func (c *Config) EntityTTL() time.Duration {
	return time.Duration(c.Cache.EntityTTLSeconds) * time.Second
}

// SearchTTL returns the search cache TTL as a duration.
func (c *Config) SearchTTL() time.Duration {
	return time.Duration(c.Cache.SearchTTLSeconds) * time.Second
}

// Load initializes configuration with hierarchical loading:
// defaults, optional config file, then LEDGER_* environment variables.
func Load() (*Config, error) {
	// Pick up a local .env before viper reads the environment.
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Printf("Warning: error loading .env file: %v\n", err)
		}
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("$HOME/.ledger-engine")
	v.AddConfigPath(".")

	v.SetEnvPrefix("LEDGER")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Keep going with defaults and env vars.
			fmt.Printf("Warning: error reading config file %s: %v\n", v.ConfigFileUsed(), err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &config, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("store.path", "ledger.db")

	v.SetDefault("cache.entity_ttl_seconds", 300)
	v.SetDefault("cache.search_ttl_seconds", 120)
	v.SetDefault("cache.search_size", 50)

	v.SetDefault("validation.strict", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// validateConfig validates the configuration values.
func validateConfig(config *Config) error {
	if _, err := logrus.ParseLevel(config.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %s", config.Log.Level)
	}
	if config.Log.Format != "text" && config.Log.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be 'text' or 'json')", config.Log.Format)
	}
	if config.Store.Path == "" {
		return fmt.Errorf("store.path must not be empty")
	}
	if config.Cache.EntityTTLSeconds < 1 {
		return fmt.Errorf("cache.entity_ttl_seconds must be positive, got: %d", config.Cache.EntityTTLSeconds)
	}
	if config.Cache.SearchTTLSeconds < 1 {
		return fmt.Errorf("cache.search_ttl_seconds must be positive, got: %d", config.Cache.SearchTTLSeconds)
	}
	if config.Cache.SearchSize < 1 {
		return fmt.Errorf("cache.search_size must be positive, got: %d", config.Cache.SearchSize)
	}
	return nil
}

// ConfigureLogging builds a logrus logger from the Log section.
func ConfigureLogging(config *Config) *logrus.Logger {
	logger := logrus.New()

	logLevel, err := logrus.ParseLevel(strings.ToLower(config.Log.Level))
	if err != nil {
		logger.Warnf("Invalid log level '%s', using 'info'", config.Log.Level)
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if strings.ToLower(config.Log.Format) == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}
	return logger
}
