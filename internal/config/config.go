// Package config loads image-finder settings from an optional TOML file and
// the environment. Environment variables win over the file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/Sternrassler/image-finder/pkg/finder"
	"github.com/Sternrassler/image-finder/pkg/logging"
	"github.com/Sternrassler/image-finder/pkg/pexels"
)

// Environment variables read by Load.
const (
	EnvAPIKey       = "PEXELS_API_KEY"
	EnvBaseURL      = "PEXELS_BASE_URL"
	EnvDefaultQuery = "FINDER_DEFAULT_QUERY"
	EnvRedisURL     = "REDIS_URL"
	EnvMetricsAddr  = "METRICS_ADDR"
	EnvLogLevel     = "LOG_LEVEL"
	EnvLogPretty    = "LOG_PRETTY"
	EnvLogFile      = "LOG_FILE"
)

// Config represents the application configuration.
type Config struct {
	APIKey         string    `toml:"api_key"`
	BaseURL        string    `toml:"base_url"`
	DefaultQuery   string    `toml:"default_query"`
	PerPage        int       `toml:"per_page"`
	TimeoutSeconds int       `toml:"timeout_seconds"`
	RedisURL       string    `toml:"redis_url"`
	MetricsAddr    string    `toml:"metrics_addr"`
	Log            LogConfig `toml:"log"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Pretty bool   `toml:"pretty"`
	File   string `toml:"file"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		BaseURL:        pexels.DefaultBaseURL,
		DefaultQuery:   finder.DefaultConfig().DefaultQuery,
		PerPage:        pexels.DefaultPerPage,
		TimeoutSeconds: 30,
		Log: LogConfig{
			Level: string(logging.LevelInfo),
		},
	}
}

// Load reads path (if non-empty) and applies environment overrides.
// A missing file is not an error when path is empty.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			var decodeErr *toml.DecodeError
			if errors.As(err, &decodeErr) {
				row, col := decodeErr.Position()
				return nil, fmt.Errorf("failed to parse config (line %d, column %d): %w", row, col, err)
			}
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvAPIKey); ok {
		c.APIKey = v
	}
	if v, ok := lookup(EnvBaseURL); ok && v != "" {
		c.BaseURL = v
	}
	if v, ok := lookup(EnvDefaultQuery); ok && strings.TrimSpace(v) != "" {
		c.DefaultQuery = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvRedisURL); ok {
		c.RedisURL = v
	}
	if v, ok := lookup(EnvMetricsAddr); ok {
		c.MetricsAddr = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Log.Level = v
	}
	if v, ok := lookup(EnvLogFile); ok {
		c.Log.File = v
	}
	if v, ok := lookup(EnvLogPretty); ok && v != "" {
		pretty, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvLogPretty, v, err)
		}
		c.Log.Pretty = pretty
	}
	return nil
}

// Validate checks the values the client and controller cannot default.
// The API key is deliberately not checked: the remote endpoint rejects it.
func (c *Config) Validate() error {
	if _, err := url.ParseRequestURI(c.BaseURL); err != nil {
		return fmt.Errorf("invalid base_url %q: %w", c.BaseURL, err)
	}
	if c.PerPage < 1 || c.PerPage > pexels.MaxPerPage {
		return fmt.Errorf("per_page must be between 1 and %d (got %d)", pexels.MaxPerPage, c.PerPage)
	}
	if c.TimeoutSeconds < 0 {
		return fmt.Errorf("timeout_seconds must not be negative (got %d)", c.TimeoutSeconds)
	}
	return nil
}

// Client returns the search client configuration.
func (c *Config) Client() pexels.Config {
	cfg := pexels.DefaultConfig(c.APIKey)
	cfg.BaseURL = strings.TrimRight(c.BaseURL, "/")
	cfg.PerPage = c.PerPage
	cfg.Timeout = time.Duration(c.TimeoutSeconds) * time.Second
	return cfg
}

// Finder returns the controller configuration.
func (c *Config) Finder() finder.Config {
	return finder.Config{DefaultQuery: c.DefaultQuery}
}

// Logging returns the logger configuration. The caller sets Output.
func (c *Config) Logging() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.ParseLevel(c.Log.Level)
	cfg.Pretty = c.Log.Pretty
	return cfg
}
