// Package config provides widgetd configuration with multi-source
// priority.
//
// Sources (highest to lowest):
//  1. Environment variables (WIDGETD_*)
//  2. Config file (~/.widgetd/config.yaml or ./config.yaml)
//  3. Default values
//
// Validation is fail-fast: Load returns an error before the server is
// allowed to start listening.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Sentinel errors for Go-idiomatic checks with errors.Is.
var (
	// ErrInvalidAddr indicates the listen address is malformed.
	ErrInvalidAddr = errors.New("invalid listen address")

	// ErrInvalidBaseURL indicates the frontend base URL is malformed.
	ErrInvalidBaseURL = errors.New("invalid base URL")

	// ErrMissingAssetsDir indicates no asset directory is configured.
	ErrMissingAssetsDir = errors.New("missing assets directory")

	// ErrInvalidPath indicates an endpoint path does not start with "/".
	ErrInvalidPath = errors.New("invalid endpoint path")
)

// Config stores the widgetd server configuration.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string `mapstructure:"addr"`

	// BaseURL is the public base URL the widget asset URLs are
	// derived from (the asset gateway or a CDN in front of it).
	BaseURL string `mapstructure:"base_url"`

	// AssetsDir is the directory the static asset gateway serves.
	AssetsDir string `mapstructure:"assets_dir"`

	// SSEPath is the streaming endpoint; MessagePath receives posted
	// protocol messages.
	SSEPath     string `mapstructure:"sse_path"`
	MessagePath string `mapstructure:"message_path"`

	// ServerName identifies the server implementation to clients.
	ServerName string `mapstructure:"server_name"`

	// CORSOrigins lists origins allowed on the protocol endpoints.
	CORSOrigins []string `mapstructure:"cors_origins"`

	// TrustProxy trusts X-Real-IP/X-Forwarded-For (set behind a
	// reverse proxy).
	TrustProxy bool `mapstructure:"trust_proxy"`

	// RateBurst is the per-IP token bucket burst (0 = default 60).
	RateBurst int `mapstructure:"rate_burst"`

	// Logging.
	LogLevel string `mapstructure:"log_level"`
	LogJSON  bool   `mapstructure:"log_json"`
}

// Load loads configuration with the documented source priority and
// validates it.
func Load() (*Config, error) {
	v := viper.New()

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(home, ".widgetd"))
	v.AddConfigPath(".")

	setDefaults(v)

	v.SetEnvPrefix("WIDGETD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("config file not found, using defaults")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("addr", ":8000")
	v.SetDefault("base_url", "http://localhost:8000/assets")
	v.SetDefault("assets_dir", "assets")
	v.SetDefault("sse_path", "/mcp")
	v.SetDefault("message_path", "/mcp/messages")
	v.SetDefault("server_name", "widgetd")
	v.SetDefault("cors_origins", []string{})
	v.SetDefault("trust_proxy", false)
	v.SetDefault("rate_burst", 0)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)
}

// Validate checks the configuration. Fatal at startup: a broken
// config must never reach the listener.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return ErrInvalidAddr
	}
	if u, err := url.Parse(c.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidBaseURL, c.BaseURL)
	}
	if c.AssetsDir == "" {
		return ErrMissingAssetsDir
	}
	for _, p := range []string{c.SSEPath, c.MessagePath} {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("%w: %q", ErrInvalidPath, p)
		}
	}
	return nil
}

// Level parses LogLevel into a slog level, defaulting to info.
func (c *Config) Level() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
