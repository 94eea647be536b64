package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

// validConfig returns a configuration that passes Validate, for tests
// to break one field at a time.
func validConfig() Config {
	return Config{
		Addr:        ":8000",
		BaseURL:     "http://localhost:8000/assets",
		AssetsDir:   "assets",
		SSEPath:     "/mcp",
		MessagePath: "/mcp/messages",
		ServerName:  "widgetd",
	}
}

func TestLoadDefaults(t *testing.T) {
	// Point HOME at an empty directory so no user config interferes.
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Addr != ":8000" {
		t.Errorf("expected default Addr ':8000', got %q", cfg.Addr)
	}
	if cfg.BaseURL != "http://localhost:8000/assets" {
		t.Errorf("expected default BaseURL, got %q", cfg.BaseURL)
	}
	if cfg.AssetsDir != "assets" {
		t.Errorf("expected default AssetsDir 'assets', got %q", cfg.AssetsDir)
	}
	if cfg.SSEPath != "/mcp" {
		t.Errorf("expected default SSEPath '/mcp', got %q", cfg.SSEPath)
	}
	if cfg.MessagePath != "/mcp/messages" {
		t.Errorf("expected default MessagePath '/mcp/messages', got %q", cfg.MessagePath)
	}
	if cfg.ServerName != "widgetd" {
		t.Errorf("expected default ServerName 'widgetd', got %q", cfg.ServerName)
	}
	if cfg.TrustProxy {
		t.Error("expected TrustProxy false by default")
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected default LogLevel 'info', got %q", cfg.LogLevel)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("WIDGETD_ADDR", ":9100")
	t.Setenv("WIDGETD_BASE_URL", "https://cdn.example.com/assets")
	t.Setenv("WIDGETD_LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Addr != ":9100" {
		t.Errorf("Addr = %q, want env override :9100", cfg.Addr)
	}
	if cfg.BaseURL != "https://cdn.example.com/assets" {
		t.Errorf("BaseURL = %q, want env override", cfg.BaseURL)
	}
	if cfg.Level() != slog.LevelDebug {
		t.Errorf("Level() = %v, want debug", cfg.Level())
	}
}

func TestLoadConfigFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir := filepath.Join(home, ".widgetd")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("creating config directory: %v", err)
	}
	content := "addr: \":9200\"\nserver_name: custom\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Addr != ":9200" {
		t.Errorf("Addr = %q, want :9200 from config file", cfg.Addr)
	}
	if cfg.ServerName != "custom" {
		t.Errorf("ServerName = %q, want custom", cfg.ServerName)
	}
	// Unset keys keep defaults.
	if cfg.AssetsDir != "assets" {
		t.Errorf("AssetsDir = %q, want default", cfg.AssetsDir)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{name: "valid", mutate: func(*Config) {}, want: nil},
		{name: "empty addr", mutate: func(c *Config) { c.Addr = "" }, want: ErrInvalidAddr},
		{name: "relative base url", mutate: func(c *Config) { c.BaseURL = "/assets" }, want: ErrInvalidBaseURL},
		{name: "garbage base url", mutate: func(c *Config) { c.BaseURL = "://nope" }, want: ErrInvalidBaseURL},
		{name: "missing assets dir", mutate: func(c *Config) { c.AssetsDir = "" }, want: ErrMissingAssetsDir},
		{name: "relative sse path", mutate: func(c *Config) { c.SSEPath = "mcp" }, want: ErrInvalidPath},
		{name: "relative message path", mutate: func(c *Config) { c.MessagePath = "messages" }, want: ErrInvalidPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.want == nil {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		cfg := Config{LogLevel: tt.in}
		if got := cfg.Level(); got != tt.want {
			t.Errorf("Level(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
