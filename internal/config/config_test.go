package config

import (
	"os"
	"path/filepath"
	"testing"
)

// cliWithPath returns a CLI struct pointing at the given config file.
func cliWithPath(path string) *CLI {
	return &CLI{Config: path}
}

func TestLoad_ValidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	data := `
[server]
host = "127.0.0.1"
port = 9000
body_max_bytes = 5242880

[cors]
allow_origin = "https://app.example.com"
allow_methods = "GET, POST"
allow_headers = "Content-Type"

[upstream]
timeout_seconds = 60
idle_connections = 50

[log]
level = "debug"
format = "text"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(cliWithPath(path))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "127.0.0.1")
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 9000)
	}
	if cfg.CORS.AllowOrigin != "https://app.example.com" {
		t.Errorf("CORS.AllowOrigin = %q, want %q", cfg.CORS.AllowOrigin, "https://app.example.com")
	}
	if cfg.CORS.AllowMethods != "GET, POST" {
		t.Errorf("CORS.AllowMethods = %q, want %q", cfg.CORS.AllowMethods, "GET, POST")
	}
	if cfg.Upstream.TimeoutSeconds != 60 {
		t.Errorf("Upstream.TimeoutSeconds = %d, want %d", cfg.Upstream.TimeoutSeconds, 60)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "debug")
	}
	if cfg.Log.Format != "text" {
		t.Errorf("Log.Format = %q, want %q", cfg.Log.Format, "text")
	}
}

func TestLoad_NoConfigFileUsesDefaults(t *testing.T) {
	// No explicit path and nothing at the search paths: every value defaults.
	cfg, err := Load(&CLI{})
	if err != nil {
		t.Fatalf("Load() error = %v; a missing config file should not be fatal", err)
	}

	if cfg.Server.Port != 8000 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 8000)
	}
	if cfg.CORS.AllowOrigin != DefaultAllowOrigin {
		t.Errorf("CORS.AllowOrigin = %q, want %q", cfg.CORS.AllowOrigin, DefaultAllowOrigin)
	}
	if cfg.CORS.AllowMethods != DefaultAllowMethods {
		t.Errorf("CORS.AllowMethods = %q, want %q", cfg.CORS.AllowMethods, DefaultAllowMethods)
	}
	if cfg.CORS.AllowHeaders != DefaultAllowHeaders {
		t.Errorf("CORS.AllowHeaders = %q, want %q", cfg.CORS.AllowHeaders, DefaultAllowHeaders)
	}
	if cfg.Upstream.TimeoutSeconds != 120 {
		t.Errorf("Upstream.TimeoutSeconds = %d, want %d", cfg.Upstream.TimeoutSeconds, 120)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "info")
	}
	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics.Path = %q, want %q", cfg.Metrics.Path, "/metrics")
	}
}

func TestLoad_ExplicitMissingFileIsError(t *testing.T) {
	_, err := Load(cliWithPath(filepath.Join(t.TempDir(), "nope.toml")))
	if err == nil {
		t.Fatal("Load() expected error for explicitly named missing file, got nil")
	}
}

func TestLoad_CLIOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	data := `
[server]
host = "0.0.0.0"
port = 8000

[cors]
allow_origin = "https://config.example.com"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(&CLI{
		Config:      path,
		Host:        "127.0.0.1",
		Port:        9100,
		AllowOrigin: "https://cli.example.com",
		LogLevel:    "warn",
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %q, want CLI override", cfg.Server.Host)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("Server.Port = %d, want CLI override", cfg.Server.Port)
	}
	if cfg.CORS.AllowOrigin != "https://cli.example.com" {
		t.Errorf("CORS.AllowOrigin = %q, want CLI override", cfg.CORS.AllowOrigin)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want CLI override", cfg.Log.Level)
	}
}

func TestLoad_InvalidLogLevel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	data := `
[log]
level = "verbose"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(cliWithPath(path)); err == nil {
		t.Fatal("Load() expected error for invalid log level, got nil")
	}
}

func TestLoad_InvalidPort(t *testing.T) {
	if _, err := Load(&CLI{Port: 70000}); err == nil {
		t.Fatal("Load() expected error for out-of-range port, got nil")
	}
}

func TestLoad_RateLimitValidation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	data := `
[server.rate_limit]
enabled = true
requests_per_second = 0
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(cliWithPath(path)); err == nil {
		t.Fatal("Load() expected error for zero rps with rate limiting enabled, got nil")
	}
}

func TestLoad_MetricsPathConflict(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	data := `
[metrics]
enabled = true
path = "/healthz"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(cliWithPath(path)); err == nil {
		t.Fatal("Load() expected error for metrics path conflicting with reserved route, got nil")
	}
}

func TestLoad_MalformedTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[server\nport ="), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(cliWithPath(path)); err == nil {
		t.Fatal("Load() expected error for malformed TOML, got nil")
	}
}

func TestServerConfig_Addr(t *testing.T) {
	c := ServerConfig{Host: "127.0.0.1", Port: 8000}
	if got := c.Addr(); got != "127.0.0.1:8000" {
		t.Errorf("Addr() = %q, want %q", got, "127.0.0.1:8000")
	}
}

func TestFindConfigInPaths(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(existing, []byte(""), 0o644); err != nil {
		t.Fatal(err)
	}

	got := findConfigInPaths([]string{filepath.Join(dir, "missing.toml"), existing})
	if got != existing {
		t.Errorf("findConfigInPaths() = %q, want %q", got, existing)
	}

	if got := findConfigInPaths([]string{filepath.Join(dir, "missing.toml")}); got != "" {
		t.Errorf("findConfigInPaths() = %q, want empty", got)
	}
}
