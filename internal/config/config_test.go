package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{EnvServerURL, EnvStatePath, EnvLogLevel, EnvLogPath} {
		t.Setenv(key, "")
	}
}

func TestLoad_MissingConfigFallsBackToDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	clearEnv(t)

	cfg, err := Load(filepath.Join(home, "does-not-exist.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.ServerURL != defaultServerURL {
		t.Fatalf("ServerURL = %q, want %q", cfg.ServerURL, defaultServerURL)
	}
	if cfg.SocketPath != defaultSocketPath {
		t.Fatalf("SocketPath = %q, want %q", cfg.SocketPath, defaultSocketPath)
	}

	wantState, err := expandPath(defaultStatePath)
	if err != nil {
		t.Fatalf("expandPath(defaultStatePath) returned error: %v", err)
	}
	if cfg.StatePath != wantState {
		t.Fatalf("StatePath = %q, want %q", cfg.StatePath, wantState)
	}
	if !strings.HasPrefix(cfg.LogPath, home) {
		t.Fatalf("LogPath = %q, want it under HOME %q", cfg.LogPath, home)
	}
	if cfg.TickInterval != time.Second || cfg.ReconnectBase != time.Second {
		t.Fatalf("durations = %v/%v, want 1s/1s", cfg.TickInterval, cfg.ReconnectBase)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("LogLevel = %q, want info", cfg.LogLevel)
	}
}

func TestLoad_ParsesAndTrimsConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`
server_url = "  https://timer.example.com  "
socket_path = "/socket"
state_path = "  ~/.stimer/device.toml  "
log_level = "DEBUG"
tick_ms = 250
reconnect_ms = 500
`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.ServerURL != "https://timer.example.com" {
		t.Fatalf("ServerURL = %q, want %q", cfg.ServerURL, "https://timer.example.com")
	}
	if cfg.SocketPath != "/socket" {
		t.Fatalf("SocketPath = %q, want /socket", cfg.SocketPath)
	}
	if cfg.StatePath != filepath.Join(home, ".stimer", "device.toml") {
		t.Fatalf("StatePath = %q, want it under HOME %q", cfg.StatePath, home)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.TickInterval != 250*time.Millisecond {
		t.Fatalf("TickInterval = %v, want 250ms", cfg.TickInterval)
	}
	if cfg.ReconnectBase != 500*time.Millisecond {
		t.Fatalf("ReconnectBase = %v, want 500ms", cfg.ReconnectBase)
	}
}

func TestLoad_EmptyValuesUseDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`
server_url = "   "
socket_path = ""
tick_ms = 0
reconnect_ms = -5
`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.ServerURL != defaultServerURL {
		t.Fatalf("ServerURL = %q, want %q", cfg.ServerURL, defaultServerURL)
	}
	if cfg.SocketPath != defaultSocketPath {
		t.Fatalf("SocketPath = %q, want %q", cfg.SocketPath, defaultSocketPath)
	}
	if cfg.TickInterval != time.Second || cfg.ReconnectBase != time.Second {
		t.Fatalf("durations = %v/%v, want defaults", cfg.TickInterval, cfg.ReconnectBase)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`server_url = "http://from-file:3000"`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	t.Setenv(EnvServerURL, "http://from-env:4000")
	t.Setenv(EnvStatePath, "~/env-device.toml")
	t.Setenv(EnvLogLevel, "WARN")
	t.Setenv(EnvLogPath, "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.ServerURL != "http://from-env:4000" {
		t.Fatalf("ServerURL = %q, want env value", cfg.ServerURL)
	}
	if cfg.StatePath != filepath.Join(home, "env-device.toml") {
		t.Fatalf("StatePath = %q, want env value under HOME", cfg.StatePath)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("LogLevel = %q, want warn", cfg.LogLevel)
	}
}

func TestLoad_InvalidTOMLFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`server_url = [`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	_, err := Load(path)
	if err == nil {
		t.Fatalf("Load returned nil error, want parse error")
	}
	if !strings.Contains(err.Error(), "parse config") {
		t.Fatalf("Load error = %q, want it to mention parse config", err.Error())
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("STIMER_SERVER_URL=http://dotenv:3000\nSTIMER_LOG_LEVEL=debug\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	t.Setenv(EnvServerURL, "")
	_ = os.Unsetenv(EnvServerURL)
	t.Setenv(EnvLogLevel, "error")

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv returned error: %v", err)
	}
	if got := os.Getenv(EnvServerURL); got != "http://dotenv:3000" {
		t.Fatalf("%s = %q, want value from .env", EnvServerURL, got)
	}
	if got := os.Getenv(EnvLogLevel); got != "error" {
		t.Fatalf("%s = %q, want existing value kept", EnvLogLevel, got)
	}
}

func TestLoadDotEnv_MissingFileIsNotAnError(t *testing.T) {
	if err := LoadDotEnv(filepath.Join(t.TempDir(), ".env")); err != nil {
		t.Fatalf("LoadDotEnv returned error: %v", err)
	}
}

func TestExpandPath_ExpandsTildeAndReturnsAbs(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := expandPath("~/a/b")
	if err != nil {
		t.Fatalf("expandPath returned error: %v", err)
	}
	want := filepath.Join(home, "a/b")
	if got != want {
		t.Fatalf("expandPath = %q, want %q", got, want)
	}
}

func TestExpandPath_EmptyErrors(t *testing.T) {
	if _, err := expandPath("   "); err == nil {
		t.Fatalf("expandPath returned nil error, want error")
	}
}
