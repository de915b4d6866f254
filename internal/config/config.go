package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds everything the client reads at start-up.
type Config struct {
	ServerURL     string
	SocketPath    string
	StatePath     string
	LogPath       string
	LogLevel      string
	TickInterval  time.Duration
	ReconnectBase time.Duration
}

const (
	defaultConfigPath  = "~/.config/stimer/config.toml"
	defaultServerURL   = "http://127.0.0.1:3000"
	defaultSocketPath  = "/ws"
	defaultStatePath   = "~/.local/share/stimer/device.toml"
	defaultLogPath     = "~/.local/share/stimer/stimer.log"
	defaultLogLevel    = "info"
	defaultTickMS      = 1000
	defaultReconnectMS = 1000
)

// Environment overrides, applied after the file.
const (
	EnvServerURL = "STIMER_SERVER_URL"
	EnvStatePath = "STIMER_STATE_PATH"
	EnvLogLevel  = "STIMER_LOG_LEVEL"
	EnvLogPath   = "STIMER_LOG_PATH"
)

// Default returns the built-in configuration with paths expanded.
func Default() Config {
	return Config{
		ServerURL:     defaultServerURL,
		SocketPath:    defaultSocketPath,
		StatePath:     mustExpand(defaultStatePath),
		LogPath:       mustExpand(defaultLogPath),
		LogLevel:      defaultLogLevel,
		TickInterval:  defaultTickMS * time.Millisecond,
		ReconnectBase: defaultReconnectMS * time.Millisecond,
	}
}

// Load parses the config file at path (or the default location), falling
// back to defaults when it is missing, then applies environment overrides.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return applyEnv(cfg)
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw struct {
		ServerURL   string `toml:"server_url"`
		SocketPath  string `toml:"socket_path"`
		StatePath   string `toml:"state_path"`
		LogPath     string `toml:"log_path"`
		LogLevel    string `toml:"log_level"`
		TickMS      int    `toml:"tick_ms"`
		ReconnectMS int    `toml:"reconnect_ms"`
	}
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if v := strings.TrimSpace(raw.ServerURL); v != "" {
		cfg.ServerURL = v
	}
	if v := strings.TrimSpace(raw.SocketPath); v != "" {
		cfg.SocketPath = v
	}
	if v := strings.TrimSpace(raw.StatePath); v != "" {
		cfg.StatePath = mustExpand(v)
	}
	if v := strings.TrimSpace(raw.LogPath); v != "" {
		cfg.LogPath = mustExpand(v)
	}
	if v := strings.TrimSpace(raw.LogLevel); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if raw.TickMS > 0 {
		cfg.TickInterval = time.Duration(raw.TickMS) * time.Millisecond
	}
	if raw.ReconnectMS > 0 {
		cfg.ReconnectBase = time.Duration(raw.ReconnectMS) * time.Millisecond
	}

	return applyEnv(cfg)
}

func applyEnv(cfg Config) (Config, error) {
	if v := strings.TrimSpace(os.Getenv(EnvServerURL)); v != "" {
		cfg.ServerURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvStatePath)); v != "" {
		expanded, err := expandPath(v)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", EnvStatePath, err)
		}
		cfg.StatePath = expanded
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogPath)); v != "" {
		expanded, err := expandPath(v)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", EnvLogPath, err)
		}
		cfg.LogPath = expanded
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	return cfg, nil
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
