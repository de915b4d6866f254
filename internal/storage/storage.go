// Package storage provides the device-local durable key/value store that
// backs client identity and room bindings.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	toml "github.com/pelletier/go-toml/v2"
)

// KV is the narrow durable key/value contract used by the identity store.
type KV interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Delete(key string) error
}

// ErrCorrupt reports a device state file that exists but cannot be parsed.
var ErrCorrupt = errors.New("device state is corrupt")

const defaultStatePath = "~/.local/share/stimer/device.toml"

// DefaultPath returns the default device state file path.
func DefaultPath() string {
	return defaultStatePath
}

// Memory is an in-process KV. The zero value is ready to use.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

// Get implements KV.
func (m *Memory) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok
}

// Set implements KV.
func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values == nil {
		m.values = make(map[string]string)
	}
	m.values[key] = value
	return nil
}

// Delete implements KV.
func (m *Memory) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

// File is a KV persisted as a TOML document. Every write rewrites the file
// through a temp file and rename so a crash never leaves a half-written state.
type File struct {
	path   string
	mu     sync.Mutex
	values map[string]string
}

type document struct {
	Values map[string]string `toml:"values"`
}

// Open loads the state file at path, creating an empty store when the file
// does not exist yet.
func Open(path string) (*File, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return nil, err
	}
	f := &File{path: resolved, values: make(map[string]string)}

	data, err := os.ReadFile(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return f, nil
		}
		return nil, fmt.Errorf("read device state: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return f, nil
	}

	var doc document
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, resolved, err)
	}
	for k, v := range doc.Values {
		f.values[k] = v
	}
	return f, nil
}

// Path returns the resolved file location.
func (f *File) Path() string {
	return f.path
}

// Get implements KV.
func (f *File) Get(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	return v, ok
}

// Set implements KV.
func (f *File) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cur, ok := f.values[key]; ok && cur == value {
		return nil
	}
	f.values[key] = value
	return f.saveLocked()
}

// Delete implements KV.
func (f *File) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.values[key]; !ok {
		return nil
	}
	delete(f.values, key)
	return f.saveLocked()
}

func (f *File) saveLocked() error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	bytes, err := toml.Marshal(document{Values: f.values})
	if err != nil {
		return fmt.Errorf("marshal device state: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".device-*.toml")
	if err != nil {
		return fmt.Errorf("create temp state: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(bytes); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write device state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close device state: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace device state: %w", err)
	}
	return nil
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultStatePath)
	}
	return expandPath(path)
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
