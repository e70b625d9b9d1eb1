package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mathcards/grinddeck-server/internal/game"
	"github.com/zalando/go-keyring"
)

// MemoryKV is a process-local key-value store.
type MemoryKV struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{values: make(map[string]string)}
}

func (m *MemoryKV) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryKV) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// KeyringKV keeps values in the OS keyring, falling back to a JSON file when
// no keyring backend is available.
type KeyringKV struct {
	service      string
	fallbackPath string
	mu           sync.Mutex
}

// NewKeyringKV creates a keyring-backed store under service.
func NewKeyringKV(service, fallbackPath string) *KeyringKV {
	if strings.TrimSpace(service) == "" {
		service = "grinddeck"
	}
	return &KeyringKV{service: service, fallbackPath: fallbackPath}
}

// OpenKV returns the store named by driver.
func OpenKV(driver, service, fallbackPath string) (game.KeyValueStore, error) {
	switch driver {
	case "keyring":
		return NewKeyringKV(service, fallbackPath), nil
	case "memory", "":
		return NewMemoryKV(), nil
	default:
		return nil, fmt.Errorf("unknown kv driver %q", driver)
	}
}

func (k *KeyringKV) Get(_ context.Context, key string) (string, bool, error) {
	val, err := keyring.Get(k.service, key)
	if err == nil {
		return val, true, nil
	}
	if !isKeyringUnavailable(err) && !errors.Is(err, keyring.ErrNotFound) {
		return "", false, fmt.Errorf("keyring get %s: %w", key, err)
	}
	if strings.TrimSpace(k.fallbackPath) == "" {
		return "", false, nil
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	data, ferr := k.readFallbackUnlocked()
	if ferr != nil {
		return "", false, ferr
	}
	val, ok := data[key]
	return val, ok, nil
}

func (k *KeyringKV) Set(_ context.Context, key, value string) error {
	err := keyring.Set(k.service, key, value)
	if err == nil {
		return nil
	}
	if !isKeyringUnavailable(err) {
		return fmt.Errorf("keyring set %s: %w", key, err)
	}
	if strings.TrimSpace(k.fallbackPath) == "" {
		return fmt.Errorf("keyring unavailable and no fallback path configured: %w", err)
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	data, err := k.readFallbackUnlocked()
	if err != nil {
		return err
	}
	data[key] = value
	return k.writeFallbackUnlocked(data)
}

func isKeyringUnavailable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "secret service") ||
		strings.Contains(msg, "dbus") ||
		strings.Contains(msg, "no keychain") ||
		strings.Contains(msg, "keyring backend not available")
}

func (k *KeyringKV) readFallbackUnlocked() (map[string]string, error) {
	out := map[string]string{}
	raw, err := os.ReadFile(k.fallbackPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return out, nil
		}
		return nil, fmt.Errorf("read fallback store: %w", err)
	}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode fallback store: %w", err)
	}
	return out, nil
}

func (k *KeyringKV) writeFallbackUnlocked(data map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(k.fallbackPath), 0o700); err != nil {
		return fmt.Errorf("mkdir fallback dir: %w", err)
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode fallback store: %w", err)
	}
	if err := os.WriteFile(k.fallbackPath, raw, 0o600); err != nil {
		return fmt.Errorf("write fallback store: %w", err)
	}
	return nil
}
