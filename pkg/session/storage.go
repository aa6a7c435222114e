package session

import (
	"context"
	"fmt"
	"sync"
)

// Persisted keys of a session
const (
	KeyUser         = "tutoria_user"
	KeyToken        = "tutoria_token"
	KeyRefreshToken = "tutoria_refresh_token"
)

// Keys lists every persisted session key
func Keys() []string {
	return []string{KeyUser, KeyToken, KeyRefreshToken}
}

// Storage is a small string key/value store that outlives the process
type Storage interface {
	// Get returns the value of key and whether it exists
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	// Delete removes keys; missing keys are not an error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

// StorageConfig selects and configures a storage backend
type StorageConfig struct {
	// Driver is one of "file", "memory", "redis", "sqlite"
	Driver string
	// Path is the file for the file and sqlite drivers
	Path string
	// RedisURL and RedisPrefix configure the redis driver
	RedisURL    string
	RedisPrefix string
}

// OpenStorage opens the backend named by cfg.Driver
func OpenStorage(ctx context.Context, cfg StorageConfig) (Storage, error) {
	switch cfg.Driver {
	case "", "file":
		return NewFileStorage(cfg.Path)
	case "memory":
		return NewMemoryStorage(), nil
	case "redis":
		return NewRedisStorage(ctx, cfg.RedisURL, cfg.RedisPrefix)
	case "sqlite":
		return NewSQLiteStorage(ctx, cfg.Path)
	default:
		return nil, fmt.Errorf("unknown session storage driver %q", cfg.Driver)
	}
}

// MemoryStorage keeps values in process memory
type MemoryStorage struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStorage creates an empty MemoryStorage
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: make(map[string]string)}
}

func (m *MemoryStorage) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryStorage) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryStorage) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

func (m *MemoryStorage) Close() error { return nil }
