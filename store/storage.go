// ABOUTME: Durable key/value slot abstraction used to persist application state.
// ABOUTME: Provides an in-memory implementation; file and sqlite slots live alongside.
package store

import "sync"

// StateKey is the fixed slot the application state is written under.
const StateKey = "promptmint_app_state"

// Storage is a string key/value slot. Get reports ok=false for a missing key.
type Storage interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
}

// MemoryStorage keeps values in process memory.
type MemoryStorage struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStorage returns an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: make(map[string]string)}
}

func (m *MemoryStorage) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryStorage) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}
