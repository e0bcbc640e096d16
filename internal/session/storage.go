// Package session owns the authenticated identity of one dashboard tab.
package session

import (
	"context"
	"sync"
	"time"
)

// StorageKey is the fixed name the credential blob is stored under.
const StorageKey = "openvote.session"

// Storage is volatile, tab-scoped key/value storage. Implementations must not
// outlive the process or the tab they were created for.
type Storage interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type memoryEntry struct {
	value    string
	deadline time.Time
}

// MemoryStorage keeps values in process memory only.
type MemoryStorage struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{entries: make(map[string]memoryEntry), now: time.Now}
}

func (m *MemoryStorage) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[key]
	if !ok {
		return "", false, nil
	}
	if !entry.deadline.IsZero() && !m.now().Before(entry.deadline) {
		delete(m.entries, key)
		return "", false, nil
	}
	return entry.value, true, nil
}

// Set stores value; a ttl <= 0 keeps it until Delete.
func (m *MemoryStorage) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.deadline = m.now().Add(ttl)
	}
	m.entries[key] = entry
	return nil
}

func (m *MemoryStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}
