package rowcache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/perfline/resultdb/internal/core"
)

// memoryEntry is one stored value with its expiry deadline.
type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCache implements core.Cache with an in-process map. Entries expire
// lazily on read. It is the default backend for tests and single-process
// deployments where a cache server is not worth operating.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	closed  bool

	// now is the clock used for expiry checks. Tests replace it.
	now func() time.Time
}

// NewMemoryCache creates an empty in-process cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Get retrieves the value stored under key, or core.ErrCacheMiss when the
// key is absent or has expired.
func (m *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return nil, fmt.Errorf("cache is closed")
	}
	entry, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		return nil, core.ErrCacheMiss
	}
	if !entry.expiresAt.IsZero() && m.now().After(entry.expiresAt) {
		m.mu.Lock()
		// Re-check under the write lock; another goroutine may have
		// replaced the entry since the read.
		if current, ok := m.entries[key]; ok && current.expiresAt.Equal(entry.expiresAt) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return nil, core.ErrCacheMiss
	}

	out := make([]byte, len(entry.value))
	copy(out, entry.value)
	return out, nil
}

// Set stores value under key. A zero ttl stores without expiry.
func (m *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("cache is closed")
	}

	stored := make([]byte, len(value))
	copy(stored, value)

	entry := memoryEntry{value: stored}
	if ttl > 0 {
		entry.expiresAt = m.now().Add(ttl)
	}
	m.entries[key] = entry
	return nil
}

// Delete removes key from the cache.
func (m *MemoryCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("cache is closed")
	}
	delete(m.entries, key)
	return nil
}

// Len returns the number of live entries, counting expired ones that have
// not been read since their deadline.
func (m *MemoryCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Close clears the cache and rejects further use.
func (m *MemoryCache) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	m.entries = nil
	return nil
}

// memoryFactory implements the Factory interface for the in-process cache.
type memoryFactory struct{}

// Type returns the type identifier for this factory.
func (f *memoryFactory) Type() string {
	return "memory"
}

// Validate validates the memory-specific configuration.
func (f *memoryFactory) Validate(cfg core.CacheConfig) error {
	if cfg.Type != "memory" {
		return fmt.Errorf("invalid type for memory factory: %s", cfg.Type)
	}
	return nil
}

// Create creates a new in-process cache.
func (f *memoryFactory) Create(_ core.CacheConfig) (core.Cache, error) {
	return NewMemoryCache(), nil
}

func init() {
	Register(&memoryFactory{})
}
