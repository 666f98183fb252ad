package cache

import (
	"sync"
	"time"
)

type fallbackEntry struct {
	value     string
	expiresAt time.Time
}

// FallbackCache keeps command set hashes in process while redis is
// unreachable. The oldest entry is evicted when maxSize is reached.
type FallbackCache struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]fallbackEntry
	maxSize int
}

func NewFallbackCache(maxSize int) *FallbackCache {
	return &FallbackCache{
		now:     time.Now,
		entries: make(map[string]fallbackEntry),
		maxSize: maxSize,
	}
}

func (fc *FallbackCache) Get(key string) (string, bool) {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	entry, ok := fc.entries[key]
	if !ok {
		return "", false
	}

	if fc.now().After(entry.expiresAt) {
		delete(fc.entries, key)
		return "", false
	}

	return entry.value, true
}

func (fc *FallbackCache) Set(key, value string, ttl time.Duration) {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	if _, ok := fc.entries[key]; !ok && len(fc.entries) >= fc.maxSize {
		fc.evict()
	}

	fc.entries[key] = fallbackEntry{
		value:     value,
		expiresAt: fc.now().Add(ttl),
	}
}

func (fc *FallbackCache) Delete(key string) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	delete(fc.entries, key)
}

func (fc *FallbackCache) Len() int {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return len(fc.entries)
}

// evict drops expired entries, or the one closest to expiry when none are.
func (fc *FallbackCache) evict() {
	now := fc.now()

	var oldestKey string
	var oldest time.Time
	for key, entry := range fc.entries {
		if now.After(entry.expiresAt) {
			delete(fc.entries, key)
			continue
		}
		if oldestKey == "" || entry.expiresAt.Before(oldest) {
			oldestKey = key
			oldest = entry.expiresAt
		}
	}

	if len(fc.entries) >= fc.maxSize && oldestKey != "" {
		delete(fc.entries, oldestKey)
	}
}
