// Package cache provides a small thread-safe TTL cache used to keep parsed
// catalog files in memory between tool calls.
package cache

import (
	"strings"
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

func (e entry[V]) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// Cache is a thread-safe TTL cache with background cleanup
type Cache[V any] struct {
	mu          sync.RWMutex
	entries     map[string]entry[V]
	defaultTTL  time.Duration
	cleanupTick time.Duration
	stopCleanup chan struct{}
	stopped     bool
}

// New creates a cache with the given default TTL. Expired entries are swept
// every cleanupInterval until Stop is called; a non-positive interval
// disables the sweep and expired entries are only dropped on read.
func New[V any](defaultTTL, cleanupInterval time.Duration) *Cache[V] {
	c := &Cache[V]{
		entries:     make(map[string]entry[V]),
		defaultTTL:  defaultTTL,
		cleanupTick: cleanupInterval,
		stopCleanup: make(chan struct{}),
	}

	if cleanupInterval > 0 {
		go c.cleanupLoop()
	}

	return c
}

func (c *Cache[V]) cleanupLoop() {
	ticker := time.NewTicker(c.cleanupTick)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanup()
		case <-c.stopCleanup:
			return
		}
	}
}

func (c *Cache[V]) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, key)
		}
	}
}

// Get returns the value for key if present and not expired
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	e, exists := c.entries[key]
	c.mu.RUnlock()

	if !exists || e.expired(time.Now()) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores a value with the default TTL
func (c *Cache[V]) Set(key string, value V) {
	c.SetWithTTL(key, value, c.defaultTTL)
}

// SetWithTTL stores a value with a custom TTL
func (c *Cache[V]) SetWithTTL(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry[V]{value: value, expiresAt: time.Now().Add(ttl)}
}

// DeleteByPrefix removes all keys that start with prefix
func (c *Cache[V]) DeleteByPrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
}

// Stop stops the background cleanup goroutine. Safe to call more than once.
func (c *Cache[V]) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	c.mu.Unlock()

	close(c.stopCleanup)
}

// Len returns the number of entries, including expired ones not yet swept
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}
