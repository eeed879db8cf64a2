// Package cache provides an in-memory TTL cache with ETag support.
package cache

import (
	"crypto/md5"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Fused views and candidates only change when a run publishes, so entries
// can live a while; coverage is cheap and checked right after runs.
const (
	TTLFused    = 15 * time.Minute
	TTLReview   = 5 * time.Minute
	TTLCoverage = 1 * time.Minute
)

type entry struct {
	data      []byte
	etag      string
	expiresAt time.Time
}

// Cache is a thread-safe in-memory TTL cache.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	enabled bool
	now     func() time.Time
}

// New creates a new cache. Pass enabled=false to create a no-op cache.
func New(enabled bool) *Cache {
	c := &Cache{
		entries: make(map[string]entry),
		enabled: enabled,
		now:     time.Now,
	}
	if enabled {
		go c.evictLoop()
	}
	return c
}

// Get retrieves a cached value. Returns data, etag, and whether the entry was found.
func (c *Cache) Get(key string) (data []byte, etag string, ok bool) {
	if !c.enabled {
		return nil, "", false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, exists := c.entries[key]
	if !exists || c.now().After(e.expiresAt) {
		return nil, "", false
	}
	return e.data, e.etag, true
}

// Set stores a value with a TTL and returns its ETag.
func (c *Cache) Set(key string, data []byte, ttl time.Duration) string {
	etag := ComputeETag(data)
	if !c.enabled {
		return etag
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{
		data:      data,
		etag:      etag,
		expiresAt: c.now().Add(ttl),
	}
	return etag
}

// InvalidatePrefix drops every key starting with prefix and returns how many
// were dropped.
func (c *Cache) InvalidatePrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
			n++
		}
	}
	return n
}

// Stats returns cache statistics.
func (c *Cache) Stats() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	active := 0
	now := c.now()
	for _, e := range c.entries {
		if now.Before(e.expiresAt) {
			active++
		}
	}
	return map[string]interface{}{
		"enabled":      c.enabled,
		"total_keys":   len(c.entries),
		"active_keys":  active,
		"expired_keys": len(c.entries) - active,
	}
}

// evictLoop periodically removes expired entries.
func (c *Cache) evictLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		c.evict()
	}
}

func (c *Cache) evict() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
		}
	}
}

// ComputeETag generates a weak ETag from response data using MD5.
func ComputeETag(data []byte) string {
	hash := md5.Sum(data)
	return fmt.Sprintf(`W/"%x"`, hash[:8])
}

// CheckETagMatch reports whether an If-None-Match header matches etag. The
// header may list several tags.
func CheckETagMatch(ifNoneMatch, etag string) bool {
	if ifNoneMatch == "" {
		return false
	}
	for _, tag := range strings.Split(ifNoneMatch, ",") {
		tag = strings.TrimSpace(tag)
		if tag == "*" || tag == etag {
			return true
		}
	}
	return false
}

// Key prefixes. A resolution run changes links and review candidates; a
// publish changes fused views and coverage.
const (
	PrefixFused    = "fused:"
	PrefixLinks    = "links:"
	PrefixReview   = "review:"
	PrefixCoverage = "coverage"
)
