// Package cache provides the bounded response cache and the drill-down store
// shared by concurrent tool calls. Entries expire after their TTL and the
// least recently used entry is evicted when capacity is reached.
package cache

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// DefaultMaxEntries is used when a non-positive capacity is given.
const DefaultMaxEntries = 100

// Entry represents a cached item with metadata
type Entry struct {
	Key       string      `json:"key"`
	Value     interface{} `json:"value"`
	Tag       string      `json:"tag,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	ExpiresAt time.Time   `json:"expires_at"`
	HitCount  int         `json:"hit_count"`
}

// expired reports whether the entry is no longer visible at now.
func (e *Entry) expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithEvictionHook is called, outside the lock, for every entry removed
// because of capacity or expiry.
func WithEvictionHook(fn func(key string)) Option {
	return func(c *Cache) { c.onEvict = fn }
}

// WithLookupHook is called after every Get with the hit/miss result.
func WithLookupHook(fn func(hit bool)) Option {
	return func(c *Cache) { c.onLookup = fn }
}

// Cache is a concurrency-safe TTL cache. Capacity and recency are kept by a
// golang-lru list; expiry is checked against the injected clock.
type Cache struct {
	mu         sync.Mutex
	lru        *simplelru.LRU[string, *Entry]
	maxSize    int
	defaultTTL time.Duration

	now      func() time.Time
	onEvict  func(key string)
	onLookup func(hit bool)

	// dropping is set while entries are removed on request, so the lru
	// callback does not count them as evictions.
	dropping bool
	pending  []string

	hits      uint64
	misses    uint64
	evictions uint64
}

// New creates a cache holding at most maxSize entries.
func New(maxSize int, defaultTTL time.Duration, opts ...Option) *Cache {
	if maxSize <= 0 {
		maxSize = DefaultMaxEntries
	}
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	c := &Cache{
		maxSize:    maxSize,
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
	// NewLRU only fails on a non-positive size.
	c.lru, _ = simplelru.NewLRU[string, *Entry](maxSize, c.evicted)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// evicted is the lru callback; it runs with c.mu held.
func (c *Cache) evicted(key string, _ *Entry) {
	if c.dropping {
		return
	}
	c.evictions++
	c.pending = append(c.pending, key)
}

// Get retrieves a value. An expired entry is removed and reported as a miss.
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	value, ok := c.getLocked(key)
	evicted := c.takePendingLocked()
	c.mu.Unlock()

	c.notify(evicted)
	if c.onLookup != nil {
		c.onLookup(ok)
	}
	return value, ok
}

func (c *Cache) getLocked(key string) (interface{}, bool) {
	entry, ok := c.lru.Peek(key)
	if !ok {
		c.misses++
		return nil, false
	}
	if entry.expired(c.now()) {
		c.lru.Remove(key)
		c.misses++
		return nil, false
	}
	c.lru.Get(key)
	entry.HitCount++
	c.hits++
	return entry.Value, true
}

// Set stores a value. A non-positive ttl uses the cache default.
func (c *Cache) Set(key string, value interface{}, ttl time.Duration) {
	c.SetTagged(key, "", value, ttl)
}

// SetTagged stores a value with a tag, usually the request path, that
// InvalidateTag can later match on.
func (c *Cache) SetTagged(key, tag string, value interface{}, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	now := c.now()

	if entry, ok := c.lru.Peek(key); ok {
		entry.Value = value
		entry.Tag = tag
		entry.CreatedAt = now
		entry.ExpiresAt = now.Add(ttl)
		c.lru.Get(key)
		c.mu.Unlock()
		return
	}

	if c.lru.Len() >= c.maxSize {
		c.evictExpiredLocked(now)
	}
	c.lru.Add(key, &Entry{
		Key:       key,
		Value:     value,
		Tag:       tag,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	})
	evicted := c.takePendingLocked()
	c.mu.Unlock()

	c.notify(evicted)
}

// Delete removes a specific key from the cache
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropping = true
	c.lru.Remove(key)
	c.dropping = false
}

// InvalidateTag removes all entries whose tag starts with prefix and
// returns how many were removed.
func (c *Cache) InvalidateTag(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.dropping = true
	defer func() { c.dropping = false }()

	count := 0
	for _, key := range c.lru.Keys() {
		if entry, ok := c.lru.Peek(key); ok && entry.Tag != "" && strings.HasPrefix(entry.Tag, prefix) {
			c.lru.Remove(key)
			count++
		}
	}
	return count
}

// Clear removes all entries from the cache
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropping = true
	c.lru.Purge()
	c.dropping = false
}

// Len returns the number of entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Stats holds cache statistics
type Stats struct {
	Size         int     `json:"size"`
	MaxSize      int     `json:"max_size"`
	DefaultTTL   string  `json:"default_ttl"`
	Hits         uint64  `json:"hits"`
	Misses       uint64  `json:"misses"`
	HitRate      float64 `json:"hit_rate"`
	Utilization  string  `json:"utilization"`
	Evictions    uint64  `json:"evictions"`
	ExpiredCount int     `json:"expired_count"`
	TotalHits    int     `json:"total_entry_hits"`
}

// Stats returns cache statistics
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	s := Stats{
		Size:       c.lru.Len(),
		MaxSize:    c.maxSize,
		DefaultTTL: c.defaultTTL.String(),
		Hits:       c.hits,
		Misses:     c.misses,
		Evictions:  c.evictions,
	}
	for _, entry := range c.lru.Values() {
		s.TotalHits += entry.HitCount
		if entry.expired(now) {
			s.ExpiredCount++
		}
	}
	s.Utilization = fmt.Sprintf("%.1f%%", float64(s.Size)/float64(c.maxSize)*100)
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}

// evictExpiredLocked removes all expired entries, oldest first (must hold lock)
func (c *Cache) evictExpiredLocked(now time.Time) {
	for _, key := range c.lru.Keys() {
		if entry, ok := c.lru.Peek(key); ok && entry.expired(now) {
			c.lru.Remove(key)
		}
	}
}

func (c *Cache) takePendingLocked() []string {
	keys := c.pending
	c.pending = nil
	return keys
}

func (c *Cache) notify(keys []string) {
	if c.onEvict == nil {
		return
	}
	for _, k := range keys {
		c.onEvict(k)
	}
}
