package resilience

import (
	"sync"
	"time"
)

// Cache is a single-value TTL cache for API responses.
type Cache[T any] struct {
	ttl time.Duration

	mu        sync.Mutex
	data      T
	populated bool
	stamp     time.Time

	now func() time.Time
}

// NewCache creates a cache with the given TTL.
func NewCache[T any](ttl time.Duration) *Cache[T] {
	return &Cache[T]{ttl: ttl, now: time.Now}
}

// Get returns the cached value and true if it is populated and fresh.
func (c *Cache[T]) Get() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	if !c.populated || c.now().Sub(c.stamp) > c.ttl {
		return zero, false
	}
	return c.data, true
}

// Set stores a value and resets its age.
func (c *Cache[T]) Set(data T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data = data
	c.populated = true
	c.stamp = c.now()
}

// Clear empties the cache.
func (c *Cache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	c.data = zero
	c.populated = false
	c.stamp = time.Time{}
}

// SmartCache is a single-value cache whose TTL adapts to activity:
// shortly after a modification it expires fast (the data is probably
// changing), and once things settle it holds values longer.
type SmartCache[T any] struct {
	baseTTL        time.Duration
	shortTTL       time.Duration
	activityWindow time.Duration

	mu           sync.Mutex
	data         T
	populated    bool
	stamp        time.Time
	lastModified time.Time

	now func() time.Time
}

// NewSmartCache creates an adaptive cache. baseTTL applies when idle,
// shortTTL applies within activityWindow of the last modification.
func NewSmartCache[T any](baseTTL, shortTTL, activityWindow time.Duration) *SmartCache[T] {
	return &SmartCache[T]{
		baseTTL:        baseTTL,
		shortTTL:       shortTTL,
		activityWindow: activityWindow,
		now:            time.Now,
	}
}

func (c *SmartCache[T]) effectiveTTL() time.Duration {
	if !c.lastModified.IsZero() && c.now().Sub(c.lastModified) < c.activityWindow {
		return c.shortTTL
	}
	return c.baseTTL
}

// Get returns the cached value and true if it is populated and fresh
// under the current effective TTL.
func (c *SmartCache[T]) Get() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	if !c.populated || c.now().Sub(c.stamp) > c.effectiveTTL() {
		return zero, false
	}
	return c.data, true
}

// Set stores a value and resets its age.
func (c *SmartCache[T]) Set(data T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data = data
	c.populated = true
	c.stamp = c.now()
}

// Clear empties the cache and records a modification, so the next
// values cached expire on the short TTL for the activity window.
func (c *SmartCache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	c.data = zero
	c.populated = false
	c.stamp = time.Time{}
	c.lastModified = c.now()
}

// Invalidate empties the cache without recording a modification. Use
// when the data may be stale for external reasons rather than because
// this process changed it.
func (c *SmartCache[T]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	c.data = zero
	c.populated = false
	c.stamp = time.Time{}
}
