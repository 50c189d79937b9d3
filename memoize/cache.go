/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package memoize

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/acronis/go-callkit/gate"
)

// DefaultCleanupInterval is used by EnableAutoCleanup when a non-positive
// interval is passed.
const DefaultCleanupInterval = time.Second

type cacheEntry[V any] struct {
	value     V
	expiresAt time.Time
}

// Cache represents a keyed memoization table with absolute expiry.
//
// Every call path purges expired entries before reading the table, so a read
// never observes a stale value. Entries are never evicted for capacity
// reasons.
//
// Keep in mind that a unit of work populating the cache runs under the
// table's exclusive lock: a slow population call blocks all other operations
// on the same Cache instance for its duration. In return, the work runs at
// most once per key inside the validity window, even under contention.
type Cache[K comparable, V any] struct {
	defaultTTL time.Duration

	mu      sync.RWMutex
	entries map[K]cacheEntry[V]

	cleanupGate   gate.Gate
	cleanupMu     sync.Mutex
	cleanupCancel context.CancelFunc

	metricsCollector MetricsCollector
}

// Options represents options for the cache.
type Options struct {
	// DefaultTTL is the validity window applied to entries stored without an
	// explicit TTL or expiration time. When zero, such entries stay valid
	// until the start of the next calendar day in local time.
	DefaultTTL time.Duration
}

// New creates a new Cache with the provided metrics collector.
// Metrics collector is used to collect statistics about cache usage.
// It can be nil, in this case, metrics will be disabled.
func New[K comparable, V any](metricsCollector MetricsCollector) (*Cache[K, V], error) {
	return NewWithOpts[K, V](metricsCollector, Options{})
}

// NewWithOpts creates a new Cache with the provided metrics collector and options.
func NewWithOpts[K comparable, V any](metricsCollector MetricsCollector, opts Options) (*Cache[K, V], error) {
	if opts.DefaultTTL < 0 {
		return nil, fmt.Errorf("defaultTTL must be greater or equal to 0")
	}
	if metricsCollector == nil {
		metricsCollector = disabledMetrics{}
	}
	return &Cache[K, V]{
		defaultTTL:       opts.DefaultTTL,
		entries:          make(map[K]cacheEntry[V]),
		metricsCollector: metricsCollector,
	}, nil
}

// Do returns the cached value for key if a live entry exists, otherwise runs
// fn exactly once, stores its result with the default validity window, and
// returns it. Concurrent callers for the same key observe either the cached
// value or the value produced by the single population call.
//
// An error returned by fn propagates to the caller and caches nothing.
func (c *Cache[K, V]) Do(key K, fn func() (V, error)) (V, error) {
	return c.do(key, fn, time.Time{}, 0)
}

// DoWithTTL is Do with an explicit validity window relative to the current
// time, resolved once at call time. A non-positive ttl falls back to the
// default resolution.
func (c *Cache[K, V]) DoWithTTL(key K, ttl time.Duration, fn func() (V, error)) (V, error) {
	return c.do(key, fn, time.Time{}, ttl)
}

// DoWithExpiration is Do with an explicit absolute expiration time.
// A zero expiresAt falls back to the default resolution.
func (c *Cache[K, V]) DoWithExpiration(key K, expiresAt time.Time, fn func() (V, error)) (V, error) {
	return c.do(key, fn, expiresAt, 0)
}

// Exec is the side-effecting flavor of Do: it runs fn at most once per key
// inside the validity window, storing a marker entry instead of a value.
// While the marker is live, subsequent Exec calls for the key do nothing.
func (c *Cache[K, V]) Exec(key K, fn func() error) error {
	return c.exec(key, fn, time.Time{}, 0)
}

// ExecWithTTL is Exec with an explicit validity window relative to the current time.
func (c *Cache[K, V]) ExecWithTTL(key K, ttl time.Duration, fn func() error) error {
	return c.exec(key, fn, time.Time{}, ttl)
}

// ExecWithExpiration is Exec with an explicit absolute expiration time.
func (c *Cache[K, V]) ExecWithExpiration(key K, expiresAt time.Time, fn func() error) error {
	return c.exec(key, fn, expiresAt, 0)
}

func (c *Cache[K, V]) exec(key K, fn func() error, expiresAt time.Time, ttl time.Duration) error {
	if fn == nil {
		panic("memoize: fn must not be nil")
	}
	_, err := c.do(key, func() (V, error) {
		var marker V
		return marker, fn()
	}, expiresAt, ttl)
	return err
}

func (c *Cache[K, V]) do(key K, fn func() (V, error), expiresAt time.Time, ttl time.Duration) (value V, err error) {
	if fn == nil {
		panic("memoize: fn must not be nil")
	}

	c.RemoveExpired()

	now := time.Now()
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && entry.expiresAt.After(now) {
		c.metricsCollector.IncHits()
		return entry.value, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Re-check under the exclusive lock: another caller may have populated
	// the entry after the shared-read check above.
	if entry, ok := c.entries[key]; ok && entry.expiresAt.After(time.Now()) {
		c.metricsCollector.IncHits()
		return entry.value, nil
	}

	c.metricsCollector.IncMisses()
	if value, err = fn(); err != nil {
		var zero V
		return zero, err
	}
	now = time.Now()
	c.entries[key] = cacheEntry[V]{value: value, expiresAt: c.resolveExpiresAt(now, expiresAt, ttl)}
	c.metricsCollector.SetAmount(len(c.entries))
	return value, nil
}

func (c *Cache[K, V]) resolveExpiresAt(now, expiresAt time.Time, ttl time.Duration) time.Time {
	if !expiresAt.IsZero() {
		return expiresAt
	}
	if ttl > 0 {
		return now.Add(ttl)
	}
	if c.defaultTTL > 0 {
		return now.Add(c.defaultTTL)
	}
	return startOfNextDay(now)
}

// startOfNextDay returns midnight of the following calendar day in now's location.
func startOfNextDay(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())
}

// RemoveExpired removes all entries whose expiration time has passed and
// returns the number of removed entries. It is called on every Do/Exec and
// by the auto-cleanup loop; it never fails.
func (c *Cache[K, V]) RemoveExpired() int {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, entry := range c.entries {
		if entry.expiresAt.Before(now) {
			delete(c.entries, key)
			removed++
		}
	}
	if removed > 0 {
		c.metricsCollector.AddExpirations(removed)
		c.metricsCollector.SetAmount(len(c.entries))
	}
	return removed
}

// Remove removes an entry from the cache by the provided key.
func (c *Cache[K, V]) Remove(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok {
		return false
	}
	delete(c.entries, key)
	c.metricsCollector.SetAmount(len(c.entries))
	return true
}

// Purge clears the cache.
func (c *Cache[K, V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[K]cacheEntry[V])
	c.metricsCollector.SetAmount(0)
}

// Len returns the number of entries in the cache, including not yet
// reclaimed expired ones.
func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
