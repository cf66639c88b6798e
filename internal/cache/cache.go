// Package cache implements a key→value store with per-key TTL expiry and
// version-stamped entries. Every write mints a fresh opaque version token;
// reads may carry an expected version, and a mismatch counts as a miss so the
// caller re-fetches. Versions are also what make slow writers safe: an expiry
// timer or an in-flight fetch only takes effect if the generation it observed
// is still current.
package cache

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type Cache struct {
	mu         sync.Mutex
	defaultTTL time.Duration
	entries    map[string]*entry
}

type entry struct {
	version string
	value   any
	expiry  *time.Timer
}

func New(defaultTTL time.Duration) *Cache {
	return &Cache{
		defaultTTL: defaultTTL,
		entries:    make(map[string]*entry),
	}
}

// Version returns the current version token for key, or "" when absent.
func (c *Cache) Version(key string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		return e.version
	}
	return ""
}

// Get returns the stored value iff key is present and version is either
// empty or equal to the stored version.
func (c *Cache) Get(key, version string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || (version != "" && version != e.version) {
		return nil, false
	}
	return e.value, true
}

// Set stores value under a fresh version and re-arms the key's expiry timer,
// canceling any previous one. There is at most one live timer per key.
// ttl == 0 uses the cache default.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.set(key, value, ttl)
}

func (c *Cache) set(key string, value any, ttl time.Duration) {
	if ttl == 0 {
		ttl = c.defaultTTL
	}
	if prev, ok := c.entries[key]; ok && prev.expiry != nil {
		prev.expiry.Stop()
	}
	version := uuid.NewString()
	e := &entry{version: version, value: value}
	e.expiry = time.AfterFunc(ttl, func() {
		c.expire(key, version)
	})
	c.entries[key] = e
}

// expire deletes key only if it still holds the generation the timer was
// armed for. A newer Set makes the stale timer a no-op.
func (c *Cache) expire(key, version string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok && e.version == version {
		delete(c.entries, key)
	}
}

// Close stops every pending expiry timer. Entries stay readable; Close is
// for teardown, not invalidation.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		if e.expiry != nil {
			e.expiry.Stop()
		}
	}
}

// Options configure a single Compute call.
type Options struct {
	// TTL for the entry written after a successful fetch; 0 uses the cache
	// default.
	TTL time.Duration
	// Force bypasses any cached value by expecting a version that can never
	// match, guaranteeing a fresh fetch.
	Force bool
}

// Compute returns the cached value for key when it satisfies opts, and
// otherwise invokes fetch and returns its result. Concurrent callers for the
// same key are not serialized; each runs its own fetch, and a successful
// result is written back only if the key's version still equals the one
// observed when that fetch started. Whichever fetch started against the
// newest generation wins, regardless of completion order. A fetch error
// propagates to its caller alone and leaves the cache untouched.
func Compute[T any](c *Cache, key string, opts Options, fetch func() (T, error)) (T, error) {
	expected := ""
	if opts.Force {
		expected = uuid.NewString()
	}

	c.mu.Lock()
	e, ok := c.entries[key]
	if ok && (expected == "" || expected == e.version) {
		value := e.value
		c.mu.Unlock()
		return value.(T), nil
	}
	startVersion := ""
	if ok {
		startVersion = e.version
	}
	c.mu.Unlock()

	value, err := fetch()
	if err != nil {
		var zero T
		return zero, err
	}

	c.mu.Lock()
	current := ""
	if e, ok := c.entries[key]; ok {
		current = e.version
	}
	if current == startVersion {
		c.set(key, value, opts.TTL)
	}
	c.mu.Unlock()

	return value, nil
}
