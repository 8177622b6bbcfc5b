package compose

import (
	"sync"
	"time"

	"github.com/lowpoly/tagstack/internal/remote"
)

// DefaultTTL is how long a composed bundle (and the root document) stays
// fresh before the next read refetches.
const DefaultTTL = 5 * time.Minute

// Cache holds per-tag composed bundles and the root document with TTL
// expiry. It is an explicit, injectable object owned by one Client - never
// process-global - so tests get isolation from fresh instances.
type Cache struct {
	mu    sync.Mutex
	ttl   time.Duration
	clock Clock

	bundles map[string]cacheEntry
	root    *rootEntry
}

type cacheEntry struct {
	bundle  *Bundle
	expires time.Time
}

type rootEntry struct {
	doc     *remote.RootDoc
	expires time.Time
}

// NewCache creates a cache with the given TTL (DefaultTTL when zero).
func NewCache(ttl time.Duration, clock Clock) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clock == nil {
		clock = SystemClock()
	}
	return &Cache{
		ttl:     ttl,
		clock:   clock,
		bundles: make(map[string]cacheEntry),
	}
}

// Get returns the cached bundle for a tag if present and fresh.
func (c *Cache) Get(tag string) (*Bundle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.bundles[tag]
	if !ok || c.clock.Now().After(entry.expires) {
		return nil, false
	}
	return entry.bundle, true
}

// Put stores a composed bundle for a tag.
func (c *Cache) Put(tag string, b *Bundle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bundles[tag] = cacheEntry{bundle: b, expires: c.clock.Now().Add(c.ttl)}
}

// Invalidate drops the cached bundle for a tag.
func (c *Cache) Invalidate(tag string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.bundles, tag)
}

// GetRoot returns the cached root document if fresh.
func (c *Cache) GetRoot() (*remote.RootDoc, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.root == nil || c.clock.Now().After(c.root.expires) {
		return nil, false
	}
	return c.root.doc, true
}

// PutRoot stores the root document.
func (c *Cache) PutRoot(doc *remote.RootDoc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.root = &rootEntry{doc: doc, expires: c.clock.Now().Add(c.ttl)}
}

// InvalidateRoot drops the cached root document.
func (c *Cache) InvalidateRoot() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.root = nil
}
