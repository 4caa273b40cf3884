// Package cache implements a bounded, recency-ordered cache with
// per-entry expiry, plus an optional pluggable backend for multi-instance
// deployments.
package cache

import (
	"container/list"
	"fmt"
	"sync"
	"time"

	"github.com/voltcharge/receiptengine/receipterrors"
)

const (
	// DefaultMaxSize is the capacity callers pass to New when they have no
	// specific requirement; New itself rejects maxSize <= 0.
	DefaultMaxSize = 100
	// DefaultTTL is used when a cache is constructed with ttl <= 0 via New.
	DefaultTTL = 300 * time.Second
)

type entry[V any] struct {
	key    string
	value  V
	expiry time.Time
}

// Cache is a generic, bounded LRU cache where every entry also carries an
// absolute expiry. It is safe for concurrent use: all operations take a
// single mutex, matching the "cache is the sole shared mutable state"
// policy this engine requires of its one in-process cache.
type Cache[V any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	items   map[string]*list.Element
	order   *list.List // front = most recently used
	nowFunc func() time.Time
}

// New constructs a Cache with the given capacity and entry lifetime.
// Returns a wrapped receipterrors.ErrConfig if maxSize <= 0.
func New[V any](maxSize int, ttl time.Duration) (*Cache[V], error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("cache: maxSize must be positive, got %d: %w", maxSize, receipterrors.ErrConfig)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache[V]{
		maxSize: maxSize,
		ttl:     ttl,
		items:   make(map[string]*list.Element),
		order:   list.New(),
		nowFunc: time.Now,
	}, nil
}

// Get returns the value for key and true if present and unexpired.
// A present but expired entry is removed and Get reports absence.
// A hit refreshes the entry's recency.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.items[key]
	if !ok {
		return zero, false
	}

	ent := el.Value.(*entry[V])
	if c.nowFunc().After(ent.expiry) {
		c.order.Remove(el)
		delete(c.items, key)
		return zero, false
	}

	c.order.MoveToFront(el)
	return ent.value, true
}

// Set stores value under key, evicting the least-recently-used entry
// first if the cache is at capacity and key is new.
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		ent := el.Value.(*entry[V])
		ent.value = value
		ent.expiry = c.nowFunc().Add(c.ttl)
		c.order.MoveToFront(el)
		return
	}

	if c.order.Len() >= c.maxSize {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.items, oldest.Value.(*entry[V]).key)
		}
	}

	ent := &entry[V]{key: key, value: value, expiry: c.nowFunc().Add(c.ttl)}
	el := c.order.PushFront(ent)
	c.items[key] = el
}

// Clear drops every entry.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.order.Init()
}

// Size returns the current number of entries, including any not yet
// lazily evicted for expiry.
func (c *Cache[V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
