// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package cache

import (
	"sync"
	"time"

	"github.com/tomtom215/safetyview/internal/metrics"
)

type lruEntry[K comparable, V any] struct {
	key       K
	value     V
	prev      *lruEntry[K, V]
	next      *lruEntry[K, V]
	expiresAt time.Time // zero = never
}

// LRU is a bounded, thread-safe least-recently-used cache with optional TTL.
//
// It uses a doubly-linked list for recency and a map for lookup, so Get,
// Add and eviction are O(1). Expired entries are removed lazily.
type LRU[K comparable, V any] struct {
	mu sync.Mutex

	name     string // metrics label
	capacity int
	ttl      time.Duration
	items    map[K]*lruEntry[K, V]

	// head.next is the most recently used, tail.prev the least.
	head *lruEntry[K, V]
	tail *lruEntry[K, V]

	now func() time.Time
}

// NewLRU creates a cache holding at most capacity entries. A ttl of zero
// keeps entries until evicted.
func NewLRU[K comparable, V any](name string, capacity int, ttl time.Duration) *LRU[K, V] {
	if capacity <= 0 {
		capacity = 256
	}
	c := &LRU[K, V]{
		name:     name,
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[K]*lruEntry[K, V], capacity),
		head:     &lruEntry[K, V]{},
		tail:     &lruEntry[K, V]{},
		now:      time.Now,
	}
	c.head.next = c.tail
	c.tail.prev = c.head
	return c
}

// Get returns the value for key and marks it most recently used.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.live(key); ok {
		c.moveToFront(entry)
		metrics.RecordCacheHit(c.name)
		return entry.value, true
	}
	metrics.RecordCacheMiss(c.name)
	var zero V
	return zero, false
}

// Add inserts or replaces the value for key.
func (c *LRU[K, V]) Add(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.items[key]; ok {
		entry.value = value
		entry.expiresAt = c.expiry()
		c.moveToFront(entry)
		return
	}
	c.insert(key, value)
}

// AddIfAbsent stores value only when key has no live entry. It returns the
// value now cached and whether value was the one stored. Concurrent loaders
// of the same key therefore converge on the first stored value.
func (c *LRU[K, V]) AddIfAbsent(key K, value V) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.live(key); ok {
		c.moveToFront(entry)
		return entry.value, false
	}
	c.insert(key, value)
	return value, true
}

// Remove deletes key. It reports whether a live entry was removed.
func (c *LRU[K, V]) Remove(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.live(key); ok {
		c.removeEntry(entry)
		return true
	}
	return false
}

// Purge removes every entry.
func (c *LRU[K, V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[K]*lruEntry[K, V], c.capacity)
	c.head.next = c.tail
	c.tail.prev = c.head
}

// Len returns the number of stored entries, including expired ones not yet
// collected.
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Internal methods, called with the lock held.

func (c *LRU[K, V]) expiry() time.Time {
	if c.ttl <= 0 {
		return time.Time{}
	}
	return c.now().Add(c.ttl)
}

// live returns the entry for key, dropping it if expired.
func (c *LRU[K, V]) live(key K) (*lruEntry[K, V], bool) {
	entry, ok := c.items[key]
	if !ok {
		return nil, false
	}
	if !entry.expiresAt.IsZero() && c.now().After(entry.expiresAt) {
		c.removeEntry(entry)
		metrics.RecordCacheEviction(c.name)
		return nil, false
	}
	return entry, true
}

func (c *LRU[K, V]) insert(key K, value V) {
	entry := &lruEntry[K, V]{key: key, value: value, expiresAt: c.expiry()}
	c.addToFront(entry)
	c.items[key] = entry
	for len(c.items) > c.capacity {
		c.evictOldest()
	}
}

func (c *LRU[K, V]) addToFront(entry *lruEntry[K, V]) {
	entry.prev = c.head
	entry.next = c.head.next
	c.head.next.prev = entry
	c.head.next = entry
}

func (c *LRU[K, V]) moveToFront(entry *lruEntry[K, V]) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
	c.addToFront(entry)
}

func (c *LRU[K, V]) removeEntry(entry *lruEntry[K, V]) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
	delete(c.items, entry.key)
}

func (c *LRU[K, V]) evictOldest() {
	oldest := c.tail.prev
	if oldest == c.head {
		return
	}
	c.removeEntry(oldest)
	metrics.RecordCacheEviction(c.name)
}
