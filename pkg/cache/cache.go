// Package cache is a keyed entity cache with explicit invalidation.
package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	DefaultSize = 512
	DefaultTTL  = 5 * time.Minute
)

// Cache maps an entity id to its last known server state. Entries expire
// after the TTL and are dropped explicitly on mutation.
type Cache[K comparable, V any] struct {
	lru *expirable.LRU[K, V]
}

// New returns a cache holding at most size entries for ttl each.
// Non-positive arguments fall back to the defaults.
func New[K comparable, V any](size int, ttl time.Duration) *Cache[K, V] {
	if size <= 0 {
		size = DefaultSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache[K, V]{lru: expirable.NewLRU[K, V](size, nil, ttl)}
}

func (c *Cache[K, V]) Get(key K) (V, bool) {
	if c == nil {
		var zero V
		return zero, false
	}
	return c.lru.Get(key)
}

func (c *Cache[K, V]) Set(key K, value V) {
	if c == nil {
		return
	}
	c.lru.Add(key, value)
}

// Invalidate drops the given keys.
func (c *Cache[K, V]) Invalidate(keys ...K) {
	if c == nil {
		return
	}
	for _, k := range keys {
		c.lru.Remove(k)
	}
}
