// Package cache provides the TTL-bounded LRU behind the insights service's
// read-through caches.
package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/ewilliams-labs/resonance/internal/metrics"
)

// LRU is a size- and TTL-bounded cache. It is safe for concurrent use.
type LRU[V any] struct {
	name string
	lru  *expirable.LRU[string, V]
}

// NewLRU returns a cache holding at most size entries, each for at most ttl.
// A zero ttl keeps entries until they are evicted by size.
func NewLRU[V any](name string, size int, ttl time.Duration) *LRU[V] {
	if size <= 0 {
		size = 1
	}
	return &LRU[V]{
		name: name,
		lru:  expirable.NewLRU[string, V](size, nil, ttl),
	}
}

func (c *LRU[V]) Get(key string) (V, bool) {
	v, ok := c.lru.Get(key)
	metrics.RecordCacheLookup(c.name, ok)
	return v, ok
}

func (c *LRU[V]) Set(key string, value V) {
	c.lru.Add(key, value)
}

func (c *LRU[V]) Evict(key string) {
	c.lru.Remove(key)
}

// Len reports the number of live entries.
func (c *LRU[V]) Len() int {
	return c.lru.Len()
}
