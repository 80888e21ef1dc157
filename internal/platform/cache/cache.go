// Package cache provides a bounded, expiring read-through cache.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// Loader fetches the value for a key on a miss.
type Loader[V any] func(ctx context.Context) (V, error)

// ReadThrough caches loader results for a fixed TTL. Concurrent misses on
// the same key share one load.
type ReadThrough[K comparable, V any] struct {
	entries *expirable.LRU[K, V]
	group   singleflight.Group
	// generation is bumped on every invalidation so a load that started
	// before it does not repopulate the entry afterwards.
	generations *expirable.LRU[K, uint64]
}

func NewReadThrough[K comparable, V any](size int, ttl time.Duration) *ReadThrough[K, V] {
	if size <= 0 {
		size = 1024
	}
	return &ReadThrough[K, V]{
		entries:     expirable.NewLRU[K, V](size, nil, ttl),
		generations: expirable.NewLRU[K, uint64](size, nil, ttl),
	}
}

// Get returns the cached value for key, calling load on a miss.
func (c *ReadThrough[K, V]) Get(ctx context.Context, key K, load Loader[V]) (V, error) {
	if v, ok := c.entries.Get(key); ok {
		return v, nil
	}

	gen, _ := c.generations.Peek(key)
	v, err, _ := c.group.Do(fmt.Sprint(key), func() (any, error) {
		v, err := load(ctx)
		if err != nil {
			return v, err
		}
		if current, _ := c.generations.Peek(key); current == gen {
			c.entries.Add(key, v)
		}
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return v.(V), nil
}

// Invalidate drops key. A load already in flight will not store its result.
func (c *ReadThrough[K, V]) Invalidate(key K) {
	gen, _ := c.generations.Peek(key)
	c.generations.Add(key, gen+1)
	c.entries.Remove(key)
	c.group.Forget(fmt.Sprint(key))
}

// Purge drops every entry.
func (c *ReadThrough[K, V]) Purge() {
	for _, key := range c.entries.Keys() {
		c.Invalidate(key)
	}
}

func (c *ReadThrough[K, V]) Len() int {
	return c.entries.Len()
}
