package cache

import (
	"context"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTLCache is an in-process cache whose entries expire after a fixed TTL.
// Callers own its lifetime: construct one and hand it to the components
// that share it.
type TTLCache[V any] struct {
	entries *xsync.Map[string, entry[V]]
	ttl     time.Duration
	now     func() time.Time
}

// New creates a cache with the given TTL
func New[V any](ttl time.Duration) *TTLCache[V] {
	return &TTLCache[V]{
		entries: xsync.NewMap[string, entry[V]](),
		ttl:     ttl,
		now:     time.Now,
	}
}

// TTL returns the entry lifetime
func (c *TTLCache[V]) TTL() time.Duration {
	return c.ttl
}

// Get returns a live entry
func (c *TTLCache[V]) Get(key string) (V, bool) {
	var zero V

	e, ok := c.entries.Load(key)
	if !ok {
		return zero, false
	}
	if !c.now().Before(e.expiresAt) {
		c.expire(key)
		return zero, false
	}
	return e.value, true
}

// Set stores value for one TTL
func (c *TTLCache[V]) Set(key string, value V) {
	c.entries.Store(key, entry[V]{value: value, expiresAt: c.now().Add(c.ttl)})
}

// Delete drops key
func (c *TTLCache[V]) Delete(key string) {
	c.entries.Delete(key)
}

// GetOrLoad returns the cached value or calls load and caches its result.
// Errors are not cached.
func (c *TTLCache[V]) GetOrLoad(ctx context.Context, key string, load func(ctx context.Context) (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	v, err := load(ctx)
	if err != nil {
		var zero V
		return zero, err
	}

	c.Set(key, v)
	return v, nil
}

// CleanStale removes expired entries and returns how many were dropped
func (c *TTLCache[V]) CleanStale() int {
	now := c.now()
	var stale []string

	c.entries.Range(func(key string, e entry[V]) bool {
		if !now.Before(e.expiresAt) {
			stale = append(stale, key)
		}
		return true
	})

	for _, key := range stale {
		c.expire(key)
	}
	return len(stale)
}

// Len returns the number of stored entries, expired ones included
func (c *TTLCache[V]) Len() int {
	return c.entries.Size()
}

// expire deletes key only if it is still expired, so a concurrent Set wins
func (c *TTLCache[V]) expire(key string) {
	now := c.now()
	c.entries.Compute(key, func(old entry[V], loaded bool) (entry[V], xsync.ComputeOp) {
		if loaded && !now.Before(old.expiresAt) {
			return old, xsync.DeleteOp
		}
		return old, xsync.CancelOp
	})
}
