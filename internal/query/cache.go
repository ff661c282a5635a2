package query

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Outcome is the uniform result every read and mutation resolves to; nothing
// past this boundary surfaces as a panic or naked error.
type Outcome[T any] struct {
	Success bool
	Data    T
	Err     error
}

func succeed[T any](data T) Outcome[T] {
	return Outcome[T]{Success: true, Data: data}
}

func failed[T any](err error) Outcome[T] {
	return Outcome[T]{Err: err}
}

type entry struct {
	value     any
	hasValue  bool
	err       error
	fetchedAt time.Time
	stale     bool
}

// Cache is the process-wide store of server resources, keyed by
// (resource, parameters). Entries are never evicted; staleness comes from the
// per-resource TTL or an explicit Invalidate, and a stale key is revalidated
// the next time it is requested. Concurrent fetches for one key are coalesced.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	group   singleflight.Group
	now     func() time.Time
}

func NewCache() *Cache {
	return &Cache{
		entries: map[string]*entry{},
		now:     time.Now,
	}
}

// Invalidate marks one key stale. The entry keeps its last value so a view
// can keep rendering while the refetch happens.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		e.stale = true
	}
}

// InvalidatePrefix marks every key under a resource prefix stale; used for
// the tender list, where each filter/page combination is its own key.
func (c *Cache) InvalidatePrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, e := range c.entries {
		if strings.HasPrefix(key, prefix) {
			e.stale = true
		}
	}
}

func (c *Cache) peek(key string, ttl time.Duration) (fresh any, freshOK bool, staleVal any, staleOK bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || !e.hasValue {
		return nil, false, nil, false
	}
	expired := ttl > 0 && c.now().Sub(e.fetchedAt) >= ttl
	if !e.stale && !expired {
		return e.value, true, nil, false
	}
	return nil, false, e.value, true
}

func (c *Cache) store(key string, value any, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		e = &entry{}
		c.entries[key] = e
	}
	if err != nil {
		// Keep the previous value; the failure marks the key stale so the
		// next request retries.
		e.err = err
		e.stale = true
		return
	}
	e.value = value
	e.hasValue = true
	e.err = nil
	e.stale = false
	e.fetchedAt = c.now()
}

// lookup serves the read path: fresh entries are returned as-is, a stale
// entry with a previous value is served immediately while a coalesced
// background refetch runs, and a key with no value blocks on the fetch.
func lookup[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, fetch func(context.Context) (T, error)) Outcome[T] {
	if fresh, ok, staleVal, staleOK := c.peek(key, ttl); ok {
		return succeed(fresh.(T))
	} else if staleOK {
		bg := context.WithoutCancel(ctx)
		go func() { _ = refresh(bg, c, key, fetch) }()
		return succeed(staleVal.(T))
	}
	return refresh(ctx, c, key, fetch)
}

// lookupBlocking is lookup without stale-while-revalidate: anything not fresh
// refetches before returning. The tender detail view uses it so an
// invalidated record is never shown as current.
func lookupBlocking[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, fetch func(context.Context) (T, error)) Outcome[T] {
	if fresh, ok, _, _ := c.peek(key, ttl); ok {
		return succeed(fresh.(T))
	}
	return refresh(ctx, c, key, fetch)
}

// refresh always hits the server (coalesced per key) and updates the entry.
func refresh[T any](ctx context.Context, c *Cache, key string, fetch func(context.Context) (T, error)) Outcome[T] {
	value, err, _ := c.group.Do(key, func() (any, error) {
		data, fetchErr := fetch(ctx)
		c.store(key, data, fetchErr)
		return data, fetchErr
	})
	if err != nil {
		return failed[T](err)
	}
	return succeed(value.(T))
}
