package cache

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "log"
    "sync"
    "sync/atomic"
    "time"

    "golang.org/x/sync/singleflight"

    "marketproxy/internal/cache/store"
)

// ErrKeyTooLong guards against key-construction bugs that would otherwise
// grow the cache without bound. It is rejected before any I/O.
var ErrKeyTooLong = errors.New("cache key too long")

const (
    // DefaultMaxKeyLen bounds cache key length.
    DefaultMaxKeyLen = 200
    // resolveBound is the wall-clock ceiling for one resolution.
    resolveBound = 30 * time.Second
)

// entry stores one cached value with its creation time and TTL.
// Expiry is lazy: an entry may be physically present but logically dead.
type entry struct {
    value     any
    createdAt time.Time
    ttl       time.Duration
}

func (e entry) expired(now time.Time) bool { return now.Sub(e.createdAt) > e.ttl }

// Cache is a two-tier cache with request coalescing. Tier-1 is in-process
// memory and authoritative when valid; tier-2 is a durable best-effort
// store that survives restarts. At most one resolution per key is
// outstanding at any instant, however many callers ask for it.
//
// Construct one per process and pass it by reference; tests may hold
// multiple isolated instances.
type Cache struct {
    tier2     store.Store
    maxKeyLen int

    mu    sync.RWMutex
    items map[string]entry

    group    singleflight.Group
    inflight atomic.Int64
}

// Option configures a Cache.
type Option func(*Cache)

// WithMaxKeyLen overrides the key length guard.
func WithMaxKeyLen(n int) Option {
    return func(c *Cache) { if n > 0 { c.maxKeyLen = n } }
}

// New creates a Cache over the given tier-2 store. Pass store.Noop{} for a
// tier-1-only cache.
func New(tier2 store.Store, opts ...Option) *Cache {
    if tier2 == nil { tier2 = store.Noop{} }
    c := &Cache{
        tier2:     tier2,
        maxKeyLen: DefaultMaxKeyLen,
        items:     make(map[string]entry),
    }
    for _, o := range opts { o(c) }
    return c
}

// GetOrResolve returns the value for key, serving it from tier-1, then
// tier-2, then by invoking resolve exactly once across all concurrent
// callers of the same key. On success the result is written to both tiers
// with the given ttl; on failure every joined caller receives the error.
//
// The resolution runs detached from any single caller: a caller whose ctx
// ends stops waiting and gets its ctx error, but the flight itself keeps
// going on its own wall-clock bound, so the remaining joined callers only
// ever share genuine resolution failures.
func GetOrResolve[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, resolve func(ctx context.Context) (T, error)) (T, error) {
    var zero T
    if len(key) > c.maxKeyLen {
        return zero, fmt.Errorf("%w: %q", ErrKeyTooLong, key[:50])
    }

    if v, ok := c.lookup(key); ok {
        if t, ok := v.(T); ok { return t, nil }
    }

    // The singleflight registration is the check-then-insert step; it must
    // happen before any suspension point or two callers could both start a
    // resolution for the same key.
    ch := c.group.DoChan(key, func() (any, error) {
        // a caller that lost the race may find the winner's fresh write
        if v, ok := c.lookup(key); ok { return v, nil }

        // detach from the leader so its cancellation cannot fail the
        // callers coalesced behind it; the bound still applies
        rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), resolveBound)
        defer cancel()

        if t, ok := tier2Lookup[T](rctx, c, key); ok {
            return t, nil
        }

        c.inflight.Add(1)
        defer c.inflight.Add(-1)

        t, err := resolve(rctx)
        if err != nil { return nil, err }

        now := time.Now()
        c.put(key, t, now, ttl)
        if raw, merr := json.Marshal(t); merr == nil {
            if serr := c.tier2.Set(rctx, key, store.Entry{Value: raw, CreatedAt: now, TTL: ttl}); serr != nil {
                log.Printf("[WARN] cache tier-2 set %q: %v", key, serr)
            }
        }
        return t, nil
    })

    select {
    case <-ctx.Done():
        return zero, ctx.Err()
    case res := <-ch:
        if res.Err != nil { return zero, res.Err }
        t, ok := res.Val.(T)
        if !ok { return zero, fmt.Errorf("cache: wrong type for key %q", key) }
        return t, nil
    }
}

// tier2Lookup consults the durable store and promotes a live entry into
// tier-1. Store failures and malformed rows are soft misses; expired and
// malformed rows are deleted eagerly.
func tier2Lookup[T any](ctx context.Context, c *Cache, key string) (T, bool) {
    var zero T
    e, ok, err := c.tier2.Get(ctx, key)
    if err != nil {
        log.Printf("[WARN] cache tier-2 get %q: %v", key, err)
        return zero, false
    }
    if !ok { return zero, false }
    if e.Expired(time.Now()) {
        _ = c.tier2.Delete(ctx, key)
        return zero, false
    }
    var t T
    if err := json.Unmarshal(e.Value, &t); err != nil {
        _ = c.tier2.Delete(ctx, key)
        return zero, false
    }
    c.promote(key, t, e.CreatedAt, e.TTL)
    return t, true
}

// lookup returns the live tier-1 value for key; an expired entry is removed.
func (c *Cache) lookup(key string) (any, bool) {
    c.mu.RLock()
    e, ok := c.items[key]
    c.mu.RUnlock()
    if !ok { return nil, false }
    if e.expired(time.Now()) {
        c.mu.Lock()
        if cur, ok := c.items[key]; ok && cur.expired(time.Now()) {
            delete(c.items, key)
        }
        c.mu.Unlock()
        return nil, false
    }
    return e.value, true
}

func (c *Cache) put(key string, v any, createdAt time.Time, ttl time.Duration) {
    c.mu.Lock()
    c.items[key] = entry{value: v, createdAt: createdAt, ttl: ttl}
    c.mu.Unlock()
}

// promote installs a tier-2 entry into tier-1 unless a fresher live entry is
// already there.
func (c *Cache) promote(key string, v any, createdAt time.Time, ttl time.Duration) {
    now := time.Now()
    c.mu.Lock()
    if cur, ok := c.items[key]; ok && !cur.expired(now) && cur.createdAt.After(createdAt) {
        c.mu.Unlock()
        return
    }
    c.items[key] = entry{value: v, createdAt: createdAt, ttl: ttl}
    c.mu.Unlock()
}

// Cleanup removes expired tier-1 entries. Reads already expire lazily, so
// this only reclaims memory.
func (c *Cache) Cleanup() {
    now := time.Now()
    c.mu.Lock()
    for k, e := range c.items {
        if e.expired(now) { delete(c.items, k) }
    }
    c.mu.Unlock()
}

// Sweep runs Cleanup and an opportunistic tier-2 sweep.
func (c *Cache) Sweep(ctx context.Context) {
    c.Cleanup()
    if err := c.tier2.Sweep(ctx); err != nil {
        log.Printf("[WARN] cache tier-2 sweep: %v", err)
    }
}

// Stats reports cache occupancy.
type Stats struct {
    Entries  int   `json:"entries"`
    Inflight int64 `json:"inflight"`
}

func (c *Cache) Stats() Stats {
    c.mu.RLock()
    n := len(c.items)
    c.mu.RUnlock()
    return Stats{Entries: n, Inflight: c.inflight.Load()}
}
