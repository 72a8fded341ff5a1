package store

import (
	"context"
	"time"
)

// Entry is one serialized cache row. Expiry is evaluated by the caller at
// read time; a physically present row may already be logically dead.
type Entry struct {
	Value     []byte
	CreatedAt time.Time
	TTL       time.Duration
}

// Expired reports whether the entry is logically dead at now.
func (e Entry) Expired(now time.Time) bool {
	return now.Sub(e.CreatedAt) > e.TTL
}

// Store is the durable tier-2 capability. Implementations are best-effort,
// loss-tolerant caches, never a system of record; callers treat every error
// as a soft miss.
type Store interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, key string, e Entry) error
	Delete(ctx context.Context, key string) error
	// Sweep removes expired rows. It is an optimization, not a correctness
	// requirement.
	Sweep(ctx context.Context) error
}

// Noop is the safe default for environments without durable local storage.
type Noop struct{}

func (Noop) Get(context.Context, string) (Entry, bool, error) { return Entry{}, false, nil }
func (Noop) Set(context.Context, string, Entry) error         { return nil }
func (Noop) Delete(context.Context, string) error             { return nil }
func (Noop) Sweep(context.Context) error                      { return nil }
