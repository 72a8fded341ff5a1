package cache

import (
    "testing"
    "time"

    "marketproxy/internal/cache/store"
)

func TestPromoteKeepsFresherLiveEntry(t *testing.T) {
    c := New(store.Noop{})
    now := time.Now()

    c.put("k", "fresh", now, time.Minute)
    c.promote("k", "stale", now.Add(-30*time.Second), time.Minute)

    v, ok := c.lookup("k")
    if !ok || v != "fresh" {
        t.Fatalf("lookup = %v/%v, want the fresher live entry kept", v, ok)
    }
}

func TestPromoteReplacesExpiredEntry(t *testing.T) {
    c := New(store.Noop{})
    now := time.Now()

    c.put("k", "dead", now.Add(-2*time.Minute), time.Minute)
    c.promote("k", "durable", now.Add(-30*time.Second), time.Minute)

    v, ok := c.lookup("k")
    if !ok || v != "durable" {
        t.Fatalf("lookup = %v/%v, want the promoted entry", v, ok)
    }
}

func TestPromoteFillsEmptySlot(t *testing.T) {
    c := New(store.Noop{})

    c.promote("k", "durable", time.Now().Add(-30*time.Second), time.Minute)

    v, ok := c.lookup("k")
    if !ok || v != "durable" {
        t.Fatalf("lookup = %v/%v", v, ok)
    }
}
