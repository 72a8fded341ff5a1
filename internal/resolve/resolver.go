package resolve

import (
    "math"
    "sort"
    "time"

    "marketproxy/internal/marketdata"
)

// Resolver turns possibly-partial upstream data into normalized results.
// The same provider state always resolves to the same output.
type Resolver struct {
    Client        marketdata.Client
    PreferredFeed string        // low-latency feed tried first for bars, e.g. "iex"
    RetryDelay    time.Duration // backoff between transport retries
}

func New(client marketdata.Client) *Resolver {
    return &Resolver{Client: client, PreferredFeed: "iex", RetryDelay: 200 * time.Millisecond}
}

// firstPositive returns a pointer to the first finite, strictly positive
// candidate, or nil when none qualify. Absent candidates are passed as 0.
func firstPositive(vals ...float64) *float64 {
    for _, v := range vals {
        if v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v) {
            return &v
        }
    }
    return nil
}

func usable(v float64) bool { return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v) }

// validBarsDesc discards bars without a finite positive close and returns the
// rest newest-first.
func validBarsDesc(bars []marketdata.Bar) []marketdata.Bar {
    out := make([]marketdata.Bar, 0, len(bars))
    for _, b := range bars {
        if usable(b.Close) { out = append(out, b) }
    }
    sort.Slice(out, func(i, j int) bool { return out[i].Time.After(out[j].Time) })
    return out
}

func ptr(v float64) *float64 { return &v }

func rfc3339(t time.Time) *string {
    if t.IsZero() { return nil }
    s := t.UTC().Format(time.RFC3339)
    return &s
}
