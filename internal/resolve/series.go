package resolve

import (
    "context"
    "sort"
    "time"

    "marketproxy/internal/marketdata"
)

// RangePreset selects a historical window for chart data.
type RangePreset string

const (
    Range7D  RangePreset = "7d"
    Range30D RangePreset = "30d"
    Range90D RangePreset = "90d"
)

// ParseRange returns the preset for s, defaulting to 90d.
func ParseRange(s string) RangePreset {
    switch RangePreset(s) {
    case Range7D, Range30D:
        return RangePreset(s)
    }
    return Range90D
}

func rangeParams(preset RangePreset, now time.Time) marketdata.BarsRequest {
    switch preset {
    case Range7D:
        return marketdata.BarsRequest{Timeframe: "1Hour", Start: now.Add(-7 * 24 * time.Hour), End: now, Limit: 1000}
    case Range30D:
        return marketdata.BarsRequest{Timeframe: "1Day", Start: now.Add(-30 * 24 * time.Hour), End: now, Limit: 60}
    }
    return marketdata.BarsRequest{Timeframe: "1Day", Start: now.Add(-90 * 24 * time.Hour), End: now, Limit: 120}
}

const barRetries = 3

// withRetry retries fn up to barRetries times on transport failures with a
// fixed short backoff. Empty-but-successful responses are never retried.
func (r *Resolver) withRetry(ctx context.Context, fn func() error) error {
    var err error
    for attempt := 0; ; attempt++ {
        err = fn()
        if err == nil || !marketdata.IsTransport(err) || attempt >= barRetries {
            return err
        }
        delay := r.RetryDelay
        if delay <= 0 { delay = 200 * time.Millisecond }
        t := time.NewTimer(delay)
        select {
        case <-ctx.Done():
            t.Stop()
            return err
        case <-t.C:
        }
    }
}

// historicalBars walks the bar-series fallback chain for symbol, stopping at
// the first tier that produces a non-empty valid series:
//
//  1. bars from the preferred feed for the requested window
//  2. the identical window against the default feed
//  3. a one-point series synthesized from the latest bar
//  4. a two-point series (yesterday/today) synthesized from the latest quote
//  5. an empty series; callers treat that as no data, not as an error
func (r *Resolver) historicalBars(ctx context.Context, symbol string, preset RangePreset) []marketdata.Bar {
    now := time.Now().UTC()
    req := rangeParams(preset, now)
    req.Symbol = symbol

    for _, feed := range []string{r.PreferredFeed, ""} {
        feedReq := req
        feedReq.Feed = feed
        var bars []marketdata.Bar
        err := r.withRetry(ctx, func() error {
            var ferr error
            bars, ferr = r.Client.Bars(ctx, feedReq)
            return ferr
        })
        if err == nil {
            if valid := sortedValid(bars); len(valid) > 0 {
                return valid
            }
        }
    }

    var latest marketdata.Bar
    var latestOK bool
    err := r.withRetry(ctx, func() error {
        var ferr error
        latest, latestOK, ferr = r.Client.LatestBar(ctx, symbol, r.PreferredFeed)
        return ferr
    })
    if err == nil && latestOK && usable(latest.Close) {
        if latest.Time.IsZero() { latest.Time = now }
        return []marketdata.Bar{latest}
    }

    var quote marketdata.Quote
    var quoteOK bool
    err = r.withRetry(ctx, func() error {
        var ferr error
        quote, quoteOK, ferr = r.Client.LatestQuote(ctx, symbol, "")
        return ferr
    })
    if err == nil && quoteOK {
        p := quote.AskPrice
        if !usable(p) { p = quote.BidPrice }
        if usable(p) {
            return []marketdata.Bar{
                {Time: now.Add(-24 * time.Hour), Open: p, High: p, Low: p, Close: p},
                {Time: now, Open: p, High: p, Low: p, Close: p},
            }
        }
    }

    return nil
}

// sortedValid drops bars without a finite positive close and orders the rest
// ascending by start time.
func sortedValid(bars []marketdata.Bar) []marketdata.Bar {
    out := make([]marketdata.Bar, 0, len(bars))
    for _, b := range bars {
        if usable(b.Close) { out = append(out, b) }
    }
    sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
    return out
}
