package resolve

import (
    "context"
    "errors"
    "sync"
    "testing"
    "time"

    "marketproxy/internal/marketdata"
)

// fakeClient scripts upstream behavior per endpoint and counts calls.
type fakeClient struct {
    latestQuote func(symbol, feed string) (marketdata.Quote, bool, error)
    bars        func(req marketdata.BarsRequest) ([]marketdata.Bar, error)
    latestBar   func(symbol, feed string) (marketdata.Bar, bool, error)
    dividends   func(symbol string) ([]marketdata.Dividend, error)

    mu    sync.Mutex
    calls map[string]int
}

func (f *fakeClient) record(name string) {
    f.mu.Lock()
    if f.calls == nil { f.calls = make(map[string]int) }
    f.calls[name]++
    f.mu.Unlock()
}

func (f *fakeClient) count(name string) int {
    f.mu.Lock()
    defer f.mu.Unlock()
    return f.calls[name]
}

func (f *fakeClient) total() int {
    f.mu.Lock()
    defer f.mu.Unlock()
    n := 0
    for _, v := range f.calls { n += v }
    return n
}

func (f *fakeClient) LatestQuote(_ context.Context, symbol, feed string) (marketdata.Quote, bool, error) {
    f.record("quote")
    if f.latestQuote == nil { return marketdata.Quote{}, false, nil }
    return f.latestQuote(symbol, feed)
}

func (f *fakeClient) Bars(_ context.Context, req marketdata.BarsRequest) ([]marketdata.Bar, error) {
    f.record("bars")
    if f.bars == nil { return nil, nil }
    return f.bars(req)
}

func (f *fakeClient) LatestBar(_ context.Context, symbol, feed string) (marketdata.Bar, bool, error) {
    f.record("latestBar")
    if f.latestBar == nil { return marketdata.Bar{}, false, nil }
    return f.latestBar(symbol, feed)
}

func (f *fakeClient) Dividends(_ context.Context, symbol string, _, _ time.Time) ([]marketdata.Dividend, error) {
    f.record("dividends")
    if f.dividends == nil { return nil, nil }
    return f.dividends(symbol)
}

func newTestResolver(c *fakeClient) *Resolver {
    r := New(c)
    r.RetryDelay = time.Millisecond
    return r
}

func bar(t time.Time, close float64) marketdata.Bar {
    return marketdata.Bar{Time: t, Open: close, High: close, Low: close, Close: close, Volume: 100}
}

var t0 = time.Date(2025, 6, 2, 20, 0, 0, 0, time.UTC)

func TestSnapshot_CurrentBarWins(t *testing.T) {
    c := &fakeClient{
        latestQuote: func(_, _ string) (marketdata.Quote, bool, error) {
            return marketdata.Quote{AskPrice: 102.5, BidPrice: 101.5, Timestamp: t0.Add(time.Hour)}, true, nil
        },
        bars: func(_ marketdata.BarsRequest) ([]marketdata.Bar, error) {
            // out of order on purpose; ranking sorts internally
            return []marketdata.Bar{bar(t0.Add(-24*time.Hour), 99), bar(t0, 101)}, nil
        },
    }
    snap, err := newTestResolver(c).Snapshot(context.Background(), "AAPL")
    if err != nil { t.Fatalf("snapshot: %v", err) }
    if snap.Price == nil || *snap.Price != 101 {
        t.Fatalf("price = %v, want 101", snap.Price)
    }
    if snap.PreviousClose == nil || *snap.PreviousClose != 99 {
        t.Fatalf("previousClose = %v, want 99", snap.PreviousClose)
    }
    if snap.FallbackUsed {
        t.Fatalf("fallbackUsed = true with two valid bars and a price")
    }
    if snap.Timestamp == nil || *snap.Timestamp != t0.Format(time.RFC3339) {
        t.Fatalf("timestamp = %v, want current bar time", snap.Timestamp)
    }
    if snap.AskPrice == nil || *snap.AskPrice != 102.5 || snap.BidPrice == nil || *snap.BidPrice != 101.5 {
        t.Fatalf("quote sides = %v/%v", snap.AskPrice, snap.BidPrice)
    }
}

func TestSnapshot_QuoteFallbackWhenNoBars(t *testing.T) {
    c := &fakeClient{
        latestQuote: func(_, _ string) (marketdata.Quote, bool, error) {
            return marketdata.Quote{AskPrice: 102.5, Timestamp: t0}, true, nil
        },
        bars: func(_ marketdata.BarsRequest) ([]marketdata.Bar, error) { return nil, nil },
    }
    snap, err := newTestResolver(c).Snapshot(context.Background(), "AAPL")
    if err != nil { t.Fatalf("snapshot: %v", err) }
    if snap.Price == nil || *snap.Price != 102.5 {
        t.Fatalf("price = %v, want ask 102.5", snap.Price)
    }
    // previous close roots at prev bar, cur bar, bid, ask; only ask exists
    if snap.PreviousClose == nil || *snap.PreviousClose != 102.5 {
        t.Fatalf("previousClose = %v, want 102.5", snap.PreviousClose)
    }
    if !snap.FallbackUsed {
        t.Fatalf("fallbackUsed = false without bars")
    }
    if snap.Timestamp == nil || *snap.Timestamp != t0.Format(time.RFC3339) {
        t.Fatalf("timestamp = %v, want quote time", snap.Timestamp)
    }
}

func TestSnapshot_SingleBarServesBothPrices(t *testing.T) {
    c := &fakeClient{
        bars: func(_ marketdata.BarsRequest) ([]marketdata.Bar, error) {
            return []marketdata.Bar{bar(t0, 50.25)}, nil
        },
    }
    snap, err := newTestResolver(c).Snapshot(context.Background(), "LQD")
    if err != nil { t.Fatalf("snapshot: %v", err) }
    if snap.Price == nil || *snap.Price != 50.25 {
        t.Fatalf("price = %v, want 50.25", snap.Price)
    }
    if snap.PreviousClose == nil || *snap.PreviousClose != 50.25 {
        t.Fatalf("previousClose = %v, want 50.25", snap.PreviousClose)
    }
    if !snap.FallbackUsed {
        t.Fatalf("fallbackUsed = false with a single bar")
    }
}

func TestSnapshot_DiscardsInvalidBars(t *testing.T) {
    c := &fakeClient{
        bars: func(_ marketdata.BarsRequest) ([]marketdata.Bar, error) {
            return []marketdata.Bar{bar(t0, -1), bar(t0.Add(-24*time.Hour), 55), bar(t0.Add(-48*time.Hour), 0)}, nil
        },
    }
    snap, err := newTestResolver(c).Snapshot(context.Background(), "AAPL")
    if err != nil { t.Fatalf("snapshot: %v", err) }
    if snap.Price == nil || *snap.Price != 55 {
        t.Fatalf("price = %v, want 55 (only valid bar)", snap.Price)
    }
}

func TestSnapshot_NoDataAtAll(t *testing.T) {
    c := &fakeClient{
        latestQuote: func(_, _ string) (marketdata.Quote, bool, error) {
            return marketdata.Quote{}, false, errors.New("down")
        },
        bars: func(_ marketdata.BarsRequest) ([]marketdata.Bar, error) { return nil, errors.New("down") },
    }
    if _, err := newTestResolver(c).Snapshot(context.Background(), "AAPL"); err == nil {
        t.Fatalf("want error when both quote and bars fail")
    }
}

func TestSnapshot_DividendFailureDegradesYieldOnly(t *testing.T) {
    c := &fakeClient{
        bars: func(_ marketdata.BarsRequest) ([]marketdata.Bar, error) {
            return []marketdata.Bar{bar(t0, 100)}, nil
        },
        dividends: func(_ string) ([]marketdata.Dividend, error) {
            return nil, &marketdata.StatusError{Code: 502, Body: "bad gateway"}
        },
    }
    snap, err := newTestResolver(c).Snapshot(context.Background(), "LQD")
    if err != nil { t.Fatalf("snapshot: %v", err) }
    if snap.Yield != 0 {
        t.Fatalf("yield = %v, want 0 on dividend failure", snap.Yield)
    }
    if snap.Price == nil || *snap.Price != 100 {
        t.Fatalf("price = %v, want 100; rest of the snapshot must survive", snap.Price)
    }
}
