package ratelimit

import (
    "context"
    "sync"
    "time"

    "marketproxy/internal/marketdata"
)

// TokenBucket provides a stdlib-only token bucket limiter.
// - rate: tokens per second
// - capacity: maximum tokens the bucket can hold (burst)
type TokenBucket struct {
    rate     float64
    capacity float64

    mu     sync.Mutex
    tokens float64
    last   time.Time
}

func NewTokenBucket(tokensPerSecond float64, burst int) *TokenBucket {
    if tokensPerSecond <= 0 { tokensPerSecond = 0.0000001 }
    if burst <= 0 { burst = 1 }
    return &TokenBucket{
        rate:     tokensPerSecond,
        capacity: float64(burst),
        tokens:   float64(burst), // start full to allow an initial burst
        last:     time.Now(),
    }
}

// wait blocks until one token is available or context is canceled.
func (tb *TokenBucket) wait(ctx context.Context) error {
    for {
        tb.mu.Lock()
        now := time.Now()
        // Refill
        elapsed := now.Sub(tb.last).Seconds()
        if elapsed > 0 {
            tb.tokens += elapsed * tb.rate
            if tb.tokens > tb.capacity {
                tb.tokens = tb.capacity
            }
            tb.last = now
        }
        if tb.tokens >= 1 {
            tb.tokens -= 1
            tb.mu.Unlock()
            return nil
        }
        // Need to wait for the remaining fraction
        deficit := 1 - tb.tokens
        tb.mu.Unlock()
        // time needed to accumulate one token
        waitDur := time.Duration(deficit/tb.rate*1e9) * time.Nanosecond
        if waitDur <= 0 { waitDur = time.Millisecond }
        timer := time.NewTimer(waitDur)
        select {
        case <-ctx.Done():
            timer.Stop()
            return ctx.Err()
        case <-timer.C:
        }
    }
}

// Client wraps a marketdata.Client and gates every upstream call through a
// token bucket, keeping the process under the provider's request quota.
type Client struct {
    C  marketdata.Client
    TB *TokenBucket
}

func (c *Client) LatestQuote(ctx context.Context, symbol, feed string) (marketdata.Quote, bool, error) {
    if err := c.acquire(ctx); err != nil { return marketdata.Quote{}, false, err }
    return c.C.LatestQuote(ctx, symbol, feed)
}

func (c *Client) Bars(ctx context.Context, req marketdata.BarsRequest) ([]marketdata.Bar, error) {
    if err := c.acquire(ctx); err != nil { return nil, err }
    return c.C.Bars(ctx, req)
}

func (c *Client) LatestBar(ctx context.Context, symbol, feed string) (marketdata.Bar, bool, error) {
    if err := c.acquire(ctx); err != nil { return marketdata.Bar{}, false, err }
    return c.C.LatestBar(ctx, symbol, feed)
}

func (c *Client) Dividends(ctx context.Context, symbol string, start, end time.Time) ([]marketdata.Dividend, error) {
    if err := c.acquire(ctx); err != nil { return nil, err }
    return c.C.Dividends(ctx, symbol, start, end)
}

func (c *Client) acquire(ctx context.Context) error {
    if c.TB == nil { return nil }
    return c.TB.wait(ctx)
}
