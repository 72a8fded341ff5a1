package resolve

import (
    "context"
    "fmt"
    "sync"

    "marketproxy/internal/marketdata"
)

// MaxBatchSize caps one batch call; larger requests are rejected before any
// network activity.
const MaxBatchSize = 20

// BatchEntry is the per-symbol outcome of a batch resolution. A failed
// symbol carries null prices and DataSource "error"; it is a normal terminal
// state, never an overall failure.
type BatchEntry struct {
    Symbol             string     `json:"symbol"`
    CurrentPrice       *float64   `json:"currentPrice"`
    PriceChange        *float64   `json:"priceChange"`
    PriceChangePercent *float64   `json:"priceChangePercent"`
    Data               []ChartBar `json:"data"`
    DataSource         string     `json:"dataSource"`
}

// Batch resolves a lightweight latest-quote price for each ticker
// independently and concurrently. One symbol's failure never affects the
// others.
func (r *Resolver) Batch(ctx context.Context, tickers []string) (map[string]BatchEntry, error) {
    if len(tickers) == 0 {
        return nil, &marketdata.BadRequestError{Reason: "invalid tickers array"}
    }
    if len(tickers) > MaxBatchSize {
        return nil, &marketdata.BadRequestError{Reason: fmt.Sprintf("too many tickers requested (max %d)", MaxBatchSize)}
    }

    results := make(map[string]BatchEntry, len(tickers))
    var mu sync.Mutex
    var wg sync.WaitGroup
    for _, ticker := range tickers {
        wg.Add(1)
        go func(ticker string) {
            defer wg.Done()
            entry := r.batchOne(ctx, ticker)
            mu.Lock()
            results[ticker] = entry
            mu.Unlock()
        }(ticker)
    }
    wg.Wait()
    return results, nil
}

func (r *Resolver) batchOne(ctx context.Context, ticker string) BatchEntry {
    failed := BatchEntry{Symbol: ticker, Data: []ChartBar{}, DataSource: "error"}

    q, ok, err := r.Client.LatestQuote(ctx, ticker, "")
    if err != nil || !ok {
        return failed
    }
    price := q.AskPrice
    if !usable(price) { price = q.BidPrice }
    if !usable(price) {
        return failed
    }
    return BatchEntry{
        Symbol:       ticker,
        CurrentPrice: ptr(price),
        Data:         []ChartBar{},
        DataSource:   "real",
    }
}
