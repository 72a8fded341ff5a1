package marketdata

import (
    "context"
    "time"
)

// Quote is the latest two-sided quote for one symbol.
// A missing side is zero; consumers must treat non-positive sides as absent.
type Quote struct {
    Symbol    string    `json:"symbol"`
    AskPrice  float64   `json:"ask_price"`
    BidPrice  float64   `json:"bid_price"`
    Timestamp time.Time `json:"timestamp"`
}

// Bar is a single OHLCV observation for one period.
type Bar struct {
    Time   time.Time `json:"time"`
    Open   float64   `json:"open"`
    High   float64   `json:"high"`
    Low    float64   `json:"low"`
    Close  float64   `json:"close"`
    Volume int64     `json:"volume"`
}

// Dividend is a single cash dividend event.
// ExDate is the raw provider date string (YYYY-MM-DD).
type Dividend struct {
    Symbol string  `json:"symbol"`
    ExDate string  `json:"ex_date"`
    Rate   float64 `json:"rate"`
}

// BarsRequest describes one bounded bars query.
type BarsRequest struct {
    Symbol    string
    Timeframe string // e.g. "1Hour", "1Day"
    Start     time.Time
    End       time.Time
    Limit     int
    Feed      string // "" means the provider default feed
}

// Client is implemented by upstream market-data adapters. Implementations
// perform one bounded network call per invocation and no interpretation of
// missing-versus-zero data; that judgment belongs to the resolution layer.
type Client interface {
    LatestQuote(ctx context.Context, symbol, feed string) (Quote, bool, error)
    Bars(ctx context.Context, req BarsRequest) ([]Bar, error)
    LatestBar(ctx context.Context, symbol, feed string) (Bar, bool, error)
    Dividends(ctx context.Context, symbol string, start, end time.Time) ([]Dividend, error)
}
