package resolve

import (
    "context"
    "time"
)

// ChartBar is one chart-compatible OHLCV point.
type ChartBar struct {
    Time   string  `json:"time"`
    Open   float64 `json:"open"`
    High   float64 `json:"high"`
    Low    float64 `json:"low"`
    Close  float64 `json:"close"`
    Volume int64   `json:"volume"`
}

// StockData is the per-ticker chart response.
type StockData struct {
    Symbol             string     `json:"symbol"`
    CurrentPrice       float64    `json:"currentPrice"`
    PriceChange        float64    `json:"priceChange"`
    PriceChangePercent float64    `json:"priceChangePercent"`
    Data               []ChartBar `json:"data"`
    DataSource         string     `json:"dataSource"`
}

// Stock resolves chart data and a display price for one ticker. An exhausted
// fallback chain produces an empty, zeroed response rather than an error so
// presentation layers stay responsive.
func (r *Resolver) Stock(ctx context.Context, ticker string, preset RangePreset) (StockData, error) {
    bars := r.historicalBars(ctx, ticker, preset)
    if len(bars) == 0 {
        return StockData{Symbol: ticker, Data: []ChartBar{}, DataSource: "empty"}, nil
    }

    latest := bars[len(bars)-1]
    prev := latest
    if len(bars) > 1 {
        prev = bars[len(bars)-2]
    }

    currentPrice := latest.Close
    priceChange := currentPrice - prev.Close
    priceChangePercent := priceChange / prev.Close * 100

    // Refine the display price from live endpoints. A refinement attempt
    // that fails or returns a non-positive value leaves the series-derived
    // price untouched; the price never regresses to zero here.
    currentPrice = r.refinePrice(ctx, ticker, currentPrice)

    data := make([]ChartBar, 0, len(bars))
    for _, b := range bars {
        data = append(data, ChartBar{
            Time:   b.Time.UTC().Format(time.RFC3339),
            Open:   b.Open,
            High:   b.High,
            Low:    b.Low,
            Close:  b.Close,
            Volume: b.Volume,
        })
    }

    return StockData{
        Symbol:             ticker,
        CurrentPrice:       currentPrice,
        PriceChange:        priceChange,
        PriceChangePercent: priceChangePercent,
        Data:               data,
        DataSource:         "real",
    }, nil
}

// refinePrice prefers the latest bar (preferred feed, then default feed),
// then the quote midpoint. Best effort only.
func (r *Resolver) refinePrice(ctx context.Context, ticker string, current float64) float64 {
    for _, feed := range []string{r.PreferredFeed, ""} {
        b, ok, err := r.Client.LatestBar(ctx, ticker, feed)
        if err != nil { continue }
        if ok && usable(b.Close) {
            return b.Close
        }
        // the endpoint answered without a usable bar; a different feed will
        // not help, fall through to the quote
        break
    }

    q, ok, err := r.Client.LatestQuote(ctx, ticker, r.PreferredFeed)
    if err != nil || !ok {
        return current
    }
    if usable(q.AskPrice) && usable(q.BidPrice) {
        if mid := (q.AskPrice + q.BidPrice) / 2; usable(mid) {
            return mid
        }
    }
    return current
}
