package resolve

import (
    "context"
    "time"

    "marketproxy/internal/marketdata"
)

// Snapshot is the normalized market-data result for one symbol. It is
// constructed fresh on every resolution and never mutated afterwards.
type Snapshot struct {
    Symbol        string   `json:"symbol"`
    Price         *float64 `json:"price"`
    AskPrice      *float64 `json:"askPrice"`
    BidPrice      *float64 `json:"bidPrice"`
    PreviousClose *float64 `json:"previousClose"`
    Timestamp     *string  `json:"timestamp"`
    Yield         float64  `json:"yield"`
    FallbackUsed  bool     `json:"fallbackUsed"`
    Dates         Dates    `json:"dates"`
}

// Dates carries the observation times the snapshot was assembled from.
type Dates struct {
    Current  *string `json:"current"`
    Previous *string `json:"previous"`
    Quote    *string `json:"quote"`
}

// Snapshot resolves the current snapshot for symbol from the latest quote and
// the most recent daily bars.
//
// Price precedence: current bar close, ask, bid, previous bar close.
// Previous close roots at the second-most-recent bar instead: previous bar
// close, current bar close, bid, ask. The inverted order pairs day-over-day
// deltas from whatever pair of bars is available and must not be reordered;
// reported day-change figures depend on it.
func (r *Resolver) Snapshot(ctx context.Context, symbol string) (Snapshot, error) {
    quote, quoteOK, quoteErr := r.Client.LatestQuote(ctx, symbol, "")

    bars, barsErr := r.Client.Bars(ctx, marketdata.BarsRequest{
        Symbol:    symbol,
        Timeframe: "1Day",
        Limit:     10,
    })
    if quoteErr != nil && barsErr != nil {
        // no data source left to degrade to
        return Snapshot{}, barsErr
    }

    ranked := validBarsDesc(bars)

    var curClose, prevClose, ask, bid float64
    var curTime, prevTime time.Time
    if len(ranked) > 0 {
        curClose, curTime = ranked[0].Close, ranked[0].Time
    }
    if len(ranked) > 1 {
        prevClose, prevTime = ranked[1].Close, ranked[1].Time
    }
    if quoteOK {
        ask, bid = quote.AskPrice, quote.BidPrice
    }

    price := firstPositive(curClose, ask, bid, prevClose)
    previous := firstPositive(prevClose, curClose, bid, ask)

    snap := Snapshot{
        Symbol:        symbol,
        Price:         price,
        PreviousClose: previous,
        FallbackUsed:  len(ranked) < 2 || price == nil,
        Dates: Dates{
            Current:  rfc3339(curTime),
            Previous: rfc3339(prevTime),
            Quote:    nil,
        },
    }
    if quoteOK {
        snap.AskPrice = ptr(quote.AskPrice)
        snap.BidPrice = ptr(quote.BidPrice)
        snap.Dates.Quote = rfc3339(quote.Timestamp)
    }
    if snap.Timestamp = rfc3339(curTime); snap.Timestamp == nil && quoteOK {
        snap.Timestamp = rfc3339(quote.Timestamp)
    }

    // Yield degrades to 0 rather than failing the snapshot.
    if y, err := r.Yield(ctx, symbol); err == nil {
        snap.Yield = y.Yield
    }
    return snap, nil
}
