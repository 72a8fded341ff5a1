package resolve

import (
    "context"
    "math"
    "sort"
    "time"

    "marketproxy/internal/marketdata"
)

// YieldData is the annualized dividend yield for one symbol.
type YieldData struct {
    Symbol    string  `json:"symbol"`
    Yield     float64 `json:"yield"`
    Timestamp string  `json:"timestamp"`
    Note      string  `json:"note,omitempty"`
}

// Yield computes the annualized dividend yield from up to one year of cash
// dividends and the latest ask price.
func (r *Resolver) Yield(ctx context.Context, symbol string) (YieldData, error) {
    var price float64
    if q, ok, err := r.Client.LatestQuote(ctx, symbol, ""); err == nil && ok {
        price = q.AskPrice
    }

    now := time.Now().UTC()
    divs, err := r.Client.Dividends(ctx, symbol, now.AddDate(-1, 0, 0), now)
    if err != nil {
        return YieldData{}, err
    }

    return YieldData{
        Symbol:    symbol,
        Yield:     annualizedYield(symbol, price, divs),
        Timestamp: now.Format(time.RFC3339),
        Note:      "Using cached Alpaca data",
    }, nil
}

// annualizedYield averages the per-share rate over the most recent
// min(distinct ex-date months, 12) events, annualizes that monthly average
// against price and rounds to 2 decimal places. Zero qualifying events or a
// non-positive price yield 0. Input ordering does not matter.
func annualizedYield(symbol string, price float64, divs []marketdata.Dividend) float64 {
    mine := make([]marketdata.Dividend, 0, len(divs))
    for _, d := range divs {
        if d.Symbol == symbol { mine = append(mine, d) }
    }
    if len(mine) == 0 { return 0 }

    // ex dates are YYYY-MM-DD, so lexicographic order is chronological
    sort.Slice(mine, func(i, j int) bool { return mine[i].ExDate > mine[j].ExDate })

    months := make(map[string]struct{}, len(mine))
    for _, d := range mine {
        if len(d.ExDate) >= 7 { months[d.ExDate[:7]] = struct{}{} }
    }
    n := len(months)
    if n > 12 { n = 12 }
    if n == 0 { return 0 }

    var total float64
    for _, d := range mine[:min(n, len(mine))] {
        total += d.Rate
    }
    avgMonthly := total / float64(n)

    if price <= 0 { return 0 }
    y := (avgMonthly * 12 / price) * 100
    return math.Round(y*100) / 100
}
