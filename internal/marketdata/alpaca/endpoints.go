package alpaca

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"marketproxy/internal/marketdata"
)

// Per-endpoint deadlines. Every call is aborted when its deadline elapses so
// callers never block past it; the budget per external call is about 10s.
const (
	quoteTimeout     = 7 * time.Second
	barsTimeout      = 12 * time.Second
	latestBarTimeout = 8 * time.Second
	dividendsTimeout = 7 * time.Second
)

type quoteWire struct {
	AskPrice float64 `json:"ap"`
	BidPrice float64 `json:"bp"`
	Time     string  `json:"t"`
}

type barWire struct {
	Time   string  `json:"t"`
	Open   float64 `json:"o"`
	High   float64 `json:"h"`
	Low    float64 `json:"l"`
	Close  float64 `json:"c"`
	Volume int64   `json:"v"`
}

// LatestQuote retrieves the latest two-sided quote for symbol. The second
// return value is false when the provider answered without data for the
// symbol; interpreting that is left to the caller.
func (c *Client) LatestQuote(ctx context.Context, symbol, feed string) (marketdata.Quote, bool, error) {
	query := url.Values{}
	query.Set("symbols", symbol)
	if feed != "" {
		query.Set("feed", feed)
	}

	var body struct {
		Quotes map[string]quoteWire `json:"quotes"`
	}
	if err := c.get(ctx, "/v2/stocks/quotes/latest", query, quoteTimeout, &body); err != nil {
		return marketdata.Quote{}, false, err
	}

	w, ok := body.Quotes[symbol]
	if !ok {
		return marketdata.Quote{}, false, nil
	}
	return marketdata.Quote{
		Symbol:    symbol,
		AskPrice:  w.AskPrice,
		BidPrice:  w.BidPrice,
		Timestamp: parseTime(w.Time),
	}, true, nil
}

// Bars retrieves OHLCV bars for one symbol over a bounded window.
// An empty slice with a nil error means the provider had no data.
func (c *Client) Bars(ctx context.Context, req marketdata.BarsRequest) ([]marketdata.Bar, error) {
	query := url.Values{}
	query.Set("symbols", req.Symbol)
	query.Set("timeframe", req.Timeframe)
	if !req.Start.IsZero() {
		query.Set("start", req.Start.UTC().Format(time.RFC3339))
	}
	if !req.End.IsZero() {
		query.Set("end", req.End.UTC().Format(time.RFC3339))
	}
	if req.Limit > 0 {
		query.Set("limit", strconv.Itoa(req.Limit))
	}
	if req.Feed != "" {
		query.Set("feed", req.Feed)
	}

	var body struct {
		Bars map[string][]barWire `json:"bars"`
	}
	if err := c.get(ctx, "/v2/stocks/bars", query, barsTimeout, &body); err != nil {
		return nil, err
	}

	wires := body.Bars[req.Symbol]
	bars := make([]marketdata.Bar, 0, len(wires))
	for _, w := range wires {
		bars = append(bars, toBar(w))
	}
	return bars, nil
}

// LatestBar retrieves the single most recent bar for symbol.
func (c *Client) LatestBar(ctx context.Context, symbol, feed string) (marketdata.Bar, bool, error) {
	query := url.Values{}
	query.Set("symbols", symbol)
	if feed != "" {
		query.Set("feed", feed)
	}

	var body struct {
		Bars map[string]barWire `json:"bars"`
	}
	if err := c.get(ctx, "/v2/stocks/bars/latest", query, latestBarTimeout, &body); err != nil {
		return marketdata.Bar{}, false, err
	}

	w, ok := body.Bars[symbol]
	if !ok {
		return marketdata.Bar{}, false, nil
	}
	return toBar(w), true, nil
}

// Dividends retrieves cash-dividend corporate actions for symbol between
// start and end (inclusive, date precision).
func (c *Client) Dividends(ctx context.Context, symbol string, start, end time.Time) ([]marketdata.Dividend, error) {
	query := url.Values{}
	query.Set("symbols", symbol)
	query.Set("types", "cash_dividend")
	query.Set("start", start.UTC().Format("2006-01-02"))
	query.Set("end", end.UTC().Format("2006-01-02"))

	var body struct {
		CorporateActions struct {
			CashDividends []struct {
				Symbol string  `json:"symbol"`
				ExDate string  `json:"ex_date"`
				Rate   float64 `json:"rate"`
			} `json:"cash_dividends"`
		} `json:"corporate_actions"`
	}
	if err := c.get(ctx, "/v1/corporate-actions", query, dividendsTimeout, &body); err != nil {
		return nil, err
	}

	divs := make([]marketdata.Dividend, 0, len(body.CorporateActions.CashDividends))
	for _, d := range body.CorporateActions.CashDividends {
		divs = append(divs, marketdata.Dividend{Symbol: d.Symbol, ExDate: d.ExDate, Rate: d.Rate})
	}
	return divs, nil
}

// get performs one bounded GET and decodes the JSON body into out.
func (c *Client) get(ctx context.Context, path string, query url.Values, timeout time.Duration, out any) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	u := fmt.Sprintf("%s%s?%s", c.baseURL, path, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header = c.header.Clone()

	res, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("GET %s: %w", path, marketdata.ErrUpstreamTimeout)
		}
		return fmt.Errorf("performing request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(res.Body, 2<<10))
		return &marketdata.StatusError{Code: res.StatusCode, Body: string(b)}
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func toBar(w barWire) marketdata.Bar {
	b := marketdata.Bar{
		Time:   parseTime(w.Time),
		Open:   w.Open,
		High:   w.High,
		Low:    w.Low,
		Close:  w.Close,
		Volume: w.Volume,
	}
	// some feeds omit OHL on synthetic bars; fall back to close
	if b.Open == 0 {
		b.Open = b.Close
	}
	if b.High == 0 {
		b.High = b.Close
	}
	if b.Low == 0 {
		b.Low = b.Close
	}
	return b
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
