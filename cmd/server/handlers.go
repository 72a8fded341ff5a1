package main

import (
    "context"
    "encoding/json"
    "errors"
    "net/http"
    "sort"
    "strings"
    "time"

    "marketproxy/internal/cache"
    "marketproxy/internal/config"
    "marketproxy/internal/marketdata"
    "marketproxy/internal/resolve"
)

const defaultSymbol = "LQD"

type app struct {
    cfg   config.Config
    cache *cache.Cache
    res   *resolve.Resolver
}

func (a *app) routes() *http.ServeMux {
    mux := http.NewServeMux()
    mux.HandleFunc("/healthz", a.handleHealth)
    mux.HandleFunc("/api/marketdata", a.handleMarketData)
    mux.HandleFunc("/api/marketdata/yields", a.handleYields)
    mux.HandleFunc("/api/stocks/batch", a.handleBatch)
    mux.HandleFunc("/api/stocks/", a.handleStock)
    return mux
}

func (a *app) handleHealth(w http.ResponseWriter, r *http.Request) {
    writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "cache": a.cache.Stats()})
}

func (a *app) handleMarketData(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodGet {
        writeError(w, http.StatusMethodNotAllowed, "method not allowed")
        return
    }
    symbol := r.URL.Query().Get("symbol")
    if symbol == "" { symbol = defaultSymbol }

    snap, err := cache.GetOrResolve(r.Context(), a.cache, "market-"+symbol, a.ttl(a.cfg.Cache.MarketDataTTLSec),
        func(ctx context.Context) (resolve.Snapshot, error) {
            return a.res.Snapshot(ctx, symbol)
        })
    if err != nil {
        writeFailure(w, err, "Failed to fetch market data")
        return
    }
    writeJSON(w, http.StatusOK, snap)
}

func (a *app) handleYields(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodGet {
        writeError(w, http.StatusMethodNotAllowed, "method not allowed")
        return
    }
    symbol := r.URL.Query().Get("symbol")
    if symbol == "" { symbol = defaultSymbol }

    yd, err := cache.GetOrResolve(r.Context(), a.cache, "yield-"+symbol, a.ttl(a.cfg.Cache.YieldTTLSec),
        func(ctx context.Context) (resolve.YieldData, error) {
            return a.res.Yield(ctx, symbol)
        })
    if err != nil {
        writeFailure(w, err, "Failed to fetch yield data")
        return
    }
    writeJSON(w, http.StatusOK, yd)
}

func (a *app) handleStock(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodGet {
        writeError(w, http.StatusMethodNotAllowed, "method not allowed")
        return
    }
    ticker := strings.TrimPrefix(r.URL.Path, "/api/stocks/")
    if ticker == "" || strings.Contains(ticker, "/") {
        writeError(w, http.StatusBadRequest, "Invalid ticker symbol")
        return
    }
    rng := resolve.ParseRange(r.URL.Query().Get("range"))

    data, err := cache.GetOrResolve(r.Context(), a.cache, "stock-"+ticker+"-"+string(rng), a.ttl(a.cfg.Cache.StockTTLSec),
        func(ctx context.Context) (resolve.StockData, error) {
            return a.res.Stock(ctx, ticker, rng)
        })
    if err != nil {
        writeFailure(w, err, "Failed to fetch stock data")
        return
    }
    writeJSON(w, http.StatusOK, data)
}

type batchRequest struct {
    Tickers []string `json:"tickers"`
}

func (a *app) handleBatch(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost {
        writeError(w, http.StatusMethodNotAllowed, "method not allowed")
        return
    }
    var body batchRequest
    dec := json.NewDecoder(r.Body)
    dec.DisallowUnknownFields()
    if err := dec.Decode(&body); err != nil {
        writeError(w, http.StatusBadRequest, "invalid JSON body")
        return
    }
    if len(body.Tickers) == 0 {
        writeError(w, http.StatusBadRequest, "Invalid tickers array")
        return
    }
    if len(body.Tickers) > resolve.MaxBatchSize {
        writeError(w, http.StatusBadRequest, "Too many tickers requested (max 20)")
        return
    }

    // key is order-insensitive so permutations of the same batch coalesce
    sorted := append([]string(nil), body.Tickers...)
    sort.Strings(sorted)
    key := "batch-stocks-" + strings.Join(sorted, ",")

    results, err := cache.GetOrResolve(r.Context(), a.cache, key, a.ttl(a.cfg.Cache.BatchTTLSec),
        func(ctx context.Context) (map[string]resolve.BatchEntry, error) {
            return a.res.Batch(ctx, body.Tickers)
        })
    if err != nil {
        writeFailure(w, err, "Failed to fetch batch stock data")
        return
    }
    writeJSON(w, http.StatusOK, results)
}

func (a *app) ttl(sec int) time.Duration {
    if sec <= 0 { sec = 300 }
    return time.Duration(sec) * time.Second
}

func writeJSON(w http.ResponseWriter, status int, v any) {
    w.WriteHeader(status)
    enc := json.NewEncoder(w)
    enc.SetEscapeHTML(false)
    _ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
    writeJSON(w, status, map[string]string{"error": msg})
}

// writeFailure maps resolution errors onto HTTP statuses. Bad input is a
// 400; everything else is a 500 with a safe generic message so upstream
// internals never leak to API consumers.
func writeFailure(w http.ResponseWriter, err error, generic string) {
    var br *marketdata.BadRequestError
    switch {
    case errors.As(err, &br):
        writeError(w, http.StatusBadRequest, br.Reason)
    case errors.Is(err, cache.ErrKeyTooLong):
        writeError(w, http.StatusBadRequest, "invalid request")
    default:
        writeError(w, http.StatusInternalServerError, generic)
    }
}
