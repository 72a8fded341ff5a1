package main

import (
    "compress/gzip"
    "context"
    "fmt"
    "io"
    "log"
    "net/http"
    "os"
    "os/signal"
    "strings"
    "sync"
    "syscall"
    "time"

    "github.com/robfig/cron/v3"

    "marketproxy/internal/cache"
    "marketproxy/internal/cache/store"
    "marketproxy/internal/config"
    "marketproxy/internal/httpx"
    "marketproxy/internal/marketdata"
    "marketproxy/internal/marketdata/alpaca"
    "marketproxy/internal/marketdata/ratelimit"
    "marketproxy/internal/resolve"
)

func main() {
    cfgPath := os.Getenv("CONFIG_FILE")
    cfg, err := config.Load(cfgPath)
    if err != nil { log.Fatalf("config: %v", err) }

    if cfg.Alpaca.KeyID == "" || cfg.Alpaca.SecretKey == "" {
        log.Println("warning: APCA_API_KEY_ID / APCA_API_SECRET_KEY not set; upstream calls will fail")
    }

    httpClient := httpx.New(time.Duration(cfg.Server.RequestTimeoutSec) * time.Second)

    var client marketdata.Client = alpaca.NewClient(cfg.Alpaca.KeyID, cfg.Alpaca.SecretKey,
        alpaca.WithBaseURL(cfg.Alpaca.DataURL),
        alpaca.WithHTTPClient(httpClient),
    )
    if cfg.Alpaca.RateLimitPerMin > 0 {
        client = &ratelimit.Client{
            C:  client,
            TB: ratelimit.NewTokenBucket(float64(cfg.Alpaca.RateLimitPerMin)/60, cfg.Alpaca.RateBurst),
        }
    }
    resolver := resolve.New(client)
    resolver.PreferredFeed = cfg.Alpaca.PreferredFeed

    // tier-2 is best effort; run tier-1-only when it cannot be opened
    var tier2 store.Store = store.Noop{}
    var sqliteStore *store.SQLite
    if cfg.Cache.DBPath != "" {
        sqliteStore, err = store.NewSQLite(cfg.Cache.DBPath)
        if err != nil {
            log.Printf("warning: cache store unavailable, continuing in-memory only: %v", err)
            sqliteStore = nil
        } else {
            tier2 = sqliteStore
        }
    }
    c := cache.New(tier2, cache.WithMaxKeyLen(cfg.Cache.MaxKeyLen))

    a := &app{cfg: cfg, cache: c, res: resolver}

    sweeper := cron.New()
    if cfg.Cache.SweepIntervalSec > 0 {
        spec := fmt.Sprintf("@every %ds", cfg.Cache.SweepIntervalSec)
        if _, err := sweeper.AddFunc(spec, func() { c.Sweep(context.Background()) }); err != nil {
            log.Fatalf("sweeper: %v", err)
        }
        sweeper.Start()
    }

    srv := &http.Server{
        Addr:              ":" + cfg.Server.Port,
        Handler:           withJSONHeaders(withGzip(recoverPanic(limitBody(a.routes())))),
        ReadHeaderTimeout: 5 * time.Second,
        ReadTimeout:       15 * time.Second,
        WriteTimeout:      20 * time.Second,
        IdleTimeout:       60 * time.Second,
    }

    go func() {
        log.Printf("server listening on :%s", cfg.Server.Port)
        if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
            log.Fatalf("server: %v", err)
        }
    }()

    // graceful shutdown
    ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
    defer stop()
    <-ctx.Done()
    shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()
    _ = srv.Shutdown(shutdownCtx)
    sweeper.Stop()
    if sqliteStore != nil { _ = sqliteStore.Close() }
}

func withJSONHeaders(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        w.Header().Set("Content-Type", "application/json; charset=utf-8")
        // Basic CORS for browser usage; adjust as needed.
        w.Header().Set("Access-Control-Allow-Origin", "*")
        w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
        w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
        if r.Method == http.MethodOptions {
            w.WriteHeader(http.StatusNoContent)
            return
        }
        next.ServeHTTP(w, r)
    })
}

// withGzip compresses response when client supports gzip.
func withGzip(next http.Handler) http.Handler {
    var gzPool = sync.Pool{New: func() any {
        // Prefer best speed to reduce CPU usage since payloads are JSON
        w, _ := gzip.NewWriterLevel(io.Discard, gzip.BestSpeed)
        return w
    }}
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
            next.ServeHTTP(w, r)
            return
        }
        gz := gzPool.Get().(*gzip.Writer)
        gz.Reset(w)
        defer func() {
            _ = gz.Close()
            gz.Reset(io.Discard)
            gzPool.Put(gz)
        }()
        w.Header().Set("Content-Encoding", "gzip")
        w.Header().Add("Vary", "Accept-Encoding")
        gw := gzipResponseWriter{ResponseWriter: w, Writer: gz}
        next.ServeHTTP(gw, r)
    })
}

type gzipResponseWriter struct {
    http.ResponseWriter
    Writer io.Writer
}

func (g gzipResponseWriter) Write(b []byte) (int, error) {
    return g.Writer.Write(b)
}

// limitBody caps request body size to avoid memory abuse.
func limitBody(next http.Handler) http.Handler {
    const maxBody = 1 << 20 // 1MB
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        if r.Method == http.MethodPost && r.Body != nil {
            r.Body = http.MaxBytesReader(w, r.Body, maxBody)
        }
        next.ServeHTTP(w, r)
    })
}

// recoverPanic protects handlers from panics.
func recoverPanic(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        defer func() {
            if rec := recover(); rec != nil {
                http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
            }
        }()
        next.ServeHTTP(w, r)
    })
}
