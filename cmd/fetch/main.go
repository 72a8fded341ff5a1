package main

import (
    "context"
    "encoding/json"
    "flag"
    "fmt"
    "log"
    "os"
    "time"

    "marketproxy/internal/config"
    "marketproxy/internal/httpx"
    "marketproxy/internal/marketdata/alpaca"
    "marketproxy/internal/resolve"
)

// fetch resolves one symbol against the live upstream and prints the result
// as JSON. Useful for poking the resolution pipeline without the server.
func main() {
    var symbol string
    var kind string
    var rng string
    var timeout int
    var configPath string

    flag.StringVar(&symbol, "symbol", getenv("SYMBOL", "LQD"), "ticker symbol to resolve")
    flag.StringVar(&kind, "kind", "market", "what to resolve: market|stock|yield")
    flag.StringVar(&rng, "range", "90d", "history range for -kind=stock: 7d|30d|90d")
    flag.IntVar(&timeout, "timeout", getenvInt("REQUEST_TIMEOUT_SEC", 15), "request timeout seconds")
    flag.StringVar(&configPath, "config", getenv("CONFIG_FILE", ""), "path to config.json (optional)")
    flag.Parse()

    cfg, err := config.Load(configPath)
    if err != nil { log.Fatalf("config: %v", err) }
    if timeout != 0 { cfg.Server.RequestTimeoutSec = timeout }
    if cfg.Alpaca.KeyID == "" || cfg.Alpaca.SecretKey == "" {
        log.Println("warning: APCA_API_KEY_ID / APCA_API_SECRET_KEY not set; upstream calls will fail")
    }

    httpClient := httpx.New(time.Duration(cfg.Server.RequestTimeoutSec) * time.Second)
    client := alpaca.NewClient(cfg.Alpaca.KeyID, cfg.Alpaca.SecretKey,
        alpaca.WithBaseURL(cfg.Alpaca.DataURL),
        alpaca.WithHTTPClient(httpClient),
    )
    resolver := resolve.New(client)
    resolver.PreferredFeed = cfg.Alpaca.PreferredFeed

    ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
    defer cancel()

    var out any
    switch kind {
    case "market":
        out, err = resolver.Snapshot(ctx, symbol)
    case "stock":
        out, err = resolver.Stock(ctx, symbol, resolve.ParseRange(rng))
    case "yield":
        out, err = resolver.Yield(ctx, symbol)
    default:
        log.Fatalf("unknown -kind %q (want market|stock|yield)", kind)
    }
    if err != nil { log.Fatalf("resolve %s %s: %v", kind, symbol, err) }

    enc := json.NewEncoder(os.Stdout)
    enc.SetIndent("", "  ")
    enc.SetEscapeHTML(false)
    _ = enc.Encode(out)
}

func getenv(key, def string) string { if v := os.Getenv(key); v != "" { return v }; return def }
func getenvInt(key string, def int) int {
    if v := os.Getenv(key); v != "" {
        var x int
        _, _ = fmt.Sscanf(v, "%d", &x)
        if x != 0 { return x }
    }
    return def
}
