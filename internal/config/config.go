package config

import (
    "encoding/json"
    "errors"
    "fmt"
    "os"

    "github.com/joho/godotenv"
)

type Server struct {
    Port              string `json:"port"`
    RequestTimeoutSec int    `json:"request_timeout_sec"`
}

type Alpaca struct {
    KeyID         string `json:"key_id"`
    SecretKey     string `json:"secret_key"`
    DataURL       string `json:"data_url"`
    PreferredFeed string `json:"preferred_feed"`
    // Request quota in calls per minute; 0 disables the limiter.
    RateLimitPerMin int `json:"rate_limit_per_min"`
    RateBurst       int `json:"rate_burst"`
}

type Cache struct {
    DBPath           string `json:"db_path"`
    SweepIntervalSec int    `json:"sweep_interval_sec"`
    MaxKeyLen        int    `json:"max_key_len"`
    // Per-operation TTLs; upstream volatility differs by kind.
    MarketDataTTLSec int `json:"marketdata_ttl_sec"`
    StockTTLSec      int `json:"stock_ttl_sec"`
    YieldTTLSec      int `json:"yield_ttl_sec"`
    BatchTTLSec      int `json:"batch_ttl_sec"`
}

type Config struct {
    Server Server `json:"server"`
    Alpaca Alpaca `json:"alpaca"`
    Cache  Cache  `json:"cache"`
}

func Default() Config {
    return Config{
        Server: Server{Port: "8080", RequestTimeoutSec: 15},
        Alpaca: Alpaca{
            DataURL:         "https://data.alpaca.markets",
            PreferredFeed:   "iex",
            RateLimitPerMin: 200,
            RateBurst:       20,
        },
        Cache: Cache{
            DBPath:           "marketproxy-cache.db",
            SweepIntervalSec: 300,
            MaxKeyLen:        200,
            MarketDataTTLSec: 300,
            StockTTLSec:      300,
            YieldTTLSec:      900,
            BatchTTLSec:      300,
        },
    }
}

// Load reads JSON config from path. If path is empty or the file does not
// exist, it returns defaults. A local .env file and environment variables
// override select fields; credentials only ever come from the environment.
func Load(path string) (Config, error) {
    _ = godotenv.Load()

    cfg := Default()
    if path == "" {
        if _, err := os.Stat("config.json"); err == nil {
            path = "config.json"
        }
    }
    if path != "" {
        b, err := os.ReadFile(path)
        if err != nil && !errors.Is(err, os.ErrNotExist) {
            return cfg, fmt.Errorf("read config: %w", err)
        }
        if err == nil {
            if err := json.Unmarshal(b, &cfg); err != nil {
                return cfg, fmt.Errorf("parse config: %w", err)
            }
        }
    }
    applyEnv(&cfg)
    return cfg, nil
}

func applyEnv(cfg *Config) {
    if v := os.Getenv("PORT"); v != "" { cfg.Server.Port = v }
    if v := os.Getenv("REQUEST_TIMEOUT_SEC"); v != "" {
        var x int; fmt.Sscanf(v, "%d", &x); if x > 0 { cfg.Server.RequestTimeoutSec = x }
    }
    if v := os.Getenv("APCA_API_KEY_ID"); v != "" { cfg.Alpaca.KeyID = v }
    if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" { cfg.Alpaca.SecretKey = v }
    if v := os.Getenv("ALPACA_DATA_URL"); v != "" { cfg.Alpaca.DataURL = v }
    if v := os.Getenv("ALPACA_FEED"); v != "" { cfg.Alpaca.PreferredFeed = v }
    if v := os.Getenv("ALPACA_RATE_LIMIT_PER_MIN"); v != "" {
        var x int; fmt.Sscanf(v, "%d", &x); if x >= 0 { cfg.Alpaca.RateLimitPerMin = x }
    }
    if v := os.Getenv("ALPACA_RATE_BURST"); v != "" {
        var x int; fmt.Sscanf(v, "%d", &x); if x > 0 { cfg.Alpaca.RateBurst = x }
    }
    if v := os.Getenv("CACHE_DB_PATH"); v != "" { cfg.Cache.DBPath = v }
    if v := os.Getenv("CACHE_SWEEP_INTERVAL_SEC"); v != "" {
        var x int; fmt.Sscanf(v, "%d", &x); if x > 0 { cfg.Cache.SweepIntervalSec = x }
    }
    if v := os.Getenv("CACHE_MAX_KEY_LEN"); v != "" {
        var x int; fmt.Sscanf(v, "%d", &x); if x > 0 { cfg.Cache.MaxKeyLen = x }
    }
    if v := os.Getenv("MARKETDATA_CACHE_TTL_SEC"); v != "" {
        var x int; fmt.Sscanf(v, "%d", &x); if x > 0 { cfg.Cache.MarketDataTTLSec = x }
    }
    if v := os.Getenv("STOCK_CACHE_TTL_SEC"); v != "" {
        var x int; fmt.Sscanf(v, "%d", &x); if x > 0 { cfg.Cache.StockTTLSec = x }
    }
    if v := os.Getenv("YIELD_CACHE_TTL_SEC"); v != "" {
        var x int; fmt.Sscanf(v, "%d", &x); if x > 0 { cfg.Cache.YieldTTLSec = x }
    }
    if v := os.Getenv("BATCH_CACHE_TTL_SEC"); v != "" {
        var x int; fmt.Sscanf(v, "%d", &x); if x > 0 { cfg.Cache.BatchTTLSec = x }
    }
}
