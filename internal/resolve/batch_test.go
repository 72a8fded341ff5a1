package resolve

import (
    "context"
    "errors"
    "fmt"
    "testing"

    "marketproxy/internal/marketdata"
)

func TestBatch_RejectsEmpty(t *testing.T) {
    c := &fakeClient{}
    _, err := newTestResolver(c).Batch(context.Background(), nil)
    var bad *marketdata.BadRequestError
    if !errors.As(err, &bad) {
        t.Fatalf("err = %v, want BadRequestError", err)
    }
    if c.total() != 0 {
        t.Fatalf("upstream calls = %d, want 0", c.total())
    }
}

func TestBatch_RejectsOversize(t *testing.T) {
    tickers := make([]string, MaxBatchSize+1)
    for i := range tickers {
        tickers[i] = fmt.Sprintf("SYM%d", i)
    }
    c := &fakeClient{}
    _, err := newTestResolver(c).Batch(context.Background(), tickers)
    var bad *marketdata.BadRequestError
    if !errors.As(err, &bad) {
        t.Fatalf("err = %v, want BadRequestError", err)
    }
    if c.total() != 0 {
        t.Fatalf("upstream calls = %d, want rejection before any network activity", c.total())
    }
}

func TestBatch_AtLimitIsAccepted(t *testing.T) {
    tickers := make([]string, MaxBatchSize)
    for i := range tickers {
        tickers[i] = fmt.Sprintf("SYM%d", i)
    }
    c := &fakeClient{
        latestQuote: func(_, _ string) (marketdata.Quote, bool, error) {
            return marketdata.Quote{AskPrice: 5}, true, nil
        },
    }
    got, err := newTestResolver(c).Batch(context.Background(), tickers)
    if err != nil { t.Fatalf("batch: %v", err) }
    if len(got) != MaxBatchSize {
        t.Fatalf("entries = %d, want %d", len(got), MaxBatchSize)
    }
}

func TestBatch_PartialFailure(t *testing.T) {
    c := &fakeClient{
        latestQuote: func(symbol, _ string) (marketdata.Quote, bool, error) {
            if symbol == "BAD" {
                return marketdata.Quote{}, false, errors.New("down")
            }
            return marketdata.Quote{AskPrice: 12.5}, true, nil
        },
    }
    got, err := newTestResolver(c).Batch(context.Background(), []string{"AAPL", "MSFT", "BAD", "GOOG", "TSLA"})
    if err != nil { t.Fatalf("batch: %v", err) }
    if len(got) != 5 {
        t.Fatalf("entries = %d, want 5", len(got))
    }
    for sym, entry := range got {
        if sym == "BAD" {
            if entry.DataSource != "error" || entry.CurrentPrice != nil {
                t.Fatalf("BAD entry = %+v, want error marker with null price", entry)
            }
            continue
        }
        if entry.DataSource != "real" || entry.CurrentPrice == nil || *entry.CurrentPrice != 12.5 {
            t.Fatalf("%s entry = %+v, want real price 12.5", sym, entry)
        }
        if entry.Data == nil {
            t.Fatalf("%s data slice is nil, want empty", sym)
        }
    }
}

func TestBatch_BidFallbackAndUnusableQuote(t *testing.T) {
    c := &fakeClient{
        latestQuote: func(symbol, _ string) (marketdata.Quote, bool, error) {
            switch symbol {
            case "BIDONLY":
                return marketdata.Quote{BidPrice: 9.9}, true, nil
            default:
                return marketdata.Quote{}, true, nil // answered, both sides zero
            }
        },
    }
    got, err := newTestResolver(c).Batch(context.Background(), []string{"BIDONLY", "HALTED"})
    if err != nil { t.Fatalf("batch: %v", err) }
    if e := got["BIDONLY"]; e.CurrentPrice == nil || *e.CurrentPrice != 9.9 {
        t.Fatalf("BIDONLY = %+v, want bid fallback 9.9", e)
    }
    if e := got["HALTED"]; e.DataSource != "error" {
        t.Fatalf("HALTED = %+v, want error marker for an unusable quote", e)
    }
}
