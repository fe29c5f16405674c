package market

import (
	"context"
	"errors"
	"math"
	"testing"

	"paperbroker/broker"
)

func TestStoreSetGet(t *testing.T) {
	t.Parallel()

	s := NewStore()

	_, err := s.Get("AAPL")
	if !errors.Is(err, broker.ErrSymbolNotFound) {
		t.Fatalf("err = %v, want ErrSymbolNotFound", err)
	}

	s.Set(broker.Quote{Symbol: "AAPL", Price: 178.5})

	q, err := s.Get("AAPL")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if q.Price != 178.5 {
		t.Fatalf("price = %v, want 178.5", q.Price)
	}

	if got, err := s.GetQuote(context.Background(), "AAPL"); err != nil || got.Price != 178.5 {
		t.Fatalf("GetQuote = %v, %v", got, err)
	}
}

func TestSimFeedWalksWithinBand(t *testing.T) {
	t.Parallel()

	f := NewSimFeed(42)
	ctx := context.Background()

	last := BasePrices["AAPL"]
	for i := 0; i < 100; i++ {
		q, err := f.GetQuote(ctx, "AAPL")
		if err != nil {
			t.Fatalf("get quote: %v", err)
		}
		if q.Symbol != "AAPL" {
			t.Fatalf("symbol = %q", q.Symbol)
		}
		step := math.Abs(q.Price-last) / last
		if step > 0.01+1e-9 {
			t.Fatalf("step %d moved %.4f%%, want <= 1%%", i, step*100)
		}
		if q.Bid >= q.Price || q.Ask <= q.Price {
			t.Fatalf("bid/ask band inverted: %v %v %v", q.Bid, q.Price, q.Ask)
		}
		last = q.Price
	}
}

func TestSimFeedUnknownSymbolGetsDefaultBase(t *testing.T) {
	t.Parallel()

	f := NewSimFeed(7)
	q, err := f.GetQuote(context.Background(), "ZZZZ")
	if err != nil {
		t.Fatalf("get quote: %v", err)
	}
	if q.Price < 99 || q.Price > 101 {
		t.Fatalf("price = %v, want near default base 100", q.Price)
	}
}

func TestSimFeedSetPricePins(t *testing.T) {
	t.Parallel()

	f := NewSimFeed(1)
	f.SetPrice("X", 100)

	q, err := f.GetQuote(context.Background(), "X")
	if err != nil {
		t.Fatalf("get quote: %v", err)
	}
	if q.Price < 99 || q.Price > 101 {
		t.Fatalf("price = %v, want within 1%% of pinned 100", q.Price)
	}
}

func TestFixedFeed(t *testing.T) {
	t.Parallel()

	f := NewFixedFeed()
	f.Set("X", 100)

	q, err := f.GetQuote(context.Background(), "X")
	if err != nil || q.Price != 100 {
		t.Fatalf("GetQuote = %v, %v", q, err)
	}

	_, err = f.GetQuote(context.Background(), "Y")
	if !errors.Is(err, broker.ErrSymbolNotFound) {
		t.Fatalf("err = %v, want ErrSymbolNotFound", err)
	}

	sentinel := errors.New("feed down")
	f.Fail(sentinel)
	_, err = f.GetQuote(context.Background(), "X")
	if !errors.Is(err, sentinel) {
		t.Fatalf("err = %v, want sentinel", err)
	}
}
