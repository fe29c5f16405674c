package market

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"paperbroker/broker"
)

// BasePrices seeds the simulated feed. Unknown symbols start at 100 so the
// engine accepts arbitrary symbols.
var BasePrices = map[string]float64{
	"RELIANCE": 2450,
	"TCS":      3890,
	"INFY":     1650,
	"AAPL":     178.50,
	"GOOGL":    141.20,
	"TSLA":     248.30,
	"BTCUSDT":  43500,
	"ETHUSDT":  2280,
}

const defaultBasePrice = 100

// SimFeed generates a random walk around per-symbol base prices. Each call to
// GetQuote perturbs the last price by at most ±1% and keeps a two-cent
// bid/ask band around it, mirroring a thin but always-available market.
type SimFeed struct {
	mu    sync.Mutex
	rng   *rand.Rand
	last  map[string]float64
	open  map[string]float64
	delay time.Duration // optional artificial latency per quote
}

func NewSimFeed(seed int64) *SimFeed {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &SimFeed{
		rng:  rand.New(rand.NewSource(seed)),
		last: make(map[string]float64),
		open: make(map[string]float64),
	}
}

// SetDelay adds artificial latency to every GetQuote call. Used in tests to
// exercise quote timeouts.
func (f *SimFeed) SetDelay(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delay = d
}

func (f *SimFeed) GetQuote(ctx context.Context, symbol string) (broker.Quote, error) {
	f.mu.Lock()
	delay := f.delay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return broker.Quote{}, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	base, ok := f.last[symbol]
	if !ok {
		base = BasePrices[symbol]
		if base == 0 {
			base = defaultBasePrice
		}
		f.open[symbol] = base
	}

	// Step at most ±1% per quote.
	price := base * (1 + (f.rng.Float64()*0.02 - 0.01))
	f.last[symbol] = price

	open := f.open[symbol]
	change := price - open

	return broker.Quote{
		Symbol:        symbol,
		Price:         price,
		Bid:           price - 0.01,
		Ask:           price + 0.01,
		BidSize:       float64(100 + f.rng.Intn(1000)),
		AskSize:       float64(100 + f.rng.Intn(1000)),
		Volume:        float64(100000 + f.rng.Intn(1000000)),
		Change:        change,
		ChangePercent: change / open * 100,
		High:          open * 1.02,
		Low:           open * 0.98,
		Open:          open,
		PreviousClose: open,
		Time:          time.Now().UTC(),
	}, nil
}

// SetPrice pins the next price for a symbol. Scenario tests and the demo
// command use this to script exact fills.
func (f *SimFeed) SetPrice(symbol string, price float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.open[symbol]; !ok {
		f.open[symbol] = price
	}
	f.last[symbol] = price
}

// Run polls quotes for the given symbols at the given interval and hands each
// one to fn until the context is cancelled. fn is typically the engine's
// OnQuote plus a broadcast to stream subscribers.
func (f *SimFeed) Run(ctx context.Context, symbols []string, interval time.Duration, fn func(broker.Quote)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, sym := range symbols {
				q, err := f.GetQuote(ctx, sym)
				if err != nil {
					return
				}
				fn(q)
			}
		}
	}
}

// FixedFeed returns a canned quote per symbol and fails for anything else.
// It is the deterministic QuoteSource used across engine tests.
type FixedFeed struct {
	mu     sync.RWMutex
	quotes map[string]broker.Quote
	err    error
}

func NewFixedFeed() *FixedFeed {
	return &FixedFeed{quotes: make(map[string]broker.Quote)}
}

func (f *FixedFeed) Set(symbol string, price float64) broker.Quote {
	q := broker.Quote{
		Symbol: symbol,
		Price:  price,
		Bid:    price - 0.01,
		Ask:    price + 0.01,
		Time:   time.Now().UTC(),
	}
	f.mu.Lock()
	f.quotes[symbol] = q
	f.mu.Unlock()
	return q
}

// Fail makes every subsequent GetQuote return err.
func (f *FixedFeed) Fail(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *FixedFeed) GetQuote(_ context.Context, symbol string) (broker.Quote, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.err != nil {
		return broker.Quote{}, f.err
	}
	q, ok := f.quotes[symbol]
	if !ok {
		return broker.Quote{}, broker.ErrSymbolNotFound
	}
	return q, nil
}
