package market

import (
	"context"
	"sync"

	"paperbroker/broker"
)

// QuoteSource supplies the current quote for a symbol. Implementations may be
// backed by a live feed or a simulator and may block on I/O; callers bound
// them with a context.
type QuoteSource interface {
	GetQuote(ctx context.Context, symbol string) (broker.Quote, error)
}

// Store is a concurrency-safe cache of the latest quote per symbol.
type Store struct {
	mu     sync.RWMutex
	quotes map[string]broker.Quote
}

func NewStore() *Store {
	return &Store{quotes: make(map[string]broker.Quote)}
}

func (s *Store) Set(q broker.Quote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes[q.Symbol] = q
}

func (s *Store) Get(symbol string) (broker.Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.quotes[symbol]
	if !ok {
		return broker.Quote{}, broker.ErrSymbolNotFound
	}
	return q, nil
}

func (s *Store) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.quotes))
	for sym := range s.quotes {
		out = append(out, sym)
	}
	return out
}

// GetQuote makes the store itself usable as a QuoteSource for callers that
// only need the last cached value.
func (s *Store) GetQuote(_ context.Context, symbol string) (broker.Quote, error) {
	return s.Get(symbol)
}
