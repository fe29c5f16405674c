package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"paperbroker/broker"
	"paperbroker/internal/id"
	"paperbroker/journal"
	"paperbroker/market"
	"paperbroker/risk"
)

// Options configures a paper trading engine instance. One engine owns one
// account; nothing is shared between instances.
type Options struct {
	AccountID        string
	Currency         string
	Balance          float64
	MarginMultiplier float64       // buying power = cash * multiplier, default 2
	QuoteTimeout     time.Duration // bound on quote fetch, default 5s
}

// Engine simulates order fills against a quote source and maintains the
// position ledger, cash balance and order history for one account. It
// implements broker.BrokerAPI.
//
// Locking: mu guards the ledger (positions, cash, orders). A per-symbol lock
// serializes the whole fill path for that symbol, so at most one mutation is
// in flight per position. Quote fetches happen before any lock is taken; mu
// is held only for the atomic ledger mutation.
type Engine struct {
	mu        sync.Mutex
	cash      float64
	positions map[string]*broker.Position
	orders    map[string]*broker.Order
	history   []*broker.Order // append order; served newest first
	pending   map[string][]*pendingOrder

	symMu   sync.Mutex
	symbols map[string]*sync.Mutex

	accountID    string
	currency     string
	marginMult   float64
	quoteTimeout time.Duration

	quotes  market.QuoteSource
	riskMgr *risk.Manager
	journal journal.Journal
}

// pendingOrder is a resting limit/stop order waiting for its trigger. armed
// marks a stop_limit whose stop has been touched.
type pendingOrder struct {
	order *broker.Order
	armed bool
}

func New(opts Options, quotes market.QuoteSource, rm *risk.Manager, j journal.Journal) (*Engine, error) {
	if quotes == nil {
		return nil, fmt.Errorf("%w: quote source is required", broker.ErrInvalidConfig)
	}
	if rm == nil {
		return nil, fmt.Errorf("%w: risk manager is required", broker.ErrInvalidConfig)
	}
	if opts.Balance < 0 {
		return nil, fmt.Errorf("%w: balance must not be negative", broker.ErrInvalidConfig)
	}
	if j == nil {
		j = journal.Nop{}
	}
	if opts.MarginMultiplier <= 0 {
		opts.MarginMultiplier = 2
	}
	if opts.QuoteTimeout <= 0 {
		opts.QuoteTimeout = 5 * time.Second
	}
	if opts.Currency == "" {
		opts.Currency = "USD"
	}

	return &Engine{
		cash:         opts.Balance,
		positions:    make(map[string]*broker.Position),
		orders:       make(map[string]*broker.Order),
		pending:      make(map[string][]*pendingOrder),
		symbols:      make(map[string]*sync.Mutex),
		accountID:    opts.AccountID,
		currency:     opts.Currency,
		marginMult:   opts.MarginMultiplier,
		quoteTimeout: opts.QuoteTimeout,
		quotes:       quotes,
		riskMgr:      rm,
		journal:      j,
	}, nil
}

func (e *Engine) Risk() *risk.Manager { return e.riskMgr }

// SubmitOrder validates the request, runs the risk gate, fetches a quote and
// either fills (market) or parks the order until a quote tick triggers it.
// Rejected orders are returned with a Reason and kept in history; they leave
// cash, positions and risk state untouched.
func (e *Engine) SubmitOrder(ctx context.Context, req broker.OrderRequest) (broker.Order, error) {
	if err := validateRequest(req); err != nil {
		return e.reject(req, broker.ReasonInvalidOrder), err
	}

	if !e.riskMgr.CheckGate(req.Side) {
		return e.reject(req, broker.ReasonKillSwitchActive), broker.ErrKillSwitchActive
	}

	// Quote fetch is bounded and happens before any lock is acquired.
	qctx, cancel := context.WithTimeout(ctx, e.quoteTimeout)
	defer cancel()

	q, err := e.quotes.GetQuote(qctx, req.Symbol)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return e.reject(req, broker.ReasonQuoteTimeout),
				fmt.Errorf("%w: %s", broker.ErrQuoteTimeout, req.Symbol)
		}
		return e.reject(req, broker.ReasonQuoteUnavailable),
			fmt.Errorf("%w: %v", broker.ErrQuoteUnavailable, err)
	}

	now := time.Now().UTC()
	o := &broker.Order{
		ID:          id.New(),
		Symbol:      req.Symbol,
		Side:        req.Side,
		Type:        req.Type,
		Status:      broker.StatusPending,
		Quantity:    req.Quantity,
		LimitPrice:  req.LimitPrice,
		StopPrice:   req.StopPrice,
		TimeInForce: req.TimeInForce,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	unlock := e.lockSymbol(req.Symbol)
	defer unlock()

	e.mu.Lock()
	e.orders[o.ID] = o
	e.history = append(e.history, o)
	e.mu.Unlock()

	if o.Type == broker.Market {
		e.fill(o, q.Price, q.Time)
		return e.snapshotOrder(o.ID), nil
	}

	// Non-market orders rest until a trigger; the submission quote counts as
	// the first tick they see.
	p := &pendingOrder{order: o}
	if fillPrice, ok := p.check(q.Price); ok {
		e.fill(o, fillPrice, q.Time)
		return e.snapshotOrder(o.ID), nil
	}

	e.mu.Lock()
	e.pending[o.Symbol] = append(e.pending[o.Symbol], p)
	e.mu.Unlock()

	return e.snapshotOrder(o.ID), nil
}

// reject records a rejected order for audit and returns it. No other state
// is touched.
func (e *Engine) reject(req broker.OrderRequest, reason string) broker.Order {
	now := time.Now().UTC()
	o := &broker.Order{
		ID:          id.New(),
		Symbol:      req.Symbol,
		Side:        req.Side,
		Type:        req.Type,
		Status:      broker.StatusRejected,
		Quantity:    req.Quantity,
		LimitPrice:  req.LimitPrice,
		StopPrice:   req.StopPrice,
		Reason:      reason,
		TimeInForce: req.TimeInForce,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	e.mu.Lock()
	e.orders[o.ID] = o
	e.history = append(e.history, o)
	e.mu.Unlock()

	_ = e.journal.RecordOrder(toRecord(o, 0))
	return *o
}

// OnQuote feeds a quote tick into the engine: the symbol's position is
// revalued and any resting order whose trigger condition is met fills at the
// tick price.
func (e *Engine) OnQuote(q broker.Quote) {
	unlock := e.lockSymbol(q.Symbol)
	defer unlock()

	e.mu.Lock()
	if pos, ok := e.positions[q.Symbol]; ok {
		markPosition(pos, q.Price)
	}

	var due []*pendingOrder
	rest := e.pending[q.Symbol][:0]
	for _, p := range e.pending[q.Symbol] {
		if _, ok := p.check(q.Price); ok {
			due = append(due, p)
		} else {
			rest = append(rest, p)
		}
	}
	if len(rest) == 0 {
		delete(e.pending, q.Symbol)
	} else {
		e.pending[q.Symbol] = rest
	}
	e.mu.Unlock()

	for _, p := range due {
		e.fill(p.order, q.Price, q.Time)
	}
}

// fill executes the atomic ledger mutation for one order, then lets the risk
// manager see the realized P&L and journals the result. The symbol lock is
// already held.
func (e *Engine) fill(o *broker.Order, price float64, at time.Time) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	e.mu.Lock()
	// A cancel may have won the race after the trigger scan released the lock.
	if !o.Status.CanTransition(broker.StatusFilled) {
		e.mu.Unlock()
		return
	}
	realized := e.applyFillLocked(o.Symbol, o.Side, o.Quantity, price)

	o.Status = broker.StatusFilled
	o.FilledQuantity = o.Quantity
	o.FillPrice = price
	o.UpdatedAt = at

	snap := e.equityLocked(at)
	e.mu.Unlock()

	if realized < 0 {
		e.riskMgr.RecordRealizedLoss(realized)
	}
	e.riskMgr.EvaluateTrigger()
	snap.DailyLoss = e.riskMgr.Snapshot().CurrentDailyLoss

	_ = e.journal.RecordOrder(toRecord(o, realized))
	_ = e.journal.RecordEquity(snap)
}

// CancelOrder succeeds only from pending or partial. Terminal orders return
// false without mutation; unknown ids surface ErrOrderNotFound.
func (e *Engine) CancelOrder(_ context.Context, orderID string) (bool, error) {
	e.mu.Lock()
	o, ok := e.orders[orderID]
	if !ok {
		e.mu.Unlock()
		return false, fmt.Errorf("%w: %s", broker.ErrOrderNotFound, orderID)
	}
	if !o.Status.CanTransition(broker.StatusCancelled) {
		e.mu.Unlock()
		return false, nil
	}

	o.Status = broker.StatusCancelled
	o.UpdatedAt = time.Now().UTC()

	rest := e.pending[o.Symbol][:0]
	for _, p := range e.pending[o.Symbol] {
		if p.order.ID != orderID {
			rest = append(rest, p)
		}
	}
	if len(rest) == 0 {
		delete(e.pending, o.Symbol)
	} else {
		e.pending[o.Symbol] = rest
	}
	e.mu.Unlock()

	_ = e.journal.RecordOrder(toRecord(o, 0))
	return true, nil
}

func (e *Engine) GetOrder(_ context.Context, orderID string) (broker.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	o, ok := e.orders[orderID]
	if !ok {
		return broker.Order{}, fmt.Errorf("%w: %s", broker.ErrOrderNotFound, orderID)
	}
	return *o, nil
}

func (e *Engine) GetOpenOrders(_ context.Context) ([]broker.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []broker.Order
	for i := len(e.history) - 1; i >= 0; i-- {
		if o := e.history[i]; !o.Status.Terminal() {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (e *Engine) GetOrderHistory(_ context.Context, limit int) ([]broker.Order, error) {
	if limit <= 0 {
		limit = 50
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]broker.Order, 0, limit)
	for i := len(e.history) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, *e.history[i])
	}
	return out, nil
}

func (e *Engine) GetPositions(_ context.Context) ([]broker.Position, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]broker.Position, 0, len(e.positions))
	for _, p := range e.positions {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (e *Engine) GetAccountInfo(_ context.Context) (broker.AccountInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.accountLocked(), nil
}

func (e *Engine) accountLocked() broker.AccountInfo {
	equity := e.cash
	for _, p := range e.positions {
		equity += p.MarketValue
	}
	return broker.AccountInfo{
		Balance:         e.cash,
		BuyingPower:     e.cash * e.marginMult,
		Equity:          equity,
		MarginUsed:      equity - e.cash,
		MarginAvailable: e.cash,
		Currency:        e.currency,
	}
}

func (e *Engine) equityLocked(at time.Time) journal.EquitySnapshot {
	a := e.accountLocked()
	return journal.EquitySnapshot{
		Time:            at,
		Balance:         a.Balance,
		Equity:          a.Equity,
		MarginUsed:      a.MarginUsed,
		MarginAvailable: a.MarginAvailable,
	}
}

func (e *Engine) snapshotOrder(orderID string) broker.Order {
	e.mu.Lock()
	defer e.mu.Unlock()
	return *e.orders[orderID]
}

func (e *Engine) lockSymbol(symbol string) func() {
	e.symMu.Lock()
	m, ok := e.symbols[symbol]
	if !ok {
		m = &sync.Mutex{}
		e.symbols[symbol] = m
	}
	e.symMu.Unlock()

	m.Lock()
	return m.Unlock
}

func validateRequest(req broker.OrderRequest) error {
	if req.Symbol == "" {
		return fmt.Errorf("%w: symbol is required", broker.ErrInvalidOrder)
	}
	if req.Side != broker.Buy && req.Side != broker.Sell {
		return fmt.Errorf("%w: side must be buy or sell, got %q", broker.ErrInvalidOrder, req.Side)
	}
	if req.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive, got %v", broker.ErrInvalidOrder, req.Quantity)
	}
	switch req.Type {
	case broker.Market:
	case broker.Limit:
		if req.LimitPrice <= 0 {
			return fmt.Errorf("%w: limit orders require a positive limit price", broker.ErrInvalidOrder)
		}
	case broker.StopLoss:
		if req.StopPrice <= 0 {
			return fmt.Errorf("%w: stop orders require a positive stop price", broker.ErrInvalidOrder)
		}
	case broker.StopLimit:
		if req.LimitPrice <= 0 || req.StopPrice <= 0 {
			return fmt.Errorf("%w: stop-limit orders require positive stop and limit prices", broker.ErrInvalidOrder)
		}
	default:
		return fmt.Errorf("%w: unknown order type %q", broker.ErrInvalidOrder, req.Type)
	}
	return nil
}

func toRecord(o *broker.Order, realized float64) journal.OrderRecord {
	return journal.OrderRecord{
		OrderID:        o.ID,
		Symbol:         o.Symbol,
		Side:           string(o.Side),
		Type:           string(o.Type),
		Status:         string(o.Status),
		Quantity:       o.Quantity,
		FilledQuantity: o.FilledQuantity,
		FillPrice:      o.FillPrice,
		RealizedPL:     realized,
		Reason:         o.Reason,
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
}
