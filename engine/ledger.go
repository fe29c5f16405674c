package engine

import "paperbroker/broker"

// applyFillLocked mutates the position ledger and cash for one fill and
// returns the realized P&L (zero unless the fill closed or reduced a
// position). Caller holds e.mu.
//
// Cash flow of any fill is ±quantity×price by side; realized P&L on a close
// is (fill − avg) × closedQty for longs and (avg − fill) × closedQty for
// shorts. A fill larger than the opposing position flattens it and opens the
// residual as a fresh position at the fill price.
func (e *Engine) applyFillLocked(symbol string, side broker.Side, qty, price float64) float64 {
	if side == broker.Buy {
		e.cash -= qty * price
	} else {
		e.cash += qty * price
	}

	dir := broker.Long
	if side == broker.Sell {
		dir = broker.Short
	}

	pos, ok := e.positions[symbol]
	if !ok {
		e.positions[symbol] = newPosition(symbol, dir, qty, price)
		return 0
	}

	if pos.Side == dir {
		// Same direction: quantity-weighted average entry.
		pos.AvgPrice = (pos.AvgPrice*pos.Quantity + price*qty) / (pos.Quantity + qty)
		pos.Quantity += qty
		markPosition(pos, price)
		return 0
	}

	// Opposite direction: reduce, possibly flatten, possibly flip.
	closed := qty
	if closed > pos.Quantity {
		closed = pos.Quantity
	}

	realized := (price - pos.AvgPrice) * closed
	if pos.Side == broker.Short {
		realized = -realized
	}

	residual := qty - pos.Quantity
	switch {
	case residual > 0:
		e.positions[symbol] = newPosition(symbol, dir, residual, price)
	case pos.Quantity-qty > 0:
		pos.Quantity -= qty
		markPosition(pos, price)
	default:
		delete(e.positions, symbol)
	}

	return realized
}

func newPosition(symbol string, side broker.PositionSide, qty, price float64) *broker.Position {
	p := &broker.Position{
		Symbol:   symbol,
		Quantity: qty,
		AvgPrice: price,
		Side:     side,
	}
	markPosition(p, price)
	return p
}

// markPosition revalues a position at the given price. MarketValue carries
// the side's sign so the equity identity holds; unrealized P&L is computed
// against the average entry.
func markPosition(p *broker.Position, price float64) {
	p.CurrentPrice = price

	if p.Side == broker.Long {
		p.MarketValue = p.Quantity * price
		p.UnrealizedPL = (price - p.AvgPrice) * p.Quantity
	} else {
		p.MarketValue = -p.Quantity * price
		p.UnrealizedPL = (p.AvgPrice - price) * p.Quantity
	}

	if basis := p.AvgPrice * p.Quantity; basis > 0 {
		p.UnrealizedPLPct = p.UnrealizedPL / basis * 100
	} else {
		p.UnrealizedPLPct = 0
	}
}
