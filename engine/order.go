package engine

import "paperbroker/broker"

// check evaluates a resting order against a tick price and reports whether it
// should fill now. Stop-limit orders first arm when the stop is touched, then
// fill under their limit condition on the same or a later tick.
func (p *pendingOrder) check(price float64) (float64, bool) {
	o := p.order

	switch o.Type {
	case broker.Limit:
		if limitSatisfied(o.Side, o.LimitPrice, price) {
			return price, true
		}
	case broker.StopLoss:
		if stopTouched(o.Side, o.StopPrice, price) {
			return price, true
		}
	case broker.StopLimit:
		if !p.armed && stopTouched(o.Side, o.StopPrice, price) {
			p.armed = true
		}
		if p.armed && limitSatisfied(o.Side, o.LimitPrice, price) {
			return price, true
		}
	}
	return 0, false
}

// limitSatisfied: a buy limit fills at or below its price, a sell limit at or
// above.
func limitSatisfied(side broker.Side, limit, price float64) bool {
	if side == broker.Buy {
		return price <= limit
	}
	return price >= limit
}

// stopTouched: a buy stop triggers at or above its price, a sell stop at or
// below.
func stopTouched(side broker.Side, stop, price float64) bool {
	if side == broker.Buy {
		return price >= stop
	}
	return price <= stop
}
