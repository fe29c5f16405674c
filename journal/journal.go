package journal

import "time"

// OrderRecord is written once per terminal order (filled, cancelled or
// rejected). The engine keeps its own in-memory history; the journal is the
// durable audit trail.
type OrderRecord struct {
	OrderID        string
	Symbol         string
	Side           string
	Type           string
	Status         string
	Quantity       float64
	FilledQuantity float64
	FillPrice      float64
	RealizedPL     float64
	Reason         string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// EquitySnapshot is written after every fill.
type EquitySnapshot struct {
	Time            time.Time
	Balance         float64
	Equity          float64
	MarginUsed      float64
	MarginAvailable float64
	DailyLoss       float64
}

type Journal interface {
	RecordOrder(OrderRecord) error
	RecordEquity(EquitySnapshot) error
	Close() error
}

// Nop discards everything. Callers that do not persist pass this instead of
// nil-checking a journal on every write.
type Nop struct{}

func (Nop) RecordOrder(OrderRecord) error     { return nil }
func (Nop) RecordEquity(EquitySnapshot) error { return nil }
func (Nop) Close() error                      { return nil }
