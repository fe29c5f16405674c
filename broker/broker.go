package broker

import (
	"context"
	"time"
)

// BrokerAPI is the contract between the engine and anything that displays or
// drives it. Real broker adapters (exchange connectivity) implement the same
// interface; only the paper engine lives in this repository.
type BrokerAPI interface {
	SubmitOrder(ctx context.Context, req OrderRequest) (Order, error)
	CancelOrder(ctx context.Context, orderID string) (bool, error)
	GetOrder(ctx context.Context, orderID string) (Order, error)
	GetOpenOrders(ctx context.Context) ([]Order, error)
	GetOrderHistory(ctx context.Context, limit int) ([]Order, error)
	GetPositions(ctx context.Context) ([]Position, error)
	GetAccountInfo(ctx context.Context) (AccountInfo, error)
}

type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

type OrderType string

const (
	Market    OrderType = "market"
	Limit     OrderType = "limit"
	StopLoss  OrderType = "stop_loss"
	StopLimit OrderType = "stop_limit"
)

type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusPartial   OrderStatus = "partial"
	StatusFilled    OrderStatus = "filled"
	StatusCancelled OrderStatus = "cancelled"
	StatusRejected  OrderStatus = "rejected"
)

// Terminal reports whether no further transition is possible from s.
func (s OrderStatus) Terminal() bool {
	switch s {
	case StatusFilled, StatusCancelled, StatusRejected:
		return true
	}
	return false
}

// CanTransition reports whether the order state machine allows s -> next.
// pending may move to any other state; partial may only complete or cancel.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusPartial || next == StatusFilled ||
			next == StatusCancelled || next == StatusRejected
	case StatusPartial:
		return next == StatusFilled || next == StatusCancelled
	}
	return false
}

type TimeInForce string

const (
	TIFDay TimeInForce = "day"
	TIFGTC TimeInForce = "gtc"
	TIFIOC TimeInForce = "ioc"
	TIFFOK TimeInForce = "fok"
)

type OrderRequest struct {
	Symbol      string      `json:"symbol"`
	Side        Side        `json:"side"`
	Type        OrderType   `json:"type"`
	Quantity    float64     `json:"quantity"`
	LimitPrice  float64     `json:"limitPrice,omitempty"`
	StopPrice   float64     `json:"stopPrice,omitempty"`
	TimeInForce TimeInForce `json:"timeInForce,omitempty"`
}

// Order is the engine's record of a submitted request. Records are never
// deleted; terminal orders stay in history for audit.
type Order struct {
	ID             string      `json:"orderId"`
	Symbol         string      `json:"symbol"`
	Side           Side        `json:"side"`
	Type           OrderType   `json:"type"`
	Status         OrderStatus `json:"status"`
	Quantity       float64     `json:"quantity"`
	FilledQuantity float64     `json:"filledQuantity"`
	LimitPrice     float64     `json:"limitPrice,omitempty"`
	StopPrice      float64     `json:"stopPrice,omitempty"`
	FillPrice      float64     `json:"filledPrice,omitempty"`
	Reason         string      `json:"reason,omitempty"`
	TimeInForce    TimeInForce `json:"timeInForce,omitempty"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

type PositionSide string

const (
	Long  PositionSide = "long"
	Short PositionSide = "short"
)

// Position is an open lot for one symbol. Quantity is always positive; the
// direction lives in Side. MarketValue is signed by side (a short is a
// liability) so that equity = cash + sum(MarketValue) holds for any book.
type Position struct {
	Symbol          string       `json:"symbol"`
	Quantity        float64      `json:"quantity"`
	AvgPrice        float64      `json:"averagePrice"`
	CurrentPrice    float64      `json:"currentPrice"`
	MarketValue     float64      `json:"marketValue"`
	UnrealizedPL    float64      `json:"unrealizedPnL"`
	UnrealizedPLPct float64      `json:"unrealizedPnLPercent"`
	Side            PositionSide `json:"side"`
}

// AccountInfo is a pure read projection, derived from cash plus live position
// values on every query. It is never stored.
type AccountInfo struct {
	Balance         float64 `json:"balance"`
	BuyingPower     float64 `json:"buyingPower"`
	Equity          float64 `json:"equity"`
	MarginUsed      float64 `json:"marginUsed"`
	MarginAvailable float64 `json:"marginAvailable"`
	Currency        string  `json:"currency"`
}

type Quote struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	Bid           float64   `json:"bid"`
	Ask           float64   `json:"ask"`
	BidSize       float64   `json:"bidSize"`
	AskSize       float64   `json:"askSize"`
	Volume        float64   `json:"volume"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"changePercent"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	Open          float64   `json:"open"`
	PreviousClose float64   `json:"previousClose"`
	Time          time.Time `json:"timestamp"`
}

func (q Quote) Mid() float64 {
	return (q.Bid + q.Ask) / 2
}

func (q Quote) Spread() float64 {
	return q.Ask - q.Bid
}
