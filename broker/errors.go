package broker

import "errors"

// Error taxonomy shared by the engine and its adapters. Every failure is a
// typed result; the engine never panics on bad input.
var (
	ErrInvalidOrder     = errors.New("invalid order")
	ErrKillSwitchActive = errors.New("kill switch active")
	ErrQuoteUnavailable = errors.New("quote unavailable")
	ErrQuoteTimeout     = errors.New("quote timeout")
	ErrInvalidConfig    = errors.New("invalid config")
	ErrOrderNotFound    = errors.New("order not found")
	ErrSymbolNotFound   = errors.New("symbol not found")
)

// Rejection reasons recorded on rejected orders.
const (
	ReasonInvalidOrder     = "InvalidOrder"
	ReasonKillSwitchActive = "KillSwitchActive"
	ReasonQuoteUnavailable = "QuoteUnavailable"
	ReasonQuoteTimeout     = "QuoteTimeout"
)
