package schema

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade is an order intent produced by a strategy, not a fill.
//
// OrderType and TimeInForce are optional; the engine falls back to its
// translation defaults when they are zero.
type Trade struct {
	Symbol      string
	OrderID     string
	Price       decimal.Decimal
	Volume      decimal.Decimal
	Direction   Direction
	Time        time.Time
	OrderType   OrderType
	TimeInForce TimeInForce
	StopPrice   decimal.NullDecimal
}

// OrderRequest is what the engine hands to a gateway.
type OrderRequest struct {
	Symbol        string
	ClientOrderID string
	Price         decimal.Decimal
	Volume        decimal.Decimal
	Side          OrderSide
	Type          OrderType
	Gateway       string
	TimeInForce   TimeInForce
	StopPrice     decimal.NullDecimal
}

// CancelRequest asks a gateway to cancel a resting order. OrderID is
// required at the gateway boundary; the engine may resolve it from
// ClientOrderID before routing.
type CancelRequest struct {
	Symbol        string
	ClientOrderID string
	OrderID       string
	Gateway       string
}
