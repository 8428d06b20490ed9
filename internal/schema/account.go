package schema

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is a point-in-time account snapshot reported by a gateway.
type Account struct {
	Gateway string
	Cash    decimal.Decimal
	Equity  decimal.Decimal
	Time    time.Time
}

// Position is the signed net position of one symbol.
type Position struct {
	Symbol   string
	Volume   decimal.Decimal
	AvgPrice decimal.Decimal
}
