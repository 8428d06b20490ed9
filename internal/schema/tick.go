package schema

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tick is a single market data snapshot for one symbol: the last trade plus
// the top of book. Bid <= ask is a data source concern and is not checked.
type Tick struct {
	Symbol     string          `json:"symbol"`
	Time       time.Time       `json:"time"`
	LastPrice  decimal.Decimal `json:"lastPrice"`
	LastVolume decimal.Decimal `json:"lastVolume"`
	BidPrice   decimal.Decimal `json:"bidPrice"`
	BidVolume  decimal.Decimal `json:"bidVolume"`
	AskPrice   decimal.Decimal `json:"askPrice"`
	AskVolume  decimal.Decimal `json:"askVolume"`
}

// Mid returns the mid quote, falling back to the last price when one side
// of the book is empty.
func (t Tick) Mid() decimal.Decimal {
	if t.BidPrice.IsPositive() && t.AskPrice.IsPositive() {
		return t.BidPrice.Add(t.AskPrice).Div(decimal.NewFromInt(2))
	}
	return t.LastPrice
}
