package state

import (
	"sort"

	"github.com/shopspring/decimal"

	"tradecore/internal/schema"
)

type position struct {
	volume   decimal.Decimal
	avgPrice decimal.Decimal
}

// PositionBook updates positions and cash based on fills.
type PositionBook struct {
	cash      decimal.Decimal
	positions map[string]*position
	marks     map[string]decimal.Decimal
}

// NewPositionBook creates a book holding the given starting cash.
func NewPositionBook(cash decimal.Decimal) *PositionBook {
	return &PositionBook{
		cash:      cash,
		positions: make(map[string]*position),
		marks:     make(map[string]decimal.Decimal),
	}
}

// ApplyFill books a fill and returns the new signed position volume.
func (b *PositionBook) ApplyFill(symbol string, side schema.OrderSide, price, volume decimal.Decimal) decimal.Decimal {
	p, ok := b.positions[symbol]
	if !ok {
		p = &position{}
		b.positions[symbol] = p
	}

	var signed decimal.Decimal
	switch side {
	case schema.OrderSideBuy:
		signed = volume
	case schema.OrderSideSell:
		signed = volume.Neg()
	default:
		return p.volume
	}

	next := p.volume.Add(signed)
	switch {
	case next.IsZero():
		p.avgPrice = decimal.Zero
	case p.volume.IsZero() || p.volume.Sign() != next.Sign():
		// opened or flipped through zero
		p.avgPrice = price
	case p.volume.Sign() == signed.Sign():
		cost := p.avgPrice.Mul(p.volume.Abs()).Add(price.Mul(volume))
		p.avgPrice = cost.Div(next.Abs())
	}
	p.volume = next

	b.cash = b.cash.Sub(price.Mul(signed))
	b.marks[symbol] = price
	return next
}

// Mark records the latest price of a symbol for equity valuation.
func (b *PositionBook) Mark(symbol string, price decimal.Decimal) {
	if price.IsPositive() {
		b.marks[symbol] = price
	}
}

// Position returns the signed position volume of a symbol.
func (b *PositionBook) Position(symbol string) decimal.Decimal {
	if p, ok := b.positions[symbol]; ok {
		return p.volume
	}
	return decimal.Zero
}

// Cash returns the current cash balance.
func (b *PositionBook) Cash() decimal.Decimal {
	return b.cash
}

// Equity returns cash plus every position marked at its latest price.
func (b *PositionBook) Equity() decimal.Decimal {
	equity := b.cash
	for symbol, p := range b.positions {
		equity = equity.Add(p.volume.Mul(b.marks[symbol]))
	}
	return equity
}

// Positions returns non-flat positions sorted by symbol.
func (b *PositionBook) Positions() []schema.Position {
	out := make([]schema.Position, 0, len(b.positions))
	for symbol, p := range b.positions {
		if p.volume.IsZero() {
			continue
		}
		out = append(out, schema.Position{
			Symbol:   symbol,
			Volume:   p.volume,
			AvgPrice: p.avgPrice,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

// Count returns the number of tracked symbols.
func (b *PositionBook) Count() int {
	return len(b.positions)
}
