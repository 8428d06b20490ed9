package state

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradecore/internal/schema"
)

func d(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

func TestPositionBookApplyFill(t *testing.T) {
	book := NewPositionBook(d(10_000))

	pos := book.ApplyFill("AAPL", schema.OrderSideBuy, d(100), d(10))
	assert.True(t, pos.Equal(d(10)), "pos=%s", pos)
	assert.True(t, book.Cash().Equal(d(9_000)), "cash=%s", book.Cash())

	pos = book.ApplyFill("AAPL", schema.OrderSideBuy, d(110), d(10))
	assert.True(t, pos.Equal(d(20)))

	positions := book.Positions()
	require.Len(t, positions, 1)
	assert.True(t, positions[0].AvgPrice.Equal(d(105)), "avg=%s", positions[0].AvgPrice)

	pos = book.ApplyFill("AAPL", schema.OrderSideSell, d(120), d(20))
	assert.True(t, pos.IsZero())
	assert.Empty(t, book.Positions())
	assert.True(t, book.Cash().Equal(d(10_300)), "cash=%s", book.Cash())
	assert.Equal(t, 1, book.Count())
}

func TestPositionBookFlip(t *testing.T) {
	book := NewPositionBook(decimal.Zero)
	book.ApplyFill("ETH", schema.OrderSideBuy, d(10), d(1))
	book.ApplyFill("ETH", schema.OrderSideSell, d(12), d(3))

	positions := book.Positions()
	require.Len(t, positions, 1)
	assert.True(t, positions[0].Volume.Equal(d(-2)))
	assert.True(t, positions[0].AvgPrice.Equal(d(12)))
}

func TestPositionBookEquity(t *testing.T) {
	book := NewPositionBook(d(1_000))
	book.ApplyFill("AAPL", schema.OrderSideBuy, d(100), d(5))
	book.Mark("AAPL", d(110))

	assert.True(t, book.Equity().Equal(d(1_050)), "equity=%s", book.Equity())
	assert.True(t, book.Position("MSFT").IsZero())
}

func TestPositionBookUnknownSide(t *testing.T) {
	book := NewPositionBook(d(1))
	pos := book.ApplyFill("AAPL", 0, d(100), d(5))
	assert.True(t, pos.IsZero())
	assert.True(t, book.Cash().Equal(d(1)))
}
