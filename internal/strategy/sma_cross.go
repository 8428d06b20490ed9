package strategy

import (
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"

	"tradecore/internal/schema"
	"tradecore/pkg/exception"
)

const KindSMACross = "sma_cross"

var defaultSMAVolume = decimal.NewFromInt(1)

// SMACross trades short/long simple moving average crossovers on one symbol:
// Buy when the short average crosses above the long one, Sell when it
// crosses below. Prices are kept in a fixed size ring buffer.
type SMACross struct {
	symbol      string
	shortPeriod int
	longPeriod  int
	volume      decimal.Decimal

	prices []decimal.Decimal
	head   int // next write slot; the oldest price once the buffer is full
	count  int
	sum    decimal.Decimal

	warm      bool
	prevShort decimal.Decimal
	prevLong  decimal.Decimal
}

// NewSMACross creates the strategy. shortPeriod must be positive and less
// than longPeriod.
func NewSMACross(symbol string, shortPeriod, longPeriod int, volume decimal.Decimal) (*SMACross, error) {
	if symbol == "" {
		return nil, errors.Wrap(exception.ErrInvalidStrategy, "sma_cross: symbol is empty")
	}
	if shortPeriod <= 0 || shortPeriod >= longPeriod {
		return nil, errors.Wrapf(exception.ErrInvalidStrategy, "sma_cross: need 0 < short < long, got %d/%d", shortPeriod, longPeriod)
	}
	if !volume.IsPositive() {
		return nil, errors.Wrapf(exception.ErrInvalidStrategy, "sma_cross: volume %s must be positive", volume)
	}
	return &SMACross{
		symbol:      symbol,
		shortPeriod: shortPeriod,
		longPeriod:  longPeriod,
		volume:      volume,
		prices:      make([]decimal.Decimal, longPeriod),
	}, nil
}

func newSMACrossFromSpec(spec Spec) (Strategy, error) {
	short, err := spec.Int("short", 5)
	if err != nil {
		return nil, err
	}
	long, err := spec.Int("long", 20)
	if err != nil {
		return nil, err
	}
	volume, err := spec.Decimal("volume", defaultSMAVolume)
	if err != nil {
		return nil, err
	}
	return NewSMACross(spec.Symbol, short, long, volume)
}

func (s *SMACross) OnTick(tick schema.Tick) (schema.Signal, error) {
	if tick.Symbol != s.symbol {
		return schema.NoAction(), nil
	}
	if !tick.LastPrice.IsPositive() {
		return schema.NoAction(), nil
	}

	if s.count == s.longPeriod {
		s.sum = s.sum.Sub(s.prices[s.head])
	}
	s.prices[s.head] = tick.LastPrice
	s.sum = s.sum.Add(tick.LastPrice)
	s.head = (s.head + 1) % s.longPeriod
	if s.count < s.longPeriod {
		s.count++
	}
	if s.count < s.longPeriod {
		return schema.NoAction(), nil
	}

	currLong := s.sum.Div(decimal.NewFromInt(int64(s.longPeriod)))
	currShort := s.shortAverage()
	defer func() {
		s.prevShort, s.prevLong, s.warm = currShort, currLong, true
	}()

	if !s.warm {
		return schema.NoAction(), nil
	}

	var direction schema.Direction
	switch {
	case s.prevShort.LessThanOrEqual(s.prevLong) && currShort.GreaterThan(currLong):
		direction = schema.Buy
	case s.prevShort.GreaterThanOrEqual(s.prevLong) && currShort.LessThan(currLong):
		direction = schema.Sell
	default:
		return schema.NoAction(), nil
	}

	return schema.NewOrder(schema.Trade{
		Symbol:    s.symbol,
		Price:     tick.LastPrice,
		Volume:    s.volume,
		Direction: direction,
		Time:      tick.Time,
	}), nil
}

func (s *SMACross) shortAverage() decimal.Decimal {
	sum := decimal.Zero
	idx := s.head
	for i := 0; i < s.shortPeriod; i++ {
		idx--
		if idx < 0 {
			idx = s.longPeriod - 1
		}
		sum = sum.Add(s.prices[idx])
	}
	return sum.Div(decimal.NewFromInt(int64(s.shortPeriod)))
}
