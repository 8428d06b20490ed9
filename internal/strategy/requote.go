package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"

	"tradecore/internal/schema"
	"tradecore/pkg/exception"
)

const KindRequote = "requote"

// Requote keeps one resting limit order at the best bid (Buy) or best ask
// (Sell). The first quote is a new order; every later quote replaces the
// previous one by client order id.
type Requote struct {
	symbol    string
	direction schema.Direction
	volume    decimal.Decimal
	prefix    string

	seq  int
	last string
}

// NewRequote creates the strategy. prefix scopes the client order ids.
func NewRequote(prefix, symbol string, direction schema.Direction, volume decimal.Decimal) (*Requote, error) {
	if symbol == "" {
		return nil, errors.Wrap(exception.ErrInvalidStrategy, "requote: symbol is empty")
	}
	if !direction.IsAvailable() {
		return nil, errors.Wrap(exception.ErrInvalidStrategy, "requote: direction is unknown")
	}
	if !volume.IsPositive() {
		return nil, errors.Wrapf(exception.ErrInvalidStrategy, "requote: volume %s must be positive", volume)
	}
	if prefix == "" {
		prefix = KindRequote
	}
	return &Requote{symbol: symbol, direction: direction, volume: volume, prefix: prefix}, nil
}

func newRequoteFromSpec(spec Spec) (Strategy, error) {
	direction, err := spec.Direction("direction", schema.Buy)
	if err != nil {
		return nil, err
	}
	volume, err := spec.Decimal("volume", decimal.NewFromInt(1))
	if err != nil {
		return nil, err
	}
	return NewRequote(spec.Name, spec.Symbol, direction, volume)
}

func (s *Requote) OnTick(tick schema.Tick) (schema.Signal, error) {
	if tick.Symbol != s.symbol {
		return schema.NoAction(), nil
	}

	price := tick.BidPrice
	if s.direction == schema.Sell {
		price = tick.AskPrice
	}
	if !price.IsPositive() {
		return schema.NoAction(), nil
	}

	s.seq++
	trade := schema.Trade{
		Symbol:      s.symbol,
		OrderID:     fmt.Sprintf("%s-q%d", s.prefix, s.seq),
		Price:       price,
		Volume:      s.volume,
		Direction:   s.direction,
		Time:        tick.Time,
		OrderType:   schema.OrderTypeLimit,
		TimeInForce: schema.TimeInForceGTC,
	}

	prev := s.last
	s.last = trade.OrderID
	if prev == "" {
		return schema.NewOrder(trade), nil
	}
	return schema.Replace(schema.CancelRequest{Symbol: s.symbol, ClientOrderID: prev}, trade), nil
}
