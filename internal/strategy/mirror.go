package strategy

import (
	"github.com/shopspring/decimal"

	"tradecore/internal/schema"
)

const KindMirror = "mirror"

// Mirror emits one order per tick of its symbol at the tick's last price and
// volume. An empty symbol matches every tick.
type Mirror struct {
	symbol    string
	direction schema.Direction
	volume    decimal.Decimal
}

// NewMirror creates a mirror strategy. A zero volume mirrors the tick volume.
func NewMirror(symbol string, direction schema.Direction, volume decimal.Decimal) *Mirror {
	if !direction.IsAvailable() {
		direction = schema.Buy
	}
	return &Mirror{symbol: symbol, direction: direction, volume: volume}
}

func newMirrorFromSpec(spec Spec) (Strategy, error) {
	direction, err := spec.Direction("direction", schema.Buy)
	if err != nil {
		return nil, err
	}
	volume, err := spec.Decimal("volume", decimal.Zero)
	if err != nil {
		return nil, err
	}
	return NewMirror(spec.Symbol, direction, volume), nil
}

func (s *Mirror) OnTick(tick schema.Tick) (schema.Signal, error) {
	if s.symbol != "" && tick.Symbol != s.symbol {
		return schema.NoAction(), nil
	}
	volume := s.volume
	if !volume.IsPositive() {
		volume = tick.LastVolume
	}
	return schema.NewOrder(schema.Trade{
		Symbol:    tick.Symbol,
		Price:     tick.LastPrice,
		Volume:    volume,
		Direction: s.direction,
		Time:      tick.Time,
	}), nil
}
