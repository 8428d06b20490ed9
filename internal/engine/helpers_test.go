package engine

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"tradecore/internal/feed"
	"tradecore/internal/gateway"
	"tradecore/internal/schema"
	"tradecore/internal/strategy"
)

var (
	start      = time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	errBoom    = errors.New("boom")
	aaplPrice  = decimal.NewFromFloat(150.0)
	aaplVolume = decimal.NewFromFloat(1000.0)
)

func aaplTicks(n int) feed.Slice {
	out := make(feed.Slice, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, schema.Tick{
			Symbol:     "AAPL",
			Time:       start.Add(time.Duration(i) * time.Second),
			LastPrice:  aaplPrice,
			LastVolume: aaplVolume,
			BidPrice:   decimal.NewFromFloat(149.5),
			BidVolume:  decimal.NewFromInt(500),
			AskPrice:   decimal.NewFromFloat(150.5),
			AskVolume:  decimal.NewFromInt(600),
		})
	}
	return out
}

func simGateway(cfg gateway.SimConfig) *gateway.Sim {
	if cfg.Clock == nil {
		cfg.Clock = feed.NewStepClock(start)
	}
	return gateway.NewSim(cfg)
}

// counter emits nothing but counts the ticks it has seen.
type counter struct {
	seen int
}

func (c *counter) OnTick(schema.Tick) (schema.Signal, error) {
	c.seen++
	return schema.NoAction(), nil
}

// everyN buys on every n-th tick it has seen.
type everyN struct {
	n    int
	seen int
}

func (s *everyN) OnTick(tick schema.Tick) (schema.Signal, error) {
	s.seen++
	if s.seen%s.n != 0 {
		return schema.NoAction(), nil
	}
	return schema.NewOrder(schema.Trade{
		Symbol: tick.Symbol, Price: tick.LastPrice, Volume: tick.LastVolume, Direction: schema.Buy, Time: tick.Time,
	}), nil
}

func failing() strategy.Strategy {
	return strategy.Func(func(schema.Tick) (schema.Signal, error) {
		return schema.NoAction(), errBoom
	})
}

func panicking() strategy.Strategy {
	return strategy.Func(func(schema.Tick) (schema.Signal, error) {
		panic("index out of range")
	})
}

func buyer() strategy.Strategy {
	return strategy.NewMirror("AAPL", schema.Buy, decimal.Zero)
}
