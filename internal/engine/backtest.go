package engine

import (
	"context"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"tradecore/internal/feed"
	"tradecore/internal/schema"
	"tradecore/pkg/exception"
)

// Report summarizes a backtest run.
type Report struct {
	Ticks int
	// Orders lists accepted orders in routing order.
	Orders  []OrderAck
	Cancels int
	Signals map[string]int
	// StrategyErrors lists isolated strategy failures in tick order.
	StrategyErrors []*StrategyError
	Elapsed        time.Duration
}

// OrdersOf returns the accepted orders of one strategy.
func (r Report) OrdersOf(strategy string) []OrderAck {
	var out []OrderAck
	for _, ack := range r.Orders {
		if ack.Strategy == strategy {
			out = append(out, ack)
		}
	}
	return out
}

// RunBacktest replays src through the engine strictly sequentially: every
// tick is dispatched and its intents routed before the next tick. The first
// routing failure stops the run and is returned as a *RoutingError together
// with the report up to that point. Strategy failures never stop the run.
func (e *Engine) RunBacktest(ctx context.Context, src feed.Source) (Report, error) {
	if src == nil {
		return Report{}, errors.Wrap(exception.ErrInvalidArgument, "nil backtest source")
	}

	start := time.Now()
	report := Report{Signals: make(map[string]int)}
	index := -1

	err := src.Replay(ctx, func(tick schema.Tick) error {
		index++
		d := e.OnTick(ctx, tick)
		report.Ticks++
		for _, name := range d.Names() {
			if d.Decisions[name].Routable() {
				report.Signals[name]++
			}
		}
		report.StrategyErrors = append(report.StrategyErrors, d.Failures()...)

		return e.routeDispatch(ctx, index, d, nil, func(ack OrderAck) {
			report.Orders = append(report.Orders, ack)
		}, func() {
			report.Cancels++
		})
	})
	report.Elapsed = time.Since(start)

	if err != nil {
		logs.Errorf("engine %s: backtest stopped at tick %d, err: %+v", e.name, index, err)
		return report, err
	}
	logs.Infof("engine %s: backtest done, ticks: %d, orders: %d, cancels: %d, strategy errors: %d, elapsed: %s",
		e.name, report.Ticks, len(report.Orders), report.Cancels, len(report.StrategyErrors), report.Elapsed)
	return report, nil
}
