package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradecore/internal/feed"
	"tradecore/internal/gateway"
	"tradecore/internal/schema"
	"tradecore/internal/strategy"
	"tradecore/pkg/exception"
)

func TestBacktestAcceptsEveryOrder(t *testing.T) {
	e := New("bt", simGateway(gateway.SimConfig{RandomIDs: true}))
	require.NoError(t, e.RegisterStrategy("buyer", buyer()))

	report, err := e.RunBacktest(context.Background(), aaplTicks(2))
	require.NoError(t, err)
	assert.Equal(t, 2, report.Ticks)
	require.Len(t, report.Orders, 2)

	ids := map[string]struct{}{}
	for _, ack := range report.Orders {
		assert.Equal(t, "AAPL", ack.Request.Symbol)
		assert.Equal(t, schema.OrderSideBuy, ack.Request.Side)
		assert.Equal(t, schema.Buy, ack.Trade.Direction)
		assert.True(t, ack.Request.Price.Equal(decimal.NewFromFloat(150.0)), "price=%s", ack.Request.Price)
		assert.True(t, ack.Request.Volume.Equal(decimal.NewFromFloat(1000.0)), "volume=%s", ack.Request.Volume)
		assert.NotEmpty(t, ack.OrderID)
		ids[ack.OrderID] = struct{}{}
	}
	assert.Len(t, ids, 2)
	assert.Equal(t, 2, report.Signals["buyer"])
}

func TestBacktestRejectAllStopsAfterFirstTick(t *testing.T) {
	e := New("bt", simGateway(gateway.SimConfig{RejectAll: true}))
	watcher := &counter{}
	require.NoError(t, e.RegisterStrategy("buyer", buyer()))
	require.NoError(t, e.RegisterStrategy("watcher", watcher))

	report, err := e.RunBacktest(context.Background(), aaplTicks(2))
	require.ErrorIs(t, err, exception.ErrOrderRejected)

	var re *RoutingError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "buyer", re.Strategy)
	assert.Equal(t, 0, re.TickIndex)
	require.NotNil(t, re.Trade)
	assert.Equal(t, "buyer-1", re.Trade.OrderID)

	var reject *gateway.RejectError
	require.True(t, errors.As(err, &reject))
	assert.NotEmpty(t, reject.Reason)
	assert.Equal(t, "AAPL", reject.Request.Symbol)

	assert.Equal(t, 1, report.Ticks)
	assert.Empty(t, report.Orders)
	assert.Equal(t, 1, watcher.seen, "second tick must not be dispatched")
}

func TestBacktestFailFastAtKthOrder(t *testing.T) {
	const k = 4
	hooked := 0
	e := New("bt", simGateway(gateway.SimConfig{RejectNth: k}),
		WithTradeHook(TradeHookFunc(func(context.Context, OrderAck) error {
			hooked++
			return nil
		})),
	)
	require.NoError(t, e.RegisterStrategy("a", buyer()))
	require.NoError(t, e.RegisterStrategy("b", buyer()))
	watcher := &counter{}
	require.NoError(t, e.RegisterStrategy("z", watcher))

	report, err := e.RunBacktest(context.Background(), aaplTicks(10))
	require.ErrorIs(t, err, exception.ErrOrderRejected)

	var re *RoutingError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, 1, re.TickIndex, "order #4 is the second order of the second tick")
	assert.Equal(t, "b", re.Strategy)

	assert.Equal(t, 2, report.Ticks)
	assert.Len(t, report.Orders, k-1)
	assert.Equal(t, k-1, hooked)
	assert.Equal(t, 2, watcher.seen)
}

func TestBacktestDeterminism(t *testing.T) {
	run := func() Report {
		e := New("bt", simGateway(gateway.SimConfig{}))
		require.NoError(t, e.RegisterStrategy("every2", &everyN{n: 2}))
		require.NoError(t, e.RegisterStrategy("mirror", buyer()))
		sma, err := strategy.NewSMACross("AAPL", 2, 3, decimal.NewFromInt(1))
		require.NoError(t, err)
		require.NoError(t, e.RegisterStrategy("sma", sma))

		src := make(feed.Slice, 0, 12)
		for i, tick := range aaplTicks(12) {
			tick.LastPrice = tick.LastPrice.Add(decimal.NewFromInt(int64(i%5 - 2)))
			src = append(src, tick)
		}
		report, err := e.RunBacktest(context.Background(), src)
		require.NoError(t, err)
		return report
	}

	first, second := run(), run()
	require.NotEmpty(t, first.Orders)
	assert.Equal(t, first.Orders, second.Orders)
	assert.Equal(t, first.Signals, second.Signals)
}

func TestBacktestStrategyErrorsDoNotAbort(t *testing.T) {
	e := New("bt", nil)
	require.NoError(t, e.RegisterStrategy("buyer", buyer()))
	require.NoError(t, e.RegisterStrategy("panicky", panicking()))

	report, err := e.RunBacktest(context.Background(), aaplTicks(3))
	require.NoError(t, err)
	assert.Len(t, report.Orders, 3)
	require.Len(t, report.StrategyErrors, 3)
	assert.True(t, report.StrategyErrors[0].Panicked())
	assert.Len(t, report.OrdersOf("buyer"), 3)
	assert.Empty(t, report.OrdersOf("panicky"))
}

func TestBacktestRequoteRoutesCancels(t *testing.T) {
	sim := simGateway(gateway.SimConfig{})
	e := New("bt", sim)
	rq, err := strategy.NewRequote("mm", "AAPL", schema.Buy, decimal.NewFromInt(10))
	require.NoError(t, err)
	require.NoError(t, e.RegisterStrategy("mm", rq))

	report, err := e.RunBacktest(context.Background(), aaplTicks(3))
	require.NoError(t, err)
	require.Len(t, report.Orders, 3)
	assert.Equal(t, 2, report.Cancels)

	first, ok := sim.Order(report.Orders[0].OrderID)
	require.True(t, ok)
	assert.Equal(t, gateway.OrderStateCanceled, first.State)
	last, ok := sim.Order(report.Orders[2].OrderID)
	require.True(t, ok)
	assert.Equal(t, gateway.OrderStateAcked, last.State)
}

func TestBacktestCancelFailureStops(t *testing.T) {
	e := New("bt", nil)
	require.NoError(t, e.RegisterStrategy("ghost", strategy.Func(func(schema.Tick) (schema.Signal, error) {
		return schema.Cancel(schema.CancelRequest{ClientOrderID: "never-sent"}), nil
	})))

	report, err := e.RunBacktest(context.Background(), aaplTicks(3))
	require.ErrorIs(t, err, exception.ErrOrderNotFound)
	var re *RoutingError
	require.True(t, errors.As(err, &re))
	require.NotNil(t, re.Cancel)
	assert.Nil(t, re.Trade)
	assert.Equal(t, 1, report.Ticks)
}

func TestBacktestNilSource(t *testing.T) {
	_, err := New("bt", nil).RunBacktest(context.Background(), nil)
	require.ErrorIs(t, err, exception.ErrInvalidArgument)
}
