package app

import (
	"context"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"tradecore/internal/chaos"
	"tradecore/internal/config"
	"tradecore/internal/engine"
	"tradecore/internal/feed"
	"tradecore/internal/gateway"
	"tradecore/internal/recorder"
	"tradecore/internal/schema"
	"tradecore/internal/strategy"
	"tradecore/pkg/exception"
)

const ticksJSONL = `{"symbol":"AAPL","time":"2024-01-02T09:30:00Z","lastPrice":"150","lastVolume":"1000"}
{"symbol":"MSFT","time":"2024-01-02T09:30:01Z","lastPrice":"410","lastVolume":"20"}
{"symbol":"AAPL","time":"2024-01-02T09:30:02Z","lastPrice":"151","lastVolume":"500"}
`

func baseConfig(t *testing.T) config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ticks.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(ticksJSONL), 0o644))

	cfg := config.Default()
	cfg.Engine.Name = "bt"
	cfg.Gateway.Sim.TickInterval = time.Millisecond
	cfg.Strategies = []strategy.Spec{
		{Name: "follow", Kind: strategy.KindMirror, Symbol: "AAPL", Params: map[string]string{"volume": "10"}},
		{Name: "cross", Kind: strategy.KindSMACross, Symbol: "AAPL", Params: map[string]string{"short": "2", "long": "3"}},
	}
	cfg.Backtest = config.SourceConfig{Kind: config.SourceJSONLines, Path: path}
	return cfg
}

func dryRunDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(postgres.New(postgres.Config{DSN: "postgres://localhost:5432/journal?sslmode=disable"}), &gorm.Config{
		DryRun:                 true,
		DisableAutomaticPing:   true,
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	return db
}

func TestNewAndBacktest(t *testing.T) {
	cfg := baseConfig(t)
	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, []string{"cross", "follow"}, a.Engine().Names())
	assert.Nil(t, a.Journal())

	report, err := a.Backtest(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Ticks)
	require.Len(t, report.OrdersOf("follow"), 2)
	assert.Equal(t, "10", report.OrdersOf("follow")[0].Request.Volume.String())
	assert.Equal(t, uint64(3), a.Metrics().Snapshot().Ticks)
}

func TestNewErrors(t *testing.T) {
	testCases := []struct {
		desc   string
		mutate func(*config.Config)
		want   error
	}{
		{
			desc:   "unknown strategy kind",
			mutate: func(c *config.Config) { c.Strategies[0].Kind = "martingale" },
			want:   exception.ErrUnknownStrategyKind,
		},
		{
			desc:   "bad strategy params",
			mutate: func(c *config.Config) { c.Strategies[1].Params["long"] = "x" },
			want:   exception.ErrInvalidStrategy,
		},
		{
			desc:   "unknown gateway",
			mutate: func(c *config.Config) { c.Gateway.Kind = "fix" },
			want:   exception.ErrUnknownGatewayKind,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			cfg := baseConfig(t)
			tc.mutate(&cfg)
			_, err := New(context.Background(), cfg)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestBuildGateway(t *testing.T) {
	gw, err := BuildGateway(config.GatewayConfig{Kind: config.GatewaySim}, nil)
	require.NoError(t, err)
	assert.IsType(t, &gateway.Sim{}, gw)

	gw, err = BuildGateway(config.GatewayConfig{Kind: config.GatewaySim, Guard: gateway.GuardConfig{Timeout: time.Second}}, nil)
	require.NoError(t, err)
	guard, ok := gw.(*gateway.Guard)
	require.True(t, ok)
	assert.IsType(t, &gateway.Sim{}, guard.Unwrap())

	base := gateway.NewSim(gateway.SimConfig{Name: "PAPER"})
	gw, err = BuildGateway(config.GatewayConfig{Kind: "other"}, base)
	require.NoError(t, err)
	assert.Equal(t, "PAPER", gw.Name())
}

func TestBuildSource(t *testing.T) {
	cfg := baseConfig(t)

	src, err := BuildSource(cfg.Backtest, nil)
	require.NoError(t, err)
	var n int
	require.NoError(t, src.Replay(context.Background(), func(schema.Tick) error {
		n++
		return nil
	}))
	assert.Equal(t, 3, n)

	withChaos := cfg.Backtest
	withChaos.Chaos = chaos.Config{Seed: 1, DropRate: 1}
	src, err = BuildSource(withChaos, nil)
	require.NoError(t, err)
	assert.IsType(t, &chaos.Source{}, src)

	_, err = BuildSource(config.SourceConfig{Kind: "csv"}, nil)
	require.ErrorIs(t, err, exception.ErrUnknownSourceKind)
}

func TestLiveRecordsThenReplaysTape(t *testing.T) {
	dir := t.TempDir()
	cfg := baseConfig(t)
	cfg.Gateway.Sim.Symbols = []string{"AAPL"}
	cfg.Live = config.LiveConfig{Symbols: []string{"AAPL"}, MaxTicks: 4}
	cfg.Recorder = recorder.DefaultConfig(dir)

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, a.Live(ctx))
	assert.Equal(t, uint64(4), a.Metrics().Snapshot().Ticks)

	tape := config.SourceConfig{Kind: config.SourceTape, Path: dir}
	replay := baseConfig(t)
	replay.Backtest = tape
	b, err := New(context.Background(), replay)
	require.NoError(t, err)
	defer b.Close()

	report, err := b.Backtest(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 4, report.Ticks)
	assert.Len(t, report.OrdersOf("follow"), 4)
}

func TestRiskGate(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Risk.MaxPosition = decimal.NewFromInt(15)

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()
	require.NotNil(t, a.Risk())

	report, err := a.Backtest(context.Background(), nil)
	require.ErrorIs(t, err, exception.ErrRiskDenied)
	assert.Len(t, report.OrdersOf("follow"), 1)
	assert.Equal(t, "10", a.Risk().Position("AAPL").String())
}

func TestJournalHook(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Journal.AutoMigrate = false

	var acks []engine.OrderAck
	a, err := New(context.Background(), cfg,
		WithDB(dryRunDB(t)),
		WithTradeHook(engine.TradeHookFunc(func(_ context.Context, ack engine.OrderAck) error {
			acks = append(acks, ack)
			return nil
		})),
	)
	require.NoError(t, err)
	defer a.Close()
	require.NotNil(t, a.Journal())

	report, err := a.Backtest(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, acks, len(report.Orders))
}

func TestMetricsHandler(t *testing.T) {
	a, err := New(context.Background(), baseConfig(t), WithGateway(gateway.NewSim(gateway.SimConfig{Clock: feed.NewStepClock(time.Time{})})))
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Backtest(context.Background(), nil)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	a.MetricsHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `tradecore_ticks_total{engine="bt"} 3`)
	assert.Contains(t, string(body), "go_goroutines")
}
