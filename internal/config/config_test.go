package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradecore/pkg/exception"
)

const sampleYAML = `
engine:
  name: desk-a
  parallel_dispatch: true
gateway:
  kind: sim
  sim:
    symbols: [AAPL, MSFT]
    reject_nth: 3
    cash: "1000000"
    latency: 5ms
  guard:
    timeout: 250ms
    order_rate: 50
    order_burst: 5
strategies:
  - name: follow
    kind: mirror
    symbol: AAPL
    params:
      direction: buy
      volume: "10"
  - name: cross
    kind: sma_cross
    symbol: AAPL
    params:
      short: "3"
      long: "8"
backtest:
  kind: jsonl
  path: testdata/aapl.jsonl
  speed: 2
  chaos:
    seed: 9
    drop_rate: 0.1
risk:
  max_order_volume: "5000"
  order_rate_limit: 10
  order_rate_window: 1s
live:
  symbols: [AAPL]
  max_ticks: 100
recorder:
  dir: /tmp/tapes
metrics:
  addr: ":9090"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tradecore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "desk-a", cfg.Engine.Name)
	assert.True(t, cfg.Engine.ParallelDispatch)
	assert.Equal(t, []string{"AAPL", "MSFT"}, cfg.Gateway.Sim.Symbols)
	assert.Equal(t, 3, cfg.Gateway.Sim.RejectNth)
	assert.True(t, decimal.NewFromInt(1_000_000).Equal(cfg.Gateway.Sim.Cash))
	assert.Equal(t, 5*time.Millisecond, cfg.Gateway.Sim.Latency)
	assert.Equal(t, 250*time.Millisecond, cfg.Gateway.Guard.Timeout)
	assert.Equal(t, 50.0, cfg.Gateway.Guard.OrderRate)

	require.Len(t, cfg.Strategies, 2)
	assert.Equal(t, "mirror", cfg.Strategies[0].Kind)
	assert.Equal(t, "10", cfg.Strategies[0].Params["volume"])

	assert.Equal(t, SourceJSONLines, cfg.Backtest.Kind)
	assert.Equal(t, 2.0, cfg.Backtest.Speed)
	assert.Equal(t, int64(9), cfg.Backtest.Chaos.Seed)
	assert.Equal(t, 100, cfg.Live.MaxTicks)
	assert.True(t, decimal.NewFromInt(5000).Equal(cfg.Risk.MaxOrderVolume))
	assert.Equal(t, time.Second, cfg.Risk.OrderRateWindow)
	assert.True(t, cfg.Risk.Enabled())
	assert.Equal(t, "/tmp/tapes", cfg.Recorder.Dir)
	assert.Equal(t, ":9090", cfg.Metrics.Addr)

	gw := cfg.Gateway.Sim.Gateway()
	assert.Equal(t, cfg.Gateway.Sim.Symbols, gw.Symbols)
	assert.True(t, cfg.Gateway.Sim.Cash.Equal(gw.Cash))
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "engine", cfg.Engine.Name)
	assert.Equal(t, GatewaySim, cfg.Gateway.Kind)
	assert.Equal(t, 100*time.Millisecond, cfg.Live.ReadBackoff)
	assert.Empty(t, cfg.Recorder.Dir)
	assert.Equal(t, "ticks", cfg.Recorder.FilePrefix)
	assert.Equal(t, 5432, cfg.Journal.Postgres.Port)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("TRADECORE_ENGINE_NAME", "from-env")
	t.Setenv("TRADECORE_GATEWAY_SIM_SYMBOLS", "TSLA,NVDA")
	t.Setenv("TRADECORE_GATEWAY_GUARD_TIMEOUT", "1s")
	t.Setenv("TRADECORE_BACKTEST_SPEED", "0")
	t.Setenv("TRADECORE_JOURNAL_PG_HOST", "db.internal")
	t.Setenv("TRADECORE_RECORDER_QUEUE_SIZE", "32")
	t.Setenv("TRADECORE_GATEWAY_SIM_CASH", "2500.5")

	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Engine.Name)
	assert.Equal(t, []string{"TSLA", "NVDA"}, cfg.Gateway.Sim.Symbols)
	assert.Equal(t, time.Second, cfg.Gateway.Guard.Timeout)
	assert.Equal(t, 0.0, cfg.Backtest.Speed)
	assert.Equal(t, "db.internal", cfg.Journal.Postgres.Host)
	assert.Equal(t, 32, cfg.Recorder.QueueSize)
	assert.True(t, decimal.RequireFromString("2500.5").Equal(cfg.Gateway.Sim.Cash), "cash=%s", cfg.Gateway.Sim.Cash)
	assert.Equal(t, 3, cfg.Gateway.Sim.RejectNth)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("TRADECORE_LIVE_MAX_TICKS=7\n"), 0o644))
	t.Setenv("TRADECORE_LIVE_MAX_TICKS", "")
	require.NoError(t, os.Unsetenv("TRADECORE_LIVE_MAX_TICKS"))

	require.NoError(t, LoadDotEnv(path))
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Live.MaxTicks)

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env")))
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(writeConfig(t, "engine: [broken"))
	require.ErrorIs(t, err, exception.ErrInvalidConfig)

	t.Setenv("TRADECORE_LIVE_MAX_TICKS", "many")
	_, err = Load("")
	require.ErrorIs(t, err, exception.ErrInvalidConfig)
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		desc   string
		mutate func(*Config)
		want   error
	}{
		{
			desc:   "empty engine name",
			mutate: func(c *Config) { c.Engine.Name = "" },
			want:   exception.ErrInvalidConfig,
		},
		{
			desc:   "unknown gateway",
			mutate: func(c *Config) { c.Gateway.Kind = "ibkr" },
			want:   exception.ErrUnknownGatewayKind,
		},
		{
			desc:   "negative latency",
			mutate: func(c *Config) { c.Gateway.Sim.Latency = -time.Second },
			want:   exception.ErrInvalidConfig,
		},
		{
			desc:   "negative guard rate",
			mutate: func(c *Config) { c.Gateway.Guard.OrderRate = -1 },
			want:   exception.ErrInvalidConfig,
		},
		{
			desc: "duplicate strategy",
			mutate: func(c *Config) {
				c.Strategies = append(c.Strategies, c.Strategies[0])
			},
			want: exception.ErrInvalidConfig,
		},
		{
			desc:   "strategy without kind",
			mutate: func(c *Config) { c.Strategies[0].Kind = "" },
			want:   exception.ErrInvalidConfig,
		},
		{
			desc:   "unknown source",
			mutate: func(c *Config) { c.Backtest.Kind = "csv" },
			want:   exception.ErrUnknownSourceKind,
		},
		{
			desc:   "source without path",
			mutate: func(c *Config) { c.Backtest.Path = "" },
			want:   exception.ErrInvalidConfig,
		},
		{
			desc:   "chaos out of range",
			mutate: func(c *Config) { c.Backtest.Chaos.DropRate = 2 },
			want:   exception.ErrInvalidConfig,
		},
		{
			desc:   "negative risk limit",
			mutate: func(c *Config) { c.Risk.MaxPosition = decimal.NewFromInt(-1) },
			want:   exception.ErrInvalidConfig,
		},
		{
			desc:   "recorder queue",
			mutate: func(c *Config) { c.Recorder.QueueSize = 0 },
			want:   exception.ErrInvalidConfig,
		},
		{
			desc: "journal port",
			mutate: func(c *Config) {
				c.Journal.Enabled = true
				c.Journal.Postgres.Port = 70000
			},
			want: exception.ErrInvalidConfig,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, sampleYAML))
			require.NoError(t, err)
			tc.mutate(&cfg)
			require.ErrorIs(t, cfg.Validate(), tc.want)
		})
	}
}

func TestLoadShippedConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "tradecore.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "desk-a", cfg.Engine.Name)
	assert.Len(t, cfg.Strategies, 2)
	assert.True(t, cfg.Risk.Enabled())
	assert.False(t, cfg.Backtest.Chaos.Enabled())
	assert.False(t, cfg.Journal.Enabled)
}
