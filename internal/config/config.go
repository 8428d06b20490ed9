// Package config loads the tradecore runtime configuration from a YAML file,
// an optional dotenv file and TRADECORE_ prefixed environment variables, in
// that order of precedence from lowest to highest.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"gopkg.in/yaml.v3"

	"tradecore/internal/chaos"
	"tradecore/internal/gateway"
	"tradecore/internal/recorder"
	"tradecore/internal/risk"
	"tradecore/internal/strategy"
	"tradecore/pkg/conn"
	"tradecore/pkg/exception"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "TRADECORE_"

const (
	GatewaySim = "sim"

	SourceJSONLines = "jsonl"
	SourceTape      = "tape"
)

type Config struct {
	Engine     EngineConfig    `yaml:"engine" envPrefix:"ENGINE_"`
	Gateway    GatewayConfig   `yaml:"gateway" envPrefix:"GATEWAY_"`
	Strategies []strategy.Spec `yaml:"strategies" env:"-"`
	Backtest   SourceConfig    `yaml:"backtest" envPrefix:"BACKTEST_"`
	Live       LiveConfig      `yaml:"live" envPrefix:"LIVE_"`
	Risk       risk.Config     `yaml:"risk" envPrefix:"RISK_"`
	// Recorder tapes live ticks when Dir is set.
	Recorder  recorder.Config `yaml:"recorder" envPrefix:"RECORDER_"`
	Journal   JournalConfig   `yaml:"journal" envPrefix:"JOURNAL_"`
	Metrics   MetricsConfig   `yaml:"metrics" envPrefix:"METRICS_"`
	Profiling ProfilingConfig `yaml:"profiling" envPrefix:"PROFILING_"`
}

type EngineConfig struct {
	Name             string `yaml:"name" env:"NAME"`
	ParallelDispatch bool   `yaml:"parallel_dispatch" env:"PARALLEL_DISPATCH"`
}

type GatewayConfig struct {
	Kind  string              `yaml:"kind" env:"KIND"`
	Sim   SimConfig           `yaml:"sim" envPrefix:"SIM_"`
	Guard gateway.GuardConfig `yaml:"guard" envPrefix:"GUARD_"`
}

// SimConfig is the file form of gateway.SimConfig.
type SimConfig struct {
	Name         string          `yaml:"name" env:"NAME"`
	Symbols      []string        `yaml:"symbols" env:"SYMBOLS" envSeparator:","`
	RejectAll    bool            `yaml:"reject_all" env:"REJECT_ALL"`
	RejectNth    int             `yaml:"reject_nth" env:"REJECT_NTH"`
	FillOnAccept bool            `yaml:"fill_on_accept" env:"FILL_ON_ACCEPT"`
	RandomIDs    bool            `yaml:"random_ids" env:"RANDOM_IDS"`
	IDPrefix     string          `yaml:"id_prefix" env:"ID_PREFIX"`
	Cash         decimal.Decimal `yaml:"cash" env:"CASH"`
	Latency      time.Duration   `yaml:"latency" env:"LATENCY"`
	TickInterval time.Duration   `yaml:"tick_interval" env:"TICK_INTERVAL"`
	BasePrice    decimal.Decimal `yaml:"base_price" env:"BASE_PRICE"`
}

// Gateway converts the file form into the simulator config.
func (c SimConfig) Gateway() gateway.SimConfig {
	return gateway.SimConfig{
		Name:         c.Name,
		Symbols:      c.Symbols,
		RejectAll:    c.RejectAll,
		RejectNth:    c.RejectNth,
		FillOnAccept: c.FillOnAccept,
		RandomIDs:    c.RandomIDs,
		IDPrefix:     c.IDPrefix,
		Cash:         c.Cash,
		Latency:      c.Latency,
		TickInterval: c.TickInterval,
		BasePrice:    c.BasePrice,
	}
}

// SourceConfig selects the historical tick source of a backtest.
type SourceConfig struct {
	// Kind is jsonl or tape. Empty means the source is supplied in code.
	Kind string `yaml:"kind" env:"KIND"`
	// Path is the JSON lines file or the tape directory.
	Path       string `yaml:"path" env:"PATH"`
	FilePrefix string `yaml:"file_prefix" env:"FILE_PREFIX"`
	// Speed paces replay against tick time. 0 replays as fast as possible.
	Speed       float64      `yaml:"speed" env:"SPEED"`
	UseRecvTime bool         `yaml:"use_recv_time" env:"USE_RECV_TIME"`
	Chaos       chaos.Config `yaml:"chaos" envPrefix:"CHAOS_"`
}

type LiveConfig struct {
	Symbols     []string      `yaml:"symbols" env:"SYMBOLS" envSeparator:","`
	MaxTicks    int           `yaml:"max_ticks" env:"MAX_TICKS"`
	ReadBackoff time.Duration `yaml:"read_backoff" env:"READ_BACKOFF"`
	// StopOnError ends the run on the first read, subscribe or routing error.
	StopOnError bool `yaml:"stop_on_error" env:"STOP_ON_ERROR"`
}

type JournalConfig struct {
	Enabled     bool        `yaml:"enabled" env:"ENABLED"`
	AutoMigrate bool        `yaml:"auto_migrate" env:"AUTO_MIGRATE"`
	Postgres    conn.Option `yaml:"postgres" envPrefix:"PG_"`
}

type MetricsConfig struct {
	// Addr serves /metrics when set, e.g. ":9090".
	Addr string `yaml:"addr" env:"ADDR"`
}

type ProfilingConfig struct {
	// ServerAddress enables continuous profiling when set.
	ServerAddress   string            `yaml:"server_address" env:"SERVER_ADDRESS"`
	ApplicationName string            `yaml:"application_name" env:"APPLICATION_NAME"`
	Tags            map[string]string `yaml:"tags" env:"TAGS"`
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		Engine:   EngineConfig{Name: "engine"},
		Gateway:  GatewayConfig{Kind: GatewaySim},
		Live:     LiveConfig{ReadBackoff: 100 * time.Millisecond},
		Recorder: recorder.DefaultConfig(""),
		Journal: JournalConfig{
			AutoMigrate: true,
			Postgres:    conn.Option{Host: "localhost", Port: 5432, SSLMode: "disable"},
		},
		Profiling: ProfilingConfig{ApplicationName: "tradecore"},
	}
}

// LoadDotEnv loads dotenv files into the process environment. Missing files
// are ignored. No paths loads ./.env.
func LoadDotEnv(paths ...string) error {
	if err := godotenv.Load(paths...); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load dotenv, err: %w", err)
	}
	return nil
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s, err: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, errors.Wrapf(exception.ErrInvalidConfig, "parse config %s: %v", path, err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, errors.Wrapf(exception.ErrInvalidConfig, "parse environment: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration is usable. Strategy kinds are checked
// when strategies are built.
func (c Config) Validate() error {
	if c.Engine.Name == "" {
		return errors.Wrap(exception.ErrInvalidConfig, "engine: name is empty")
	}
	if err := c.Gateway.Validate(); err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(c.Strategies))
	for i, spec := range c.Strategies {
		switch {
		case spec.Name == "":
			return errors.Wrapf(exception.ErrInvalidConfig, "strategies[%d]: name is empty", i)
		case spec.Kind == "":
			return errors.Wrapf(exception.ErrInvalidConfig, "strategies[%d] %s: kind is empty", i, spec.Name)
		}
		if _, ok := seen[spec.Name]; ok {
			return errors.Wrapf(exception.ErrInvalidConfig, "strategies[%d]: duplicate name %s", i, spec.Name)
		}
		seen[spec.Name] = struct{}{}
	}

	if err := c.Backtest.Validate(); err != nil {
		return err
	}
	if err := c.Risk.Validate(); err != nil {
		return err
	}
	if c.Live.MaxTicks < 0 {
		return errors.Wrap(exception.ErrInvalidConfig, "live: max_ticks must be >= 0")
	}
	if c.Live.ReadBackoff < 0 {
		return errors.Wrap(exception.ErrInvalidConfig, "live: read_backoff must be >= 0")
	}
	if c.Recorder.Dir != "" {
		if err := c.Recorder.Validate(); err != nil {
			return err
		}
	}
	if c.Journal.Enabled {
		if _, err := c.Journal.Postgres.DSN(); err != nil {
			return err
		}
	}
	return nil
}

func (c GatewayConfig) Validate() error {
	if c.Kind != GatewaySim {
		return errors.Wrapf(exception.ErrUnknownGatewayKind, "gateway: %q", c.Kind)
	}
	switch {
	case c.Sim.RejectNth < 0:
		return errors.Wrap(exception.ErrInvalidConfig, "gateway: sim reject_nth must be >= 0")
	case c.Sim.Latency < 0:
		return errors.Wrap(exception.ErrInvalidConfig, "gateway: sim latency must be >= 0")
	case c.Sim.TickInterval < 0:
		return errors.Wrap(exception.ErrInvalidConfig, "gateway: sim tick_interval must be >= 0")
	case c.Sim.Cash.IsNegative():
		return errors.Wrap(exception.ErrInvalidConfig, "gateway: sim cash must be >= 0")
	case c.Guard.Timeout < 0 || c.Guard.ReadTimeout < 0:
		return errors.Wrap(exception.ErrInvalidConfig, "gateway: guard timeouts must be >= 0")
	case c.Guard.OrderRate < 0 || c.Guard.OrderBurst < 0:
		return errors.Wrap(exception.ErrInvalidConfig, "gateway: guard order_rate and order_burst must be >= 0")
	}
	return nil
}

func (c SourceConfig) Validate() error {
	switch c.Kind {
	case "":
	case SourceJSONLines, SourceTape:
		if c.Path == "" {
			return errors.Wrapf(exception.ErrInvalidConfig, "backtest: %s source needs a path", c.Kind)
		}
	default:
		return errors.Wrapf(exception.ErrUnknownSourceKind, "backtest: %q", c.Kind)
	}
	if c.Speed < 0 {
		return errors.Wrap(exception.ErrInvalidConfig, "backtest: speed must be >= 0")
	}
	return c.Chaos.Validate()
}
