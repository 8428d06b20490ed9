// Package app assembles an engine and its collaborators from config.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"gorm.io/gorm"

	"tradecore/internal/chaos"
	"tradecore/internal/config"
	"tradecore/internal/engine"
	"tradecore/internal/feed"
	"tradecore/internal/gateway"
	"tradecore/internal/journal"
	"tradecore/internal/obs"
	"tradecore/internal/recorder"
	"tradecore/internal/risk"
	"tradecore/internal/strategy"
	"tradecore/pkg/conn"
	"tradecore/pkg/exception"
)

// App owns the engine built from one configuration.
type App struct {
	cfg      config.Config
	engine   *engine.Engine
	gateway  gateway.Gateway
	metrics  *obs.Metrics
	registry *prometheus.Registry
	journal  *journal.Journal
	risk     *risk.Engine
	closers  []func() error
}

type options struct {
	strategies *strategy.Registry
	gateway    gateway.Gateway
	db         *gorm.DB
	hooks      []engine.TradeHook
	translator engine.Translator
}

// Option customises New.
type Option func(*options)

// WithStrategies replaces the builtin strategy registry.
func WithStrategies(r *strategy.Registry) Option {
	return func(o *options) { o.strategies = r }
}

// WithGateway skips gateway construction. The guard is still applied.
func WithGateway(gw gateway.Gateway) Option {
	return func(o *options) { o.gateway = gw }
}

// WithDB journals into db instead of dialing the configured postgres.
func WithDB(db *gorm.DB) Option {
	return func(o *options) { o.db = db }
}

// WithTradeHook adds a trade hook after the journal.
func WithTradeHook(h engine.TradeHook) Option {
	return func(o *options) { o.hooks = append(o.hooks, h) }
}

func WithTranslator(t engine.Translator) Option {
	return func(o *options) { o.translator = t }
}

// New builds the gateway, metrics, journal, engine and strategies. On error
// everything opened so far is closed.
func New(ctx context.Context, cfg config.Config, opts ...Option) (_ *App, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := options{strategies: strategy.Builtin()}
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{cfg: cfg, metrics: obs.NewMetrics()}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	a.gateway, err = BuildGateway(cfg.Gateway, o.gateway)
	if err != nil {
		return nil, err
	}

	engineOpts := []engine.Option{engine.WithMetrics(a.metrics)}
	if cfg.Engine.ParallelDispatch {
		engineOpts = append(engineOpts, engine.WithParallelDispatch())
	}
	translator := o.translator
	if cfg.Risk.Enabled() {
		a.risk = risk.NewEngine(cfg.Risk)
		translator = a.risk.Translator(translator)
		engineOpts = append(engineOpts, engine.WithTradeHook(a.risk))
	}
	if translator != nil {
		engineOpts = append(engineOpts, engine.WithTranslator(translator))
	}

	if cfg.Journal.Enabled || o.db != nil {
		db := o.db
		if db == nil {
			client, err := conn.New(ctx, cfg.Journal.Postgres)
			if err != nil {
				return nil, err
			}
			a.closers = append(a.closers, client.Close)
			db = client.DB()
		}
		a.journal = journal.New(db)
		if cfg.Journal.AutoMigrate {
			if err := a.journal.Migrate(ctx); err != nil {
				return nil, err
			}
		}
		engineOpts = append(engineOpts, engine.WithTradeHook(a.journal))
	}
	for _, h := range o.hooks {
		engineOpts = append(engineOpts, engine.WithTradeHook(h))
	}

	a.engine = engine.New(cfg.Engine.Name, a.gateway, engineOpts...)
	if err := RegisterStrategies(a.engine, o.strategies, cfg.Strategies); err != nil {
		return nil, err
	}
	a.registry = obs.NewRegistry(a.engine.Name(), a.metrics)

	logs.Infof("app: engine %s ready, gateway: %s, strategies: %v, journal: %t, risk: %t",
		a.engine.Name(), a.gateway.Name(), a.engine.Names(), a.journal != nil, a.risk != nil)
	return a, nil
}

// BuildGateway returns the configured gateway, or base when given, wrapped in
// a guard when any guard limit is set.
func BuildGateway(cfg config.GatewayConfig, base gateway.Gateway) (gateway.Gateway, error) {
	gw := base
	if gw == nil {
		switch cfg.Kind {
		case config.GatewaySim:
			gw = gateway.NewSim(cfg.Sim.Gateway())
		default:
			return nil, errors.Wrapf(exception.ErrUnknownGatewayKind, "gateway: %q", cfg.Kind)
		}
	}
	if cfg.Guard != (gateway.GuardConfig{}) {
		gw = gateway.NewGuard(gw, cfg.Guard)
	}
	return gw, nil
}

// RegisterStrategies builds every spec from reg and registers it on e under
// the spec name.
func RegisterStrategies(e *engine.Engine, reg *strategy.Registry, specs []strategy.Spec) error {
	for _, spec := range specs {
		s, err := reg.New(spec)
		if err != nil {
			return fmt.Errorf("build strategy %s, err: %w", spec.Name, err)
		}
		if err := e.RegisterStrategy(spec.Name, s); err != nil {
			return err
		}
	}
	return nil
}

// BuildSource returns the configured backtest source, paced and perturbed as
// configured.
func BuildSource(cfg config.SourceConfig, clock feed.Clock) (feed.Source, error) {
	var src feed.Source
	switch cfg.Kind {
	case config.SourceJSONLines:
		src = feed.Paced(feed.JSONLines{Path: cfg.Path}, cfg.Speed, clock)
	case config.SourceTape:
		p, err := recorder.NewPlayback(recorder.PlaybackConfig{
			Dir:         cfg.Path,
			FilePrefix:  cfg.FilePrefix,
			Speed:       cfg.Speed,
			UseRecvTime: cfg.UseRecvTime,
		})
		if err != nil {
			return nil, err
		}
		if clock != nil {
			p = p.WithClock(clock)
		}
		src = p
	default:
		return nil, errors.Wrapf(exception.ErrUnknownSourceKind, "backtest: %q", cfg.Kind)
	}

	if cfg.Chaos.Enabled() {
		wrapped, err := chaos.Wrap(src, cfg.Chaos)
		if err != nil {
			return nil, err
		}
		logs.Infof("app: chaos enabled on %s source, seed: %d", cfg.Kind, wrapped.Seed())
		src = wrapped
	}
	return src, nil
}

func (a *App) Config() config.Config {
	return a.cfg
}

func (a *App) Engine() *engine.Engine {
	return a.engine
}

func (a *App) Metrics() *obs.Metrics {
	return a.metrics
}

// Journal is nil when journaling is off.
func (a *App) Journal() *journal.Journal {
	return a.journal
}

// Risk is nil when no risk limit is configured.
func (a *App) Risk() *risk.Engine {
	return a.risk
}

// MetricsHandler serves the engine, Go runtime and process metrics.
func (a *App) MetricsHandler() http.Handler {
	return obs.Handler(a.registry)
}

// Backtest replays the configured source, or src when non-nil.
func (a *App) Backtest(ctx context.Context, src feed.Source) (engine.Report, error) {
	if src == nil {
		var err error
		if src, err = BuildSource(a.cfg.Backtest, nil); err != nil {
			return engine.Report{}, err
		}
	}
	return a.engine.RunBacktest(ctx, src)
}

// Live runs the engine against the gateway, taping ticks when the recorder
// has a directory.
func (a *App) Live(ctx context.Context) error {
	opts := engine.LiveOptions{
		Symbols:     a.cfg.Live.Symbols,
		MaxTicks:    a.cfg.Live.MaxTicks,
		ReadBackoff: a.cfg.Live.ReadBackoff,
	}
	if a.cfg.Live.StopOnError {
		opts.OnError = func(err error) bool {
			logs.Errorf("app: live stopping, err: %+v", err)
			return false
		}
	}

	if a.cfg.Recorder.Dir != "" {
		w, err := recorder.NewWriter(a.cfg.Recorder)
		if err != nil {
			return err
		}
		if err := w.Start(ctx); err != nil {
			return err
		}
		defer func() {
			if err := w.Close(); err != nil {
				logs.Errorf("app: close recorder, err: %+v", err)
			}
			logs.Infof("app: recorder wrote %d ticks to %s", w.Written(), a.cfg.Recorder.Dir)
		}()
		opts.Recorder = w
	}

	return a.engine.RunLive(ctx, opts)
}

// Close releases the journal connection.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return joinErrors(errs)
}
