package engine

import (
	"sort"
	"sync"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"tradecore/internal/gateway"
	"tradecore/internal/obs"
	"tradecore/internal/strategy"
	"tradecore/pkg/exception"
)

const defaultEngineName = "engine"

// Engine fans ticks out to registered strategies and routes their intents
// through one gateway. Management calls are safe from any goroutine; OnTick
// calls are serialized.
type Engine struct {
	name      string
	gw        gateway.Gateway
	parallel  bool
	translate Translator
	hooks     []TradeHook
	metrics   *obs.Metrics

	mu    sync.RWMutex
	slots map[string]*slot

	tickMu sync.Mutex

	routeMu sync.Mutex
	seq     map[string]uint64
	routed  map[string]map[string]string
}

type slot struct {
	name     string
	strategy strategy.Strategy
	enabled  bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithParallelDispatch runs each strategy of a tick on its own goroutine.
// Routing stays in sorted strategy order.
func WithParallelDispatch() Option {
	return func(e *Engine) {
		e.parallel = true
	}
}

// WithTranslator replaces the trade to order request translation.
func WithTranslator(t Translator) Option {
	return func(e *Engine) {
		if t != nil {
			e.translate = t
		}
	}
}

// WithTradeHook appends an on_trade hook. Hooks run in registration order.
func WithTradeHook(h TradeHook) Option {
	return func(e *Engine) {
		if h != nil {
			e.hooks = append(e.hooks, h)
		}
	}
}

// WithMetrics attaches a metrics container.
func WithMetrics(m *obs.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// New creates an engine bound to gw for its whole lifetime. A nil gateway
// falls back to the simulated gateway.
func New(name string, gw gateway.Gateway, opts ...Option) *Engine {
	if name == "" {
		name = defaultEngineName
	}
	if gw == nil {
		gw = gateway.NewSim(gateway.SimConfig{})
	}
	e := &Engine{
		name:      name,
		gw:        gw,
		translate: DefaultTranslator,
		slots:     make(map[string]*slot),
		seq:       make(map[string]uint64),
		routed:    make(map[string]map[string]string),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Name() string {
	return e.name
}

// Gateway returns the gateway bound at construction.
func (e *Engine) Gateway() gateway.Gateway {
	return e.gw
}

// Metrics returns the attached metrics, nil if none.
func (e *Engine) Metrics() *obs.Metrics {
	return e.metrics
}

// RegisterStrategy adds s under name. An existing strategy with the same
// name is discarded together with its state and the slot is re-enabled.
func (e *Engine) RegisterStrategy(name string, s strategy.Strategy) error {
	if name == "" {
		return errors.Wrap(exception.ErrInvalidStrategy, "empty strategy name")
	}
	if s == nil {
		return errors.Wrapf(exception.ErrInvalidStrategy, "nil strategy %s", name)
	}

	e.mu.Lock()
	_, replaced := e.slots[name]
	e.slots[name] = &slot{name: name, strategy: s, enabled: true}
	e.mu.Unlock()
	e.dropRoutes(name)

	if replaced {
		logs.Infof("engine %s: strategy %s replaced", e.name, name)
	} else {
		logs.Infof("engine %s: strategy %s registered", e.name, name)
	}
	return nil
}

// Strategy returns the registered instance.
func (e *Engine) Strategy(name string) (strategy.Strategy, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	sl, ok := e.slots[name]
	if !ok {
		return nil, errors.Wrap(exception.ErrStrategyNotFound, name)
	}
	return sl.strategy, nil
}

// Names lists registered strategies in dispatch order.
func (e *Engine) Names() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.slots))
	for name := range e.slots {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Enabled reports whether name is registered and enabled.
func (e *Engine) Enabled(name string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	sl, ok := e.slots[name]
	return ok && sl.enabled
}

func (e *Engine) Enable(name string) error {
	return e.setEnabled(name, true)
}

// Disable keeps the strategy registered but skips it on dispatch.
func (e *Engine) Disable(name string) error {
	return e.setEnabled(name, false)
}

func (e *Engine) Unregister(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.slots[name]; !ok {
		return errors.Wrap(exception.ErrStrategyNotFound, name)
	}
	delete(e.slots, name)
	e.dropRoutes(name)
	logs.Infof("engine %s: strategy %s unregistered", e.name, name)
	return nil
}

func (e *Engine) setEnabled(name string, enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	sl, ok := e.slots[name]
	if !ok {
		return errors.Wrap(exception.ErrStrategyNotFound, name)
	}
	sl.enabled = enabled
	return nil
}

// snapshot copies the slots in sorted name order.
func (e *Engine) snapshot() []slot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]slot, 0, len(e.slots))
	for _, sl := range e.slots {
		out = append(out, *sl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}
