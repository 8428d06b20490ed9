// Package risk gates orders against static pre-trade limits. Exposure is
// projected from accepted orders, not fills.
package risk

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"

	"tradecore/internal/engine"
	"tradecore/internal/schema"
	"tradecore/pkg/exception"
)

var bpsDenominator = decimal.NewFromInt(10_000)

// Config defines simple risk limits. Zero disables a limit.
type Config struct {
	KillSwitch       bool            `yaml:"kill_switch" env:"KILL_SWITCH"`
	MaxOrderVolume   decimal.Decimal `yaml:"max_order_volume" env:"MAX_ORDER_VOLUME"`
	MaxOrderNotional decimal.Decimal `yaml:"max_order_notional" env:"MAX_ORDER_NOTIONAL"`
	MaxPosition      decimal.Decimal `yaml:"max_position" env:"MAX_POSITION"`
	OrderRateLimit   int             `yaml:"order_rate_limit" env:"ORDER_RATE_LIMIT"`
	OrderRateWindow  time.Duration   `yaml:"order_rate_window" env:"ORDER_RATE_WINDOW"`
	// MaxPriceDeviationBps bounds limit prices against the last accepted
	// price of the symbol.
	MaxPriceDeviationBps int64 `yaml:"max_price_deviation_bps" env:"MAX_PRICE_DEVIATION_BPS"`
}

// Enabled reports whether any limit is configured.
func (c Config) Enabled() bool {
	return c.KillSwitch ||
		c.MaxOrderVolume.IsPositive() ||
		c.MaxOrderNotional.IsPositive() ||
		c.MaxPosition.IsPositive() ||
		(c.OrderRateLimit > 0 && c.OrderRateWindow > 0) ||
		c.MaxPriceDeviationBps > 0
}

func (c Config) Validate() error {
	switch {
	case c.MaxOrderVolume.IsNegative(), c.MaxOrderNotional.IsNegative(), c.MaxPosition.IsNegative():
		return errors.Wrap(exception.ErrInvalidConfig, "risk: limits must be >= 0")
	case c.OrderRateLimit < 0 || c.OrderRateWindow < 0:
		return errors.Wrap(exception.ErrInvalidConfig, "risk: order rate limit and window must be >= 0")
	case c.MaxPriceDeviationBps < 0:
		return errors.Wrap(exception.ErrInvalidConfig, "risk: max_price_deviation_bps must be >= 0")
	}
	return nil
}

// Decision is the outcome of one evaluation.
type Decision struct {
	Allow         bool
	Reason        Reason
	Symbol        string
	ProposedPrice decimal.Decimal
	ProposedQty   decimal.Decimal
	CurrentPos    decimal.Decimal
}

// Engine evaluates risk decisions. It is safe for concurrent use.
type Engine struct {
	cfg Config

	mu              sync.Mutex
	positions       map[string]decimal.Decimal
	refPrices       map[string]decimal.Decimal
	rateWindowStart time.Time
	rateCount       int
}

var _ engine.TradeHook = (*Engine)(nil)

// NewEngine creates a risk engine with static limits.
func NewEngine(cfg Config) *Engine {
	return &Engine{
		cfg:       cfg,
		positions: make(map[string]decimal.Decimal),
		refPrices: make(map[string]decimal.Decimal),
	}
}

// Evaluate applies the limits to an order request at time now.
func (e *Engine) Evaluate(req schema.OrderRequest, now time.Time) Decision {
	e.mu.Lock()
	defer e.mu.Unlock()

	d := Decision{
		Allow:         true,
		Reason:        ReasonNone,
		Symbol:        req.Symbol,
		ProposedPrice: req.Price,
		ProposedQty:   req.Volume,
		CurrentPos:    e.positions[req.Symbol],
	}
	deny := func(reason Reason) Decision {
		d.Allow, d.Reason = false, reason
		return d
	}

	if e.cfg.KillSwitch {
		return deny(ReasonKillSwitch)
	}

	if e.cfg.OrderRateLimit > 0 && e.cfg.OrderRateWindow > 0 {
		if e.rateWindowStart.IsZero() || now.Sub(e.rateWindowStart) >= e.cfg.OrderRateWindow {
			e.rateWindowStart = now
			e.rateCount = 0
		}
		e.rateCount++
		if e.rateCount > e.cfg.OrderRateLimit {
			return deny(ReasonRateLimit)
		}
	}

	if e.cfg.MaxOrderVolume.IsPositive() && req.Volume.GreaterThan(e.cfg.MaxOrderVolume) {
		return deny(ReasonMaxVolume)
	}

	if e.cfg.MaxPriceDeviationBps > 0 && req.Type == schema.OrderTypeLimit && req.Price.IsPositive() {
		if ref, ok := e.refPrices[req.Symbol]; ok && ref.IsPositive() {
			band := ref.Mul(decimal.NewFromInt(e.cfg.MaxPriceDeviationBps)).Div(bpsDenominator)
			if req.Price.Sub(ref).Abs().GreaterThan(band) {
				return deny(ReasonPriceBand)
			}
		}
	}

	if e.cfg.MaxOrderNotional.IsPositive() && req.Price.Mul(req.Volume).Abs().GreaterThan(e.cfg.MaxOrderNotional) {
		return deny(ReasonMaxNotional)
	}

	if e.cfg.MaxPosition.IsPositive() {
		next := applySide(d.CurrentPos, req.Side, req.Volume)
		if next.Abs().GreaterThan(e.cfg.MaxPosition) {
			return deny(ReasonPositionLimit)
		}
	}

	return d
}

// Position returns the projected net position of symbol.
func (e *Engine) Position(symbol string) decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.positions[symbol]
}

// OnTrade books an accepted order into the projected exposure.
func (e *Engine) OnTrade(_ context.Context, ack engine.OrderAck) error {
	req := ack.Request
	e.mu.Lock()
	defer e.mu.Unlock()
	e.positions[req.Symbol] = applySide(e.positions[req.Symbol], req.Side, req.Volume)
	if req.Price.IsPositive() {
		e.refPrices[req.Symbol] = req.Price
	}
	return nil
}

// Translator gates next with Evaluate. A denied order never reaches the
// gateway and fails as a *DenyError.
func (e *Engine) Translator(next engine.Translator) engine.Translator {
	if next == nil {
		next = engine.DefaultTranslator
	}
	return func(trade schema.Trade) (schema.OrderRequest, error) {
		req, err := next(trade)
		if err != nil {
			return req, err
		}
		if d := e.Evaluate(req, trade.Time); !d.Allow {
			return req, &DenyError{Decision: d}
		}
		return req, nil
	}
}

func applySide(pos decimal.Decimal, side schema.OrderSide, qty decimal.Decimal) decimal.Decimal {
	switch side {
	case schema.OrderSideBuy:
		return pos.Add(qty)
	case schema.OrderSideSell:
		return pos.Sub(qty)
	default:
		return pos
	}
}
