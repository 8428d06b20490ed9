package gateway

import (
	"context"
	"time"

	"github.com/yanun0323/errors"
	"golang.org/x/time/rate"

	"tradecore/internal/schema"
	"tradecore/pkg/exception"
)

// GuardConfig controls deadlines and order throttling.
type GuardConfig struct {
	// Timeout bounds every call except Read. 0 disables.
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// ReadTimeout bounds Read. 0 disables.
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	// OrderRate is the sustained number of order and cancel calls per
	// second. 0 disables throttling.
	OrderRate  float64 `yaml:"order_rate" env:"ORDER_RATE"`
	OrderBurst int     `yaml:"order_burst" env:"ORDER_BURST"`
}

// Guard decorates a gateway with per-call deadlines and an order rate limit.
// A deadline hit surfaces as exception.ErrGatewayTimeout; nothing is retried.
type Guard struct {
	inner   Gateway
	cfg     GuardConfig
	limiter *rate.Limiter
}

var _ Gateway = (*Guard)(nil)

// NewGuard wraps inner.
func NewGuard(inner Gateway, cfg GuardConfig) *Guard {
	g := &Guard{inner: inner, cfg: cfg}
	if cfg.OrderRate > 0 {
		burst := cfg.OrderBurst
		if burst <= 0 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(cfg.OrderRate), burst)
	}
	return g
}

// Unwrap returns the decorated gateway.
func (g *Guard) Unwrap() Gateway {
	return g.inner
}

func (g *Guard) Name() string {
	return g.inner.Name()
}

func (g *Guard) Connect(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx, g.cfg.Timeout)
	defer cancel()
	return g.classify(ctx, "connect", g.inner.Connect(ctx))
}

func (g *Guard) Subscribe(ctx context.Context, symbols []string) (SubscribeResult, error) {
	ctx, cancel := withTimeout(ctx, g.cfg.Timeout)
	defer cancel()
	result, err := g.inner.Subscribe(ctx, symbols)
	return result, g.classify(ctx, "subscribe", err)
}

func (g *Guard) SendOrder(ctx context.Context, req schema.OrderRequest) (string, error) {
	ctx, cancel := withTimeout(ctx, g.cfg.Timeout)
	defer cancel()
	if err := g.throttle(ctx); err != nil {
		return "", err
	}
	id, err := g.inner.SendOrder(ctx, req)
	return id, g.classify(ctx, "send order", err)
}

func (g *Guard) CancelOrder(ctx context.Context, req schema.CancelRequest) error {
	ctx, cancel := withTimeout(ctx, g.cfg.Timeout)
	defer cancel()
	if err := g.throttle(ctx); err != nil {
		return err
	}
	return g.classify(ctx, "cancel order", g.inner.CancelOrder(ctx, req))
}

func (g *Guard) QueryAccount(ctx context.Context) (schema.Account, error) {
	ctx, cancel := withTimeout(ctx, g.cfg.Timeout)
	defer cancel()
	account, err := g.inner.QueryAccount(ctx)
	return account, g.classify(ctx, "query account", err)
}

func (g *Guard) QueryPosition(ctx context.Context) ([]schema.Position, error) {
	ctx, cancel := withTimeout(ctx, g.cfg.Timeout)
	defer cancel()
	positions, err := g.inner.QueryPosition(ctx)
	return positions, g.classify(ctx, "query position", err)
}

func (g *Guard) Read(ctx context.Context) (schema.Tick, error) {
	ctx, cancel := withTimeout(ctx, g.cfg.ReadTimeout)
	defer cancel()
	tick, err := g.inner.Read(ctx)
	return tick, g.classify(ctx, "read", err)
}

func (g *Guard) throttle(ctx context.Context) error {
	if g.limiter == nil {
		return nil
	}
	if err := g.limiter.Wait(ctx); err != nil {
		if ctx.Err() == context.Canceled {
			return ctx.Err()
		}
		return errors.Wrapf(exception.ErrGatewayTimeout, "%s rate limit wait: %v", g.inner.Name(), err)
	}
	return nil
}

func (g *Guard) classify(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() == context.DeadlineExceeded {
		return errors.Wrapf(exception.ErrGatewayTimeout, "%s %s: %v", g.inner.Name(), op, err)
	}
	return err
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
