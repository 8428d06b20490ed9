package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"tradecore/internal/feed"
	"tradecore/internal/schema"
	"tradecore/internal/state"
	"tradecore/pkg/exception"
)

const (
	defaultSimName      = "SIM"
	defaultTickInterval = time.Second
)

var (
	defaultBasePrice = decimal.NewFromInt(100)
	simWave          = []int64{0, 1, 2, 1, 0, -1, -2, -1}
	simStep          = decimal.New(1, -3)
	simSpread        = decimal.New(5, -4)
)

// SimConfig controls the simulated gateway behavior.
type SimConfig struct {
	Name string
	// Symbols lists the tradable symbols. Empty accepts every symbol.
	Symbols     []string
	Unreachable bool

	RejectAll bool
	// RejectNth rejects exactly the n-th submitted order, 1-based.
	RejectNth int
	// RejectFunc returns a non-empty reason to reject the n-th order.
	RejectFunc func(n int, req schema.OrderRequest) string

	// FillOnAccept fills every accepted order at its request price.
	FillOnAccept bool
	// RandomIDs switches order ids from a sequence to random UUIDs.
	RandomIDs bool
	IDPrefix  string
	Cash      decimal.Decimal
	Latency   time.Duration

	TickInterval time.Duration
	BasePrice    decimal.Decimal
	Clock        feed.Clock
}

// Sim is a deterministic in-process gateway. It accepts orders unless a
// reject policy says otherwise and fabricates ticks for live mode.
type Sim struct {
	cfg   SimConfig
	known map[string]struct{}

	mu         sync.Mutex
	connected  bool
	subscribed []string
	submitted  int
	rejected   int
	seq        uint64
	reads      uint64
	orders     *OrderBook
	book       *state.PositionBook
}

// NewSim creates a simulated gateway.
func NewSim(cfg SimConfig) *Sim {
	if cfg.Name == "" {
		cfg.Name = defaultSimName
	}
	if cfg.IDPrefix == "" {
		cfg.IDPrefix = cfg.Name
	}
	if cfg.TickInterval == 0 {
		cfg.TickInterval = defaultTickInterval
	}
	if !cfg.BasePrice.IsPositive() {
		cfg.BasePrice = defaultBasePrice
	}
	if cfg.Clock == nil {
		cfg.Clock = feed.RealClock{}
	}

	var known map[string]struct{}
	if len(cfg.Symbols) > 0 {
		known = make(map[string]struct{}, len(cfg.Symbols))
		for _, symbol := range cfg.Symbols {
			known[symbol] = struct{}{}
		}
	}

	return &Sim{
		cfg:    cfg,
		known:  known,
		orders: NewOrderBook(),
		book:   state.NewPositionBook(cfg.Cash),
	}
}

func (g *Sim) Name() string {
	return g.cfg.Name
}

func (g *Sim) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if g.cfg.Unreachable {
		return errors.Wrapf(exception.ErrConnection, "gateway %s unreachable", g.cfg.Name)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.connected {
		g.connected = true
		logs.Infof("gateway %s connected", g.cfg.Name)
	}
	return nil
}

func (g *Sim) Subscribe(ctx context.Context, symbols []string) (SubscribeResult, error) {
	if err := ctx.Err(); err != nil {
		return SubscribeResult{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.connected {
		return SubscribeResult{}, errors.Wrap(exception.ErrNotConnected, g.cfg.Name)
	}

	result := SubscribeResult{Rejected: make(map[string]error)}
	for _, symbol := range symbols {
		if symbol == "" {
			result.Rejected[symbol] = errors.Wrap(exception.ErrInvalidArgument, "empty symbol")
			continue
		}
		if !g.isKnown(symbol) {
			result.Rejected[symbol] = errors.Wrapf(exception.ErrSubscription, "unknown symbol %s", symbol)
			continue
		}
		result.Accepted = append(result.Accepted, symbol)
		if !g.isSubscribed(symbol) {
			g.subscribed = append(g.subscribed, symbol)
			logs.Infof("gateway %s subscribed %s", g.cfg.Name, symbol)
		}
	}

	if !result.OK() {
		return result, &SubscriptionError{Result: result}
	}
	return result, nil
}

func (g *Sim) SendOrder(ctx context.Context, req schema.OrderRequest) (string, error) {
	if err := g.cfg.Clock.Sleep(ctx, g.cfg.Latency); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.submitted++
	if reason := g.rejectReason(g.submitted, req); reason != "" {
		g.rejected++
		return "", &RejectError{Reason: reason, Request: req}
	}

	id := g.nextID()
	if _, err := g.orders.Submit(id, req); err != nil {
		return "", err
	}
	if _, err := g.orders.Ack(id); err != nil {
		return "", err
	}
	if g.cfg.FillOnAccept {
		if _, err := g.orders.Fill(id, req.Volume); err != nil {
			return "", err
		}
		g.book.ApplyFill(req.Symbol, req.Side, req.Price, req.Volume)
	}
	return id, nil
}

func (g *Sim) CancelOrder(ctx context.Context, req schema.CancelRequest) error {
	if err := g.cfg.Clock.Sleep(ctx, g.cfg.Latency); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	id := req.OrderID
	if id == "" && req.ClientOrderID != "" {
		id, _ = g.orders.Lookup(req.ClientOrderID)
	}
	if id == "" {
		return errors.Wrapf(exception.ErrOrderNotFound, "client order id %q", req.ClientOrderID)
	}
	_, err := g.orders.Cancel(id)
	return err
}

func (g *Sim) QueryAccount(ctx context.Context) (schema.Account, error) {
	if err := ctx.Err(); err != nil {
		return schema.Account{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	return schema.Account{
		Gateway: g.cfg.Name,
		Cash:    g.book.Cash(),
		Equity:  g.book.Equity(),
		Time:    g.cfg.Clock.Now(),
	}, nil
}

func (g *Sim) QueryPosition(ctx context.Context) ([]schema.Position, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	return g.book.Positions(), nil
}

// Read sleeps one tick interval and fabricates a tick, round robin over the
// subscribed symbols.
func (g *Sim) Read(ctx context.Context) (schema.Tick, error) {
	g.mu.Lock()
	connected, count := g.connected, len(g.subscribed)
	g.mu.Unlock()
	if !connected {
		return schema.Tick{}, errors.Wrap(exception.ErrNotConnected, g.cfg.Name)
	}
	if count == 0 {
		return schema.Tick{}, errors.Wrap(exception.ErrSubscription, "no symbol subscribed")
	}

	if err := g.cfg.Clock.Sleep(ctx, g.cfg.TickInterval); err != nil {
		return schema.Tick{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	n := g.reads
	g.reads++
	symbol := g.subscribed[n%uint64(len(g.subscribed))]
	wave := decimal.NewFromInt(simWave[(n/uint64(len(g.subscribed)))%uint64(len(simWave))])
	price := g.cfg.BasePrice.Mul(decimal.NewFromInt(1).Add(simStep.Mul(wave)))
	spread := price.Mul(simSpread)
	g.book.Mark(symbol, price)

	return schema.Tick{
		Symbol:     symbol,
		Time:       g.cfg.Clock.Now(),
		LastPrice:  price,
		LastVolume: decimal.NewFromInt(1000),
		BidPrice:   price.Sub(spread),
		BidVolume:  decimal.NewFromInt(2000),
		AskPrice:   price.Add(spread),
		AskVolume:  decimal.NewFromInt(2300),
	}, nil
}

// Order returns the simulated view of an order.
func (g *Sim) Order(id string) (Order, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.orders.Order(id)
}

// Stats returns submitted and rejected order counts.
func (g *Sim) Stats() (submitted, rejected int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.submitted, g.rejected
}

func (g *Sim) rejectReason(n int, req schema.OrderRequest) string {
	switch {
	case g.cfg.RejectAll:
		return "rejected by policy"
	case g.cfg.RejectNth > 0 && n == g.cfg.RejectNth:
		return fmt.Sprintf("order #%d rejected by policy", n)
	case !g.isKnown(req.Symbol):
		return "unknown symbol"
	case !req.Side.IsAvailable():
		return "invalid side"
	case !req.Volume.IsPositive():
		return "invalid volume"
	case req.Type != schema.OrderTypeMarket && !req.Price.IsPositive():
		return "invalid price"
	}
	if g.cfg.RejectFunc != nil {
		return g.cfg.RejectFunc(n, req)
	}
	return ""
}

func (g *Sim) nextID() string {
	if g.cfg.RandomIDs {
		return uuid.NewString()
	}
	g.seq++
	return fmt.Sprintf("%s-%06d", g.cfg.IDPrefix, g.seq)
}

func (g *Sim) isKnown(symbol string) bool {
	if g.known == nil {
		return true
	}
	_, ok := g.known[symbol]
	return ok
}

func (g *Sim) isSubscribed(symbol string) bool {
	for _, s := range g.subscribed {
		if s == symbol {
			return true
		}
	}
	return false
}
