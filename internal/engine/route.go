package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"tradecore/internal/schema"
	"tradecore/pkg/exception"
)

// Translator maps a trade intent to a gateway order request.
type Translator func(trade schema.Trade) (schema.OrderRequest, error)

// OrderAck describes an order the gateway accepted.
type OrderAck struct {
	Engine        string
	Strategy      string
	OrderID       string
	ClientOrderID string
	Gateway       string
	Trade         schema.Trade
	Request       schema.OrderRequest
	// Time is the trade time, so replays produce identical acks.
	Time time.Time
}

// TradeHook observes accepted orders.
type TradeHook interface {
	OnTrade(ctx context.Context, ack OrderAck) error
}

// TradeHookFunc adapts a function to a TradeHook.
type TradeHookFunc func(ctx context.Context, ack OrderAck) error

func (f TradeHookFunc) OnTrade(ctx context.Context, ack OrderAck) error {
	return f(ctx, ack)
}

// DefaultTranslator maps Direction to Side and defaults to a GTC limit
// order unless the trade overrides type or time in force.
func DefaultTranslator(trade schema.Trade) (schema.OrderRequest, error) {
	if trade.Symbol == "" {
		return schema.OrderRequest{}, errors.Wrap(exception.ErrInvalidOrder, "empty symbol")
	}
	if !trade.Direction.IsAvailable() {
		return schema.OrderRequest{}, errors.Wrapf(exception.ErrInvalidOrder, "unknown direction %d", trade.Direction)
	}
	if !trade.Volume.IsPositive() {
		return schema.OrderRequest{}, errors.Wrapf(exception.ErrInvalidOrder, "volume %s must be positive", trade.Volume)
	}

	orderType := trade.OrderType
	if orderType == 0 {
		orderType = schema.OrderTypeLimit
	}
	if !orderType.IsAvailable() {
		return schema.OrderRequest{}, errors.Wrapf(exception.ErrInvalidOrder, "unknown order type %d", trade.OrderType)
	}
	if orderType != schema.OrderTypeMarket && !trade.Price.IsPositive() {
		return schema.OrderRequest{}, errors.Wrapf(exception.ErrInvalidOrder, "%s order price %s must be positive", orderType, trade.Price)
	}

	tif := trade.TimeInForce
	if tif == 0 {
		tif = schema.TimeInForceGTC
	}
	if !tif.IsAvailable() {
		return schema.OrderRequest{}, errors.Wrapf(exception.ErrInvalidOrder, "unknown time in force %d", trade.TimeInForce)
	}

	return schema.OrderRequest{
		Symbol:        trade.Symbol,
		ClientOrderID: trade.OrderID,
		Price:         trade.Price,
		Volume:        trade.Volume,
		Side:          trade.Direction.Side(),
		Type:          orderType,
		TimeInForce:   tif,
		StopPrice:     trade.StopPrice,
	}, nil
}

// SendOrder translates and routes a trade that did not come from a
// registered strategy. Trade hooks run only after the gateway accepted the
// order; a hook failure is returned together with the order id. On any
// other failure the id is empty.
func (e *Engine) SendOrder(ctx context.Context, trade schema.Trade) (string, error) {
	ack, err := e.sendOrder(ctx, e.name, trade)
	return ack.OrderID, err
}

// CancelOrder routes a cancel on behalf of a strategy. An empty OrderID is
// resolved from ClientOrderID among the orders routed for that strategy;
// an empty strategy means orders sent through SendOrder.
func (e *Engine) CancelOrder(ctx context.Context, strategy string, req schema.CancelRequest) error {
	if strategy == "" {
		strategy = e.name
	}
	return e.cancelOrder(ctx, strategy, req)
}

// OnTrade runs every trade hook with ack. All hooks run; their errors are
// joined and wrapped in exception.ErrTradeHook.
func (e *Engine) OnTrade(ctx context.Context, ack OrderAck) error {
	if len(e.hooks) == 0 {
		return nil
	}
	var errs []error
	for _, h := range e.hooks {
		if err := h.OnTrade(ctx, ack); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	e.metrics.IncTradeHookError()
	return errors.Wrapf(exception.ErrTradeHook, "order %s: %v", ack.OrderID, joinErrors(errs))
}

func (e *Engine) sendOrder(ctx context.Context, owner string, trade schema.Trade) (OrderAck, error) {
	if trade.OrderID == "" {
		trade.OrderID = e.nextClientID(owner)
	}

	failed := OrderAck{Engine: e.name, Strategy: owner, ClientOrderID: trade.OrderID, Trade: trade, Time: trade.Time}

	req, err := e.translate(trade)
	if err != nil {
		if isRejected(err) {
			e.metrics.ObserveOrder(0, err, true)
		}
		return failed, fmt.Errorf("translate trade %s, err: %w", trade.OrderID, err)
	}
	if req.ClientOrderID == "" {
		req.ClientOrderID = trade.OrderID
	}
	if req.Gateway == "" {
		req.Gateway = e.gw.Name()
	}

	start := time.Now()
	id, err := e.gw.SendOrder(ctx, req)
	e.metrics.ObserveOrder(time.Since(start), err, isRejected(err))
	if err != nil {
		logs.Warnf("engine %s: order %s of %s failed, err: %+v", e.name, req.ClientOrderID, owner, err)
		failed.Request, failed.Gateway = req, req.Gateway
		return failed, fmt.Errorf("send order %s via %s, err: %w", req.ClientOrderID, req.Gateway, err)
	}

	e.remember(owner, req.ClientOrderID, id)

	ack := OrderAck{
		Engine:        e.name,
		Strategy:      owner,
		OrderID:       id,
		ClientOrderID: req.ClientOrderID,
		Gateway:       req.Gateway,
		Trade:         trade,
		Request:       req,
		Time:          trade.Time,
	}
	if err := e.OnTrade(ctx, ack); err != nil {
		logs.Errorf("engine %s: %+v", e.name, err)
		return ack, err
	}
	return ack, nil
}

func (e *Engine) cancelOrder(ctx context.Context, owner string, req schema.CancelRequest) error {
	if req.OrderID == "" {
		if req.ClientOrderID == "" {
			return errors.Wrap(exception.ErrInvalidOrder, "cancel without order id")
		}
		id, ok := e.resolve(owner, req.ClientOrderID)
		if !ok {
			return errors.Wrapf(exception.ErrOrderNotFound, "strategy %s, client order id %q", owner, req.ClientOrderID)
		}
		req.OrderID = id
	}
	if req.Gateway == "" {
		req.Gateway = e.gw.Name()
	}

	start := time.Now()
	err := e.gw.CancelOrder(ctx, req)
	e.metrics.ObserveCancel(time.Since(start), err)
	if err != nil {
		logs.Warnf("engine %s: cancel %s of %s failed, err: %+v", e.name, req.OrderID, owner, err)
		return fmt.Errorf("cancel order %s via %s, err: %w", req.OrderID, req.Gateway, err)
	}

	if req.ClientOrderID != "" {
		e.forget(owner, req.ClientOrderID)
	}
	return nil
}

func (e *Engine) nextClientID(owner string) string {
	e.routeMu.Lock()
	defer e.routeMu.Unlock()
	e.seq[owner]++
	return fmt.Sprintf("%s-%d", owner, e.seq[owner])
}

// dropRoutes forgets the client id sequence and routed orders of owner.
func (e *Engine) dropRoutes(owner string) {
	e.routeMu.Lock()
	defer e.routeMu.Unlock()
	delete(e.seq, owner)
	delete(e.routed, owner)
}

func (e *Engine) remember(owner, clientID, orderID string) {
	e.routeMu.Lock()
	defer e.routeMu.Unlock()
	orders, ok := e.routed[owner]
	if !ok {
		orders = make(map[string]string)
		e.routed[owner] = orders
	}
	orders[clientID] = orderID
}

func (e *Engine) resolve(owner, clientID string) (string, bool) {
	e.routeMu.Lock()
	defer e.routeMu.Unlock()
	id, ok := e.routed[owner][clientID]
	return id, ok
}

func (e *Engine) forget(owner, clientID string) {
	e.routeMu.Lock()
	defer e.routeMu.Unlock()
	delete(e.routed[owner], clientID)
}

// routeDispatch routes every routable decision in strategy name order, the
// cancel of a signal before its new order. stop decides whether a routing
// failure ends the tick; nil stops at the first failure.
func (e *Engine) routeDispatch(ctx context.Context, tickIndex int, d Dispatch, stop func(*RoutingError) bool, accepted func(OrderAck), canceled func()) error {
	for _, name := range d.Names() {
		dec := d.Decisions[name]
		if !dec.Routable() {
			continue
		}

		if c := dec.Signal.Cancel; c != nil {
			if err := e.cancelOrder(ctx, name, *c); err != nil {
				re := &RoutingError{Strategy: name, TickIndex: tickIndex, Cancel: c, Err: err}
				if stop == nil || stop(re) {
					return re
				}
			} else if canceled != nil {
				canceled()
			}
		}

		if t := dec.Signal.Trade; t != nil {
			ack, err := e.sendOrder(ctx, name, *t)
			if ack.OrderID != "" && accepted != nil {
				accepted(ack)
			}
			if err != nil {
				trade := ack.Trade
				re := &RoutingError{Strategy: name, TickIndex: tickIndex, Trade: &trade, Err: err}
				if stop == nil || stop(re) {
					return re
				}
			}
		}
	}
	return nil
}
