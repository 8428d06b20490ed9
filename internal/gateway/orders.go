package gateway

import (
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"

	"tradecore/internal/schema"
	"tradecore/pkg/exception"
)

// OrderState tracks the lifecycle of an order.
type OrderState uint16

const (
	OrderStateUnknown OrderState = iota
	OrderStateNew
	OrderStateAcked
	OrderStatePartFilled
	OrderStateFilled
	OrderStateCanceled
	OrderStateRejected
)

func (s OrderState) String() string {
	switch s {
	case OrderStateNew:
		return "new"
	case OrderStateAcked:
		return "acked"
	case OrderStatePartFilled:
		return "part_filled"
	case OrderStateFilled:
		return "filled"
	case OrderStateCanceled:
		return "canceled"
	case OrderStateRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is allowed.
func (s OrderState) Terminal() bool {
	switch s {
	case OrderStateFilled, OrderStateCanceled, OrderStateRejected:
		return true
	default:
		return false
	}
}

// Order holds the gateway's view of an order.
type Order struct {
	ID            string
	ClientOrderID string
	Request       schema.OrderRequest
	LeavesVolume  decimal.Decimal
	State         OrderState
}

// OrderBook tracks orders from submission to a terminal state.
// It is not safe for concurrent use.
type OrderBook struct {
	orders   map[string]*Order
	byClient map[string]string
}

// NewOrderBook creates an empty order book.
func NewOrderBook() *OrderBook {
	return &OrderBook{
		orders:   make(map[string]*Order),
		byClient: make(map[string]string),
	}
}

// Order returns the current order state by backend id.
func (b *OrderBook) Order(id string) (Order, bool) {
	o, ok := b.orders[id]
	if !ok {
		return Order{}, false
	}
	return *o, true
}

// Lookup resolves a client order id to the backend id.
func (b *OrderBook) Lookup(clientOrderID string) (string, bool) {
	id, ok := b.byClient[clientOrderID]
	return id, ok
}

// Len returns the number of tracked orders.
func (b *OrderBook) Len() int {
	return len(b.orders)
}

// Submit records a new order in New state.
func (b *OrderBook) Submit(id string, req schema.OrderRequest) (*Order, error) {
	if id == "" {
		return nil, exception.ErrOrderNotFound
	}
	if _, ok := b.orders[id]; ok {
		return nil, errors.Wrap(ErrDuplicateOrder, id)
	}
	o := &Order{
		ID:            id,
		ClientOrderID: req.ClientOrderID,
		Request:       req,
		LeavesVolume:  req.Volume,
		State:         OrderStateNew,
	}
	b.orders[id] = o
	if req.ClientOrderID != "" {
		b.byClient[req.ClientOrderID] = id
	}
	return o, nil
}

// Ack moves an order from New to Acked.
func (b *OrderBook) Ack(id string) (*Order, error) {
	o, ok := b.orders[id]
	if !ok {
		return nil, errors.Wrap(exception.ErrOrderNotFound, id)
	}
	if o.State != OrderStateNew {
		return o, errors.Wrapf(ErrInvalidTransition, "%s: %s -> acked", id, o.State)
	}
	o.State = OrderStateAcked
	return o, nil
}

// Reject moves an order into the Rejected state.
func (b *OrderBook) Reject(id string) (*Order, error) {
	o, ok := b.orders[id]
	if !ok {
		return nil, errors.Wrap(exception.ErrOrderNotFound, id)
	}
	if o.State.Terminal() {
		return o, errors.Wrapf(ErrInvalidTransition, "%s: %s -> rejected", id, o.State)
	}
	o.State = OrderStateRejected
	o.LeavesVolume = decimal.Zero
	return o, nil
}

// Fill applies an execution of the given volume.
func (b *OrderBook) Fill(id string, volume decimal.Decimal) (*Order, error) {
	o, ok := b.orders[id]
	if !ok {
		return nil, errors.Wrap(exception.ErrOrderNotFound, id)
	}
	if o.State.Terminal() {
		return o, errors.Wrapf(ErrInvalidTransition, "%s: %s -> fill", id, o.State)
	}
	if !volume.IsPositive() {
		return o, ErrInvalidFill
	}
	leaves := o.LeavesVolume.Sub(volume)
	if leaves.Sign() <= 0 {
		o.LeavesVolume = decimal.Zero
		o.State = OrderStateFilled
	} else {
		o.LeavesVolume = leaves
		o.State = OrderStatePartFilled
	}
	return o, nil
}

// Cancel moves a live order into the Canceled state. Unknown ids return
// exception.ErrOrderNotFound, terminal orders exception.ErrCancelRejected.
func (b *OrderBook) Cancel(id string) (*Order, error) {
	o, ok := b.orders[id]
	if !ok {
		return nil, errors.Wrap(exception.ErrOrderNotFound, id)
	}
	if o.State.Terminal() {
		return o, errors.Wrapf(exception.ErrCancelRejected, "%s is %s", id, o.State)
	}
	o.State = OrderStateCanceled
	o.LeavesVolume = decimal.Zero
	return o, nil
}
