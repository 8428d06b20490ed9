package engine

import (
	"errors"
	"fmt"

	"tradecore/internal/gateway"
	"tradecore/internal/schema"
	"tradecore/pkg/exception"
)

// StrategyError isolates a failed or panicking OnTick call. It matches
// exception.ErrStrategy and its cause.
type StrategyError struct {
	Strategy string
	Tick     schema.Tick
	Err      error
}

func (e *StrategyError) Error() string {
	return fmt.Sprintf("%s, strategy: %s, symbol: %s, time: %s, err: %v",
		exception.ErrStrategy, e.Strategy, e.Tick.Symbol, e.Tick.Time.Format("2006-01-02T15:04:05.000Z07:00"), e.Err)
}

func (e *StrategyError) Unwrap() []error {
	return []error{exception.ErrStrategy, e.Err}
}

// Panicked reports whether the strategy panicked rather than returned an error.
func (e *StrategyError) Panicked() bool {
	return errors.Is(e.Err, exception.ErrStrategyPanic)
}

// RoutingError reports the intent whose routing stopped a run. Exactly one
// of Trade and Cancel is set.
type RoutingError struct {
	Strategy  string
	TickIndex int
	Trade     *schema.Trade
	Cancel    *schema.CancelRequest
	Err       error
}

func (e *RoutingError) Error() string {
	if e.Cancel != nil {
		return fmt.Sprintf("route cancel, strategy: %s, tick: %d, client order id: %q, order id: %q, err: %v",
			e.Strategy, e.TickIndex, e.Cancel.ClientOrderID, e.Cancel.OrderID, e.Err)
	}
	var symbol, direction, orderID string
	if e.Trade != nil {
		symbol, direction, orderID = e.Trade.Symbol, e.Trade.Direction.String(), e.Trade.OrderID
	}
	return fmt.Sprintf("route trade, strategy: %s, tick: %d, symbol: %s, direction: %s, order id: %q, err: %v",
		e.Strategy, e.TickIndex, symbol, direction, orderID, e.Err)
}

func (e *RoutingError) Unwrap() error {
	return e.Err
}

func isRejected(err error) bool {
	var reject *gateway.RejectError
	return errors.As(err, &reject) || errors.Is(err, exception.ErrOrderRejected)
}

func joinErrors(errs []error) error {
	return errors.Join(errs...)
}
