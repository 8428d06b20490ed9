package schema

// SignalKind classifies what a strategy decided for one tick.
type SignalKind uint8

const (
	SignalNoAction SignalKind = iota
	SignalNewOrder
	SignalCancel
	SignalReplace
)

func (k SignalKind) String() string {
	switch k {
	case SignalNewOrder:
		return "new_order"
	case SignalCancel:
		return "cancel"
	case SignalReplace:
		return "replace"
	default:
		return "no_action"
	}
}

// Signal is the result of Strategy.OnTick. A nil Trade and nil Cancel means
// no action. When both are set the cancel is routed first.
type Signal struct {
	Trade  *Trade
	Cancel *CancelRequest
}

func NoAction() Signal {
	return Signal{}
}

func NewOrder(t Trade) Signal {
	return Signal{Trade: &t}
}

func Cancel(c CancelRequest) Signal {
	return Signal{Cancel: &c}
}

func Replace(c CancelRequest, t Trade) Signal {
	return Signal{Trade: &t, Cancel: &c}
}

func (s Signal) Kind() SignalKind {
	switch {
	case s.Trade != nil && s.Cancel != nil:
		return SignalReplace
	case s.Trade != nil:
		return SignalNewOrder
	case s.Cancel != nil:
		return SignalCancel
	default:
		return SignalNoAction
	}
}

// Empty reports whether the signal carries no action.
func (s Signal) Empty() bool {
	return s.Trade == nil && s.Cancel == nil
}
