package risk

import (
	"fmt"

	"tradecore/pkg/exception"
)

// Reason explains a denial.
type Reason uint8

const (
	ReasonNone Reason = iota
	ReasonKillSwitch
	ReasonRateLimit
	ReasonMaxVolume
	ReasonPriceBand
	ReasonMaxNotional
	ReasonPositionLimit
	_reason_end
)

func (r Reason) IsAvailable() bool {
	return r < _reason_end
}

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonKillSwitch:
		return "kill_switch"
	case ReasonRateLimit:
		return "rate_limit"
	case ReasonMaxVolume:
		return "max_volume"
	case ReasonPriceBand:
		return "price_band"
	case ReasonMaxNotional:
		return "max_notional"
	case ReasonPositionLimit:
		return "position_limit"
	default:
		return ""
	}
}

// DenyError is returned for an order the risk engine refused. It matches
// both exception.ErrRiskDenied and exception.ErrOrderRejected.
type DenyError struct {
	Decision Decision
}

func (e *DenyError) Error() string {
	return fmt.Sprintf("%s, reason: %s, symbol: %s, price: %s, volume: %s, position: %s",
		exception.ErrRiskDenied, e.Decision.Reason, e.Decision.Symbol,
		e.Decision.ProposedPrice, e.Decision.ProposedQty, e.Decision.CurrentPos)
}

func (e *DenyError) Unwrap() []error {
	return []error{exception.ErrRiskDenied, exception.ErrOrderRejected}
}
