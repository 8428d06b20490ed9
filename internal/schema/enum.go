package schema

import (
	"strings"

	"github.com/yanun0323/errors"

	"tradecore/pkg/exception"
)

// Direction buy, sell
type Direction uint8

const (
	_direction_beg Direction = iota
	Buy
	Sell
	_direction_end
)

func (d Direction) IsAvailable() bool {
	return d > _direction_beg && d < _direction_end
}

func (d Direction) String() string {
	switch d {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return "unknown"
	}
}

// Side maps a trade direction onto an order side.
func (d Direction) Side() OrderSide {
	switch d {
	case Buy:
		return OrderSideBuy
	case Sell:
		return OrderSideSell
	default:
		return _order_side_beg
	}
}

// ParseDirection accepts "buy"/"sell" in any case.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy", "long":
		return Buy, nil
	case "sell", "short":
		return Sell, nil
	default:
		return _direction_beg, errors.Wrapf(exception.ErrInvalidArgument, "direction: %q", s)
	}
}

// OrderSide buy, sell
type OrderSide uint8

const (
	_order_side_beg OrderSide = iota
	OrderSideBuy
	OrderSideSell
	_order_side_end
)

func (s OrderSide) IsAvailable() bool {
	return s > _order_side_beg && s < _order_side_end
}

func (s OrderSide) String() string {
	switch s {
	case OrderSideBuy:
		return "BUY"
	case OrderSideSell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// OrderType limit, market, ioc, fok
type OrderType uint8

const (
	_order_type_beg OrderType = iota
	OrderTypeLimit
	OrderTypeMarket
	OrderTypeIOC
	OrderTypeFOK
	_order_type_end
)

func (t OrderType) IsAvailable() bool {
	return t > _order_type_beg && t < _order_type_end
}

func (t OrderType) String() string {
	switch t {
	case OrderTypeLimit:
		return "LIMIT"
	case OrderTypeMarket:
		return "MARKET"
	case OrderTypeIOC:
		return "IOC"
	case OrderTypeFOK:
		return "FOK"
	default:
		return ""
	}
}

// TimeInForce GTC, IOC, FOK. The zero value means absent.
type TimeInForce uint8

const (
	_time_in_force_beg TimeInForce = iota
	TimeInForceGTC
	TimeInForceIOC
	TimeInForceFOK
	_time_in_force_end
)

func (f TimeInForce) IsAvailable() bool {
	return f > _time_in_force_beg && f < _time_in_force_end
}

func (f TimeInForce) String() string {
	switch f {
	case TimeInForceGTC:
		return "GTC"
	case TimeInForceIOC:
		return "IOC"
	case TimeInForceFOK:
		return "FOK"
	default:
		return ""
	}
}
