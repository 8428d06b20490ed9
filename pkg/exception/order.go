package exception

import "errors"

var (
	ErrOrderRejected  = errors.New("order: rejected")
	ErrOrderNotFound  = errors.New("order: not found")
	ErrCancelRejected = errors.New("order: cancel rejected")
	ErrInvalidOrder   = errors.New("order: invalid request")
	ErrTradeHook      = errors.New("order: trade hook failed")
)

var (
	ErrRiskDenied = errors.New("order: denied by risk")
)
