package exception

import "errors"

// Gateway connection and market data errors
var (
	ErrConnection     = errors.New("gateway: connection failed")
	ErrNotConnected   = errors.New("gateway: not connected")
	ErrSubscription   = errors.New("gateway: subscription rejected")
	ErrGatewayTimeout = errors.New("gateway: deadline exceeded")
	ErrFeedExhausted  = errors.New("gateway: feed exhausted")
)
