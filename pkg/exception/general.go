package exception

import "errors"

// General errors
var (
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrInvalidConfig       = errors.New("invalid config")
	ErrUnknownStrategyKind = errors.New("config: unknown strategy kind")
	ErrUnknownGatewayKind  = errors.New("config: unknown gateway kind")
	ErrUnknownSourceKind   = errors.New("config: unknown source kind")
)
