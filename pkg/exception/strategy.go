package exception

import "errors"

// Strategy errors
var (
	ErrStrategy         = errors.New("strategy: on tick failed")
	ErrStrategyPanic    = errors.New("strategy: panic in on tick")
	ErrStrategyNotFound = errors.New("strategy: not found")
	ErrInvalidStrategy  = errors.New("strategy: invalid registration")
)
