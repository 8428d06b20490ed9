package strategy

import "tradecore/internal/schema"

// Strategy turns ticks into trade intents.
//
// OnTick calls for one strategy never overlap and arrive in tick order. A
// strategy owns its state, filters symbols itself and must not block.
type Strategy interface {
	OnTick(tick schema.Tick) (schema.Signal, error)
}

// Func adapts a plain function to a Strategy.
type Func func(tick schema.Tick) (schema.Signal, error)

func (f Func) OnTick(tick schema.Tick) (schema.Signal, error) {
	return f(tick)
}
