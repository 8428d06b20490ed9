package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"tradecore/internal/schema"
	"tradecore/pkg/exception"
)

// Decision is one strategy's outcome for one tick.
type Decision struct {
	Strategy string
	Signal   schema.Signal
	// Err is a *StrategyError when OnTick failed; Signal is then NoAction.
	Err      error
	Disabled bool
	// Skipped is set when the dispatch context ended before OnTick ran.
	Skipped bool
}

// Routable reports whether the decision carries an intent to route.
func (d Decision) Routable() bool {
	return d.Err == nil && !d.Disabled && !d.Skipped && !d.Signal.Empty()
}

// Dispatch is the result of fanning one tick out.
type Dispatch struct {
	Tick schema.Tick
	// Decisions holds exactly one entry per strategy registered when the
	// dispatch started.
	Decisions map[string]Decision
}

// Names returns the strategy names in routing order.
func (d Dispatch) Names() []string {
	names := make([]string, 0, len(d.Decisions))
	for name := range d.Decisions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Failures lists the strategy errors in name order.
func (d Dispatch) Failures() []*StrategyError {
	var out []*StrategyError
	for _, name := range d.Names() {
		if se, ok := d.Decisions[name].Err.(*StrategyError); ok {
			out = append(out, se)
		}
	}
	return out
}

// Err joins every strategy error, nil when all strategies succeeded.
func (d Dispatch) Err() error {
	failures := d.Failures()
	if len(failures) == 0 {
		return nil
	}
	errs := make([]error, 0, len(failures))
	for _, f := range failures {
		errs = append(errs, f)
	}
	return joinErrors(errs)
}

// OnTick calls every enabled strategy with tick and collects the results.
// Strategy errors and panics are isolated into the returned Dispatch; the
// remaining strategies still run. Strategies are invoked in sorted name
// order unless parallel dispatch is enabled.
func (e *Engine) OnTick(ctx context.Context, tick schema.Tick) Dispatch {
	e.tickMu.Lock()
	defer e.tickMu.Unlock()

	start := time.Now()
	slots := e.snapshot()
	decisions := make([]Decision, len(slots))

	if e.parallel {
		var wg sync.WaitGroup
		for i := range slots {
			if !slots[i].enabled {
				decisions[i] = Decision{Strategy: slots[i].name, Disabled: true}
				continue
			}
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				decisions[i] = e.decide(ctx, slots[i], tick)
			}(i)
		}
		wg.Wait()
	} else {
		for i := range slots {
			if !slots[i].enabled {
				decisions[i] = Decision{Strategy: slots[i].name, Disabled: true}
				continue
			}
			decisions[i] = e.decide(ctx, slots[i], tick)
		}
	}

	out := Dispatch{Tick: tick, Decisions: make(map[string]Decision, len(decisions))}
	for _, d := range decisions {
		out.Decisions[d.Strategy] = d
		switch {
		case d.Disabled:
			e.metrics.IncDisabledSkip()
		case d.Skipped:
		case d.Err == nil:
			e.metrics.IncSignal(d.Signal.Kind())
		}
	}
	e.metrics.ObserveDispatch(time.Since(start))
	return out
}

func (e *Engine) decide(ctx context.Context, sl slot, tick schema.Tick) Decision {
	if ctx.Err() != nil {
		return Decision{Strategy: sl.name, Signal: schema.NoAction(), Skipped: true}
	}
	sig, panicked, err := invoke(sl, tick)
	if err != nil {
		return e.failed(sl.name, tick, err, panicked)
	}
	return Decision{Strategy: sl.name, Signal: sig}
}

func (e *Engine) failed(name string, tick schema.Tick, err error, panicked bool) Decision {
	se := &StrategyError{Strategy: name, Tick: tick, Err: err}
	e.metrics.IncStrategyError(panicked)
	logs.Warnf("engine %s: %v", e.name, se)
	return Decision{Strategy: name, Signal: schema.NoAction(), Err: se}
}

func invoke(sl slot, tick schema.Tick) (sig schema.Signal, panicked bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			sig, panicked, err = schema.NoAction(), true, errors.Wrapf(exception.ErrStrategyPanic, "%v", r)
		}
	}()
	sig, err = sl.strategy.OnTick(tick)
	return sig, false, err
}
