package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/yanun0323/logs"

	"tradecore/internal/feed"
	"tradecore/internal/schema"
)

const defaultReadBackoff = 100 * time.Millisecond

// TickRecorder receives every live tick before dispatch.
type TickRecorder interface {
	Record(tick schema.Tick) error
}

// LiveOptions controls RunLive.
type LiveOptions struct {
	// Symbols are subscribed after connecting. Empty skips Subscribe.
	Symbols []string
	// OnError receives read, subscribe and routing errors. Returning false
	// stops the run with that error. Nil logs and continues.
	OnError func(err error) bool
	// Recorder tees ticks to a tape. Record failures are counted and logged.
	Recorder TickRecorder
	// MaxTicks stops the run after that many ticks. 0 runs until ctx is done.
	MaxTicks int
	// ReadBackoff is slept after a failed Read.
	ReadBackoff time.Duration
	Clock       feed.Clock
}

func (o LiveOptions) withDefaults() LiveOptions {
	if o.OnError == nil {
		o.OnError = func(err error) bool {
			logs.Errorf("live: %+v", err)
			return true
		}
	}
	if o.ReadBackoff <= 0 {
		o.ReadBackoff = defaultReadBackoff
	}
	if o.Clock == nil {
		o.Clock = feed.RealClock{}
	}
	return o
}

// RunLive connects the gateway and loops Read, dispatch, route until ctx is
// done, MaxTicks is reached or OnError asks to stop. Cancellation of ctx is a
// clean stop and returns nil.
func (e *Engine) RunLive(ctx context.Context, opts LiveOptions) error {
	opts = opts.withDefaults()

	if err := e.gw.Connect(ctx); err != nil {
		return fmt.Errorf("connect %s, err: %w", e.gw.Name(), err)
	}
	if len(opts.Symbols) > 0 {
		result, err := e.gw.Subscribe(ctx, opts.Symbols)
		if err != nil && !opts.OnError(err) {
			return err
		}
		logs.Infof("engine %s: live on %s, subscribed: %v", e.name, e.gw.Name(), result.Accepted)
	}

	stop := func(re *RoutingError) bool {
		return !opts.OnError(re)
	}

	for index := 0; opts.MaxTicks <= 0 || index < opts.MaxTicks; {
		if ctx.Err() != nil {
			return nil
		}

		tick, err := e.gw.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if !opts.OnError(fmt.Errorf("read %s, err: %w", e.gw.Name(), err)) {
				return err
			}
			if err := opts.Clock.Sleep(ctx, opts.ReadBackoff); err != nil {
				return nil
			}
			continue
		}

		if opts.Recorder != nil {
			if err := opts.Recorder.Record(tick); err != nil {
				e.metrics.IncRecordDrop()
				logs.Warnf("engine %s: record tick %s, err: %+v", e.name, tick.Symbol, err)
			}
		}

		d := e.OnTick(ctx, tick)
		if err := e.routeDispatch(ctx, index, d, stop, nil, nil); err != nil {
			return err
		}
		index++
	}

	logs.Infof("engine %s: live stopped after %d ticks", e.name, opts.MaxTicks)
	return nil
}
