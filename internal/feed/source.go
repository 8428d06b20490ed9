package feed

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"

	"tradecore/internal/schema"
	"tradecore/pkg/exception"
)

const maxLineSize = 1 << 20

// Source is a finite, replayable tick stream for backtests. Every call to
// Replay starts from the first tick. Replay stops at the first handler error
// and returns it unchanged.
type Source interface {
	Replay(ctx context.Context, handler func(schema.Tick) error) error
}

// Slice replays an in-memory tick sequence.
type Slice []schema.Tick

func (s Slice) Replay(ctx context.Context, handler func(schema.Tick) error) error {
	if handler == nil {
		return errors.Wrap(exception.ErrInvalidArgument, "nil tick handler")
	}
	for _, tick := range s {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := handler(tick); err != nil {
			return err
		}
	}
	return nil
}

// JSONLines replays a file holding one JSON encoded tick per line. Blank
// lines are skipped.
type JSONLines struct {
	Path string
}

func (s JSONLines) Replay(ctx context.Context, handler func(schema.Tick) error) error {
	if handler == nil {
		return errors.Wrap(exception.ErrInvalidArgument, "nil tick handler")
	}

	file, err := os.Open(s.Path)
	if err != nil {
		return fmt.Errorf("open tick file %s, err: %w", s.Path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	line := 0
	for scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return err
		}

		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		var tick schema.Tick
		if err := sonic.ConfigFastest.Unmarshal(raw, &tick); err != nil {
			return errors.Wrapf(exception.ErrInvalidArgument, "%s:%d: decode tick: %v", s.Path, line, err)
		}
		if err := handler(tick); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan tick file %s, err: %w", s.Path, err)
	}
	return nil
}

// Paced wraps a source and sleeps the tick time delta divided by speed
// between consecutive ticks. A speed of 0 disables pacing.
func Paced(src Source, speed float64, clock Clock) Source {
	if clock == nil {
		clock = RealClock{}
	}
	return &paced{src: src, speed: speed, clock: clock}
}

type paced struct {
	src   Source
	speed float64
	clock Clock
}

func (p *paced) Replay(ctx context.Context, handler func(schema.Tick) error) error {
	if p.speed <= 0 {
		return p.src.Replay(ctx, handler)
	}

	var prev schema.Tick
	first := true
	return p.src.Replay(ctx, func(tick schema.Tick) error {
		if !first && !prev.Time.IsZero() && !tick.Time.IsZero() {
			if delta := tick.Time.Sub(prev.Time); delta > 0 {
				if err := p.clock.Sleep(ctx, scale(delta, p.speed)); err != nil {
					return err
				}
			}
		}
		first = false
		prev = tick
		return handler(tick)
	})
}
