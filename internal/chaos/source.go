// Package chaos perturbs a backtest tick stream: drops, duplicates, local
// reordering and timestamp delay. The same seed yields the same stream on
// every replay.
package chaos

import (
	"context"
	"math/rand"
	"time"

	"github.com/yanun0323/errors"

	"tradecore/internal/feed"
	"tradecore/internal/schema"
	"tradecore/pkg/exception"
)

// Config controls chaos injection behavior.
type Config struct {
	// Seed fixes the random sequence. 0 picks one from the wall clock once,
	// at construction.
	Seed          int64         `yaml:"seed" env:"SEED"`
	DropRate      float64       `yaml:"drop_rate" env:"DROP_RATE"`
	DuplicateRate float64       `yaml:"duplicate_rate" env:"DUPLICATE_RATE"`
	ReorderWindow int           `yaml:"reorder_window" env:"REORDER_WINDOW"`
	MaxDelay      time.Duration `yaml:"max_delay" env:"MAX_DELAY"`
}

// Enabled reports whether any perturbation is configured.
func (c Config) Enabled() bool {
	return c.DropRate > 0 || c.DuplicateRate > 0 || c.ReorderWindow > 1 || c.MaxDelay > 0
}

// Validate ensures the config is within supported ranges.
func (c Config) Validate() error {
	switch {
	case c.DropRate < 0 || c.DropRate > 1:
		return errors.Wrap(exception.ErrInvalidConfig, "chaos: drop_rate must be between 0 and 1")
	case c.DuplicateRate < 0 || c.DuplicateRate > 1:
		return errors.Wrap(exception.ErrInvalidConfig, "chaos: duplicate_rate must be between 0 and 1")
	case c.ReorderWindow < 0:
		return errors.Wrap(exception.ErrInvalidConfig, "chaos: reorder_window must be >= 0")
	case c.MaxDelay < 0:
		return errors.Wrap(exception.ErrInvalidConfig, "chaos: max_delay must be >= 0")
	}
	return nil
}

// Source wraps a feed.Source with chaos rules.
type Source struct {
	src feed.Source
	cfg Config
}

var _ feed.Source = (*Source)(nil)

// Wrap validates cfg and decorates src.
func Wrap(src feed.Source, cfg Config) (*Source, error) {
	if src == nil {
		return nil, errors.Wrap(exception.ErrInvalidArgument, "chaos: nil source")
	}
	if cfg.ReorderWindow <= 0 {
		cfg.ReorderWindow = 1
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UTC().UnixNano()
	}
	return &Source{src: src, cfg: cfg}, nil
}

// Seed returns the effective seed.
func (s *Source) Seed() int64 {
	return s.cfg.Seed
}

func (s *Source) Replay(ctx context.Context, handler func(schema.Tick) error) error {
	if handler == nil {
		return errors.Wrap(exception.ErrInvalidArgument, "nil tick handler")
	}
	st := &state{cfg: s.cfg, rng: rand.New(rand.NewSource(s.cfg.Seed))}
	emit := func(ticks []schema.Tick) error {
		for _, tick := range ticks {
			if err := handler(tick); err != nil {
				return err
			}
		}
		return nil
	}

	if err := s.src.Replay(ctx, func(tick schema.Tick) error {
		return emit(st.process(tick))
	}); err != nil {
		return err
	}
	return emit(st.flush())
}

type state struct {
	cfg     Config
	rng     *rand.Rand
	pending []schema.Tick
}

func (s *state) process(tick schema.Tick) []schema.Tick {
	if s.shouldDrop() {
		return nil
	}
	tick = s.applyDelay(tick)
	if s.cfg.ReorderWindow <= 1 {
		return s.applyDuplicate(tick)
	}
	s.pending = append(s.pending, tick)
	if len(s.pending) < s.cfg.ReorderWindow {
		return nil
	}
	return s.applyDuplicate(s.take())
}

func (s *state) flush() []schema.Tick {
	var out []schema.Tick
	for len(s.pending) > 0 {
		out = append(out, s.applyDuplicate(s.take())...)
	}
	return out
}

func (s *state) take() schema.Tick {
	idx := s.rng.Intn(len(s.pending))
	tick := s.pending[idx]
	s.pending = append(s.pending[:idx], s.pending[idx+1:]...)
	return tick
}

func (s *state) shouldDrop() bool {
	return s.cfg.DropRate > 0 && s.rng.Float64() < s.cfg.DropRate
}

func (s *state) applyDuplicate(tick schema.Tick) []schema.Tick {
	out := []schema.Tick{tick}
	if s.cfg.DuplicateRate > 0 && s.rng.Float64() < s.cfg.DuplicateRate {
		out = append(out, tick)
	}
	return out
}

func (s *state) applyDelay(tick schema.Tick) schema.Tick {
	if s.cfg.MaxDelay <= 0 || tick.Time.IsZero() {
		return tick
	}
	if delay := time.Duration(s.rng.Int63n(int64(s.cfg.MaxDelay) + 1)); delay > 0 {
		tick.Time = tick.Time.Add(delay)
	}
	return tick
}
