package recorder

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/yanun0323/errors"

	"tradecore/internal/feed"
	"tradecore/internal/schema"
	"tradecore/pkg/exception"
)

// PlaybackConfig controls tape playback behavior.
type PlaybackConfig struct {
	Dir        string
	FilePrefix string
	// Speed paces playback by the recorded time deltas divided by Speed.
	// 0 replays as fast as possible.
	Speed           float64
	UseRecvTime     bool
	DisableChecksum bool
	MaxPayloadSize  int
}

// Playback replays tape segments in file order. It is a feed.Source.
type Playback struct {
	cfg   PlaybackConfig
	clock feed.Clock
}

var _ feed.Source = (*Playback)(nil)

// NewPlayback validates the config and creates a playback source.
func NewPlayback(cfg PlaybackConfig) (*Playback, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Playback{cfg: cfg, clock: feed.RealClock{}}, nil
}

// WithClock swaps the clock implementation.
func (p *Playback) WithClock(clock feed.Clock) *Playback {
	if clock != nil {
		p.clock = clock
	}
	return p
}

// Replay decodes every record of every segment and calls the handler with
// the tick.
func (p *Playback) Replay(ctx context.Context, handler func(schema.Tick) error) error {
	if handler == nil {
		return errors.Wrap(exception.ErrInvalidArgument, "nil tick handler")
	}
	files, err := p.Files()
	if err != nil {
		return err
	}

	var prevTS int64
	for _, path := range files {
		if err := p.playFile(ctx, path, handler, &prevTS); err != nil {
			return err
		}
	}
	return nil
}

func (c PlaybackConfig) withDefaults() PlaybackConfig {
	if c.FilePrefix == "" {
		c.FilePrefix = defaultFilePrefix
	}
	return c
}

// Validate checks if the config is usable.
func (c PlaybackConfig) Validate() error {
	switch {
	case c.Dir == "":
		return errors.Wrap(exception.ErrInvalidConfig, "playback: dir is empty")
	case c.Speed < 0:
		return errors.Wrap(exception.ErrInvalidConfig, "playback: speed must be >= 0")
	case c.MaxPayloadSize < 0:
		return errors.Wrap(exception.ErrInvalidConfig, "playback: max_payload_size must be >= 0")
	}
	return nil
}

// Files lists the tape segments in playback order.
func (p *Playback) Files() ([]string, error) {
	entries, err := os.ReadDir(p.cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("read tape dir %s, err: %w", p.cfg.Dir, err)
	}
	prefix := p.cfg.FilePrefix + "-"
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		files = append(files, filepath.Join(p.cfg.Dir, name))
	}
	sort.Strings(files)
	return files, nil
}

func (p *Playback) playFile(ctx context.Context, path string, handler func(schema.Tick) error, prevTS *int64) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	reader := NewReader(file, ReaderOptions{
		DisableChecksum: p.cfg.DisableChecksum,
		MaxPayloadSize:  p.cfg.MaxPayloadSize,
	})

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		header, tick, err := reader.NextTick()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("read %s, err: %w", path, err)
		}

		if err := p.pace(ctx, header, prevTS); err != nil {
			return err
		}
		if err := handler(tick); err != nil {
			return err
		}
	}
}

func (p *Playback) pace(ctx context.Context, header RecordHeader, prevTS *int64) error {
	if p.cfg.Speed <= 0 {
		return nil
	}
	current := header.TsEvent
	if p.cfg.UseRecvTime {
		current = header.TsRecv
	}
	if current <= 0 {
		return nil
	}
	if *prevTS > 0 {
		if delta := current - *prevTS; delta > 0 {
			sleep := time.Duration(float64(delta) / p.cfg.Speed)
			if err := p.clock.Sleep(ctx, sleep); err != nil {
				return err
			}
		}
	}
	*prevTS = current
	return nil
}
