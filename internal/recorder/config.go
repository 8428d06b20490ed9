package recorder

import (
	"time"

	"github.com/yanun0323/errors"

	"tradecore/pkg/exception"
)

const (
	defaultSegmentMaxBytes int64 = 256 << 20
	defaultQueueSize             = 4096
	defaultBufferSize            = 64 * 1024
	defaultFilePrefix            = "ticks"

	fileSuffix = ".tape"
)

var defaultSegmentMaxDuration = 30 * time.Minute

// Config controls tape writer behavior.
type Config struct {
	Dir                string        `yaml:"dir" env:"DIR"`
	SegmentMaxBytes    int64         `yaml:"segment_max_bytes" env:"SEGMENT_MAX_BYTES"`
	SegmentMaxDuration time.Duration `yaml:"segment_max_duration" env:"SEGMENT_MAX_DURATION"`
	QueueSize          int           `yaml:"queue_size" env:"QUEUE_SIZE"`
	BufferSize         int           `yaml:"buffer_size" env:"BUFFER_SIZE"`
	FilePrefix         string        `yaml:"file_prefix" env:"FILE_PREFIX"`
	FlushInterval      time.Duration `yaml:"flush_interval" env:"FLUSH_INTERVAL"`
	SyncInterval       time.Duration `yaml:"sync_interval" env:"SYNC_INTERVAL"`
}

// DefaultConfig returns a baseline configuration for the tape writer.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:                dir,
		SegmentMaxBytes:    defaultSegmentMaxBytes,
		SegmentMaxDuration: defaultSegmentMaxDuration,
		QueueSize:          defaultQueueSize,
		BufferSize:         defaultBufferSize,
		FilePrefix:         defaultFilePrefix,
		FlushInterval:      time.Second,
	}
}

func (c Config) withDefaults() Config {
	if c.SegmentMaxBytes == 0 {
		c.SegmentMaxBytes = defaultSegmentMaxBytes
	}
	if c.QueueSize == 0 {
		c.QueueSize = defaultQueueSize
	}
	if c.BufferSize == 0 {
		c.BufferSize = defaultBufferSize
	}
	if c.FilePrefix == "" {
		c.FilePrefix = defaultFilePrefix
	}
	return c
}

// Validate checks if the configuration is usable.
func (c Config) Validate() error {
	switch {
	case c.Dir == "":
		return errors.Wrap(exception.ErrInvalidConfig, "recorder: dir is empty")
	case c.SegmentMaxBytes <= 0:
		return errors.Wrap(exception.ErrInvalidConfig, "recorder: segment_max_bytes must be > 0")
	case c.SegmentMaxDuration < 0:
		return errors.Wrap(exception.ErrInvalidConfig, "recorder: segment_max_duration must be >= 0")
	case c.QueueSize <= 0:
		return errors.Wrap(exception.ErrInvalidConfig, "recorder: queue_size must be > 0")
	case c.BufferSize <= 0:
		return errors.Wrap(exception.ErrInvalidConfig, "recorder: buffer_size must be > 0")
	case c.FilePrefix == "":
		return errors.Wrap(exception.ErrInvalidConfig, "recorder: file_prefix is empty")
	case c.FlushInterval < 0:
		return errors.Wrap(exception.ErrInvalidConfig, "recorder: flush_interval must be >= 0")
	case c.SyncInterval < 0:
		return errors.Wrap(exception.ErrInvalidConfig, "recorder: sync_interval must be >= 0")
	}
	return nil
}
