package chaos

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradecore/internal/feed"
	"tradecore/internal/schema"
	"tradecore/pkg/exception"
)

var start = time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)

func ticks(n int) feed.Slice {
	out := make(feed.Slice, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, schema.Tick{Symbol: "AAPL", Time: start.Add(time.Duration(i) * time.Second), LastPrice: decimal.NewFromInt(int64(i))})
	}
	return out
}

func collect(t *testing.T, src feed.Source) []schema.Tick {
	t.Helper()
	var out []schema.Tick
	require.NoError(t, src.Replay(context.Background(), func(tick schema.Tick) error {
		out = append(out, tick)
		return nil
	}))
	return out
}

func TestPassThrough(t *testing.T) {
	src, err := Wrap(ticks(5), Config{Seed: 7})
	require.NoError(t, err)
	assert.Equal(t, []schema.Tick(ticks(5)), collect(t, src))
}

func TestDeterministicPerSeed(t *testing.T) {
	cfg := Config{Seed: 42, DropRate: 0.2, DuplicateRate: 0.2, ReorderWindow: 3, MaxDelay: 500 * time.Millisecond}
	src, err := Wrap(ticks(50), cfg)
	require.NoError(t, err)

	first := collect(t, src)
	assert.Equal(t, first, collect(t, src))

	other, err := Wrap(ticks(50), cfg)
	require.NoError(t, err)
	assert.Equal(t, first, collect(t, other))
	assert.NotEqual(t, []schema.Tick(ticks(50)), first)
}

func TestDropAll(t *testing.T) {
	src, err := Wrap(ticks(10), Config{Seed: 1, DropRate: 1})
	require.NoError(t, err)
	assert.Empty(t, collect(t, src))
}

func TestDuplicateAll(t *testing.T) {
	src, err := Wrap(ticks(4), Config{Seed: 1, DuplicateRate: 1})
	require.NoError(t, err)
	assert.Len(t, collect(t, src), 8)
}

func TestReorderKeepsEveryTick(t *testing.T) {
	src, err := Wrap(ticks(20), Config{Seed: 3, ReorderWindow: 4})
	require.NoError(t, err)
	got := collect(t, src)
	require.Len(t, got, 20)

	seen := map[string]bool{}
	for _, tick := range got {
		seen[tick.LastPrice.String()] = true
	}
	assert.Len(t, seen, 20)
}

func TestDelayNeverMovesBackwards(t *testing.T) {
	src, err := Wrap(ticks(20), Config{Seed: 5, MaxDelay: time.Second})
	require.NoError(t, err)
	for i, tick := range collect(t, src) {
		base := start.Add(time.Duration(i) * time.Second)
		assert.False(t, tick.Time.Before(base))
		assert.False(t, tick.Time.After(base.Add(time.Second)))
	}
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		desc string
		cfg  Config
	}{
		{"drop rate", Config{DropRate: 1.5}},
		{"duplicate rate", Config{DuplicateRate: -0.1}},
		{"max delay", Config{MaxDelay: -time.Second}},
	}
	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			_, err := Wrap(ticks(1), tc.cfg)
			require.ErrorIs(t, err, exception.ErrInvalidConfig)
		})
	}

	_, err := Wrap(nil, Config{})
	require.ErrorIs(t, err, exception.ErrInvalidArgument)

	src, err := Wrap(ticks(1), Config{})
	require.NoError(t, err)
	assert.NotZero(t, src.Seed())
	assert.False(t, Config{ReorderWindow: 1}.Enabled())
	assert.True(t, Config{MaxDelay: time.Millisecond}.Enabled())
}
