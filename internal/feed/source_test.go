package feed

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradecore/internal/schema"
	"tradecore/pkg/exception"
)

var start = time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)

func ticks(n int, step time.Duration) Slice {
	out := make(Slice, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, schema.Tick{
			Symbol:     "AAPL",
			Time:       start.Add(time.Duration(i) * step),
			LastPrice:  decimal.NewFromInt(150 + int64(i)),
			LastVolume: decimal.NewFromInt(1000),
		})
	}
	return out
}

func collect(t *testing.T, src Source) []schema.Tick {
	t.Helper()
	var out []schema.Tick
	require.NoError(t, src.Replay(context.Background(), func(tick schema.Tick) error {
		out = append(out, tick)
		return nil
	}))
	return out
}

func TestSliceReplay(t *testing.T) {
	src := ticks(3, time.Second)

	first := collect(t, src)
	second := collect(t, src)
	require.Len(t, first, 3)
	assert.Equal(t, first, second)

	stop := exception.ErrFeedExhausted
	calls := 0
	err := src.Replay(context.Background(), func(schema.Tick) error {
		calls++
		return stop
	})
	require.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)

	require.ErrorIs(t, src.Replay(context.Background(), nil), exception.ErrInvalidArgument)
}

func TestSliceReplayCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := ticks(2, time.Second).Replay(ctx, func(schema.Tick) error { return nil })
	require.ErrorIs(t, err, context.Canceled)
}

func TestJSONLinesReplay(t *testing.T) {
	testCases := []struct {
		desc    string
		content string
		want    []string
		wantErr error
	}{
		{
			desc: "two ticks with blank line",
			content: `{"symbol":"AAPL","time":"2024-01-02T09:30:00Z","lastPrice":"150","lastVolume":"1000","bidPrice":"149.9","bidVolume":"200","askPrice":"150.1","askVolume":"300"}

{"symbol":"MSFT","time":"2024-01-02T09:30:01Z","lastPrice":"410.5","lastVolume":"20"}
`,
			want: []string{"AAPL", "MSFT"},
		},
		{
			desc:    "malformed line",
			content: "{\"symbol\":\"AAPL\"}\nnot json\n",
			want:    []string{"AAPL"},
			wantErr: exception.ErrInvalidArgument,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "ticks.jsonl")
			require.NoError(t, os.WriteFile(path, []byte(tc.content), 0o644))

			var got []string
			err := JSONLines{Path: path}.Replay(context.Background(), func(tick schema.Tick) error {
				got = append(got, tick.Symbol)
				return nil
			})
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestJSONLinesDecodesDecimals(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ticks.jsonl")
	line := `{"symbol":"AAPL","time":"2024-01-02T09:30:00Z","lastPrice":"150.25","lastVolume":"1000"}`
	require.NoError(t, os.WriteFile(path, []byte(line), 0o644))

	got := collect(t, JSONLines{Path: path})
	require.Len(t, got, 1)
	assert.True(t, got[0].LastPrice.Equal(decimal.RequireFromString("150.25")))
	assert.True(t, got[0].LastVolume.Equal(decimal.NewFromInt(1000)))
	assert.True(t, got[0].Time.Equal(start))
}

func TestJSONLinesMissingFile(t *testing.T) {
	err := JSONLines{Path: filepath.Join(t.TempDir(), "missing.jsonl")}.Replay(context.Background(), func(schema.Tick) error { return nil })
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestPaced(t *testing.T) {
	testCases := []struct {
		desc  string
		speed float64
		slept time.Duration
	}{
		{desc: "disabled", speed: 0, slept: 0},
		{desc: "real time", speed: 1, slept: 4 * time.Second},
		{desc: "double speed", speed: 2, slept: 2 * time.Second},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			clock := NewStepClock(start)
			got := collect(t, Paced(ticks(5, time.Second), tc.speed, clock))
			assert.Len(t, got, 5)
			assert.Equal(t, tc.slept, clock.Slept())
		})
	}
}
