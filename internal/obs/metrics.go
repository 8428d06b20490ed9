package obs

import (
	"sync/atomic"
	"time"

	"tradecore/internal/schema"
)

const maxSignalKind = int(schema.SignalReplace)

// Metrics collects lightweight engine counters and latency stats.
// All methods are safe on a nil receiver.
type Metrics struct {
	ticks           uint64
	signalCounts    [maxSignalKind + 1]uint64
	strategyErrors  uint64
	strategyPanics  uint64
	disabledSkips   uint64
	ordersSent      uint64
	ordersRejected  uint64
	orderFailures   uint64
	cancelsSent     uint64
	cancelFailures  uint64
	tradeHookErrors uint64
	recordDrops     uint64

	dispatchLatency LatencyStats
	orderLatency    LatencyStats
	cancelLatency   LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Sum   time.Duration
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	Ticks           uint64
	SignalCounts    map[schema.SignalKind]uint64
	StrategyErrors  uint64
	StrategyPanics  uint64
	DisabledSkips   uint64
	OrdersSent      uint64
	OrdersRejected  uint64
	OrderFailures   uint64
	CancelsSent     uint64
	CancelFailures  uint64
	TradeHookErrors uint64
	RecordDrops     uint64
	DispatchLatency LatencySnapshot
	OrderLatency    LatencySnapshot
	CancelLatency   LatencySnapshot
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// ObserveDispatch records one fan-out round and its duration.
func (m *Metrics) ObserveDispatch(d time.Duration) {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.ticks, 1)
	m.dispatchLatency.Observe(d)
}

// IncSignal counts a strategy decision by kind.
func (m *Metrics) IncSignal(kind schema.SignalKind) {
	if m == nil {
		return
	}
	idx := int(kind)
	if idx >= 0 && idx < len(m.signalCounts) {
		atomic.AddUint64(&m.signalCounts[idx], 1)
	}
}

// IncStrategyError counts a failed OnTick call. Panics are counted twice,
// as an error and as a panic.
func (m *Metrics) IncStrategyError(panicked bool) {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.strategyErrors, 1)
	if panicked {
		atomic.AddUint64(&m.strategyPanics, 1)
	}
}

// IncDisabledSkip counts a strategy skipped because it is disabled.
func (m *Metrics) IncDisabledSkip() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.disabledSkips, 1)
}

// ObserveOrder records a gateway SendOrder round trip. A rejected order
// counts as a failure and as a rejection.
func (m *Metrics) ObserveOrder(d time.Duration, err error, rejected bool) {
	if m == nil {
		return
	}
	m.orderLatency.Observe(d)
	switch {
	case err == nil:
		atomic.AddUint64(&m.ordersSent, 1)
	case rejected:
		atomic.AddUint64(&m.ordersRejected, 1)
		fallthrough
	default:
		atomic.AddUint64(&m.orderFailures, 1)
	}
}

// ObserveCancel records a gateway CancelOrder round trip.
func (m *Metrics) ObserveCancel(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.cancelLatency.Observe(d)
	if err != nil {
		atomic.AddUint64(&m.cancelFailures, 1)
		return
	}
	atomic.AddUint64(&m.cancelsSent, 1)
}

// IncTradeHookError counts a failed on_trade hook.
func (m *Metrics) IncTradeHookError() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.tradeHookErrors, 1)
}

// IncRecordDrop counts a tick the tape recorder could not accept.
func (m *Metrics) IncRecordDrop() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.recordDrops, 1)
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	signals := make(map[schema.SignalKind]uint64)
	for i := range m.signalCounts {
		if v := atomic.LoadUint64(&m.signalCounts[i]); v > 0 {
			signals[schema.SignalKind(i)] = v
		}
	}
	return Snapshot{
		Ticks:           atomic.LoadUint64(&m.ticks),
		SignalCounts:    signals,
		StrategyErrors:  atomic.LoadUint64(&m.strategyErrors),
		StrategyPanics:  atomic.LoadUint64(&m.strategyPanics),
		DisabledSkips:   atomic.LoadUint64(&m.disabledSkips),
		OrdersSent:      atomic.LoadUint64(&m.ordersSent),
		OrdersRejected:  atomic.LoadUint64(&m.ordersRejected),
		OrderFailures:   atomic.LoadUint64(&m.orderFailures),
		CancelsSent:     atomic.LoadUint64(&m.cancelsSent),
		CancelFailures:  atomic.LoadUint64(&m.cancelFailures),
		TradeHookErrors: atomic.LoadUint64(&m.tradeHookErrors),
		RecordDrops:     atomic.LoadUint64(&m.recordDrops),
		DispatchLatency: m.dispatchLatency.Snapshot(),
		OrderLatency:    m.orderLatency.Snapshot(),
		CancelLatency:   m.cancelLatency.Snapshot(),
	}
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		min := atomic.LoadUint64(&l.min)
		if min != 0 && nanos >= min {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, min, nanos) {
			break
		}
	}

	for {
		max := atomic.LoadUint64(&l.max)
		if nanos <= max {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, max, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&l.sum)
	return LatencySnapshot{
		Count: count,
		Sum:   time.Duration(sum),
		Min:   time.Duration(atomic.LoadUint64(&l.min)),
		Max:   time.Duration(atomic.LoadUint64(&l.max)),
		Avg:   time.Duration(sum / count),
	}
}
