package obs

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tradecore"

// Collector exports a Metrics snapshot to Prometheus on every scrape.
type Collector struct {
	metrics *Metrics

	ticks           *prometheus.Desc
	signals         *prometheus.Desc
	strategyErrors  *prometheus.Desc
	strategyPanics  *prometheus.Desc
	disabledSkips   *prometheus.Desc
	orders          *prometheus.Desc
	cancels         *prometheus.Desc
	tradeHookErrors *prometheus.Desc
	recordDrops     *prometheus.Desc
	dispatchLatency *prometheus.Desc
	orderLatency    *prometheus.Desc
	cancelLatency   *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector creates a collector labeled with the engine name.
func NewCollector(engine string, m *Metrics) *Collector {
	labels := prometheus.Labels{"engine": engine}
	desc := func(name, help string, variable ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, variable, labels)
	}
	return &Collector{
		metrics:         m,
		ticks:           desc("ticks_total", "Ticks dispatched to strategies."),
		signals:         desc("signals_total", "Strategy decisions by kind.", "kind"),
		strategyErrors:  desc("strategy_errors_total", "Failed strategy OnTick calls, panics included."),
		strategyPanics:  desc("strategy_panics_total", "Recovered strategy panics."),
		disabledSkips:   desc("strategy_disabled_skips_total", "Dispatch slots skipped because the strategy is disabled."),
		orders:          desc("orders_total", "Orders routed to the gateway by result.", "result"),
		cancels:         desc("cancels_total", "Cancels routed to the gateway by result.", "result"),
		tradeHookErrors: desc("trade_hook_errors_total", "Failed on_trade hooks."),
		recordDrops:     desc("record_drops_total", "Ticks the tape recorder could not accept."),
		dispatchLatency: desc("dispatch_seconds", "Strategy fan-out duration per tick."),
		orderLatency:    desc("order_seconds", "Gateway SendOrder round trip."),
		cancelLatency:   desc("cancel_seconds", "Gateway CancelOrder round trip."),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.ticks, c.signals, c.strategyErrors, c.strategyPanics, c.disabledSkips, c.orders,
		c.cancels, c.tradeHookErrors, c.recordDrops, c.dispatchLatency, c.orderLatency, c.cancelLatency,
	} {
		ch <- d
	}
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.metrics.Snapshot()

	counter := func(d *prometheus.Desc, v uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), labels...)
	}
	summary := func(d *prometheus.Desc, l LatencySnapshot) {
		ch <- prometheus.MustNewConstSummary(d, l.Count, l.Sum.Seconds(), nil)
	}

	counter(c.ticks, s.Ticks)
	for kind, v := range s.SignalCounts {
		counter(c.signals, v, kind.String())
	}
	counter(c.strategyErrors, s.StrategyErrors)
	counter(c.strategyPanics, s.StrategyPanics)
	counter(c.disabledSkips, s.DisabledSkips)
	counter(c.orders, s.OrdersSent, "accepted")
	counter(c.orders, s.OrdersRejected, "rejected")
	counter(c.orders, s.OrderFailures-s.OrdersRejected, "error")
	counter(c.cancels, s.CancelsSent, "accepted")
	counter(c.cancels, s.CancelFailures, "error")
	counter(c.tradeHookErrors, s.TradeHookErrors)
	counter(c.recordDrops, s.RecordDrops)
	summary(c.dispatchLatency, s.DispatchLatency)
	summary(c.orderLatency, s.OrderLatency)
	summary(c.cancelLatency, s.CancelLatency)
}

// NewRegistry returns a registry holding the engine collector plus the Go
// runtime and process collectors.
func NewRegistry(engine string, m *Metrics) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		NewCollector(engine, m),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
