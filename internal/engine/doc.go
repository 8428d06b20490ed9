/*
Engine runs named strategies against one gateway.

# Module
  - registry: named strategy slots, enable / disable / replace
  - dispatch: fans a tick out to every enabled strategy, isolates errors and panics
  - routing: translates trades, sends orders and cancels, runs on_trade hooks
  - drivers: RunBacktest over a finite feed.Source, RunLive over Gateway.Read

# Source
 1. ticks from a backtest source (slice, JSON lines, tape playback)
 2. ticks from the gateway in live mode

# Produce
  - order requests and cancels to the gateway
  - order acks to trade hooks (journal, risk exposure)

# Ordering
  - routing for tick N completes before tick N+1 is dispatched
  - strategies are routed in name order
*/
package engine
