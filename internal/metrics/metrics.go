// Package metrics defines the Prometheus counters, gauges, and histogram
// exposed on the HTTP API's /metrics route (SPEC_FULL.md §6), grounded on
// the pack's prometheus/client_golang idiom (other_examples' execution
// service: package-level vars built with prometheus.New*/MustRegister).
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// TradeEventsTotal counts every trade event the pipeline ingests,
	// across all three ingestion sources (C10a/b/c), before filtering.
	TradeEventsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "trade_events_total",
		Help: "Total trade events ingested from all sources.",
	})

	// CopySignalsEmitted counts CopySignal values the pipeline (C9) emits
	// toward the copy engine (C12) after admission/consensus checks pass.
	CopySignalsEmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "copy_signals_emitted",
		Help: "Total copy signals emitted toward the copy engine.",
	})

	// OrdersFilled counts orders the executor (C11) reports as filled.
	OrdersFilled = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orders_filled",
		Help: "Total copy orders that reached a filled terminal state.",
	})

	// OrdersFailed counts orders the executor reports as failed, including
	// exhausted CLOB-error retries (C12's retry loop).
	OrdersFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orders_failed",
		Help: "Total copy orders that reached a failed terminal state.",
	})

	// ConsensusSignalsTotal counts basket-consensus-driven signals (C5).
	ConsensusSignalsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consensus_signals_total",
		Help: "Total signals emitted due to basket consensus agreement.",
	})

	// ActiveWhales tracks the current count of is_active=true whale rows.
	ActiveWhales = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "active_whales",
		Help: "Current number of actively tracked whale wallets.",
	})

	// OpenPositions tracks the current count of open copy-trading positions.
	OpenPositions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "open_positions",
		Help: "Current number of open positions.",
	})

	// PipelineLatencySeconds measures wall-clock time from trade-event
	// ingestion to copy-signal emission (or drop) in the pipeline (C9).
	PipelineLatencySeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pipeline_latency_seconds",
		Help:    "Latency from trade event ingestion to copy signal emission.",
		Buckets: prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(
		TradeEventsTotal,
		CopySignalsEmitted,
		OrdersFilled,
		OrdersFailed,
		ConsensusSignalsTotal,
		ActiveWhales,
		OpenPositions,
		PipelineLatencySeconds,
	)
}
