// Package monitoring exposes prometheus metrics and a JSON health-status
// handler for the VPA engine, adapted from the teacher's monitoring
// package onto pipeline/backtest/safety concerns.
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vpa_cycles_total",
			Help: "Total number of pipeline cycles run",
		},
		[]string{"symbol", "timeframe"},
	)

	SignalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vpa_signals_total",
			Help: "Total number of signal events raised by the rule engine",
		},
		[]string{"symbol", "rule_id", "class"},
	)

	IntentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vpa_trade_intents_total",
			Help: "Total number of trade intents produced, by status",
		},
		[]string{"symbol", "status"},
	)

	TradePnL = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vpa_trade_pnl",
			Help:    "Profit and loss per closed trade",
			Buckets: prometheus.LinearBuckets(-1000, 100, 20),
		},
		[]string{"symbol"},
	)

	ActiveSetupCandidates = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vpa_active_setup_candidates",
			Help: "Current number of in-progress (unexpired) setup candidates",
		},
		[]string{"symbol"},
	)

	PipelineLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vpa_pipeline_latency_seconds",
			Help:    "Time to run one pipeline cycle (feature through risk)",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
		},
		[]string{"symbol"},
	)

	SafetyBlocksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vpa_safety_blocks_total",
			Help: "Total number of trade submissions blocked by the safety guard",
		},
		[]string{"symbol", "reason"},
	)
)

// RecordTrade records a closed trade's realized PnL.
func RecordTrade(symbol string, pnl float64) {
	TradePnL.WithLabelValues(symbol).Observe(pnl)
}
