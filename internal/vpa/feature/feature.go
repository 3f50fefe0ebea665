// Package feature implements the Feature Engine: per-bar CandleFeatures
// derived from a bar and its rolling baselines.
package feature

import (
	"github.com/voltix/vpa-engine/internal/config"
	"github.com/voltix/vpa-engine/internal/errors"
	"github.com/voltix/vpa-engine/internal/vpa"
)

// Engine computes CandleFeatures for the most recent bar in a history.
type Engine struct {
	cfg *config.VPAConfig
}

// New returns a Feature Engine bound to cfg.
func New(cfg *config.VPAConfig) *Engine {
	return &Engine{cfg: cfg}
}

// Compute derives CandleFeatures for the last bar of history H (len(H) >= 1).
// SMA windows exclude the current bar; when fewer than N/M prior bars
// exist, the average is taken over what's available, and an empty prior
// history yields a baseline of 0 (degenerate input, handled locally per
// spec §7 — relative measures become 0 rather than erroring).
func (e *Engine) Compute(tf string, history []vpa.Bar) (vpa.CandleFeatures, error) {
	if len(history) == 0 {
		return vpa.CandleFeatures{}, errors.NewInsufficientDataError("feature.Engine", "Compute")
	}

	bar := history[len(history)-1]
	prior := history[:len(history)-1]

	spread := absf(bar.Close - bar.Open)
	rng := bar.High - bar.Low
	upperWick := bar.High - maxf(bar.Open, bar.Close)
	lowerWick := minf(bar.Open, bar.Close) - bar.Low

	volBaseline := sma(lastN(volumes(prior), e.cfg.Vol.AvgWindowN))
	spreadBaseline := sma(lastN(spreads(prior), e.cfg.Spread.AvgWindowM))

	volRel := relativeTo(bar.Volume, volBaseline)
	spreadRel := relativeTo(spread, spreadBaseline)

	candleType := vpa.CandleDown
	if bar.Close >= bar.Open {
		candleType = vpa.CandleUp
	}

	return vpa.CandleFeatures{
		TF:          tf,
		Bar:         bar,
		Spread:      spread,
		Range:       rng,
		UpperWick:   upperWick,
		LowerWick:   lowerWick,
		SpreadRel:   spreadRel,
		VolRel:      volRel,
		VolState:    classifyVol(volRel, e.cfg.Vol.Thresholds),
		SpreadState: classifySpread(spreadRel, e.cfg.Spread.Thresholds),
		CandleType:  candleType,
	}, nil
}

// classifyVol applies the 4-state classification from spec §4.1. Boundary
// discipline is closed on the AVERAGE side, open on the outer sides.
func classifyVol(rel float64, t config.VolThresholds) vpa.VolState {
	switch {
	case rel < t.LowLT:
		return vpa.VolLow
	case rel <= t.HighGT:
		return vpa.VolAverage
	case rel <= t.UltraHighGT:
		return vpa.VolHigh
	default:
		return vpa.VolUltraHigh
	}
}

// classifySpread applies the 3-state classification from spec §4.1.
// Boundary discipline is closed on the NORMAL side.
func classifySpread(rel float64, t config.SpreadThresholds) vpa.SpreadState {
	switch {
	case rel < t.NarrowLT:
		return vpa.SpreadNarrow
	case rel <= t.WideGT:
		return vpa.SpreadNormal
	default:
		return vpa.SpreadWide
	}
}

func relativeTo(value, baseline float64) float64 {
	if baseline <= 0 {
		return 0
	}
	return value / baseline
}

func volumes(bars []vpa.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Volume
	}
	return out
}

func spreads(bars []vpa.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = absf(b.Close - b.Open)
	}
	return out
}

func lastN(values []float64, n int) []float64 {
	if n <= 0 || len(values) == 0 {
		return nil
	}
	if len(values) <= n {
		return values
	}
	return values[len(values)-n:]
}

func sma(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
