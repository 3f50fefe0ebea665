// Package context implements the Context Engine (trend, strength,
// location, congestion, volume trend) and the Daily-Context Resolver
// (per-signal dominant-alignment resolution against a higher timeframe).
package context

import (
	"strings"

	"github.com/voltix/vpa-engine/internal/config"
	"github.com/voltix/vpa-engine/internal/vpa"
)

// Trend-strength thresholds are hard-coded constants per spec §9's
// resolved Open Question (a): the reference implementation keeps them
// fixed; treat as constants until a schema field exists.
const (
	strongRatio   = 0.80
	moderateRatio = 0.60

	locationTopPct    = 0.75
	locationBottomPct = 0.25
)

// Engine computes ContextSnapshot for a timeframe from bar history.
type Engine struct {
	cfg *config.VPAConfig
}

// New returns a Context Engine bound to cfg.
func New(cfg *config.VPAConfig) *Engine {
	return &Engine{cfg: cfg}
}

// Analyze derives the ContextSnapshot for timeframe tf from history H.
// DominantAlignment is left UNKNOWN here; it is resolved per-signal by
// Resolve below, using a higher-timeframe snapshot when one is supplied.
func (e *Engine) Analyze(tf string, history []vpa.Bar) vpa.ContextSnapshot {
	closes := closesOf(history)

	lookback := e.cfg.Trend.WindowK
	if lookback > len(closes)-1 {
		lookback = len(closes) - 1
	}
	trend, strength := trendAndStrength(closes, lookback)

	location, rangeHigh, rangeLow := trendLocation(history, e.cfg.Trend.LocationLookback)

	congestion := congestionState(history, e.cfg.Trend.CongestionWindow, e.cfg.Trend.LocationLookback, e.cfg.Trend.CongestionPct, rangeHigh, rangeLow)

	volTrend := volumeTrend(history, lookback)

	return vpa.ContextSnapshot{
		TF:                tf,
		Trend:             trend,
		TrendStrength:      strength,
		TrendLocation:      location,
		VolumeTrend:        volTrend,
		Congestion:         congestion,
		DominantAlignment:  vpa.AlignmentUnknown,
	}
}

func closesOf(history []vpa.Bar) []float64 {
	out := make([]float64, len(history))
	for i, b := range history {
		out[i] = b.Close
	}
	return out
}

// trendAndStrength counts close-to-close transitions over the last
// `lookback` bars (spec §4.2).
func trendAndStrength(closes []float64, lookback int) (vpa.Trend, vpa.TrendStrength) {
	if lookback <= 0 || len(closes) < 2 {
		return vpa.TrendUnknown, vpa.TrendWeak
	}

	start := len(closes) - 1 - lookback
	if start < 0 {
		start = 0
	}

	var ups, downs int
	for i := start + 1; i < len(closes); i++ {
		switch {
		case closes[i] > closes[i-1]:
			ups++
		case closes[i] < closes[i-1]:
			downs++
		}
	}

	total := ups + downs
	if total == 0 {
		return vpa.TrendUnknown, vpa.TrendWeak
	}

	var trend vpa.Trend
	switch {
	case ups > downs:
		trend = vpa.TrendUp
	case downs > ups:
		trend = vpa.TrendDown
	default:
		trend = vpa.TrendRange
	}

	if trend == vpa.TrendRange {
		return trend, vpa.TrendWeak
	}

	ratio := float64(maxInt(ups, downs)) / float64(lookback)
	switch {
	case ratio >= strongRatio:
		return trend, vpa.TrendStrong
	case ratio >= moderateRatio:
		return trend, vpa.TrendModerate
	default:
		return trend, vpa.TrendWeak
	}
}

// trendLocation places the last close within a location_lookback window
// (spec §4.2). Returns UNKNOWN on a degenerate (zero-width) range or too
// little history.
func trendLocation(history []vpa.Bar, lookback int) (vpa.TrendLocation, float64, float64) {
	if len(history) < 2 {
		return vpa.LocationUnknown, 0, 0
	}

	window := lastNBars(history, lookback)
	if len(window) < 2 {
		return vpa.LocationUnknown, 0, 0
	}

	highest, lowest := highLow(window)
	if highest <= lowest {
		return vpa.LocationUnknown, highest, lowest
	}

	lastClose := history[len(history)-1].Close
	pct := (lastClose - lowest) / (highest - lowest)

	switch {
	case pct >= locationTopPct:
		return vpa.LocationTop, highest, lowest
	case pct <= locationBottomPct:
		return vpa.LocationBottom, highest, lowest
	default:
		return vpa.LocationMiddle, highest, lowest
	}
}

// congestionState compares a recent window's range to the wider
// location_lookback range (spec §4.2). range_high/range_low are carried
// even when congestion isn't active, for diagnostics.
func congestionState(history []vpa.Bar, recentWindow, widerWindow int, congestionPct, widerHigh, widerLow float64) vpa.Congestion {
	recent := lastNBars(history, recentWindow)
	if len(recent) < 2 || widerHigh <= widerLow {
		return vpa.Congestion{Active: false, RangeHigh: widerHigh, RangeLow: widerLow}
	}

	recentHigh, recentLow := highLow(recent)
	recentRange := recentHigh - recentLow
	widerRange := widerHigh - widerLow

	active := widerRange > 0 && recentRange/widerRange < congestionPct

	return vpa.Congestion{Active: active, RangeHigh: widerHigh, RangeLow: widerLow}
}

// volumeTrend counts rising vs falling bar-to-bar volume transitions over
// the trend window (spec §4.2, a fresh addition not present in the
// reference context_engine.py — built with the same "count transitions,
// majority decides" shape used for trend direction).
func volumeTrend(history []vpa.Bar, lookback int) vpa.VolumeTrend {
	window := lastNBars(history, lookback+1)
	if len(window) < 2 {
		return vpa.VolumeTrendUnknown
	}

	var rising, falling int
	for i := 1; i < len(window); i++ {
		switch {
		case window[i].Volume > window[i-1].Volume:
			rising++
		case window[i].Volume < window[i-1].Volume:
			falling++
		}
	}

	total := rising + falling
	if total == 0 {
		return vpa.VolumeTrendUnknown
	}
	switch {
	case rising > falling:
		return vpa.VolumeTrendRising
	case falling > rising:
		return vpa.VolumeTrendFalling
	default:
		return vpa.VolumeTrendFlat
	}
}

func lastNBars(history []vpa.Bar, n int) []vpa.Bar {
	if n <= 0 || len(history) == 0 {
		return nil
	}
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}

func highLow(bars []vpa.Bar) (high, low float64) {
	high = bars[0].High
	low = bars[0].Low
	for _, b := range bars[1:] {
		if b.High > high {
			high = b.High
		}
		if b.Low < low {
			low = b.Low
		}
	}
	return high, low
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Resolve is the Daily-Context Resolver (spec §4.3): given a higher-
// timeframe snapshot and a signal's direction bias, returns the dominant
// alignment. Pure function; enriches the intraday snapshot on a
// per-signal basis for CTX-2.
func Resolve(daily vpa.ContextSnapshot, bias vpa.DirectionBias) vpa.DominantAlignment {
	if daily.Trend == vpa.TrendUnknown || daily.Trend == vpa.TrendRange {
		return vpa.AlignmentUnknown
	}

	leading := strings.ToUpper(strings.SplitN(string(bias), "_", 2)[0])

	var biasDirection vpa.Trend
	switch leading {
	case "BULLISH":
		biasDirection = vpa.TrendUp
	case "BEARISH":
		biasDirection = vpa.TrendDown
	default:
		return vpa.AlignmentUnknown
	}

	if biasDirection == daily.Trend {
		return vpa.AlignmentWith
	}
	return vpa.AlignmentAgainst
}
