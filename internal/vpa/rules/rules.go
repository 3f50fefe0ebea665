// Package rules implements the Rule Engine: pure predicates over
// CandleFeatures and ContextSnapshot that each emit at most one
// SignalEvent. Detectors are grouped and run in the fixed order
// bar-level -> trend-level -> cluster-level -> conf-2 -> avoidance, per
// spec §9's resolved Open Question (b); composer invalidation depends on
// scanning every signal from one bar together, so this order must be
// preserved.
package rules

import (
	"github.com/voltix/vpa-engine/internal/config"
	"github.com/voltix/vpa-engine/internal/vpa"
)

// barDetector is a pure predicate over a single bar's features.
type barDetector func(vpa.CandleFeatures, *config.VPAConfig) *vpa.SignalEvent

// trendDetector is a pure predicate over the current context snapshot.
type trendDetector func(vpa.ContextSnapshot, *config.VPAConfig) *vpa.SignalEvent

// Engine runs every registered detector against one bar's features and
// context snapshot and collects the non-nil results.
type Engine struct {
	cfg *config.VPAConfig
}

// New returns a Rule Engine bound to cfg.
func New(cfg *config.VPAConfig) *Engine {
	return &Engine{cfg: cfg}
}

var barDetectors = []barDetector{
	detectVAL1,
	detectANOM1,
	detectANOM2,
}

var trendDetectors = []trendDetector{
	detectTrendVAL1,
	detectTrendANOM1,
}

var clusterDetectors = []barDetector{
	detectSTR1,
	detectWEAK1,
	detectWEAK2,
	detectCLIMAXSELL1,
	detectTESTSUP1,
	detectTESTSUP2,
	detectTESTDEM1,
}

var conf2Detectors = []barDetector{
	detectCONF1,
}

var avoidanceDetectors = []barDetector{
	detectAvoidNews1,
}

// Evaluate runs all detectors in the canonical order and returns every
// signal that fired. The caller (pipeline orchestrator) is responsible
// for stamping evidence["bar_low"]/evidence["bar_high"] after collection.
func (e *Engine) Evaluate(features vpa.CandleFeatures, ctx vpa.ContextSnapshot) []vpa.SignalEvent {
	var signals []vpa.SignalEvent

	for _, d := range barDetectors {
		if sig := d(features, e.cfg); sig != nil {
			signals = append(signals, *sig)
		}
	}
	for _, d := range trendDetectors {
		if sig := d(ctx, e.cfg); sig != nil {
			sig.TS = features.Bar.Timestamp
			sig.TF = features.TF
			signals = append(signals, *sig)
		}
	}
	for _, d := range clusterDetectors {
		if sig := d(features, e.cfg); sig != nil {
			signals = append(signals, *sig)
		}
	}
	for _, d := range conf2Detectors {
		if sig := d(features, e.cfg); sig != nil {
			signals = append(signals, *sig)
		}
	}
	for _, d := range avoidanceDetectors {
		if sig := d(features, e.cfg); sig != nil {
			signals = append(signals, *sig)
		}
	}

	return signals
}

func baseEvent(f vpa.CandleFeatures, id string, class vpa.SignalClass, bias vpa.DirectionBias, priority int, gate bool) *vpa.SignalEvent {
	return &vpa.SignalEvent{
		ID:                  id,
		Name:                id,
		TF:                  f.TF,
		TS:                  f.Bar.Timestamp,
		SignalClass:         class,
		DirectionBias:       bias,
		Priority:            priority,
		Evidence:            map[string]float64{},
		RequiresContextGate: gate,
	}
}

// detectVAL1: VAL-1 (VALIDATION, BULLISH, gate=false) — UP + WIDE spread + HIGH/ULTRA_HIGH volume.
func detectVAL1(f vpa.CandleFeatures, _ *config.VPAConfig) *vpa.SignalEvent {
	if f.CandleType == vpa.CandleUp && f.SpreadState == vpa.SpreadWide && f.VolState.AtLeast(vpa.VolHigh) {
		return baseEvent(f, "VAL-1", vpa.ClassValidation, vpa.BiasBullish, 1, false)
	}
	return nil
}

// detectANOM1: ANOM-1 (ANOMALY, BEARISH_OR_WAIT, gate=true) — big result, little effort: UP + WIDE + LOW volume.
func detectANOM1(f vpa.CandleFeatures, _ *config.VPAConfig) *vpa.SignalEvent {
	if f.CandleType == vpa.CandleUp && f.SpreadState == vpa.SpreadWide && f.VolState == vpa.VolLow {
		return baseEvent(f, "ANOM-1", vpa.ClassAnomaly, vpa.BiasBearishOrWait, 2, true)
	}
	return nil
}

// detectANOM2: ANOM-2 (ANOMALY, BEARISH_OR_WAIT, gate=true) — absorption: HIGH/ULTRA_HIGH volume with NARROW/NORMAL spread. Direction-agnostic on candle type.
func detectANOM2(f vpa.CandleFeatures, _ *config.VPAConfig) *vpa.SignalEvent {
	if f.VolState.AtLeast(vpa.VolHigh) && !f.SpreadState.AtLeast(vpa.SpreadWide) {
		return baseEvent(f, "ANOM-2", vpa.ClassAnomaly, vpa.BiasBearishOrWait, 2, true)
	}
	return nil
}

// candleShape computes the three wick/body ratios used by the pattern rules.
// Returns ok=false when range is zero (degenerate input, per spec §7).
func candleShape(f vpa.CandleFeatures) (lowerRatio, bodyRatio, upperRatio float64, ok bool) {
	if f.Range <= 0 {
		return 0, 0, 0, false
	}
	return f.LowerWick / f.Range, f.Spread / f.Range, f.UpperWick / f.Range, true
}

// detectSTR1: STR-1 (hammer, STRENGTH, BULLISH, gate=true).
func detectSTR1(f vpa.CandleFeatures, cfg *config.VPAConfig) *vpa.SignalEvent {
	lower, body, upper, ok := candleShape(f)
	if !ok {
		return nil
	}
	h := cfg.CandlePatterns.Hammer
	if lower >= h.LowerWickRatioMin && body <= h.BodyRatioMax && upper <= h.UpperWickRatioMax {
		return baseEvent(f, "STR-1", vpa.ClassStrength, vpa.BiasBullish, 1, true)
	}
	return nil
}

// shootingStarShape reports whether f matches the shooting-star candle shape.
func shootingStarShape(f vpa.CandleFeatures, cfg *config.VPAConfig) bool {
	lower, body, upper, ok := candleShape(f)
	if !ok {
		return false
	}
	s := cfg.CandlePatterns.ShootingStar
	return upper >= s.UpperWickRatioMin && body <= s.BodyRatioMax && lower <= s.LowerWickRatioMax
}

// detectWEAK1: WEAK-1 (shooting star, WEAKNESS, BEARISH, gate=true).
func detectWEAK1(f vpa.CandleFeatures, cfg *config.VPAConfig) *vpa.SignalEvent {
	if shootingStarShape(f, cfg) {
		return baseEvent(f, "WEAK-1", vpa.ClassWeakness, vpa.BiasBearish, 1, true)
	}
	return nil
}

// detectWEAK2: WEAK-2 (no-demand star, WEAKNESS, BEARISH, gate=true) — WEAK-1 shape + LOW volume. Higher priority than WEAK-1.
func detectWEAK2(f vpa.CandleFeatures, cfg *config.VPAConfig) *vpa.SignalEvent {
	if shootingStarShape(f, cfg) && f.VolState == vpa.VolLow {
		return baseEvent(f, "WEAK-2", vpa.ClassWeakness, vpa.BiasBearish, 2, true)
	}
	return nil
}

// detectCLIMAXSELL1: CLIMAX-SELL-1 (selling climax, WEAKNESS, BEARISH, gate=true) — WEAK-1 shape + HIGH/ULTRA_HIGH volume.
func detectCLIMAXSELL1(f vpa.CandleFeatures, cfg *config.VPAConfig) *vpa.SignalEvent {
	if shootingStarShape(f, cfg) && f.VolState.AtLeast(vpa.VolHigh) {
		return baseEvent(f, "CLIMAX-SELL-1", vpa.ClassWeakness, vpa.BiasBearish, 2, true)
	}
	return nil
}

// detectTESTSUP1: TEST-SUP-1 (TEST, BULLISH, gate=true) — LOW volume, NARROW/NORMAL spread.
func detectTESTSUP1(f vpa.CandleFeatures, _ *config.VPAConfig) *vpa.SignalEvent {
	if f.VolState == vpa.VolLow && !f.SpreadState.AtLeast(vpa.SpreadWide) {
		return baseEvent(f, "TEST-SUP-1", vpa.ClassTest, vpa.BiasBullish, 1, true)
	}
	return nil
}

// detectTESTSUP2: TEST-SUP-2 (failed test, TEST, BEARISH_OR_WAIT, gate=true) — like TEST-SUP-1 but HIGH/ULTRA_HIGH volume.
func detectTESTSUP2(f vpa.CandleFeatures, _ *config.VPAConfig) *vpa.SignalEvent {
	if f.VolState.AtLeast(vpa.VolHigh) && !f.SpreadState.AtLeast(vpa.SpreadWide) {
		return baseEvent(f, "TEST-SUP-2", vpa.ClassTest, vpa.BiasBearishOrWait, 1, true)
	}
	return nil
}

// detectTESTDEM1: TEST-DEM-1 (TEST, BEARISH, gate=true).
func detectTESTDEM1(f vpa.CandleFeatures, cfg *config.VPAConfig) *vpa.SignalEvent {
	if f.Range <= 0 {
		return nil
	}
	body := f.Spread / f.Range
	if body <= cfg.CandlePatterns.ShootingStar.BodyRatioMax && f.UpperWick > f.LowerWick && f.VolState == vpa.VolLow {
		return baseEvent(f, "TEST-DEM-1", vpa.ClassTest, vpa.BiasBearish, 1, true)
	}
	return nil
}

// detectCONF1: CONF-1 (CONFIRMATION, BULLISH, gate=false, priority=3).
func detectCONF1(f vpa.CandleFeatures, _ *config.VPAConfig) *vpa.SignalEvent {
	if f.CandleType == vpa.CandleUp && f.VolState.AtLeast(vpa.VolAverage) && f.SpreadState.AtLeast(vpa.SpreadNormal) {
		return baseEvent(f, "CONF-1", vpa.ClassConfirmation, vpa.BiasBullish, 3, false)
	}
	return nil
}

// detectAvoidNews1: AVOID-NEWS-1 (AVOIDANCE, NEUTRAL, gate=false, priority=0 = highest) — long-legged doji with LOW volume.
func detectAvoidNews1(f vpa.CandleFeatures, cfg *config.VPAConfig) *vpa.SignalEvent {
	lower, body, upper, ok := candleShape(f)
	if !ok {
		return nil
	}
	d := cfg.CandlePatterns.LongLeggedDoji
	if lower >= d.LowerWickRatioMin && upper >= d.UpperWickRatioMin && body <= d.BodyRatioMax && f.VolState == vpa.VolLow {
		return baseEvent(f, "AVOID-NEWS-1", vpa.ClassAvoidance, vpa.BiasNeutral, 0, false)
	}
	return nil
}

// detectTrendVAL1: TREND-VAL-1 (VALIDATION, BULLISH, gate=false) — trend=UP and volume_trend=RISING.
func detectTrendVAL1(ctx vpa.ContextSnapshot, _ *config.VPAConfig) *vpa.SignalEvent {
	if ctx.Trend == vpa.TrendUp && ctx.VolumeTrend == vpa.VolumeTrendRising {
		return &vpa.SignalEvent{
			ID:                  "TREND-VAL-1",
			Name:                "TREND-VAL-1",
			SignalClass:         vpa.ClassValidation,
			DirectionBias:       vpa.BiasBullish,
			Priority:            1,
			Evidence:            map[string]float64{},
			RequiresContextGate: false,
		}
	}
	return nil
}

// detectTrendANOM1: TREND-ANOM-1 (ANOMALY, BEARISH_OR_WAIT, gate=true) — trend=UP and volume_trend=FALLING.
func detectTrendANOM1(ctx vpa.ContextSnapshot, _ *config.VPAConfig) *vpa.SignalEvent {
	if ctx.Trend == vpa.TrendUp && ctx.VolumeTrend == vpa.VolumeTrendFalling {
		return &vpa.SignalEvent{
			ID:                  "TREND-ANOM-1",
			Name:                "TREND-ANOM-1",
			SignalClass:         vpa.ClassAnomaly,
			DirectionBias:       vpa.BiasBearishOrWait,
			Priority:            2,
			Evidence:            map[string]float64{},
			RequiresContextGate: true,
		}
	}
	return nil
}
