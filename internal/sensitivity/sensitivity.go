// Package sensitivity implements the near-miss threshold-proximity
// diagnostic (SPEC_FULL §4.11): pure functions that report how close a
// bar's features came to crossing a signal threshold without actually
// crossing it. Feeds only the `scan` CLI command — it never
// feeds back into rule thresholds. Grounded on original_source's
// vpa_core/sensitivity.py.
package sensitivity

import (
	"fmt"
	"math"
	"sort"

	"github.com/voltix/vpa-engine/internal/config"
	"github.com/voltix/vpa-engine/internal/vpa"
)

// NearMiss is a signal condition that was close to firing but didn't.
type NearMiss struct {
	RuleID    string
	Condition string
	Actual    float64
	Threshold float64
	GapPct    float64
}

// DefaultGapThreshold is the maximum relative gap (as a fraction) reported
// by default: conditions within 15% of a threshold are surfaced.
const DefaultGapThreshold = 0.15

// ComputeNearMisses identifies near-miss conditions for one bar's features,
// sorted by gap magnitude (closest first).
func ComputeNearMisses(f vpa.CandleFeatures, cfg *config.VPAConfig, gapThreshold float64) []NearMiss {
	var misses []NearMiss

	misses = checkVolumeProximity(f, cfg, gapThreshold, misses)
	misses = checkSpreadProximity(f, cfg, gapThreshold, misses)
	misses = checkVAL1Proximity(f, cfg, gapThreshold, misses)
	misses = checkHammerProximity(f, cfg, gapThreshold, misses)
	misses = checkShootingStarProximity(f, cfg, gapThreshold, misses)

	sort.SliceStable(misses, func(i, j int) bool {
		return math.Abs(misses[i].GapPct) < math.Abs(misses[j].GapPct)
	})
	return misses
}

// gap is the relative distance from threshold, as a fraction of threshold.
func gap(actual, threshold float64) float64 {
	if threshold == 0 {
		return math.Inf(1)
	}
	return (actual - threshold) / math.Abs(threshold)
}

func checkVolumeProximity(f vpa.CandleFeatures, cfg *config.VPAConfig, gapThr float64, out []NearMiss) []NearMiss {
	vt := cfg.Vol.Thresholds

	if f.VolState != vpa.VolLow {
		g := gap(f.VolRel, vt.LowLT)
		if math.Abs(g) <= gapThr {
			out = append(out, NearMiss{"(volume)", "vol_rel near LOW boundary", f.VolRel, vt.LowLT, round4(g)})
		}
	}

	if f.VolState != vpa.VolHigh && f.VolState != vpa.VolUltraHigh {
		g := gap(f.VolRel, vt.HighGT)
		if math.Abs(g) <= gapThr {
			out = append(out, NearMiss{"(volume)", "vol_rel near HIGH boundary", f.VolRel, vt.HighGT, round4(g)})
		}
	}
	return out
}

func checkSpreadProximity(f vpa.CandleFeatures, cfg *config.VPAConfig, gapThr float64, out []NearMiss) []NearMiss {
	st := cfg.Spread.Thresholds

	if f.SpreadState != vpa.SpreadNarrow {
		g := gap(f.SpreadRel, st.NarrowLT)
		if math.Abs(g) <= gapThr {
			out = append(out, NearMiss{"(spread)", "spread_rel near NARROW boundary", f.SpreadRel, st.NarrowLT, round4(g)})
		}
	}

	if f.SpreadState != vpa.SpreadWide {
		g := gap(f.SpreadRel, st.WideGT)
		if math.Abs(g) <= gapThr {
			out = append(out, NearMiss{"(spread)", "spread_rel near WIDE boundary", f.SpreadRel, st.WideGT, round4(g)})
		}
	}
	return out
}

// checkVAL1Proximity checks if a bar was close to firing VAL-1 (wide up bar + high volume).
func checkVAL1Proximity(f vpa.CandleFeatures, cfg *config.VPAConfig, gapThr float64, out []NearMiss) []NearMiss {
	if f.CandleType != vpa.CandleUp {
		return out
	}

	vt := cfg.Vol.Thresholds
	st := cfg.Spread.Thresholds
	hasWide := f.SpreadState == vpa.SpreadWide
	hasHighVol := f.VolState == vpa.VolHigh || f.VolState == vpa.VolUltraHigh

	if hasWide && !hasHighVol {
		g := gap(f.VolRel, vt.HighGT)
		if math.Abs(g) <= gapThr {
			out = append(out, NearMiss{"VAL-1", "wide up bar but vol_rel just below HIGH", f.VolRel, vt.HighGT, round4(g)})
		}
	}

	if hasHighVol && !hasWide {
		g := gap(f.SpreadRel, st.WideGT)
		if math.Abs(g) <= gapThr {
			out = append(out, NearMiss{"VAL-1", "high vol up bar but spread_rel just below WIDE", f.SpreadRel, st.WideGT, round4(g)})
		}
	}
	return out
}

// checkHammerProximity checks if a bar was close to qualifying as a hammer (STR-1).
func checkHammerProximity(f vpa.CandleFeatures, cfg *config.VPAConfig, gapThr float64, out []NearMiss) []NearMiss {
	rng := f.Range
	if rng <= 0 {
		return out
	}

	h := cfg.CandlePatterns.Hammer
	lowerRatio := f.LowerWick / rng
	bodyRatio := f.Spread / rng
	upperRatio := f.UpperWick / rng

	passesLower := lowerRatio >= h.LowerWickRatioMin
	passesBody := bodyRatio <= h.BodyRatioMax
	passesUpper := upperRatio <= h.UpperWickRatioMax

	passing := countTrue(passesLower, passesBody, passesUpper)
	if passing < 2 {
		return out
	}

	if !passesLower {
		g := gap(lowerRatio, h.LowerWickRatioMin)
		if math.Abs(g) <= gapThr {
			out = append(out, NearMiss{"STR-1", "lower_wick_ratio just below hammer min", round4(lowerRatio), h.LowerWickRatioMin, round4(g)})
		}
	}
	if !passesBody {
		g := gap(bodyRatio, h.BodyRatioMax)
		if math.Abs(g) <= gapThr {
			out = append(out, NearMiss{"STR-1", "body_ratio just above hammer max", round4(bodyRatio), h.BodyRatioMax, round4(g)})
		}
	}
	if !passesUpper {
		g := gap(upperRatio, h.UpperWickRatioMax)
		if math.Abs(g) <= gapThr {
			out = append(out, NearMiss{"STR-1", "upper_wick_ratio just above hammer max", round4(upperRatio), h.UpperWickRatioMax, round4(g)})
		}
	}
	return out
}

// checkShootingStarProximity checks if a bar was close to qualifying as a shooting star (WEAK-1).
func checkShootingStarProximity(f vpa.CandleFeatures, cfg *config.VPAConfig, gapThr float64, out []NearMiss) []NearMiss {
	rng := f.Range
	if rng <= 0 {
		return out
	}

	ss := cfg.CandlePatterns.ShootingStar
	upperRatio := f.UpperWick / rng
	bodyRatio := f.Spread / rng
	lowerRatio := f.LowerWick / rng

	passesUpper := upperRatio >= ss.UpperWickRatioMin
	passesBody := bodyRatio <= ss.BodyRatioMax
	passesLower := lowerRatio <= ss.LowerWickRatioMax

	passing := countTrue(passesUpper, passesBody, passesLower)
	if passing < 2 {
		return out
	}

	if !passesUpper {
		g := gap(upperRatio, ss.UpperWickRatioMin)
		if math.Abs(g) <= gapThr {
			out = append(out, NearMiss{"WEAK-1", "upper_wick_ratio just below shooting star min", round4(upperRatio), ss.UpperWickRatioMin, round4(g)})
		}
	}
	if !passesBody {
		g := gap(bodyRatio, ss.BodyRatioMax)
		if math.Abs(g) <= gapThr {
			out = append(out, NearMiss{"WEAK-1", "body_ratio just above shooting star max", round4(bodyRatio), ss.BodyRatioMax, round4(g)})
		}
	}
	if !passesLower {
		g := gap(lowerRatio, ss.LowerWickRatioMax)
		if math.Abs(g) <= gapThr {
			out = append(out, NearMiss{"WEAK-1", "lower_wick_ratio just above shooting star max", round4(lowerRatio), ss.LowerWickRatioMax, round4(g)})
		}
	}
	return out
}

func countTrue(vals ...bool) int {
	n := 0
	for _, v := range vals {
		if v {
			n++
		}
	}
	return n
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// String renders a NearMiss for CLI display.
func (m NearMiss) String() string {
	return fmt.Sprintf("%-14s %-48s actual=%.4f threshold=%.4f gap=%.1f%%", m.RuleID, m.Condition, m.Actual, m.Threshold, m.GapPct*100)
}
