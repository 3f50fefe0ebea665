package sensitivity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltix/vpa-engine/internal/config"
	"github.com/voltix/vpa-engine/internal/vpa"
)

func TestComputeNearMisses_VolumeJustBelowHighThreshold(t *testing.T) {
	cfg := config.DefaultVPAConfig() // HighGT = 1.5
	f := vpa.CandleFeatures{
		VolRel: 1.45, VolState: vpa.VolAverage,
		SpreadRel: 1.0, SpreadState: vpa.SpreadNormal,
		CandleType: vpa.CandleDown,
	}
	misses := ComputeNearMisses(f, cfg, DefaultGapThreshold)

	var found bool
	for _, m := range misses {
		if m.Condition == "vol_rel near HIGH boundary" {
			found = true
			assert.Equal(t, 1.45, m.Actual)
			assert.Equal(t, 1.5, m.Threshold)
			assert.Less(t, m.GapPct, 0.0, "below threshold yields a negative gap")
		}
	}
	assert.True(t, found)
}

func TestComputeNearMisses_NoMissWhenFarFromAnyThreshold(t *testing.T) {
	cfg := config.DefaultVPAConfig()
	f := vpa.CandleFeatures{
		VolRel: 1.0, VolState: vpa.VolAverage,
		SpreadRel: 1.0, SpreadState: vpa.SpreadNormal,
		CandleType: vpa.CandleDown,
		Range:      0,
	}
	misses := ComputeNearMisses(f, cfg, DefaultGapThreshold)
	assert.Empty(t, misses)
}

func TestComputeNearMisses_SortedByAbsoluteGapAscending(t *testing.T) {
	cfg := config.DefaultVPAConfig()
	f := vpa.CandleFeatures{
		VolRel: 1.49, VolState: vpa.VolAverage, // gap ~ -0.0067 vs HighGT=1.5
		SpreadRel: 0.65, SpreadState: vpa.SpreadNormal, // gap ~ -0.0714 vs NarrowLT=0.7
		CandleType: vpa.CandleDown,
	}
	misses := ComputeNearMisses(f, cfg, DefaultGapThreshold)
	require.True(t, len(misses) >= 2)
	for i := 1; i < len(misses); i++ {
		assert.LessOrEqual(t, absFloat(misses[i-1].GapPct), absFloat(misses[i].GapPct))
	}
}

func TestComputeNearMisses_VAL1ProximityOnWideUpBarJustBelowHighVolume(t *testing.T) {
	cfg := config.DefaultVPAConfig()
	f := vpa.CandleFeatures{
		CandleType:  vpa.CandleUp,
		SpreadState: vpa.SpreadWide,
		VolState:    vpa.VolAverage,
		VolRel:      1.45, // just below HighGT=1.5
	}
	misses := ComputeNearMisses(f, cfg, DefaultGapThreshold)

	var found bool
	for _, m := range misses {
		if m.RuleID == "VAL-1" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestComputeNearMisses_HammerProximityRequiresAtLeastTwoConditionsPassing(t *testing.T) {
	cfg := config.DefaultVPAConfig() // hammer: lowerMin=0.6, upperMax=0.1, bodyMax=0.3
	f := vpa.CandleFeatures{
		Range:      10,
		LowerWick:  5.9, // ratio 0.59, just below 0.6 min
		UpperWick:  0.5, // ratio 0.05, passes upperMax
		Spread:     2.0, // ratio 0.2, passes bodyMax
		CandleType: vpa.CandleDown,
	}
	misses := ComputeNearMisses(f, cfg, DefaultGapThreshold)

	var found bool
	for _, m := range misses {
		if m.RuleID == "STR-1" {
			found = true
		}
	}
	assert.True(t, found, "2 of 3 hammer conditions pass, so the failing one is reported as a near miss")
}

func TestComputeNearMisses_HammerSkippedWhenFewerThanTwoConditionsPass(t *testing.T) {
	cfg := config.DefaultVPAConfig()
	f := vpa.CandleFeatures{
		Range:      10,
		LowerWick:  1, // ratio 0.1, fails lowerMin
		UpperWick:  5, // ratio 0.5, fails upperMax
		Spread:     5, // ratio 0.5, fails bodyMax
		CandleType: vpa.CandleDown,
	}
	misses := ComputeNearMisses(f, cfg, DefaultGapThreshold)
	for _, m := range misses {
		assert.NotEqual(t, "STR-1", m.RuleID)
	}
}

func TestComputeNearMisses_ZeroRangeSkipsShapeChecks(t *testing.T) {
	cfg := config.DefaultVPAConfig()
	f := vpa.CandleFeatures{Range: 0, CandleType: vpa.CandleDown}
	misses := ComputeNearMisses(f, cfg, DefaultGapThreshold)
	for _, m := range misses {
		assert.NotEqual(t, "STR-1", m.RuleID)
		assert.NotEqual(t, "WEAK-1", m.RuleID)
	}
}

func TestNearMiss_StringIncludesRuleAndValues(t *testing.T) {
	m := NearMiss{RuleID: "STR-1", Condition: "lower_wick_ratio just below hammer min", Actual: 0.59, Threshold: 0.6, GapPct: -0.0167}
	s := m.String()
	assert.Contains(t, s, "STR-1")
	assert.Contains(t, s, "0.5900")
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
