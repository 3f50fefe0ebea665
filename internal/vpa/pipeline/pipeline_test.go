package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltix/vpa-engine/internal/config"
	"github.com/voltix/vpa-engine/internal/vpa"
)

func flatBar(i int, close, volume float64) vpa.Bar {
	return vpa.Bar{
		Open: close, High: close + 1, Low: close - 1, Close: close, Volume: volume,
		Timestamp: time.Date(2026, 1, 1, 0, i, 0, 0, time.UTC),
		BarIndex:  i,
	}
}

func TestRun_EmptyHistoryReturnsBareResult(t *testing.T) {
	p := New(config.DefaultVPAConfig())
	result := p.Run(nil, 0, "1h", vpa.AccountState{}, 0, nil)
	assert.Empty(t, result.Signals)
	assert.Empty(t, result.Intents)
}

func TestRun_StampsEvidenceOnEverySignal(t *testing.T) {
	p := New(config.DefaultVPAConfig())
	history := []vpa.Bar{flatBar(0, 100, 1000)}
	result := p.Run(history, 0, "1h", vpa.AccountState{Equity: 10000}, 0, nil)
	for _, s := range result.Signals {
		_, hasLow := s.Evidence["bar_low"]
		_, hasHigh := s.Evidence["bar_high"]
		assert.True(t, hasLow)
		assert.True(t, hasHigh)
	}
}

func TestRun_VolumeGuardSuppressesSignalsBelowMinAvgVolume(t *testing.T) {
	cfg := config.DefaultVPAConfig()
	cfg.VolumeGuard.Enabled = true
	cfg.VolumeGuard.MinAvgVolume = 1_000_000
	p := New(cfg)
	history := []vpa.Bar{flatBar(0, 100, 10)}
	result := p.Run(history, 0, "1h", vpa.AccountState{Equity: 10000}, 0, nil)
	assert.Empty(t, result.Signals)
}

func TestRun_EndToEndProducesReadyIntentAcrossComposerBars(t *testing.T) {
	cfg := config.DefaultVPAConfig()
	p := New(cfg)

	// Build a history: baseline bars with average volume/spread, then a
	// TEST-SUP-1 trigger bar (low volume, narrow spread) followed by a
	// VAL-1 completer bar (up, wide spread, high volume).
	var bars []vpa.Bar
	for i := 0; i < 25; i++ {
		bars = append(bars, vpa.Bar{
			Open: 100, High: 101, Low: 99, Close: 100.2, Volume: 1000,
			Timestamp: time.Date(2026, 1, 1, 0, i, 0, 0, time.UTC), BarIndex: i,
		})
	}
	triggerBar := vpa.Bar{
		Open: 100, High: 100.3, Low: 99.9, Close: 100.1, Volume: 100,
		Timestamp: time.Date(2026, 1, 1, 1, 0, 0, 0, time.UTC), BarIndex: 25,
	}
	bars = append(bars, triggerBar)

	result := p.Run(bars, 25, "1h", vpa.AccountState{Equity: 10000}, 0, nil)
	var sawTrigger bool
	for _, s := range result.Signals {
		if s.ID == "TEST-SUP-1" {
			sawTrigger = true
		}
	}
	require.True(t, sawTrigger, "expected TEST-SUP-1 to fire on a low-volume narrow-spread bar")

	completerBar := vpa.Bar{
		Open: 100.1, High: 106, Low: 100, Close: 105, Volume: 3000,
		Timestamp: time.Date(2026, 1, 1, 2, 0, 0, 0, time.UTC), BarIndex: 26,
	}
	bars = append(bars, completerBar)
	result = p.Run(bars, 26, "1h", vpa.AccountState{Equity: 10000}, 0, nil)

	var sawReady bool
	for _, intent := range result.Intents {
		if intent.Status == vpa.IntentReady {
			sawReady = true
			assert.Equal(t, "ENTRY-LONG-1", intent.SetupID)
		}
	}
	assert.True(t, sawReady, "TEST-SUP-1 followed by VAL-1 should complete ENTRY-LONG-1 into a READY intent")
}

func TestRun_ReduceRiskPolicyReachesRiskEngineThroughDailyContext(t *testing.T) {
	cfg := config.DefaultVPAConfig()
	cfg.Gates.CTX2DominantAlignmentPolicy = "REDUCE_RISK"
	cfg.Risk.CountertrendMultiplier = 0.5

	buildIntent := func(p *Pipeline, daily *vpa.ContextSnapshot) vpa.TradeIntent {
		var bars []vpa.Bar
		for i := 0; i < 25; i++ {
			bars = append(bars, vpa.Bar{
				Open: 100, High: 101, Low: 99, Close: 100.2, Volume: 1000,
				Timestamp: time.Date(2026, 1, 1, 0, i, 0, 0, time.UTC), BarIndex: i,
			})
		}
		bars = append(bars, vpa.Bar{
			Open: 100, High: 100.3, Low: 99.9, Close: 100.1, Volume: 100,
			Timestamp: time.Date(2026, 1, 1, 1, 0, 0, 0, time.UTC), BarIndex: 25,
		})
		p.Run(bars, 25, "1h", vpa.AccountState{Equity: 10000}, 0, daily)

		bars = append(bars, vpa.Bar{
			Open: 100.1, High: 106, Low: 100, Close: 105, Volume: 3000,
			Timestamp: time.Date(2026, 1, 1, 2, 0, 0, 0, time.UTC), BarIndex: 26,
		})
		result := p.Run(bars, 26, "1h", vpa.AccountState{Equity: 10000}, 0, daily)

		for _, intent := range result.Intents {
			if intent.Status == vpa.IntentReady {
				return intent
			}
		}
		t.Fatal("expected a READY intent")
		return vpa.TradeIntent{}
	}

	// TEST-SUP-1 (the composer's trigger signal) carries BiasBullish; a daily
	// downtrend resolves that to AGAINST, which the per-bar ctx alone (always
	// UNKNOWN from context.Analyze) could never produce.
	against := buildIntent(New(cfg), &vpa.ContextSnapshot{Trend: vpa.TrendDown})
	with := buildIntent(New(cfg), &vpa.ContextSnapshot{Trend: vpa.TrendUp})

	assert.Equal(t, cfg.Risk.RiskPctPerTrade*0.5, against.RiskPlan.RiskPct)
	assert.Equal(t, cfg.Risk.RiskPctPerTrade, with.RiskPlan.RiskPct)
	assert.Contains(t, against.Rationale, "CTX-2:AGAINST(risk_reduced)")
}
