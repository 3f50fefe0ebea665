package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltix/vpa-engine/internal/config"
	"github.com/voltix/vpa-engine/internal/vpa"
)

func matchLong(signals ...vpa.SignalEvent) vpa.SetupMatch {
	return vpa.SetupMatch{SetupID: "ENTRY-LONG-1", Direction: vpa.DirectionLong, Signals: signals, MatchedAtBar: 5, TF: "1h"}
}

func TestEvaluate_HardRejectMaxConcurrentPositions(t *testing.T) {
	cfg := config.DefaultVPAConfig()
	cfg.Risk.MaxConcurrentPositions = 1
	e := New(cfg)
	match := matchLong(vpa.SignalEvent{ID: "TEST-SUP-1", Evidence: map[string]float64{"bar_low": 95}})
	intent := e.Evaluate(match, 100, vpa.AccountState{Equity: 10000, OpenPositionCount: 1}, vpa.ContextSnapshot{}, nil, 0)
	assert.Equal(t, vpa.IntentRejected, intent.Status)
	assert.Contains(t, intent.RejectReason, "Max concurrent positions")
}

func TestEvaluate_HardRejectDailyLossLimit(t *testing.T) {
	cfg := config.DefaultVPAConfig()
	limit := 0.03
	cfg.Risk.DailyLossLimitPct = &limit
	e := New(cfg)
	match := matchLong(vpa.SignalEvent{ID: "TEST-SUP-1", Evidence: map[string]float64{"bar_low": 95}})
	account := vpa.AccountState{Equity: 10000, DailyRealizedPnL: -301}
	intent := e.Evaluate(match, 100, account, vpa.ContextSnapshot{}, nil, 0)
	assert.Equal(t, vpa.IntentRejected, intent.Status)
	assert.Contains(t, intent.RejectReason, "Daily loss limit")
}

func TestEvaluate_ZeroDailyLossLimitHaltsOnAnyLoss(t *testing.T) {
	cfg := config.DefaultVPAConfig()
	limit := 0.0
	cfg.Risk.DailyLossLimitPct = &limit
	e := New(cfg)
	match := matchLong(vpa.SignalEvent{ID: "TEST-SUP-1", Evidence: map[string]float64{"bar_low": 95}})
	account := vpa.AccountState{Equity: 10000, DailyRealizedPnL: -0.01}
	intent := e.Evaluate(match, 100, account, vpa.ContextSnapshot{}, nil, 0)
	assert.Equal(t, vpa.IntentRejected, intent.Status, "an explicitly configured 0%% limit means halt on any daily loss")
	assert.Contains(t, intent.RejectReason, "Daily loss limit")
}

func TestEvaluate_NilDailyLossLimitNeverHardRejectsOnPnL(t *testing.T) {
	cfg := config.DefaultVPAConfig()
	require.Nil(t, cfg.Risk.DailyLossLimitPct)
	e := New(cfg)
	match := matchLong(vpa.SignalEvent{ID: "TEST-SUP-1", Evidence: map[string]float64{"bar_low": 95}})
	account := vpa.AccountState{Equity: 10000, DailyRealizedPnL: -9000}
	intent := e.Evaluate(match, 100, account, vpa.ContextSnapshot{}, nil, 0)
	assert.NotEqual(t, "Daily loss limit (0.0%) reached", intent.RejectReason)
}

func TestEvaluate_StopFallsBackToBarLowForLong(t *testing.T) {
	cfg := config.DefaultVPAConfig()
	e := New(cfg)
	match := matchLong(vpa.SignalEvent{ID: "TEST-SUP-1", Evidence: map[string]float64{"bar_low": 95}})
	intent := e.Evaluate(match, 100, vpa.AccountState{Equity: 10000}, vpa.ContextSnapshot{}, nil, 0)
	require.Equal(t, vpa.IntentReady, intent.Status)
	assert.Equal(t, 95.0, intent.RiskPlan.Stop)
}

func TestEvaluate_ATRStopWhenEnabledAndAvailable(t *testing.T) {
	cfg := config.DefaultVPAConfig()
	cfg.ATR.Enabled = true
	cfg.ATR.StopMultiplier = 2.0
	e := New(cfg)
	match := matchLong(vpa.SignalEvent{ID: "TEST-SUP-1", Evidence: map[string]float64{"bar_low": 95}})
	intent := e.Evaluate(match, 100, vpa.AccountState{Equity: 10000}, vpa.ContextSnapshot{}, nil, 3.0)
	require.Equal(t, vpa.IntentReady, intent.Status)
	assert.Equal(t, 94.0, intent.RiskPlan.Stop) // 100 - 3*2
}

func TestEvaluate_ZeroRiskPerShareIsRejected(t *testing.T) {
	cfg := config.DefaultVPAConfig()
	e := New(cfg)
	match := matchLong(vpa.SignalEvent{ID: "TEST-SUP-1", Evidence: map[string]float64{"bar_low": 100}})
	intent := e.Evaluate(match, 100, vpa.AccountState{Equity: 10000}, vpa.ContextSnapshot{}, nil, 0)
	assert.Equal(t, vpa.IntentRejected, intent.Status)
	assert.Contains(t, intent.RejectReason, "Computed size is zero")
}

func TestEvaluate_ReduceRiskPolicyCutsRiskPctAgainstTrend(t *testing.T) {
	cfg := config.DefaultVPAConfig()
	cfg.Gates.CTX2DominantAlignmentPolicy = "REDUCE_RISK"
	cfg.Risk.CountertrendMultiplier = 0.5
	e := New(cfg)
	match := matchLong(vpa.SignalEvent{ID: "TEST-SUP-1", Evidence: map[string]float64{"bar_low": 95}})

	withIntent := e.Evaluate(match, 100, vpa.AccountState{Equity: 10000}, vpa.ContextSnapshot{DominantAlignment: vpa.AlignmentWith}, nil, 0)
	againstIntent := e.Evaluate(match, 100, vpa.AccountState{Equity: 10000}, vpa.ContextSnapshot{DominantAlignment: vpa.AlignmentAgainst}, nil, 0)

	require.Equal(t, vpa.IntentReady, withIntent.Status)
	require.Equal(t, vpa.IntentReady, againstIntent.Status)
	assert.Equal(t, cfg.Risk.RiskPctPerTrade, withIntent.RiskPlan.RiskPct)
	assert.Equal(t, cfg.Risk.RiskPctPerTrade*0.5, againstIntent.RiskPlan.RiskPct)
	assert.Less(t, againstIntent.RiskPlan.Size, withIntent.RiskPlan.Size)
}

func TestEvaluate_ReduceRiskResolvesAlignmentFromDailySnapshotNotBarCtx(t *testing.T) {
	cfg := config.DefaultVPAConfig()
	cfg.Gates.CTX2DominantAlignmentPolicy = "REDUCE_RISK"
	cfg.Risk.CountertrendMultiplier = 0.5
	e := New(cfg)
	match := matchLong(vpa.SignalEvent{ID: "TEST-SUP-1", DirectionBias: vpa.BiasBullish, Evidence: map[string]float64{"bar_low": 95}})

	// ctx is what context.Analyze actually produces per bar: DominantAlignment
	// always UNKNOWN. Only daily (resolved against the match's bias) should
	// drive the reduction.
	barCtx := vpa.ContextSnapshot{DominantAlignment: vpa.AlignmentUnknown}
	daily := &vpa.ContextSnapshot{Trend: vpa.TrendDown}

	intent := e.Evaluate(match, 100, vpa.AccountState{Equity: 10000}, barCtx, daily, 0)
	require.Equal(t, vpa.IntentReady, intent.Status)
	assert.Equal(t, cfg.Risk.RiskPctPerTrade*0.5, intent.RiskPlan.RiskPct)
	assert.Contains(t, intent.Rationale, "CTX-2:AGAINST(risk_reduced)")
}

func TestEvaluate_SizingIsEquityTimesRiskPctOverRiskPerShare(t *testing.T) {
	cfg := config.DefaultVPAConfig()
	cfg.Risk.RiskPctPerTrade = 0.01
	e := New(cfg)
	match := matchLong(vpa.SignalEvent{ID: "TEST-SUP-1", Evidence: map[string]float64{"bar_low": 90}})
	intent := e.Evaluate(match, 100, vpa.AccountState{Equity: 10000}, vpa.ContextSnapshot{}, nil, 0)
	require.Equal(t, vpa.IntentReady, intent.Status)
	// equity*riskPct / riskPerShare = 10000*0.01/10 = 10
	assert.Equal(t, 10, intent.RiskPlan.Size)
}
