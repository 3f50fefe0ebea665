// Package risk implements the Risk Engine: stop placement, sizing, hard
// rejects, and counter-trend risk reduction, turning a SetupMatch into a
// TradeIntent.
package risk

import (
	"fmt"
	"math"

	"github.com/voltix/vpa-engine/internal/config"
	"github.com/voltix/vpa-engine/internal/safety"
	"github.com/voltix/vpa-engine/internal/vpa"
	vpacontext "github.com/voltix/vpa-engine/internal/vpa/context"
)

// Engine converts SetupMatches into TradeIntents.
type Engine struct {
	cfg       *config.VPAConfig
	validator *safety.Validator
}

// New returns a Risk Engine bound to cfg.
func New(cfg *config.VPAConfig) *Engine {
	return &Engine{cfg: cfg, validator: safety.NewValidator()}
}

// Evaluate builds a TradeIntent for match. currentPrice is the last bar's
// close, used as the next-bar-open approximation. atrValue is 0 when ATR
// is disabled or unavailable. daily is the optional higher-timeframe
// ContextSnapshot; when supplied it resolves match's dominant alignment
// for REDUCE_RISK the same way the gate stage resolves it for DISALLOW.
func (e *Engine) Evaluate(match vpa.SetupMatch, currentPrice float64, account vpa.AccountState, ctx vpa.ContextSnapshot, daily *vpa.ContextSnapshot, atrValue float64) vpa.TradeIntent {
	intentID := fmt.Sprintf("TI-%s-bar%d", match.SetupID, match.MatchedAtBar)

	rationale := make([]string, 0, len(match.Signals)+2)
	for _, sig := range match.Signals {
		rationale = append(rationale, sig.ID)
	}

	if rejected, reason := e.checkHardRejects(account); rejected {
		return vpa.TradeIntent{
			IntentID:     intentID,
			Direction:    match.Direction,
			TF:           match.TF,
			SetupID:      match.SetupID,
			Status:       vpa.IntentRejected,
			Rationale:    rationale,
			RejectReason: reason,
		}
	}

	stop, stopRationale := e.computeStop(match, currentPrice, atrValue)
	rationale = append(rationale, stopRationale)

	riskPct := e.cfg.Risk.RiskPctPerTrade
	if e.cfg.Gates.CTX2DominantAlignmentPolicy == "REDUCE_RISK" {
		switch e.resolveAlignment(match, ctx, daily) {
		case vpa.AlignmentAgainst:
			riskPct *= e.cfg.Risk.CountertrendMultiplier
			rationale = append(rationale, "CTX-2:AGAINST(risk_reduced)")
		case vpa.AlignmentWith:
			rationale = append(rationale, "CTX-2:WITH")
		}
	}

	riskPerShare := math.Abs(currentPrice - stop)
	if riskPerShare <= 0 {
		return vpa.TradeIntent{
			IntentID:     intentID,
			Direction:    match.Direction,
			TF:           match.TF,
			SetupID:      match.SetupID,
			Status:       vpa.IntentRejected,
			Rationale:    rationale,
			RejectReason: "Computed size is zero (stop too close or equity too low)",
		}
	}

	riskBudget, err := e.validator.SafeMultiplication(account.Equity, riskPct)
	if err != nil {
		return vpa.TradeIntent{
			IntentID:     intentID,
			Direction:    match.Direction,
			TF:           match.TF,
			SetupID:      match.SetupID,
			Status:       vpa.IntentRejected,
			Rationale:    rationale,
			RejectReason: fmt.Sprintf("invalid risk budget: %s", err),
		}
	}
	sizeF, err := e.validator.SafeDivision(riskBudget, riskPerShare)
	if err != nil {
		return vpa.TradeIntent{
			IntentID:     intentID,
			Direction:    match.Direction,
			TF:           match.TF,
			SetupID:      match.SetupID,
			Status:       vpa.IntentRejected,
			Rationale:    rationale,
			RejectReason: fmt.Sprintf("invalid position size: %s", err),
		}
	}

	size := int(math.Floor(sizeF))
	if size < 1 {
		return vpa.TradeIntent{
			IntentID:     intentID,
			Direction:    match.Direction,
			TF:           match.TF,
			SetupID:      match.SetupID,
			Status:       vpa.IntentRejected,
			Rationale:    rationale,
			RejectReason: "Computed size is zero (stop too close or equity too low)",
		}
	}

	return vpa.TradeIntent{
		IntentID:  intentID,
		Direction: match.Direction,
		TF:        match.TF,
		SetupID:   match.SetupID,
		Status:    vpa.IntentReady,
		EntryPlan: vpa.EntryPlan{
			Timing:    e.cfg.Execution.EntryTiming,
			OrderType: vpa.OrderMarket,
		},
		RiskPlan: vpa.RiskPlan{
			Stop:    stop,
			RiskPct: riskPct,
			Size:    size,
		},
		Rationale: rationale,
	}
}

// checkHardRejects short-circuits to REJECTED when a hard limit is breached.
func (e *Engine) checkHardRejects(account vpa.AccountState) (bool, string) {
	if account.OpenPositionCount >= e.cfg.Risk.MaxConcurrentPositions {
		return true, fmt.Sprintf("Max concurrent positions (%d) reached", e.cfg.Risk.MaxConcurrentPositions)
	}

	if e.cfg.Risk.DailyLossLimitPct != nil {
		limit := *e.cfg.Risk.DailyLossLimitPct
		if account.DailyRealizedPnL <= -account.Equity*limit {
			return true, fmt.Sprintf("Daily loss limit (%.1f%%) reached", limit*100)
		}
	}

	return false, ""
}

// resolveAlignment mirrors gates.checkCTX2: per-bar ctx never carries a
// resolved DominantAlignment (context.Analyze always leaves it UNKNOWN), so
// when a higher-timeframe daily snapshot is available it is resolved against
// the match's trigger signal's direction bias instead.
func (e *Engine) resolveAlignment(match vpa.SetupMatch, ctx vpa.ContextSnapshot, daily *vpa.ContextSnapshot) vpa.DominantAlignment {
	if daily == nil {
		return ctx.DominantAlignment
	}
	return vpacontext.Resolve(*daily, match.Signals[0].DirectionBias)
}

// computeStop places the stop using ATR when enabled and available,
// otherwise falling back to the trigger bar's low/high.
func (e *Engine) computeStop(match vpa.SetupMatch, price, atrValue float64) (float64, string) {
	if e.cfg.ATR.Enabled && atrValue > 0 {
		mult := e.cfg.ATR.StopMultiplier
		var stop float64
		if match.Direction == vpa.DirectionLong {
			stop = price - atrValue*mult
		} else {
			stop = price + atrValue*mult
		}
		return stop, fmt.Sprintf("stop:ATR(%d)x%g", e.cfg.ATR.Period, mult)
	}

	triggerBar := match.Signals[0]
	if match.Direction == vpa.DirectionLong {
		if low, ok := triggerBar.Evidence["bar_low"]; ok {
			return low, "stop:bar_low"
		}
		return price * 0.98, "stop:bar_low"
	}
	if high, ok := triggerBar.Evidence["bar_high"]; ok {
		return high, "stop:bar_high"
	}
	return price * 1.02, "stop:bar_high"
}
