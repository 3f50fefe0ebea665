// Package gates implements the Context Gates stage: CTX-1 -> CTX-2 ->
// CTX-3, applied sequentially with first-blocker-wins semantics.
package gates

import (
	"github.com/voltix/vpa-engine/internal/config"
	vpacontext "github.com/voltix/vpa-engine/internal/vpa/context"

	"github.com/voltix/vpa-engine/internal/vpa"
)

// Result is the output of the gate stage, split into actionable and
// blocked signals. Both sides are preserved for observability.
type Result struct {
	Actionable   []vpa.SignalEvent
	Blocked      []vpa.SignalEvent
	BlockReasons map[string]string
}

type checkFn func(signal vpa.SignalEvent, ctx vpa.ContextSnapshot, daily *vpa.ContextSnapshot, cfg *config.VPAConfig) string

// Apply runs CTX-1 -> CTX-2 -> CTX-3 against every signal. daily may be
// nil; when supplied it drives per-signal dominant-alignment resolution
// for a DISALLOW policy (spec §4.5).
func Apply(signals []vpa.SignalEvent, ctx vpa.ContextSnapshot, daily *vpa.ContextSnapshot, cfg *config.VPAConfig) Result {
	checks := []checkFn{checkCTX1, checkCTX2, checkCTX3}

	result := Result{BlockReasons: map[string]string{}}

	for _, sig := range signals {
		var reason string
		for _, check := range checks {
			reason = check(sig, ctx, daily, cfg)
			if reason != "" {
				break
			}
		}
		if reason != "" {
			result.Blocked = append(result.Blocked, sig)
			result.BlockReasons[sig.Key()] = reason
		} else {
			result.Actionable = append(result.Actionable, sig)
		}
	}

	return result
}

// checkCTX1: trend-location-first. Every gated signal requires a known
// trend location.
func checkCTX1(signal vpa.SignalEvent, ctx vpa.ContextSnapshot, _ *vpa.ContextSnapshot, cfg *config.VPAConfig) string {
	if !cfg.Gates.CTX1TrendLocationRequired {
		return ""
	}
	if !signal.RequiresContextGate {
		return ""
	}
	if ctx.TrendLocation == vpa.LocationUnknown {
		return "CTX-1: trend location UNKNOWN — cannot assess anomaly significance"
	}
	return ""
}

// checkCTX2: dominant alignment gate. Only DISALLOW can block; REDUCE_RISK
// and ALLOW never block (REDUCE_RISK is handled downstream by the Risk Engine).
func checkCTX2(signal vpa.SignalEvent, ctx vpa.ContextSnapshot, daily *vpa.ContextSnapshot, cfg *config.VPAConfig) string {
	if cfg.Gates.CTX2DominantAlignmentPolicy != "DISALLOW" {
		return ""
	}
	if !signal.RequiresContextGate {
		return ""
	}

	alignment := ctx.DominantAlignment
	if daily != nil {
		alignment = vpacontext.Resolve(*daily, signal.DirectionBias)
	}

	if alignment == vpa.AlignmentAgainst {
		return "CTX-2: dominant alignment AGAINST — counter-trend signal blocked (DISALLOW policy)"
	}
	return ""
}

// checkCTX3: congestion awareness. Blocks anomaly-class signals inside a
// congestion zone; VALIDATION/STRENGTH/WEAKNESS/TEST/CONFIRMATION pass.
func checkCTX3(signal vpa.SignalEvent, ctx vpa.ContextSnapshot, _ *vpa.ContextSnapshot, cfg *config.VPAConfig) string {
	if !cfg.Gates.CTX3CongestionAwarenessReq {
		return ""
	}
	if !signal.RequiresContextGate {
		return ""
	}
	if !ctx.Congestion.Active {
		return ""
	}
	if signal.SignalClass == vpa.ClassAnomaly {
		return "CTX-3: anomaly signal in congestion zone — ambiguous, blocked"
	}
	return ""
}
