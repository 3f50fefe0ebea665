// Package pipeline implements the Pipeline Orchestrator: the per-bar
// chain Features -> Context -> Rules -> Gates -> Composer -> Risk.
package pipeline

import (
	"github.com/voltix/vpa-engine/internal/config"
	"github.com/voltix/vpa-engine/internal/vpa"
	"github.com/voltix/vpa-engine/internal/vpa/composer"
	vpacontext "github.com/voltix/vpa-engine/internal/vpa/context"
	"github.com/voltix/vpa-engine/internal/vpa/feature"
	"github.com/voltix/vpa-engine/internal/vpa/gates"
	"github.com/voltix/vpa-engine/internal/vpa/risk"
	"github.com/voltix/vpa-engine/internal/vpa/rules"
)

// Result is the immutable per-bar output of one pipeline invocation.
type Result struct {
	BarIndex     int
	Features     vpa.CandleFeatures
	Signals      []vpa.SignalEvent
	GateResult   gates.Result
	Matches      []vpa.SetupMatch
	Intents      []vpa.TradeIntent
	DailyContext *vpa.ContextSnapshot
}

// Pipeline owns the Setup Composer for the lifetime of a session and
// chains every stage per spec §4.8. It must not be shared across
// instruments or threads (spec §5).
type Pipeline struct {
	cfg      *config.VPAConfig
	features *feature.Engine
	context  *vpacontext.Engine
	rules    *rules.Engine
	composer *composer.Composer
	risk     *risk.Engine
}

// New builds a Pipeline Orchestrator, constructing its own owned Setup
// Composer instance bound to cfg.
func New(cfg *config.VPAConfig) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		features: feature.New(cfg),
		context:  vpacontext.New(cfg),
		rules:    rules.New(cfg),
		composer: composer.New(cfg),
		risk:     risk.New(cfg),
	}
}

// Run executes one bar's worth of the pipeline against history H = bars[0..i].
//
// atrValue is 0 when ATR is disabled; daily is the optional higher-
// timeframe ContextSnapshot used for per-signal CTX-2 alignment.
func (p *Pipeline) Run(history []vpa.Bar, barIndex int, tf string, account vpa.AccountState, atrValue float64, daily *vpa.ContextSnapshot) Result {
	if len(history) == 0 {
		return Result{BarIndex: barIndex}
	}

	features, err := p.features.Compute(tf, history)
	if err != nil {
		return Result{BarIndex: barIndex}
	}

	if p.cfg.VolumeGuard.Enabled {
		avgVolume := recentAverageVolume(history, p.cfg.Vol.AvgWindowN)
		if avgVolume < p.cfg.VolumeGuard.MinAvgVolume {
			return Result{BarIndex: barIndex, Features: features}
		}
	}

	ctx := p.context.Analyze(tf, history)

	signals := p.rules.Evaluate(features, ctx)
	stampEvidence(signals, features.Bar)

	gateResult := gates.Apply(signals, ctx, daily, p.cfg)

	matches := p.composer.Process(gateResult.Actionable, barIndex)

	intents := make([]vpa.TradeIntent, 0, len(matches))
	for _, match := range matches {
		intents = append(intents, p.risk.Evaluate(match, features.Bar.Close, account, ctx, daily, atrValue))
	}

	return Result{
		BarIndex:     barIndex,
		Features:     features,
		Signals:      signals,
		GateResult:   gateResult,
		Matches:      matches,
		Intents:      intents,
		DailyContext: daily,
	}
}

// stampEvidence sets bar_low/bar_high on every signal that doesn't
// already carry them, mirroring the reference pipeline's
// evidence.setdefault behavior after all detectors have run.
func stampEvidence(signals []vpa.SignalEvent, bar vpa.Bar) {
	for i := range signals {
		if _, ok := signals[i].Evidence["bar_low"]; !ok {
			signals[i].Evidence["bar_low"] = bar.Low
		}
		if _, ok := signals[i].Evidence["bar_high"]; !ok {
			signals[i].Evidence["bar_high"] = bar.High
		}
	}
}

func recentAverageVolume(history []vpa.Bar, n int) float64 {
	window := history
	if n > 0 && len(history) > n {
		window = history[len(history)-n:]
	}
	if len(window) == 0 {
		return 0
	}
	var sum float64
	for _, b := range window {
		sum += b.Volume
	}
	return sum / float64(len(window))
}
