// Package safety implements the Safety Guard: a pre-submission check
// combining a kill switch and a daily-loss halt. Live schedulers call
// Check immediately before order dispatch; a failing check is journaled
// and the order is dropped.
package safety

import (
	"fmt"
	"sync"
	"time"
)

// Result is the outcome of a pre-submission safety check.
type Result struct {
	Allowed bool
	Reason  string
}

// Guard tracks kill-switch state and daily realized PnL, resetting the
// latter whenever a new calendar date is observed.
type Guard struct {
	mu              sync.Mutex
	killSwitch      bool
	maxDailyLossPct float64
	initialCash     float64
	dailyPnL        float64
	tradingDate     *time.Time
}

// New returns a Safety Guard. maxDailyLossPct is a fraction (e.g. 0.03 for 3%).
func New(killSwitch bool, maxDailyLossPct, initialCash float64) *Guard {
	return &Guard{
		killSwitch:      killSwitch,
		maxDailyLossPct: maxDailyLossPct,
		initialCash:     initialCash,
	}
}

// KillSwitch reports the current kill-switch state.
func (g *Guard) KillSwitch() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.killSwitch
}

// SetKillSwitch enables or disables the kill switch.
func (g *Guard) SetKillSwitch(on bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.killSwitch = on
}

// MaxDailyLoss is the absolute daily loss limit in account-currency units.
func (g *Guard) MaxDailyLoss() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.initialCash * g.maxDailyLossPct
}

func (g *Guard) resetIfNewDay(today time.Time) {
	today = today.Truncate(24 * time.Hour)
	if g.tradingDate == nil || !g.tradingDate.Equal(today) {
		g.dailyPnL = 0
		g.tradingDate = &today
	}
}

// RecordPnL records realized PnL from a closed trade.
func (g *Guard) RecordPnL(pnl float64, today time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resetIfNewDay(today)
	g.dailyPnL += pnl
}

// Check runs all safety conditions before order submission. Kill switch
// takes precedence over the daily-loss check.
func (g *Guard) Check(today time.Time) Result {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.killSwitch {
		return Result{Allowed: false, Reason: "Kill switch is ON — all trading disabled"}
	}

	g.resetIfNewDay(today)

	limit := g.initialCash * g.maxDailyLossPct
	if g.dailyPnL < 0 && -g.dailyPnL >= limit {
		return Result{
			Allowed: false,
			Reason: fmt.Sprintf(
				"Daily loss limit breached: $%.2f (limit: -$%.2f, %.1f%%)",
				g.dailyPnL, limit, g.maxDailyLossPct*100,
			),
		}
	}

	return Result{Allowed: true}
}
