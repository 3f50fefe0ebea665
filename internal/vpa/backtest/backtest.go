// Package backtest implements the Backtest Driver: single-position,
// event-driven replay with bar-close evaluation and next-bar-open
// execution. No lookahead — the pipeline only ever sees bars[0..i].
package backtest

import (
	"time"

	"github.com/voltix/vpa-engine/internal/config"
	"github.com/voltix/vpa-engine/internal/vpa"
	"github.com/voltix/vpa-engine/internal/vpa/feature"
	"github.com/voltix/vpa-engine/internal/vpa/pipeline"
)

// Trade is one closed round-trip position.
type Trade struct {
	Symbol     string
	Direction  vpa.Direction
	EntryTime  time.Time
	EntryPrice float64
	ExitTime   time.Time
	ExitPrice  float64
	Qty        int
	PnL        float64
	Setup      string
	Rationale  []string
}

// Result is the outcome of replaying a bar history through the pipeline.
type Result struct {
	Symbol        string
	Timeframe     string
	StartTime     time.Time
	EndTime       time.Time
	InitialCash   float64
	FinalCash     float64
	Trades        []Trade
	PipelineEvents []pipeline.Result
}

// TotalReturnPct is the percentage return over the run.
func (r Result) TotalReturnPct() float64 {
	if r.InitialCash <= 0 {
		return 0
	}
	return (r.FinalCash - r.InitialCash) / r.InitialCash * 100
}

// WinCount is the number of trades with positive PnL.
func (r Result) WinCount() int {
	n := 0
	for _, t := range r.Trades {
		if t.PnL > 0 {
			n++
		}
	}
	return n
}

// LossCount is the number of trades with negative PnL.
func (r Result) LossCount() int {
	n := 0
	for _, t := range r.Trades {
		if t.PnL < 0 {
			n++
		}
	}
	return n
}

type openPosition struct {
	intent     vpa.TradeIntent
	entryPrice float64
	qty        int
	entryIdx   int
	stop       float64
}

// Driver replays bar histories through the canonical pipeline.
type Driver struct {
	cfg *config.VPAConfig
}

// New returns a Backtest Driver bound to cfg.
func New(cfg *config.VPAConfig) *Driver {
	return &Driver{cfg: cfg}
}

// EventCallback, when supplied, is invoked for "entry", "exit", and
// "signal" events during the replay — for journaling.
type EventCallback func(kind string, payload map[string]any)

// Run replays bars in order, running the pipeline on bars[0..i] and
// simulating fills at bars[i+1].open.
func (d *Driver) Run(bars []vpa.Bar, symbol, timeframe string, initialCash float64, onEvent EventCallback) Result {
	if onEvent == nil {
		onEvent = func(string, map[string]any) {}
	}

	slippageBps := d.cfg.Slippage.Value

	now := time.Now()
	start, end := now, now
	if len(bars) > 0 {
		start = bars[0].Timestamp
		end = bars[len(bars)-1].Timestamp
	}

	cash := initialCash
	dailyPnL := 0.0
	pl := pipeline.New(d.cfg)

	var position *openPosition
	var pendingIntent *vpa.TradeIntent
	var trades []Trade
	var events []pipeline.Result

	for i := range bars {
		currentBars := bars[:i+1]
		currentBar := bars[i]

		if pendingIntent != nil && position == nil {
			entryPrice := fillPrice(currentBar.Open, pendingIntent.Direction, slippageBps)
			position = &openPosition{
				intent:     *pendingIntent,
				entryPrice: entryPrice,
				qty:        pendingIntent.RiskPlan.Size,
				entryIdx:   i,
				stop:       pendingIntent.RiskPlan.Stop,
			}
			onEvent("entry", map[string]any{
				"intent_id":   pendingIntent.IntentID,
				"bar_index":   i,
				"entry_price": entryPrice,
				"qty":         pendingIntent.RiskPlan.Size,
			})
			pendingIntent = nil
		}

		if position != nil {
			exitPrice, exited, reason := checkExit(*position, currentBar, i == len(bars)-1, slippageBps)
			if exited {
				var pnl float64
				if position.intent.Direction == vpa.DirectionLong {
					pnl = (exitPrice - position.entryPrice) * float64(position.qty)
				} else {
					pnl = (position.entryPrice - exitPrice) * float64(position.qty)
				}
				pnl -= fees(d.cfg.Costs, exitPrice, position.qty)

				cash += pnl
				dailyPnL += pnl

				trade := Trade{
					Symbol:     symbol,
					Direction:  position.intent.Direction,
					EntryTime:  bars[position.entryIdx].Timestamp,
					EntryPrice: position.entryPrice,
					ExitTime:   currentBar.Timestamp,
					ExitPrice:  exitPrice,
					Qty:        position.qty,
					PnL:        pnl,
					Setup:      position.intent.SetupID,
					Rationale:  position.intent.Rationale,
				}
				trades = append(trades, trade)
				onEvent("exit", map[string]any{"trade": trade, "reason": reason})
				position = nil
				continue
			}
		}

		openCount := 0
		if position != nil {
			openCount = 1
		}
		account := vpa.AccountState{
			Equity:            cash,
			OpenPositionCount: openCount,
			DailyRealizedPnL:  dailyPnL,
		}

		atrValue := 0.0
		if d.cfg.ATR.Enabled {
			atrValue = feature.ComputeATR(currentBars, d.cfg.ATR.Period)
		}

		result := pl.Run(currentBars, i, timeframe, account, atrValue, nil)
		events = append(events, result)

		if position == nil && pendingIntent == nil && i+1 < len(bars) {
			for _, intent := range result.Intents {
				if intent.Status == vpa.IntentReady {
					ic := intent
					pendingIntent = &ic
					onEvent("signal", map[string]any{"intent": intent, "bar_index": i})
					break
				}
			}
		}
	}

	return Result{
		Symbol:         symbol,
		Timeframe:      timeframe,
		StartTime:      start,
		EndTime:        end,
		InitialCash:    initialCash,
		FinalCash:      cash,
		Trades:         trades,
		PipelineEvents: events,
	}
}

// fillPrice simulates a fill at the given price adjusted for slippage (bps).
func fillPrice(price float64, direction vpa.Direction, slippageBps float64) float64 {
	bps := slippageBps / 10_000
	if direction == vpa.DirectionLong {
		return price * (1 + bps)
	}
	return price * (1 - bps)
}

// checkExit checks the stop against the current bar and forces an exit on
// the final bar.
func checkExit(pos openPosition, bar vpa.Bar, isFinalBar bool, slippageBps float64) (price float64, exited bool, reason string) {
	bps := slippageBps / 10_000

	if pos.intent.Direction == vpa.DirectionLong && bar.Low <= pos.stop {
		return pos.stop * (1 - bps), true, "stop"
	}
	if pos.intent.Direction == vpa.DirectionShort && bar.High >= pos.stop {
		return pos.stop * (1 + bps), true, "stop"
	}
	if isFinalBar {
		return bar.Close, true, "end_of_data"
	}
	return 0, false, ""
}

// fees applies the SPEC_FULL cost-model supplement alongside slippage.
func fees(costs config.CostsConfig, price float64, qty int) float64 {
	switch costs.FeeModel {
	case "PER_SHARE":
		return costs.FeeValue * float64(qty)
	case "PCT_NOTIONAL":
		return costs.FeeValue * price * float64(qty)
	default:
		return 0
	}
}
