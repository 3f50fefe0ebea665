package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/voltix/vpa-engine/internal/barstore"
	"github.com/voltix/vpa-engine/internal/execution"
	"github.com/voltix/vpa-engine/internal/journal"
	"github.com/voltix/vpa-engine/internal/monitoring"
	"github.com/voltix/vpa-engine/internal/vpa"
	"github.com/voltix/vpa-engine/internal/vpa/feature"
	"github.com/voltix/vpa-engine/internal/vpa/pipeline"
	"github.com/voltix/vpa-engine/internal/vpa/safety"
)

// openPaperPosition tracks the one concurrently-open paper position this
// process knows about, for stop-checking between polls.
type openPaperPosition struct {
	intent vpa.TradeIntent
	stop   float64
	qty    int
	entry  float64
}

func runPaper(args []string) error {
	fs := flag.NewFlagSet("paper", flag.ExitOnError)
	symbol := fs.String("symbol", "", "trading symbol")
	timeframe := fs.String("timeframe", "1h", "bar timeframe")
	dbPath := fs.String("db", "bars.db", "bar store database path")
	ledgerPath := fs.String("ledger", "execution.db", "paper execution ledger path")
	journalPath := fs.String("journal", "journal.ndjson", "append-only journal path")
	configPath := fs.String("config", "", "path to base config JSON")
	live := fs.Bool("live", false, "keep polling the bar store for new bars instead of exiting after one pass")
	pollSeconds := fs.Int("poll", 30, "seconds between bar-store polls in --live mode")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *symbol == "" {
		return fmt.Errorf("-symbol is required")
	}

	cfg, err := loadConfig(*configPath, *symbol)
	if err != nil {
		return err
	}

	store, err := barstore.NewSQLiteStore(*dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	ledger, err := execution.NewPaperLedger(*ledgerPath, cfg.Slippage.Value)
	if err != nil {
		return err
	}
	defer ledger.Close()

	jw, err := journal.NewWriter(*journalPath)
	if err != nil {
		return err
	}
	defer jw.Close()

	events := journal.NewEventLogger(*symbol, true, "", nil)
	dailyLossPct := 0.03
	if cfg.Risk.DailyLossLimitPct != nil {
		dailyLossPct = *cfg.Risk.DailyLossLimitPct
	}
	guard := safety.New(false, dailyLossPct, 10000)
	health := monitoring.NewHealthChecker()
	pl := pipeline.New(cfg)

	var position *openPaperPosition
	processed := 0

	for {
		bars, err := store.GetBars(*symbol, *timeframe, nil, nil, nil)
		if err != nil {
			return err
		}

		for processed < len(bars) {
			i := processed
			currentBars := bars[:i+1]
			bar := bars[i]

			if position != nil {
				exitPrice, exited := checkPaperStop(*position, bar)
				if exited {
					var pnl float64
					if position.intent.Direction == vpa.DirectionLong {
						pnl = (exitPrice - position.entry) * float64(position.qty)
					} else {
						pnl = (position.entry - exitPrice) * float64(position.qty)
					}
					guard.RecordPnL(pnl, bar.Timestamp)
					monitoring.RecordTrade(*symbol, pnl)
					jw.Trade(*symbol, string(position.intent.Direction), position.entry, exitPrice,
						float64(position.qty), pnl, "stop", "", nil)
					position = nil
				}
			}

			account := vpa.AccountState{Equity: 10000, OpenPositionCount: boolToInt(position != nil)}
			atrValue := 0.0
			if cfg.ATR.Enabled {
				atrValue = feature.ComputeATR(currentBars, cfg.ATR.Period)
			}

			result := pl.Run(currentBars, i, *timeframe, account, atrValue, nil)
			monitoring.CyclesTotal.WithLabelValues(*symbol, *timeframe).Inc()
			for _, sig := range result.Signals {
				monitoring.SignalsTotal.WithLabelValues(*symbol, sig.ID, string(sig.SignalClass)).Inc()
				jw.Signal(string(sig.SignalClass), string(sig.DirectionBias), "", sig.ID, nil)
			}

			if position == nil {
				for _, intent := range result.Intents {
					monitoring.IntentsTotal.WithLabelValues(*symbol, string(intent.Status)).Inc()
					if intent.Status != vpa.IntentReady {
						continue
					}

					safetyResult := guard.Check(bar.Timestamp)
					if !safetyResult.Allowed {
						monitoring.SafetyBlocksTotal.WithLabelValues(*symbol, safetyResult.Reason).Inc()
						events.OrderRejected(safetyResult.Reason)
						continue
					}

					submit, err := ledger.SubmitIntent(*symbol, intent, bar.Close, cfg.Risk.MaxConcurrentPositions)
					if err != nil {
						return err
					}
					if !submit.Accepted {
						events.OrderRejected(submit.Reason)
						continue
					}

					position = &openPaperPosition{intent: intent, stop: intent.RiskPlan.Stop, qty: intent.RiskPlan.Size, entry: submit.Fill.Price}
					events.TradeSubmitted(intent.SetupID, string(intent.Direction), float64(intent.RiskPlan.Size), intent.RiskPlan.Stop)
					jw.TradePlan(intent.IntentID, intent.SetupID, string(intent.Direction),
						joinRationale(intent.Rationale), "", nil)
					break
				}
			}

			health.RecordCycle(bar.Timestamp)
			processed++
		}

		events.CycleComplete(processed, boolToInt(position != nil))

		if !*live {
			break
		}
		log.Printf("⏳ Waiting %ds for new bars (processed %d so far)...", *pollSeconds, processed)
		time.Sleep(time.Duration(*pollSeconds) * time.Second)
	}

	return nil
}

func checkPaperStop(pos openPaperPosition, bar vpa.Bar) (float64, bool) {
	if pos.intent.Direction == vpa.DirectionLong && bar.Low <= pos.stop {
		return pos.stop, true
	}
	if pos.intent.Direction == vpa.DirectionShort && bar.High >= pos.stop {
		return pos.stop, true
	}
	return 0, false
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func joinRationale(r []string) string {
	out := ""
	for i, s := range r {
		if i > 0 {
			out += "; "
		}
		out += s
	}
	return out
}
