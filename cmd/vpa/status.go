package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// runStatus prints the resolved configuration for a symbol — the result of
// the base-config plus per-symbol deep-merge — for operator inspection.
func runStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	symbol := fs.String("symbol", "", "trading symbol")
	configPath := fs.String("config", "", "path to base config JSON")
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

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle(fmt.Sprintf("RESOLVED CONFIG — %s", *symbol))
	t.SetStyle(table.StyleRounded)

	dailyLoss := "unset (falls back to equity-fraction default)"
	if cfg.Risk.DailyLossLimitPct != nil {
		dailyLoss = fmt.Sprintf("%.1f%%", *cfg.Risk.DailyLossLimitPct*100)
	}

	t.AppendRows([]table.Row{
		{"Vol thresholds", fmt.Sprintf("low<%.2f high>%.2f ultra>%.2f", cfg.Vol.Thresholds.LowLT, cfg.Vol.Thresholds.HighGT, cfg.Vol.Thresholds.UltraHighGT)},
		{"Spread thresholds", fmt.Sprintf("narrow<%.2f wide>%.2f", cfg.Spread.Thresholds.NarrowLT, cfg.Spread.Thresholds.WideGT)},
		{"Trend window", fmt.Sprintf("k=%d location_lookback=%d", cfg.Trend.WindowK, cfg.Trend.LocationLookback)},
		{"Congestion", fmt.Sprintf("window=%d pct=%.2f", cfg.Trend.CongestionWindow, cfg.Trend.CongestionPct)},
		{"Setup window (X)", cfg.Setup.WindowX},
		{"CTX-2 policy", cfg.Gates.CTX2DominantAlignmentPolicy},
		{"Risk pct/trade", fmt.Sprintf("%.2f%%", cfg.Risk.RiskPctPerTrade*100)},
		{"Max concurrent positions", cfg.Risk.MaxConcurrentPositions},
		{"Daily loss limit", dailyLoss},
		{"ATR", fmt.Sprintf("enabled=%v period=%d mult=%.1f", cfg.ATR.Enabled, cfg.ATR.Period, cfg.ATR.StopMultiplier)},
		{"Slippage", fmt.Sprintf("%.1f bps", cfg.Slippage.Value)},
	})

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 22, WidthMax: 22, Align: text.AlignLeft},
		{Number: 2, WidthMin: 30, WidthMax: 50, Align: text.AlignLeft},
	})

	t.Render()
	return nil
}
