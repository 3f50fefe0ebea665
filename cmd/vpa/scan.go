package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/voltix/vpa-engine/internal/sensitivity"
	"github.com/voltix/vpa-engine/internal/vpa/feature"
)

func runScan(args []string) error {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	symbol := fs.String("symbol", "", "trading symbol")
	timeframe := fs.String("timeframe", "1h", "bar timeframe")
	file := fs.String("file", "", "path to OHLCV CSV file")
	configPath := fs.String("config", "", "path to base config JSON")
	gap := fs.Float64("gap", sensitivity.DefaultGapThreshold, "max relative gap to report")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *symbol == "" || *file == "" {
		return fmt.Errorf("-symbol and -file are required")
	}

	cfg, err := loadConfig(*configPath, *symbol)
	if err != nil {
		return err
	}
	bars, err := loadBarsCSV(*file, *symbol)
	if err != nil {
		return err
	}

	eng := feature.New(cfg)

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle(fmt.Sprintf("NEAR-MISS SCAN — %s@%s", *symbol, *timeframe))
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Bar", "Rule", "Condition", "Actual", "Threshold", "Gap%"})

	total := 0
	for i := range bars {
		f, err := eng.Compute(*timeframe, bars[:i+1])
		if err != nil {
			continue
		}
		misses := sensitivity.ComputeNearMisses(f, cfg, *gap)
		for _, m := range misses {
			t.AppendRow(table.Row{i, m.RuleID, m.Condition, fmt.Sprintf("%.4f", m.Actual), fmt.Sprintf("%.4f", m.Threshold), fmt.Sprintf("%.1f%%", m.GapPct*100)})
			total++
		}
	}

	t.Render()
	fmt.Printf("\n%d near-miss condition(s) found across %d bars\n", total, len(bars))
	return nil
}
