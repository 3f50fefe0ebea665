package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/xuri/excelize/v2"

	"github.com/voltix/vpa-engine/internal/journal"
	"github.com/voltix/vpa-engine/internal/vpa/backtest"
)

func runBacktestCmd(args []string) error {
	fs := flag.NewFlagSet("backtest", flag.ExitOnError)
	symbol := fs.String("symbol", "", "trading symbol")
	timeframe := fs.String("timeframe", "1h", "bar timeframe")
	file := fs.String("file", "", "path to OHLCV CSV file")
	configPath := fs.String("config", "", "path to base config JSON (defaults applied if omitted)")
	balance := fs.Float64("balance", 10000, "initial cash")
	out := fs.String("out", "", "optional xlsx path for the trade blotter")
	journalPath := fs.String("journal", "", "optional NDJSON journal output path")
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
	if len(bars) == 0 {
		return fmt.Errorf("no bars parsed from %s", *file)
	}

	var jw *journal.Writer
	if *journalPath != "" {
		jw, err = journal.NewWriter(*journalPath)
		if err != nil {
			return err
		}
		defer jw.Close()
	}

	driver := backtest.New(cfg)
	result := driver.Run(bars, *symbol, *timeframe, *balance, func(kind string, payload map[string]any) {
		if jw == nil {
			return
		}
		switch kind {
		case "exit":
			t := payload["trade"].(backtest.Trade)
			jw.Trade(t.Symbol, string(t.Direction), t.EntryPrice, t.ExitPrice, float64(t.Qty), t.PnL,
				strings.Join(t.Rationale, "; "), "", nil)
		}
	})

	printBacktestSummary(result)

	if *out != "" {
		if err := writeTradesXLSX(result, *out); err != nil {
			return fmt.Errorf("writing trade blotter: %w", err)
		}
		fmt.Printf("✅ Saved trade blotter to %s\n", *out)
	}

	return nil
}

func printBacktestSummary(r backtest.Result) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("BACKTEST RESULT")
	t.SetStyle(table.StyleRounded)

	t.AppendRows([]table.Row{
		{"Symbol", r.Symbol},
		{"Timeframe", r.Timeframe},
		{"Window", fmt.Sprintf("%s → %s", r.StartTime.Format("2006-01-02"), r.EndTime.Format("2006-01-02"))},
		{"Initial Cash", fmt.Sprintf("$%.2f", r.InitialCash)},
		{"Final Cash", fmt.Sprintf("$%.2f", r.FinalCash)},
		{"Total Return", fmt.Sprintf("%.2f%%", r.TotalReturnPct())},
		{"Trades", len(r.Trades)},
		{"Wins / Losses", fmt.Sprintf("%d / %d", r.WinCount(), r.LossCount())},
	})

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 14, WidthMax: 14, Align: text.AlignLeft},
		{Number: 2, WidthMin: 20, WidthMax: 40, Align: text.AlignLeft},
	})

	t.Render()
	fmt.Println()

	if len(r.Trades) == 0 {
		return
	}

	tt := table.NewWriter()
	tt.SetOutputMirror(os.Stdout)
	tt.SetTitle("TRADE BLOTTER")
	tt.SetStyle(table.StyleRounded)
	tt.AppendHeader(table.Row{"Setup", "Direction", "Entry", "Exit", "Qty", "PnL"})
	for _, tr := range r.Trades {
		tt.AppendRow(table.Row{
			tr.Setup, tr.Direction,
			fmt.Sprintf("%.2f", tr.EntryPrice),
			fmt.Sprintf("%.2f", tr.ExitPrice),
			tr.Qty,
			fmt.Sprintf("%.2f", tr.PnL),
		})
	}
	tt.Render()
	fmt.Println()
}

func writeTradesXLSX(r backtest.Result, path string) error {
	fx := excelize.NewFile()
	defer fx.Close()

	const sheet = "Trades"
	fx.SetSheetName(fx.GetSheetName(0), sheet)
	headStyle, _ := fx.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})

	headers := []string{"Setup", "Direction", "Entry Time", "Entry Price", "Exit Time", "Exit Price", "Qty", "PnL", "Rationale"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		fx.SetCellValue(sheet, cell, h)
		fx.SetCellStyle(sheet, cell, cell, headStyle)
	}

	row := 2
	for _, t := range r.Trades {
		values := []any{
			t.Setup, string(t.Direction),
			t.EntryTime.Format("2006-01-02 15:04:05"), t.EntryPrice,
			t.ExitTime.Format("2006-01-02 15:04:05"), t.ExitPrice,
			t.Qty, t.PnL,
			strings.Join(t.Rationale, "; "),
		}
		for i, v := range values {
			cell, _ := excelize.CoordinatesToCellName(i+1, row)
			fx.SetCellValue(sheet, cell, v)
		}
		row++
	}

	return fx.SaveAs(path)
}
