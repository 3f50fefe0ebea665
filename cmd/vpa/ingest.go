package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/voltix/vpa-engine/internal/barstore"
)

func runIngest(args []string) error {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	symbol := fs.String("symbol", "", "trading symbol")
	timeframe := fs.String("timeframe", "1h", "bar timeframe")
	file := fs.String("file", "", "path to OHLCV CSV file")
	dbPath := fs.String("db", "bars.db", "bar store database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *symbol == "" || *file == "" {
		return fmt.Errorf("-symbol and -file are required")
	}

	bars, err := loadBarsCSV(*file, *symbol)
	if err != nil {
		return err
	}
	if len(bars) == 0 {
		return fmt.Errorf("no bars parsed from %s", *file)
	}

	store, err := barstore.NewSQLiteStore(*dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.WriteBars(*symbol, *timeframe, bars); err != nil {
		return err
	}

	count, err := store.CountBars(*symbol, *timeframe)
	if err != nil {
		return err
	}
	log.Printf("✅ Ingested %d bars for %s@%s into %s (total stored: %d)", len(bars), *symbol, *timeframe, *dbPath, count)
	return nil
}
