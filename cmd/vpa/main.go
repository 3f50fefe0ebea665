// Command vpa is the volume-price-analysis engine's CLI entrypoint:
// ingest bars, run backtests, scan for near-miss diagnostics, run a
// paper/live trading loop, replay a journal, and report status/health.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	// Market-data vendor credentials (exchange API keys for the external
	// ingestion process feeding `vpa ingest`) route through the environment;
	// .env is optional and silently absent in production.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "ingest":
		err = runIngest(args)
	case "backtest":
		err = runBacktestCmd(args)
	case "scan":
		err = runScan(args)
	case "paper":
		err = runPaper(args)
	case "replay":
		err = runReplay(args)
	case "status":
		err = runStatus(args)
	case "health":
		os.Exit(runHealth(args))
	default:
		usage()
		os.Exit(1)
	}

	if err != nil {
		log.Printf("❌ %s: %v", cmd, err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `vpa — volume-price-analysis engine

Usage:
  vpa ingest   -symbol SYM -timeframe TF -file path.csv -db bars.db
  vpa backtest -symbol SYM -timeframe TF -file path.csv [-config path] [-balance N] [-out trades.xlsx]
  vpa scan     -symbol SYM -timeframe TF -file path.csv [-config path] [-gap 0.15]
  vpa paper    -symbol SYM -timeframe TF -db bars.db [-live] [-config path]
  vpa replay   -journal path.ndjson
  vpa status   -symbol SYM [-config path]
  vpa health   [-port 8080]`)
}
