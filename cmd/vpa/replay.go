package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
)

// runReplay prints the journal's event stream as a table, for post-hoc audit
// review — it never re-derives decisions, only renders the recorded ledger.
func runReplay(args []string) error {
	fs := flag.NewFlagSet("replay", flag.ExitOnError)
	journalPath := fs.String("journal", "", "path to the NDJSON journal file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *journalPath == "" {
		return fmt.Errorf("-journal is required")
	}

	f, err := os.Open(*journalPath)
	if err != nil {
		return err
	}
	defer f.Close()

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("JOURNAL REPLAY")
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Timestamp", "Event", "Detail"})

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	count := 0
	for scanner.Scan() {
		var record map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			continue
		}
		ts, _ := record["ts_utc"].(string)
		event, _ := record["event"].(string)
		delete(record, "ts_utc")
		delete(record, "event")
		detail, _ := json.Marshal(record)
		t.AppendRow(table.Row{ts, event, string(detail)})
		count++
	}

	t.Render()
	fmt.Printf("\n%d journal record(s)\n", count)
	return scanner.Err()
}
