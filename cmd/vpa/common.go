package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/voltix/vpa-engine/internal/config"
	"github.com/voltix/vpa-engine/internal/vpa"
)

// loadBarsCSV reads OHLCV bars from a CSV file with header
// timestamp,open,high,low,close,volume. Timestamps use RFC3339 or
// "2006-01-02 15:04:05".
func loadBarsCSV(path, symbol string) ([]vpa.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	if _, err := r.Read(); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	var bars []vpa.Bar
	idx := 0
	for {
		rec, err := r.Read()
		if err != nil {
			break
		}
		if len(rec) < 6 {
			continue
		}
		ts, perr := parseTimestamp(rec[0])
		if perr != nil {
			continue
		}
		open, _ := strconv.ParseFloat(rec[1], 64)
		high, _ := strconv.ParseFloat(rec[2], 64)
		low, _ := strconv.ParseFloat(rec[3], 64)
		cls, _ := strconv.ParseFloat(rec[4], 64)
		vol, _ := strconv.ParseFloat(rec[5], 64)

		bars = append(bars, vpa.Bar{
			Open: open, High: high, Low: low, Close: cls, Volume: vol,
			Timestamp: ts, Symbol: symbol, BarIndex: idx,
		})
		idx++
	}
	return bars, nil
}

func parseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", s)
}

func loadConfig(path, symbol string) (*config.VPAConfig, error) {
	if path == "" {
		return config.DefaultVPAConfig(), nil
	}
	return config.LoadVPAConfig(path, symbol)
}
