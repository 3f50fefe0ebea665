// Package journal implements the append-only structured journal (spec
// §6): one NDJSON record per line, every record carrying a UTC
// timestamp, event kind, and (where applicable) a rationale string.
package journal

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	vpaerrors "github.com/voltix/vpa-engine/internal/errors"
)

// Writer appends newline-delimited JSON records to a single file. Mirrors
// the teacher's internal/logger.Logger file-handle-plus-mutex idiom;
// encoding/json replaces the teacher's plain-text log formatting.
type Writer struct {
	mu   sync.Mutex
	file *os.File
}

// NewWriter opens (creating if necessary) the journal file at path for appending.
func NewWriter(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, vpaerrors.WrapStoreError("journal.Writer", "mkdir", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, vpaerrors.WrapStoreError("journal.Writer", "open", err)
	}
	return &Writer{file: f}, nil
}

// Close closes the underlying file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}

func (w *Writer) write(event string, payload map[string]any) error {
	record := map[string]any{
		"ts_utc": time.Now().UTC().Format(time.RFC3339Nano),
		"event":  event,
	}
	for k, v := range payload {
		record[k] = v
	}

	line, err := json.Marshal(record)
	if err != nil {
		return vpaerrors.WrapStoreError("journal.Writer", "marshal", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	_, err = w.file.Write(append(line, '\n'))
	if err != nil {
		return vpaerrors.WrapStoreError("journal.Writer", "write", err)
	}
	return nil
}

// Signal records a signal event kind.
func (w *Writer) Signal(setupType, direction, rationale, rulebookRef string, extra map[string]any) error {
	payload := map[string]any{
		"setup_type":   setupType,
		"direction":    direction,
		"rationale":    rationale,
		"rulebook_ref": rulebookRef,
	}
	mergeInto(payload, extra)
	return w.write("signal", payload)
}

// TradePlan records a trade_plan event kind.
func (w *Writer) TradePlan(signalID, setupType, direction, rationale, rulebookRef string, extra map[string]any) error {
	payload := map[string]any{
		"signal_id":    signalID,
		"setup_type":   setupType,
		"direction":    direction,
		"rationale":    rationale,
		"rulebook_ref": rulebookRef,
	}
	mergeInto(payload, extra)
	return w.write("trade_plan", payload)
}

// Trade records a trade event kind (a closed round-trip).
func (w *Writer) Trade(symbol, direction string, entryPrice, exitPrice, qty, pnl float64, rationale, rulebookRef string, extra map[string]any) error {
	payload := map[string]any{
		"symbol":       symbol,
		"direction":    direction,
		"entry_price":  entryPrice,
		"exit_price":   exitPrice,
		"qty":          qty,
		"pnl":          pnl,
		"rationale":    rationale,
		"rulebook_ref": rulebookRef,
	}
	mergeInto(payload, extra)
	return w.write("trade", payload)
}

// Fill records a fill event kind.
func (w *Writer) Fill(orderID, symbol, side string, qty, price float64, tradePlanRef string, extra map[string]any) error {
	payload := map[string]any{
		"order_id":       orderID,
		"symbol":         symbol,
		"side":           side,
		"qty":            qty,
		"price":          price,
		"trade_plan_ref": tradePlanRef,
	}
	mergeInto(payload, extra)
	return w.write("fill", payload)
}

// Invalidation records an invalidation event kind.
func (w *Writer) Invalidation(reason, setupType, rulebookRef string, extra map[string]any) error {
	payload := map[string]any{
		"reason":      reason,
		"setup_type":  setupType,
		"rulebook_ref": rulebookRef,
	}
	mergeInto(payload, extra)
	return w.write("invalidation", payload)
}

func mergeInto(dst, src map[string]any) {
	for k, v := range src {
		dst[k] = v
	}
}
