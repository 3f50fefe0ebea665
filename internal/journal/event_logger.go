// Event logger: emits structured JSON events to stderr for Docker/Loki-
// style observability, with an optional webhook for alert-worthy kinds.
// Grounded on original_source's structured_log.py, restructured onto the
// teacher's file_logger.go constructor-plus-mutex shape.
package journal

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"sync"
	"time"
)

var alertEvents = map[string]bool{
	"signal_detected": true,
	"trade_submitted": true,
	"order_rejected":  true,
	"error":           true,
}

// EventLogger writes one JSON object per line to a stream (stderr by
// default) and optionally POSTs alert-worthy events to a webhook.
type EventLogger struct {
	mu         sync.Mutex
	symbol     string
	enabled    bool
	webhookURL string
	stream     io.Writer
	client     *http.Client
}

// NewEventLogger returns an EventLogger for symbol. stream defaults to os.Stderr when nil.
func NewEventLogger(symbol string, enabled bool, webhookURL string, stream io.Writer) *EventLogger {
	if stream == nil {
		stream = os.Stderr
	}
	return &EventLogger{
		symbol:     symbol,
		enabled:    enabled,
		webhookURL: webhookURL,
		stream:     stream,
		client:     &http.Client{Timeout: 5 * time.Second},
	}
}

func (l *EventLogger) emit(eventType string, fields map[string]any) map[string]any {
	record := map[string]any{
		"ts":     time.Now().UTC().Format(time.RFC3339Nano),
		"event":  eventType,
		"symbol": l.symbol,
	}
	for k, v := range fields {
		record[k] = v
	}

	if l.enabled {
		line, _ := json.Marshal(record)
		l.mu.Lock()
		l.stream.Write(append(line, '\n'))
		l.mu.Unlock()
	}

	if l.webhookURL != "" && alertEvents[eventType] {
		l.postWebhook(record)
	}

	return record
}

func (l *EventLogger) postWebhook(record map[string]any) {
	data, err := json.Marshal(record)
	if err != nil {
		return
	}
	req, err := http.NewRequest(http.MethodPost, l.webhookURL, bytes.NewReader(data))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := l.client.Do(req)
	if err != nil {
		return
	}
	resp.Body.Close()
}

func (l *EventLogger) CycleStart(barClose string, barsIngested int) {
	l.emit("cycle_start", map[string]any{"bar_close": barClose, "bars_ingested": barsIngested})
}

func (l *EventLogger) SignalDetected(signalIDs, setupIDs []string, intentCount int) {
	l.emit("signal_detected", map[string]any{"signals": signalIDs, "setups": setupIDs, "intents": intentCount})
}

func (l *EventLogger) TradeSubmitted(setup, direction string, qty, stop float64) {
	l.emit("trade_submitted", map[string]any{"setup": setup, "direction": direction, "qty": qty, "stop": stop})
}

func (l *EventLogger) OrderRejected(reason string) {
	l.emit("order_rejected", map[string]any{"reason": reason})
}

func (l *EventLogger) CycleComplete(signals, intents int) {
	l.emit("cycle_complete", map[string]any{"signals": signals, "intents": intents})
}

func (l *EventLogger) MarketClosed(nextOpen string, waitHours float64) {
	l.emit("market_closed", map[string]any{"next_open": nextOpen, "wait_hours": waitHours})
}

func (l *EventLogger) Error(message, detail string) {
	l.emit("error", map[string]any{"message": message, "detail": detail})
}

func (l *EventLogger) Shutdown(cycles int) {
	l.emit("shutdown", map[string]any{"cycles": cycles})
}
