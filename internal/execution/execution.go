// Package execution implements the paper execution ledger collaborator
// (spec §6): a SQLite-backed order/fill/position blotter used by the
// `paper` CLI mode, grounded on original_source's execution/paper_executor.py.
package execution

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	vpaerrors "github.com/voltix/vpa-engine/internal/errors"
	"github.com/voltix/vpa-engine/internal/safety"
	"github.com/voltix/vpa-engine/internal/vpa"
)

// Position is the current open quantity for a symbol (signed: positive long, negative short).
type Position struct {
	Symbol   string
	Qty      int
	AvgPrice float64
}

// Fill is a single executed quantity against an order.
type Fill struct {
	FillID    string
	OrderID   string
	Symbol    string
	Side      string
	Qty       int
	Price     float64
	Timestamp time.Time
}

// SubmitResult is the outcome of submitting a trade intent for execution.
type SubmitResult struct {
	Accepted bool
	Reason   string
	OrderID  string
	Fill     *Fill
}

// Ledger is the execution-collaborator interface consumed by live/paper runners.
type Ledger interface {
	SubmitIntent(symbol string, intent vpa.TradeIntent, currentPrice float64, maxConcurrentPositions int) (SubmitResult, error)
	GetPosition(symbol string) (Position, error)
	ListFills(symbol string) ([]Fill, error)
}

// PaperLedger simulates fills at currentPrice plus slippage, backed by SQLite.
// Order submission is rate-limited and DB writes are guarded by a circuit
// breaker so a flapping disk/filesystem degrades to rejected orders instead
// of cascading failures into the caller.
type PaperLedger struct {
	db          *sql.DB
	slippageBps float64
	validator   *safety.Validator
	limiter     *safety.RateLimiter
	breaker     *safety.CircuitBreaker
}

// NewPaperLedger opens (creating if necessary) the execution database at path.
func NewPaperLedger(path string, slippageBps float64) (*PaperLedger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, vpaerrors.WrapExecutionError("execution.PaperLedger", "mkdir", err)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, vpaerrors.WrapExecutionError("execution.PaperLedger", "open", err)
	}
	l := &PaperLedger{
		db:          db,
		slippageBps: slippageBps,
		validator:   safety.NewValidator(),
		limiter:     safety.NewRateLimiter("paper-ledger-submit", 10, 1),
		breaker: safety.NewCircuitBreaker("paper-ledger-db", safety.CircuitBreakerConfig{
			FailureThreshold: 3,
			SuccessThreshold: 1,
			Timeout:          30 * time.Second,
		}),
	}
	if err := l.initSchema(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *PaperLedger) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS orders (
			order_id TEXT PRIMARY KEY,
			intent_id TEXT NOT NULL,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			qty INTEGER NOT NULL,
			status TEXT NOT NULL,
			ts_utc TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS fills (
			fill_id TEXT PRIMARY KEY,
			order_id TEXT NOT NULL,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			qty INTEGER NOT NULL,
			price REAL NOT NULL,
			ts_utc TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS positions (
			symbol TEXT PRIMARY KEY,
			qty INTEGER NOT NULL,
			avg_price REAL NOT NULL
		)`,
	}
	for _, s := range stmts {
		if _, err := l.db.Exec(s); err != nil {
			return vpaerrors.WrapExecutionError("execution.PaperLedger", "init schema", err)
		}
	}
	return nil
}

// SubmitIntent enforces the risk-limit hard reject (max concurrent positions)
// and, if accepted, simulates an immediate fill at currentPrice plus slippage.
func (l *PaperLedger) SubmitIntent(symbol string, intent vpa.TradeIntent, currentPrice float64, maxConcurrentPositions int) (SubmitResult, error) {
	if r := l.validator.ValidateSymbol(symbol); !r.Valid {
		return SubmitResult{Accepted: false, Reason: r.Message}, nil
	}
	if r := l.validator.ValidatePrice(currentPrice, symbol); !r.Valid {
		return SubmitResult{Accepted: false, Reason: r.Message}, nil
	}
	if r := l.validator.ValidateQuantity(float64(intent.RiskPlan.Size), symbol); !r.Valid {
		return SubmitResult{Accepted: false, Reason: r.Message}, nil
	}
	if !l.limiter.Allow() {
		return SubmitResult{Accepted: false, Reason: "order submission rate limit exceeded"}, nil
	}
	if l.breaker.GetState() == safety.StateOpen {
		return SubmitResult{Accepted: false, Reason: "execution ledger circuit breaker open"}, nil
	}

	openCount, err := l.openPositionCount()
	if err != nil {
		return SubmitResult{}, err
	}

	pos, err := l.GetPosition(symbol)
	if err != nil {
		return SubmitResult{}, err
	}
	if pos.Qty == 0 && openCount >= maxConcurrentPositions {
		return SubmitResult{Accepted: false, Reason: fmt.Sprintf("Max concurrent positions (%d) reached", maxConcurrentPositions)}, nil
	}

	side := "BUY"
	if intent.Direction == vpa.DirectionShort {
		side = "SELL"
	}

	orderID := uuid.NewString()
	now := time.Now().UTC()

	tx, err := l.db.Begin()
	if err != nil {
		return SubmitResult{}, vpaerrors.WrapExecutionError("execution.PaperLedger", "SubmitIntent begin", err)
	}

	_, err = tx.Exec(
		`INSERT INTO orders (order_id, intent_id, symbol, side, qty, status, ts_utc) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		orderID, intent.IntentID, symbol, side, intent.RiskPlan.Size, "FILLED", now.Format(time.RFC3339Nano),
	)
	if err != nil {
		tx.Rollback()
		return SubmitResult{}, vpaerrors.WrapExecutionError("execution.PaperLedger", "insert order", err)
	}

	fillPrice := currentPrice
	bps := l.slippageBps / 10_000
	if side == "BUY" {
		fillPrice *= 1 + bps
	} else {
		fillPrice *= 1 - bps
	}

	fillID := uuid.NewString()
	_, err = tx.Exec(
		`INSERT INTO fills (fill_id, order_id, symbol, side, qty, price, ts_utc) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		fillID, orderID, symbol, side, intent.RiskPlan.Size, fillPrice, now.Format(time.RFC3339Nano),
	)
	if err != nil {
		tx.Rollback()
		return SubmitResult{}, vpaerrors.WrapExecutionError("execution.PaperLedger", "insert fill", err)
	}

	signedQty := intent.RiskPlan.Size
	if side == "SELL" {
		signedQty = -signedQty
	}
	newQty := pos.Qty + signedQty
	newAvg := fillPrice
	if newQty != 0 && pos.Qty != 0 && sameSign(pos.Qty, signedQty) {
		newAvg = (pos.AvgPrice*float64(abs(pos.Qty)) + fillPrice*float64(abs(signedQty))) / float64(abs(newQty))
	}

	_, err = tx.Exec(
		`INSERT INTO positions (symbol, qty, avg_price) VALUES (?, ?, ?)
		 ON CONFLICT(symbol) DO UPDATE SET qty = excluded.qty, avg_price = excluded.avg_price`,
		symbol, newQty, newAvg,
	)
	if err != nil {
		tx.Rollback()
		return SubmitResult{}, vpaerrors.WrapExecutionError("execution.PaperLedger", "upsert position", err)
	}

	if err := l.breaker.Call(tx.Commit); err != nil {
		return SubmitResult{}, vpaerrors.WrapExecutionError("execution.PaperLedger", "SubmitIntent commit", err)
	}

	return SubmitResult{
		Accepted: true,
		OrderID:  orderID,
		Fill: &Fill{
			FillID: fillID, OrderID: orderID, Symbol: symbol,
			Side: side, Qty: intent.RiskPlan.Size, Price: fillPrice, Timestamp: now,
		},
	}, nil
}

// GetPosition returns the current position for symbol (zero-value if none).
func (l *PaperLedger) GetPosition(symbol string) (Position, error) {
	row := l.db.QueryRow(`SELECT qty, avg_price FROM positions WHERE symbol = ?`, symbol)
	var qty int
	var avgPrice float64
	err := row.Scan(&qty, &avgPrice)
	if err == sql.ErrNoRows {
		return Position{Symbol: symbol}, nil
	}
	if err != nil {
		return Position{}, vpaerrors.WrapExecutionError("execution.PaperLedger", "GetPosition", err)
	}
	return Position{Symbol: symbol, Qty: qty, AvgPrice: avgPrice}, nil
}

// ListFills returns all fills for symbol in chronological order.
func (l *PaperLedger) ListFills(symbol string) ([]Fill, error) {
	rows, err := l.db.Query(
		`SELECT fill_id, order_id, symbol, side, qty, price, ts_utc FROM fills WHERE symbol = ? ORDER BY ts_utc ASC`,
		symbol,
	)
	if err != nil {
		return nil, vpaerrors.WrapExecutionError("execution.PaperLedger", "ListFills", err)
	}
	defer rows.Close()

	var out []Fill
	for rows.Next() {
		var f Fill
		var tsStr string
		if err := rows.Scan(&f.FillID, &f.OrderID, &f.Symbol, &f.Side, &f.Qty, &f.Price, &tsStr); err != nil {
			return nil, vpaerrors.WrapExecutionError("execution.PaperLedger", "scan fill", err)
		}
		f.Timestamp, err = time.Parse(time.RFC3339Nano, tsStr)
		if err != nil {
			return nil, vpaerrors.WrapExecutionError("execution.PaperLedger", "parse fill timestamp", err)
		}
		out = append(out, f)
	}
	return out, nil
}

func (l *PaperLedger) openPositionCount() (int, error) {
	var count int
	err := l.db.QueryRow(`SELECT COUNT(*) FROM positions WHERE qty != 0`).Scan(&count)
	if err != nil {
		return 0, vpaerrors.WrapExecutionError("execution.PaperLedger", "openPositionCount", err)
	}
	return count, nil
}

// Close closes the underlying database handle.
func (l *PaperLedger) Close() error {
	return l.db.Close()
}

func sameSign(a, b int) bool {
	return (a >= 0) == (b >= 0)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
