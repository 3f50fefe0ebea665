// Package barstore implements the bar store collaborator (spec §6):
// persistent OHLCV storage with idempotent upsert, SQLite-backed,
// grounded on original_source's data/bar_store.py.
package barstore

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	vpaerrors "github.com/voltix/vpa-engine/internal/errors"
	"github.com/voltix/vpa-engine/internal/safety"
	"github.com/voltix/vpa-engine/internal/vpa"
)

// Store is the bar-store interface consumed by the pipeline's callers
// (spec §6). Only committed collaborators implement it; the core
// pipeline never depends on this interface directly.
type Store interface {
	GetBars(symbol, timeframe string, since, until *time.Time, limit *int) ([]vpa.Bar, error)
	GetLastBars(symbol, timeframe string, n int, until *time.Time) ([]vpa.Bar, error)
	WriteBars(symbol, timeframe string, bars []vpa.Bar) error
	CountBars(symbol, timeframe string) (int, error)
}

// SQLiteStore is a SQLite-backed Store. One file per path, single writer.
type SQLiteStore struct {
	db        *sql.DB
	validator *safety.Validator
}

// NewSQLiteStore opens (creating if necessary) the bar database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, vpaerrors.WrapStoreError("barstore.SQLiteStore", "mkdir", err)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, vpaerrors.WrapStoreError("barstore.SQLiteStore", "open", err)
	}
	s := &SQLiteStore{db: db, validator: safety.NewValidator()}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS bars (
			symbol TEXT NOT NULL,
			timeframe TEXT NOT NULL,
			ts_utc TEXT NOT NULL,
			open REAL NOT NULL,
			high REAL NOT NULL,
			low REAL NOT NULL,
			close REAL NOT NULL,
			volume REAL NOT NULL,
			PRIMARY KEY (symbol, timeframe, ts_utc)
		)
	`)
	if err != nil {
		return vpaerrors.WrapStoreError("barstore.SQLiteStore", "init schema", err)
	}
	return nil
}

// WriteBars upserts bars keyed by (symbol, timeframe, ts_utc).
func (s *SQLiteStore) WriteBars(symbol, timeframe string, bars []vpa.Bar) error {
	tx, err := s.db.Begin()
	if err != nil {
		return vpaerrors.WrapStoreError("barstore.SQLiteStore", "WriteBars begin", err)
	}
	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO bars (symbol, timeframe, ts_utc, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return vpaerrors.WrapStoreError("barstore.SQLiteStore", "WriteBars prepare", err)
	}
	defer stmt.Close()

	if r := s.validator.ValidateSymbol(symbol); !r.Valid {
		tx.Rollback()
		return vpaerrors.WrapStoreError("barstore.SQLiteStore", "WriteBars validate symbol", fmt.Errorf("%s: %s", r.Code, r.Message))
	}

	for _, b := range bars {
		if r := s.validator.ValidateBar(symbol, b.Open, b.High, b.Low, b.Close, b.Volume); !r.Valid {
			tx.Rollback()
			return vpaerrors.WrapStoreError("barstore.SQLiteStore", "WriteBars validate", fmt.Errorf("%s: %s", r.Code, r.Message))
		}
		if r := s.validator.ValidateTimestamp(b.Timestamp, "bar"); !r.Valid {
			tx.Rollback()
			return vpaerrors.WrapStoreError("barstore.SQLiteStore", "WriteBars validate timestamp", fmt.Errorf("%s: %s", r.Code, r.Message))
		}
		ts := b.Timestamp.UTC().Format(time.RFC3339Nano)
		if _, err := stmt.Exec(symbol, timeframe, ts, b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			tx.Rollback()
			return vpaerrors.WrapStoreError("barstore.SQLiteStore", "WriteBars exec", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return vpaerrors.WrapStoreError("barstore.SQLiteStore", "WriteBars commit", err)
	}
	return nil
}

// GetBars returns bars in ascending timestamp order.
func (s *SQLiteStore) GetBars(symbol, timeframe string, since, until *time.Time, limit *int) ([]vpa.Bar, error) {
	query := `SELECT ts_utc, open, high, low, close, volume FROM bars WHERE symbol = ? AND timeframe = ?`
	args := []any{symbol, timeframe}

	if since != nil {
		query += ` AND ts_utc >= ?`
		args = append(args, since.UTC().Format(time.RFC3339Nano))
	}
	if until != nil {
		query += ` AND ts_utc <= ?`
		args = append(args, until.UTC().Format(time.RFC3339Nano))
	}
	query += ` ORDER BY ts_utc ASC`
	if limit != nil {
		query += ` LIMIT ?`
		args = append(args, *limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, vpaerrors.WrapStoreError("barstore.SQLiteStore", "GetBars", err)
	}
	defer rows.Close()
	return scanBars(rows, symbol)
}

// GetLastBars returns the last n bars in ascending order (for a context window).
func (s *SQLiteStore) GetLastBars(symbol, timeframe string, n int, until *time.Time) ([]vpa.Bar, error) {
	query := `SELECT ts_utc, open, high, low, close, volume FROM bars WHERE symbol = ? AND timeframe = ?`
	args := []any{symbol, timeframe}
	if until != nil {
		query += ` AND ts_utc <= ?`
		args = append(args, until.UTC().Format(time.RFC3339Nano))
	}
	query += ` ORDER BY ts_utc DESC LIMIT ?`
	args = append(args, n)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, vpaerrors.WrapStoreError("barstore.SQLiteStore", "GetLastBars", err)
	}
	defer rows.Close()

	bars, err := scanBars(rows, symbol)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}
	return bars, nil
}

// CountBars returns the total number of bars stored for a symbol/timeframe pair.
func (s *SQLiteStore) CountBars(symbol, timeframe string) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM bars WHERE symbol = ? AND timeframe = ?`, symbol, timeframe).Scan(&count)
	if err != nil {
		return 0, vpaerrors.WrapStoreError("barstore.SQLiteStore", "CountBars", err)
	}
	return count, nil
}

// Close closes the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanBars(rows *sql.Rows, symbol string) ([]vpa.Bar, error) {
	var out []vpa.Bar
	idx := 0
	for rows.Next() {
		var tsStr string
		var o, h, l, c, v float64
		if err := rows.Scan(&tsStr, &o, &h, &l, &c, &v); err != nil {
			return nil, vpaerrors.WrapStoreError("barstore.SQLiteStore", "scan", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, tsStr)
		if err != nil {
			return nil, vpaerrors.WrapStoreError("barstore.SQLiteStore", "parse timestamp", err)
		}
		out = append(out, vpa.Bar{
			Open: o, High: h, Low: l, Close: c, Volume: v,
			Timestamp: ts, Symbol: symbol, BarIndex: idx,
		})
		idx++
	}
	return out, nil
}
