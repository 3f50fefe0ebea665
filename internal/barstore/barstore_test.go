package barstore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltix/vpa-engine/internal/vpa"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bars.db")
	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func bar(ts time.Time, close float64) vpa.Bar {
	return vpa.Bar{Open: close, High: close + 1, Low: close - 1, Close: close, Volume: 1000, Timestamp: ts}
}

func TestWriteBars_ThenGetBars_RoundTripsInAscendingOrder(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := []vpa.Bar{
		bar(base.Add(2*time.Hour), 102),
		bar(base, 100),
		bar(base.Add(time.Hour), 101),
	}
	require.NoError(t, s.WriteBars("BTCUSD", "1h", bars))

	got, err := s.GetBars("BTCUSD", "1h", nil, nil, nil)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 100.0, got[0].Close)
	assert.Equal(t, 101.0, got[1].Close)
	assert.Equal(t, 102.0, got[2].Close)
}

func TestWriteBars_IsIdempotentUpsertByTimestamp(t *testing.T) {
	s := newTestStore(t)
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.WriteBars("BTCUSD", "1h", []vpa.Bar{bar(ts, 100)}))
	require.NoError(t, s.WriteBars("BTCUSD", "1h", []vpa.Bar{bar(ts, 999)}))

	count, err := s.CountBars("BTCUSD", "1h")
	require.NoError(t, err)
	assert.Equal(t, 1, count, "same (symbol, timeframe, ts) replaces rather than duplicates")

	got, err := s.GetBars("BTCUSD", "1h", nil, nil, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 999.0, got[0].Close)
}

func TestWriteBars_RejectsInvalidBarAndRollsBackWholeBatch(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := []vpa.Bar{
		bar(base, 100),
		{Open: 100, High: 90, Low: 110, Close: 100, Volume: 1000, Timestamp: base.Add(time.Hour)}, // high < low
	}
	err := s.WriteBars("BTCUSD", "1h", bars)
	assert.Error(t, err)

	count, countErr := s.CountBars("BTCUSD", "1h")
	require.NoError(t, countErr)
	assert.Equal(t, 0, count, "the whole batch rolls back, including the valid leading bar")
}

func TestGetLastBars_ReturnsMostRecentNInAscendingOrder(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var bars []vpa.Bar
	for i := 0; i < 5; i++ {
		bars = append(bars, bar(base.Add(time.Duration(i)*time.Hour), float64(100+i)))
	}
	require.NoError(t, s.WriteBars("BTCUSD", "1h", bars))

	got, err := s.GetLastBars("BTCUSD", "1h", 2, nil)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 103.0, got[0].Close)
	assert.Equal(t, 104.0, got[1].Close)
}

func TestCountBars_ZeroForUnknownSymbol(t *testing.T) {
	s := newTestStore(t)
	count, err := s.CountBars("NOPE", "1h")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
