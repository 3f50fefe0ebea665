package monitoring

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordTrade_ObservesIntoTradePnLHistogram(t *testing.T) {
	before := testutil.CollectAndCount(TradePnL)
	RecordTrade("BTCUSD-metrics-test", 42.0)
	after := testutil.CollectAndCount(TradePnL)
	assert.Greater(t, after, before, "recording a trade for a new symbol label adds a histogram series")
}

func TestCyclesTotal_IncrementsPerSymbolTimeframe(t *testing.T) {
	CyclesTotal.WithLabelValues("ETHUSD-metrics-test", "1h").Inc()
	value := testutil.ToFloat64(CyclesTotal.WithLabelValues("ETHUSD-metrics-test", "1h"))
	assert.Equal(t, 1.0, value)
}

func TestActiveSetupCandidates_GaugeSetsAndReads(t *testing.T) {
	ActiveSetupCandidates.WithLabelValues("SOLUSD-metrics-test").Set(3)
	value := testutil.ToFloat64(ActiveSetupCandidates.WithLabelValues("SOLUSD-metrics-test"))
	assert.Equal(t, 3.0, value)
}
