package backtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltix/vpa-engine/internal/config"
	"github.com/voltix/vpa-engine/internal/vpa"
)

func TestFillPrice_AddsSlippageForLongSubtractsForShort(t *testing.T) {
	assert.InDelta(t, 100.05, fillPrice(100, vpa.DirectionLong, 5), 1e-9)
	assert.InDelta(t, 99.95, fillPrice(100, vpa.DirectionShort, 5), 1e-9)
}

func TestCheckExit_LongStopsOutOnLowBreach(t *testing.T) {
	pos := openPosition{intent: vpa.TradeIntent{Direction: vpa.DirectionLong}, stop: 95}
	price, exited, reason := checkExit(pos, vpa.Bar{Low: 94, High: 96}, false, 5)
	assert.True(t, exited)
	assert.Equal(t, "stop", reason)
	assert.Less(t, price, 95.0)
}

func TestCheckExit_ForcesExitOnFinalBar(t *testing.T) {
	pos := openPosition{intent: vpa.TradeIntent{Direction: vpa.DirectionLong}, stop: 90}
	price, exited, reason := checkExit(pos, vpa.Bar{Low: 95, High: 105, Close: 100}, true, 0)
	assert.True(t, exited)
	assert.Equal(t, "end_of_data", reason)
	assert.Equal(t, 100.0, price)
}

func TestCheckExit_NoExitWhenStopNotBreached(t *testing.T) {
	pos := openPosition{intent: vpa.TradeIntent{Direction: vpa.DirectionLong}, stop: 90}
	_, exited, _ := checkExit(pos, vpa.Bar{Low: 95, High: 105}, false, 0)
	assert.False(t, exited)
}

func TestFees_PerShareAndPctNotional(t *testing.T) {
	assert.Equal(t, 10.0, fees(config.CostsConfig{FeeModel: "PER_SHARE", FeeValue: 1}, 100, 10))
	assert.Equal(t, 50.0, fees(config.CostsConfig{FeeModel: "PCT_NOTIONAL", FeeValue: 0.05}, 100, 10))
	assert.Equal(t, 0.0, fees(config.CostsConfig{FeeModel: "NONE"}, 100, 10))
}

func flatBar(i int, close, volume float64) vpa.Bar {
	return vpa.Bar{
		Open: close, High: close + 1, Low: close - 1, Close: close, Volume: volume,
		Timestamp: time.Date(2026, 1, 1, 0, i, 0, 0, time.UTC), BarIndex: i,
	}
}

func TestRun_NoLookaheadFlatHistoryProducesNoTrades(t *testing.T) {
	cfg := config.DefaultVPAConfig()
	d := New(cfg)
	var bars []vpa.Bar
	for i := 0; i < 10; i++ {
		bars = append(bars, flatBar(i, 100, 1000))
	}
	result := d.Run(bars, "BTCUSD", "1h", 10000, nil)
	require.Equal(t, 10000.0, result.FinalCash)
	assert.Empty(t, result.Trades)
}

func TestResult_TotalReturnAndWinLossCounts(t *testing.T) {
	r := Result{
		InitialCash: 10000,
		FinalCash:   11000,
		Trades: []Trade{
			{PnL: 500}, {PnL: -200}, {PnL: 700},
		},
	}
	assert.InDelta(t, 10.0, r.TotalReturnPct(), 1e-9)
	assert.Equal(t, 2, r.WinCount())
	assert.Equal(t, 1, r.LossCount())
}
