package feature

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltix/vpa-engine/internal/config"
	"github.com/voltix/vpa-engine/internal/vpa"
)

func barAt(i int, open, high, low, close, volume float64) vpa.Bar {
	return vpa.Bar{
		Open: open, High: high, Low: low, Close: close, Volume: volume,
		Timestamp: time.Date(2026, 1, 1, 0, i, 0, 0, time.UTC),
		BarIndex:  i,
	}
}

func TestCompute_EmptyHistoryIsInsufficientData(t *testing.T) {
	e := New(config.DefaultVPAConfig())
	_, err := e.Compute("1h", nil)
	require.Error(t, err)
}

func TestCompute_DegenerateBaselineYieldsZeroRelatives(t *testing.T) {
	e := New(config.DefaultVPAConfig())
	history := []vpa.Bar{barAt(0, 100, 101, 99, 100.5, 1000)}
	f, err := e.Compute("1h", history)
	require.NoError(t, err)
	assert.Equal(t, 0.0, f.VolRel)
	assert.Equal(t, 0.0, f.SpreadRel)
	assert.Equal(t, vpa.VolLow, f.VolState)
}

func TestCompute_WickAndSpreadMath(t *testing.T) {
	e := New(config.DefaultVPAConfig())
	history := []vpa.Bar{
		barAt(0, 100, 105, 95, 102, 1000),
		barAt(1, 102, 110, 90, 104, 1000),
	}
	f, err := e.Compute("1h", history)
	require.NoError(t, err)
	assert.Equal(t, 2.0, f.Spread)        // |104-102|
	assert.Equal(t, 20.0, f.Range)        // 110-90
	assert.Equal(t, 6.0, f.UpperWick)     // 110 - max(102,104)
	assert.Equal(t, 12.0, f.LowerWick)    // min(102,104) - 90
	assert.Equal(t, vpa.CandleUp, f.CandleType)
}

func TestClassifyVol_BoundaryDiscipline(t *testing.T) {
	th := config.VolThresholds{LowLT: 0.7, HighGT: 1.5, UltraHighGT: 2.5}
	assert.Equal(t, vpa.VolLow, classifyVol(0.69, th))
	assert.Equal(t, vpa.VolAverage, classifyVol(0.7, th))
	assert.Equal(t, vpa.VolAverage, classifyVol(1.5, th))
	assert.Equal(t, vpa.VolHigh, classifyVol(1.51, th))
	assert.Equal(t, vpa.VolHigh, classifyVol(2.5, th))
	assert.Equal(t, vpa.VolUltraHigh, classifyVol(2.51, th))
}

func TestClassifySpread_BoundaryDiscipline(t *testing.T) {
	th := config.SpreadThresholds{NarrowLT: 0.7, WideGT: 1.3}
	assert.Equal(t, vpa.SpreadNarrow, classifySpread(0.69, th))
	assert.Equal(t, vpa.SpreadNormal, classifySpread(0.7, th))
	assert.Equal(t, vpa.SpreadNormal, classifySpread(1.3, th))
	assert.Equal(t, vpa.SpreadWide, classifySpread(1.31, th))
}

func TestCandleType_DownOnStrictlyLowerClose(t *testing.T) {
	e := New(config.DefaultVPAConfig())
	history := []vpa.Bar{barAt(0, 100, 101, 99, 99.5, 500)}
	f, err := e.Compute("1h", history)
	require.NoError(t, err)
	assert.Equal(t, vpa.CandleDown, f.CandleType)
}
