package feature

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/voltix/vpa-engine/internal/vpa"
)

func TestComputeATR_SingleBarIsZero(t *testing.T) {
	history := []vpa.Bar{barAt(0, 100, 105, 95, 102, 1000)}
	assert.Equal(t, 0.0, ComputeATR(history, 14))
}

func TestComputeATR_SMAOfTrueRanges(t *testing.T) {
	history := []vpa.Bar{
		barAt(0, 100, 105, 95, 100, 1000),  // range 10
		barAt(1, 100, 104, 98, 101, 1000),  // TR=max(6, |104-100|=4, |98-100|=2)=6
		barAt(2, 101, 103, 96, 102, 1000),  // TR=max(7, |103-101|=2, |96-101|=5)=7
	}
	// true ranges: [6, 7] -> SMA over period 2 = 6.5
	assert.InDelta(t, 6.5, ComputeATR(history, 2), 1e-9)
}

func TestComputeATR_PeriodLargerThanHistoryUsesAllAvailable(t *testing.T) {
	history := []vpa.Bar{
		barAt(0, 100, 105, 95, 100, 1000),
		barAt(1, 100, 104, 98, 101, 1000),
	}
	assert.Equal(t, ComputeATR(history, 100), ComputeATR(history, 1))
}
