package feature

import "github.com/voltix/vpa-engine/internal/vpa"

// ComputeATR returns the simple-moving-average Average True Range over
// the last `period` true-range values in history. This intentionally
// matches the reference implementation's SMA-based ATR (not Wilder's
// smoothed EMA) so that ATR-based stop placement stays deterministic and
// reproducible against the same bar replay.
func ComputeATR(history []vpa.Bar, period int) float64 {
	trueRanges := trueRanges(history)
	window := lastN(trueRanges, period)
	return sma(window)
}

// trueRanges computes the true range for every bar after the first
// (true range needs the prior close).
func trueRanges(history []vpa.Bar) []float64 {
	if len(history) < 2 {
		return nil
	}
	out := make([]float64, 0, len(history)-1)
	for i := 1; i < len(history); i++ {
		out = append(out, trueRange(history[i], history[i-1]))
	}
	return out
}

func trueRange(bar, prev vpa.Bar) float64 {
	hl := bar.High - bar.Low
	hc := absf(bar.High - prev.Close)
	lc := absf(bar.Low - prev.Close)
	return maxf(hl, maxf(hc, lc))
}
