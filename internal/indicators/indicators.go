// Package indicators implements stateless technical-analysis functions
// over finite ordered sequences of closing prices. Every function
// returns a zero value plus ok=false on degenerate input instead of
// panicking or returning an error — callers treat None the same as any
// other insufficient-history case.
package indicators

import "math"

// SMA returns the simple moving average of the trailing period values.
// ok is false when len(values) < period.
func SMA(values []float64, period int) (float64, bool) {
	if period <= 0 || len(values) < period {
		return 0, false
	}
	window := values[len(values)-period:]
	sum := 0.0
	for _, v := range window {
		sum += v
	}
	return sum / float64(period), true
}

// RSI computes the Relative Strength Index over closes.
//
// With fewer than 3 samples there isn't enough signal and RSI is
// undefined. Between 3 and period samples (inclusive), it falls back to
// a neutral heuristic: last close above the mean of the rest implies
// mild upward bias (65), otherwise mild downward bias (35). Once more
// than period samples are available, it uses Wilder's smoothing: seed
// average gain/loss over the first period deltas, then smooth each
// subsequent delta with gain = (gain*(period-1) + g) / period (and
// symmetrically for loss). loss == 0 is defined as RSI 100.
func RSI(closes []float64, period int) (float64, bool) {
	n := len(closes)
	if n < 3 || period <= 0 {
		return 0, false
	}

	if n <= period {
		rest := closes[:n-1]
		mean := 0.0
		for _, v := range rest {
			mean += v
		}
		mean /= float64(len(rest))
		if closes[n-1] > mean {
			return 65, true
		}
		return 35, true
	}

	deltas := make([]float64, n-1)
	for i := 1; i < n; i++ {
		deltas[i-1] = closes[i] - closes[i-1]
	}

	var seedGain, seedLoss float64
	for i := 0; i < period; i++ {
		d := deltas[i]
		if d > 0 {
			seedGain += d
		} else {
			seedLoss += -d
		}
	}
	gain := seedGain / float64(period)
	loss := seedLoss / float64(period)

	for i := period; i < len(deltas); i++ {
		d := deltas[i]
		g, l := 0.0, 0.0
		if d > 0 {
			g = d
		} else {
			l = -d
		}
		gain = (gain*float64(period-1) + g) / float64(period)
		loss = (loss*float64(period-1) + l) / float64(period)
	}

	if loss == 0 {
		return 100, true
	}
	rs := gain / loss
	return 100 - 100/(1+rs), true
}

// Bollinger holds the mid/upper/lower band values for a window.
type Bollinger struct {
	Mid   float64
	Upper float64
	Lower float64
}

// BollingerBands computes the moving-average mid band and k-sigma
// bands over the trailing period closes, using population stddev.
func BollingerBands(closes []float64, period int, k float64) (Bollinger, bool) {
	mid, ok := SMA(closes, period)
	if !ok {
		return Bollinger{}, false
	}

	window := closes[len(closes)-period:]
	var sumSq float64
	for _, v := range window {
		d := v - mid
		sumSq += d * d
	}
	sigma := math.Sqrt(sumSq / float64(period))

	return Bollinger{
		Mid:   mid,
		Upper: mid + k*sigma,
		Lower: mid - k*sigma,
	}, true
}

// DonchianHigh returns the maximum of the trailing lookback values.
func DonchianHigh(values []float64, lookback int) (float64, bool) {
	if lookback <= 0 || len(values) < lookback {
		return 0, false
	}
	window := values[len(values)-lookback:]
	high := window[0]
	for _, v := range window[1:] {
		if v > high {
			high = v
		}
	}
	return high, true
}

// DonchianLow returns the minimum of the trailing lookback values.
func DonchianLow(values []float64, lookback int) (float64, bool) {
	if lookback <= 0 || len(values) < lookback {
		return 0, false
	}
	window := values[len(values)-lookback:]
	low := window[0]
	for _, v := range window[1:] {
		if v < low {
			low = v
		}
	}
	return low, true
}

// ROC returns the rate of change over period samples:
// (last - closes[len-1-period]) / closes[len-1-period]. Returns
// ok=false if there isn't enough history or the prior price is zero.
func ROC(closes []float64, period int) (float64, bool) {
	n := len(closes)
	if period <= 0 || n-1-period < 0 {
		return 0, false
	}
	prior := closes[n-1-period]
	if prior == 0 {
		return 0, false
	}
	last := closes[n-1]
	return (last - prior) / prior, true
}

// StdDev returns the population standard deviation of values.
func StdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	var sumSq float64
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(values)))
}

// Choppiness computes a normalized choppiness index over a trailing
// window of prices: the ratio of cumulative absolute tick-to-tick
// displacement to net displacement, scaled to roughly [0,1]. A value of
// 0 means all prices were identical (no movement, defined as not
// choppy); values approaching 1 indicate high back-and-forth movement
// with little net progress.
func Choppiness(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}

	var cumulative float64
	allEqual := true
	for i := 1; i < len(values); i++ {
		d := values[i] - values[i-1]
		cumulative += math.Abs(d)
		if d != 0 {
			allEqual = false
		}
	}
	if allEqual || cumulative == 0 {
		return 0
	}

	net := math.Abs(values[len(values)-1] - values[0])
	if net == 0 {
		return 1
	}
	ratio := 1 - net/cumulative
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	return ratio
}
