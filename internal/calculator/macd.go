package calculator

import "math"

// MACDSeries returns the MACD line (fast EMA minus slow EMA), its signal EMA and the histogram.
func MACDSeries(closes []float64, fast, slow, signal int) (line, sig, hist []float64) {
	fastEMA := EMASeries(closes, fast)
	slowEMA := EMASeries(closes, slow)

	line = nanSlice(len(closes))
	for i := range closes {
		if !math.IsNaN(fastEMA[i]) && !math.IsNaN(slowEMA[i]) {
			line[i] = fastEMA[i] - slowEMA[i]
		}
	}
	sig = EMASeries(line, signal)
	hist = nanSlice(len(closes))
	for i := range closes {
		if !math.IsNaN(sig[i]) {
			hist[i] = line[i] - sig[i]
		}
	}
	return line, sig, hist
}
