package calculator

import "MarketFortress/internal/model"

// StochasticSeries returns slow %K (raw %K over kPeriod smoothed by smoothK) and %D (SMA of %K over dPeriod).
func StochasticSeries(bars []model.Bar, kPeriod, smoothK, dPeriod int) (k, d []float64) {
	raw := nanSlice(len(bars))
	for i := kPeriod - 1; kPeriod > 0 && i < len(bars); i++ {
		hh, ll := bars[i].High, bars[i].Low
		for j := i - kPeriod + 1; j < i; j++ {
			hh = max(hh, bars[j].High)
			ll = min(ll, bars[j].Low)
		}
		if hh == ll {
			raw[i] = 50
			continue
		}
		raw[i] = 100 * (bars[i].Close - ll) / (hh - ll)
	}
	k = SMASeries(raw, smoothK)
	d = SMASeries(k, dPeriod)
	return k, d
}
