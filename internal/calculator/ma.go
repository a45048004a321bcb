package calculator

import (
	"math"

	"MarketFortress/internal/errors"
)

// CalculateSMA computes the simple moving average of the last period prices.
func CalculateSMA(prices []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New(errors.ErrCodeInvalidRequest, "period must be positive")
	}
	if len(prices) < period {
		return 0, errors.New(errors.ErrCodeInsufficientData, "not enough data for SMA calculation")
	}
	sum := 0.0
	for i := len(prices) - period; i < len(prices); i++ {
		sum += prices[i]
	}
	return sum / float64(period), nil
}

// SMASeries returns the rolling simple average. Positions before a full window
// of non-NaN values are NaN.
func SMASeries(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	first := firstValid(values)
	if period <= 0 || first < 0 {
		return out
	}
	sum := 0.0
	for i := first; i < len(values); i++ {
		sum += values[i]
		if i-first >= period {
			sum -= values[i-period]
		}
		if i-first+1 >= period {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// EMASeries returns the exponential average seeded with the SMA of the first
// period non-NaN values.
func EMASeries(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	first := firstValid(values)
	if period <= 0 || first < 0 || len(values)-first < period {
		return out
	}
	seed := 0.0
	for i := first; i < first+period; i++ {
		seed += values[i]
	}
	prev := seed / float64(period)
	out[first+period-1] = prev

	k := 2.0 / float64(period+1)
	for i := first + period; i < len(values); i++ {
		prev = values[i]*k + prev*(1-k)
		out[i] = prev
	}
	return out
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func firstValid(values []float64) int {
	for i, v := range values {
		if !math.IsNaN(v) {
			return i
		}
	}
	return -1
}
