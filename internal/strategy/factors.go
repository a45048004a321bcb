package strategy

import (
	"fmt"
	"math"
)

// component is one indicator's vote: Bias is +1 bullish, -1 bearish, 0 on the line.
type component struct {
	Name       string
	Bias       int
	Strength   float64
	Commentary string
}

func bias(v, pivot float64) int {
	switch {
	case v > pivot:
		return 1
	case v < pivot:
		return -1
	default:
		return 0
	}
}

func describe(name string, b int) string {
	switch b {
	case 1:
		return name + " bullish"
	case -1:
		return name + " bearish"
	default:
		return name + " neutral"
	}
}

// scoreRSI: strength is the distance from 50, doubled.
func scoreRSI(rsi, threshold float64) component {
	b := bias(rsi, threshold)
	return component{
		Name:       "RSI",
		Bias:       b,
		Strength:   math.Min(math.Abs(rsi-50), 50) * 2,
		Commentary: fmt.Sprintf("%s (%.1f)", describe("RSI", b), rsi),
	}
}

// scoreStoch: strength is the distance of %K from 50, doubled.
func scoreStoch(k, threshold float64) component {
	b := bias(k, threshold)
	return component{
		Name:       "Stoch",
		Bias:       b,
		Strength:   math.Min(math.Abs(k-50), 50) * 2,
		Commentary: fmt.Sprintf("%s (%%K %.1f)", describe("Stoch", b), k),
	}
}

// scoreMACD: strength is the histogram magnitude times 50, capped at 100.
func scoreMACD(line, signal float64) component {
	b := bias(line, signal)
	return component{
		Name:       "MACD",
		Bias:       b,
		Strength:   math.Min(math.Abs(line-signal)*50, 100),
		Commentary: fmt.Sprintf("%s (hist %+.4f)", describe("MACD", b), line-signal),
	}
}
