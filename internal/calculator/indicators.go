package calculator

import (
	"time"

	"MarketFortress/internal/errors"
	"MarketFortress/internal/model"
)

// Params are the indicator periods.
type Params struct {
	RSIPeriod   int
	StochK      int
	StochSmooth int
	StochD      int
	MACDFast    int
	MACDSlow    int
	MACDSignal  int
}

// DefaultParams is RSI(7), Stochastic(14,3,3), MACD(12,26,9).
var DefaultParams = Params{
	RSIPeriod:   7,
	StochK:      14,
	StochSmooth: 3,
	StochD:      3,
	MACDFast:    12,
	MACDSlow:    26,
	MACDSignal:  9,
}

// WarmUp is the number of bars needed before every indicator is populated.
func (p Params) WarmUp() int {
	stoch := p.StochK + p.StochSmooth + p.StochD - 2
	macd := p.MACDSlow + p.MACDSignal - 1
	return max(p.RSIPeriod+1, stoch, macd)
}

// Compute returns per-bar indicators aligned with bars. Bars must be ascending.
func Compute(bars []model.Bar, p Params) (model.IndicatorSeries, error) {
	if p.RSIPeriod <= 0 || p.StochK <= 0 || p.StochSmooth <= 0 || p.StochD <= 0 ||
		p.MACDFast <= 0 || p.MACDSlow <= p.MACDFast || p.MACDSignal <= 0 {
		return model.IndicatorSeries{}, errors.Newf(errors.ErrCodeInvalidRequest, "invalid indicator params %+v", p)
	}
	if need := p.WarmUp(); len(bars) < need {
		return model.IndicatorSeries{}, errors.Newf(errors.ErrCodeInsufficientData, "need %d bars for indicators, have %d", need, len(bars))
	}

	closes := model.Closes(bars)
	times := make([]time.Time, len(bars))
	for i, b := range bars {
		times[i] = b.Time
	}

	k, d := StochasticSeries(bars, p.StochK, p.StochSmooth, p.StochD)
	line, sig, hist := MACDSeries(closes, p.MACDFast, p.MACDSlow, p.MACDSignal)
	return model.IndicatorSeries{
		Times:      times,
		Close:      closes,
		RSI:        RSISeries(closes, p.RSIPeriod),
		StochK:     k,
		StochD:     d,
		MACD:       line,
		MACDSignal: sig,
		MACDHist:   hist,
	}, nil
}
