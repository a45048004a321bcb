package strategy

import (
	"sort"
	"strings"

	"MarketFortress/internal/calculator"
	"MarketFortress/internal/model"
)

// Thresholds are the RSI and stochastic pivot levels.
type Thresholds struct {
	RSI   float64
	Stoch float64
}

// DefaultThresholds pivots both oscillators at 50.
var DefaultThresholds = Thresholds{RSI: 50, Stoch: 50}

// Classify applies the momentum rule to one bar's indicators:
// BUY iff RSI, %K and MACD are all bullish; SELL iff all bearish; otherwise NEUTRAL.
func Classify(symbol string, snap model.IndicatorSnapshot, th Thresholds) model.Signal {
	rsi := scoreRSI(snap.RSI, th.RSI)
	stoch := scoreStoch(snap.StochK, th.Stoch)
	macd := scoreMACD(snap.MACD, snap.MACDSignal)
	components := []component{rsi, stoch, macd}

	sig := model.Signal{
		Symbol:     symbol,
		Type:       model.SignalNeutral,
		RSI:        snap.RSI,
		StochK:     snap.StochK,
		StochD:     snap.StochD,
		MACD:       snap.MACD,
		MACDSignal: snap.MACDSignal,
		MACDHist:   snap.MACDHist,
		Close:      snap.Close,
		At:         snap.Time,
	}

	switch {
	case rsi.Bias > 0 && stoch.Bias > 0 && macd.Bias > 0:
		sig.Type = model.SignalBuy
	case rsi.Bias < 0 && stoch.Bias < 0 && macd.Bias < 0:
		sig.Type = model.SignalSell
	}

	reasons := make([]string, 0, len(components))
	for _, c := range components {
		reasons = append(reasons, c.Commentary)
	}
	sig.Reason = strings.Join(reasons, ", ")

	if sig.Type != model.SignalNeutral {
		total := 0.0
		for _, c := range components {
			total += c.Strength
		}
		sig.Strength = min(total/float64(len(components)), 100)
	}
	return sig
}

// Evaluate computes indicators for bars and classifies the latest complete bar.
func Evaluate(symbol string, bars []model.Bar, params calculator.Params, th Thresholds) (model.Signal, error) {
	series, err := calculator.Compute(bars, params)
	if err != nil {
		return model.Signal{Symbol: symbol, Type: model.SignalNeutral}, err
	}
	snap, _ := series.Latest()
	return Classify(symbol, snap, th), nil
}

// Filter keeps signals of the given type (any type when empty) with at least minStrength,
// strongest first.
func Filter(signals []model.Signal, typ model.SignalType, minStrength float64) []model.Signal {
	var out []model.Signal
	for _, s := range signals {
		if typ != "" && s.Type != typ {
			continue
		}
		if s.Strength < minStrength {
			continue
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Strength > out[j].Strength })
	return out
}

// Actionable reports whether a signal is directional and strong enough to act on.
func Actionable(s model.Signal, minStrength float64) bool {
	return s.Type != model.SignalNeutral && s.Strength >= minStrength
}
