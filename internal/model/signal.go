package model

import (
	"math"
	"time"
)

// SignalType is the momentum classification of the latest bar.
type SignalType string

const (
	SignalBuy     SignalType = "BUY"
	SignalSell    SignalType = "SELL"
	SignalNeutral SignalType = "NEUTRAL"
)

// IndicatorSnapshot holds indicator values for one bar.
type IndicatorSnapshot struct {
	Time       time.Time
	Close      float64
	RSI        float64
	StochK     float64
	StochD     float64
	MACD       float64
	MACDSignal float64
	MACDHist   float64
}

// IndicatorSeries holds per-bar indicator values aligned with the input bars.
// Warm-up positions are NaN.
type IndicatorSeries struct {
	Times      []time.Time
	Close      []float64
	RSI        []float64
	StochK     []float64
	StochD     []float64
	MACD       []float64
	MACDSignal []float64
	MACDHist   []float64
}

// Len is the number of bars covered.
func (s IndicatorSeries) Len() int { return len(s.Times) }

// At returns the values at bar i.
func (s IndicatorSeries) At(i int) IndicatorSnapshot {
	return IndicatorSnapshot{
		Time:       s.Times[i],
		Close:      s.Close[i],
		RSI:        s.RSI[i],
		StochK:     s.StochK[i],
		StochD:     s.StochD[i],
		MACD:       s.MACD[i],
		MACDSignal: s.MACDSignal[i],
		MACDHist:   s.MACDHist[i],
	}
}

// Latest returns the last bar whose indicators are all populated.
func (s IndicatorSeries) Latest() (IndicatorSnapshot, bool) {
	for i := s.Len() - 1; i >= 0; i-- {
		if snap := s.At(i); snap.Complete() {
			return snap, true
		}
	}
	return IndicatorSnapshot{}, false
}

// Complete reports whether no value is still in warm-up.
func (s IndicatorSnapshot) Complete() bool {
	for _, v := range []float64{s.RSI, s.StochK, s.StochD, s.MACD, s.MACDSignal, s.MACDHist} {
		if math.IsNaN(v) {
			return false
		}
	}
	return true
}

// Signal is the classifier output for one symbol.
type Signal struct {
	Symbol     string
	Type       SignalType
	Strength   float64
	RSI        float64
	StochK     float64
	StochD     float64
	MACD       float64
	MACDSignal float64
	MACDHist   float64
	Close      float64
	Reason     string
	At         time.Time
}
