package model

import (
	"time"
	_ "time/tzdata"
)

// OptionType is put or call.
type OptionType string

const (
	OptionPut  OptionType = "put"
	OptionCall OptionType = "call"
)

// OptionContract is an immutable snapshot row of an option chain.
type OptionContract struct {
	Symbol            string     `json:"symbol"`
	Underlying        string     `json:"underlying"`
	Type              OptionType `json:"type"`
	Strike            float64    `json:"strike"`
	Bid               float64    `json:"bid"`
	Ask               float64    `json:"ask"`
	Last              float64    `json:"last"`
	Volume            float64    `json:"volume"`
	OpenInterest      float64    `json:"open_interest"`
	ImpliedVolatility float64    `json:"implied_volatility"`
	Expiration        time.Time  `json:"expiration"`
}

// Mid returns the bid/ask midpoint, falling back to last when the quote is empty.
func (c OptionContract) Mid() float64 {
	if c.Bid > 0 && c.Ask > 0 {
		return (c.Bid + c.Ask) / 2
	}
	return c.Last
}

// MarketLocation is the exchange clock. Expirations and trading weekdays are read in it.
var MarketLocation = mustLoadLocation("America/New_York")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

// MarketTime returns t on the exchange clock.
func MarketTime(t time.Time) time.Time {
	return t.In(MarketLocation)
}

// ExpirationClose returns the moment a contract expiring on day stops trading: 16:00 US/Eastern, as UTC.
func ExpirationClose(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, 16, 0, 0, 0, MarketLocation).UTC()
}
