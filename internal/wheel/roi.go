package wheel

import (
	"math"
	"time"

	"MarketFortress/internal/model"
)

// AnnualizedROI is (premium / strike) * (365 / dte) * 100.
func AnnualizedROI(premium, strike float64, dte int) float64 {
	if strike <= 0 || premium <= 0 {
		return 0
	}
	if dte < 1 {
		dte = 1
	}
	return (premium / strike) * (365 / float64(dte)) * 100
}

// DaysToExpiration counts whole days from now to the expiration close, rounding up, minimum 1.
func DaysToExpiration(now, expiration time.Time) int {
	remaining := model.ExpirationClose(expiration).Sub(now)
	days := int(math.Ceil(remaining.Hours() / 24))
	if days < 1 {
		return 1
	}
	return days
}

// TimeRemaining is the time left until the expiration close; negative once expired.
func TimeRemaining(now, expiration time.Time) time.Duration {
	return model.ExpirationClose(expiration).Sub(now)
}

// marketWeek returns the Monday, as a UTC date, of the trading week now falls in.
// Weekends belong to the upcoming week.
func marketWeek(now time.Time) time.Time {
	local := model.MarketTime(now)
	y, m, d := local.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	switch wd := local.Weekday(); wd {
	case time.Saturday:
		return day.AddDate(0, 0, 2)
	case time.Sunday:
		return day.AddDate(0, 0, 1)
	default:
		return day.AddDate(0, 0, -int(wd-time.Monday))
	}
}

// weekExpiration returns the last listed expiration in the week starting at monday that still trades at now.
func weekExpiration(now time.Time, expirations []time.Time, monday time.Time) (time.Time, bool) {
	end := monday.AddDate(0, 0, 7)
	var last time.Time
	for _, e := range expirations {
		d := model.Day(e)
		if d.Before(monday) || !d.Before(end) || !model.ExpirationClose(d).After(now) {
			continue
		}
		if d.After(last) {
			last = d
		}
	}
	return last, !last.IsZero()
}

// expirationRanks maps the market weekday to the weeks that may be sold.
// Rank 0 is this week's expiration, rank 1 next week's.
func expirationRanks(weekday time.Weekday) []int {
	switch weekday {
	case time.Monday, time.Tuesday:
		return []int{0}
	case time.Wednesday:
		return []int{0, 1}
	case time.Thursday, time.Friday:
		return []int{1}
	default:
		// weekends already count as the upcoming week
		return []int{0}
	}
}

// SelectExpirations applies the weekday rule to the listed expirations, by calendar week.
func SelectExpirations(now time.Time, expirations []time.Time) []time.Time {
	monday := marketWeek(now)
	var out []time.Time
	for _, rank := range expirationRanks(model.MarketTime(now).Weekday()) {
		if exp, ok := weekExpiration(now, expirations, monday.AddDate(0, 0, 7*rank)); ok {
			out = append(out, exp)
		}
	}
	return out
}

// CandidateExpirations returns the Fridays whose chains are worth requesting at now:
// this market week's and the following one's, minus any that has closed.
func CandidateExpirations(now time.Time) []time.Time {
	friday := marketWeek(now).AddDate(0, 0, 4)
	var out []time.Time
	for _, f := range []time.Time{friday, friday.AddDate(0, 0, 7)} {
		if model.ExpirationClose(f).After(now) {
			out = append(out, f)
		}
	}
	return out
}
