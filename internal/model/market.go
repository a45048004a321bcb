package model

import (
	"fmt"
	"sort"
	"time"
)

// Interval is a bar size such as "1d", "1h" or "5m".
type Interval string

const (
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval1h  Interval = "1h"
	Interval1d  Interval = "1d"
	Interval1wk Interval = "1wk"
)

// Bar represents a single candlestick bar.
type Bar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// DateRange is an inclusive window of calendar days (UTC). Bars stamped any time on End are inside it.
type DateRange struct {
	Start time.Time `json:"start" validate:"required"`
	End   time.Time `json:"end" validate:"required,gtefield=Start"`
}

// NewDateRange returns the window of the last lookbackDays days ending on end's date.
func NewDateRange(end time.Time, lookbackDays int) DateRange {
	day := Day(end)
	return DateRange{Start: day.AddDate(0, 0, -lookbackDays), End: day}
}

// Day truncates t to midnight UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Until returns the exclusive upper bound of the window.
func (r DateRange) Until() time.Time {
	return r.End.AddDate(0, 0, 1)
}

func (r DateRange) String() string {
	return fmt.Sprintf("%s..%s", r.Start.Format("2006-01-02"), r.End.Format("2006-01-02"))
}

// Contains reports whether t falls inside the window.
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.Until())
}

// Covers reports whether r fully contains other.
func (r DateRange) Covers(other DateRange) bool {
	return !r.Start.After(other.Start) && !r.End.Before(other.End)
}

// SortBars orders bars by time ascending in place.
func SortBars(bars []Bar) {
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
}

// BarsAscending reports whether bars are strictly ordered by time.
func BarsAscending(bars []Bar) bool {
	for i := 1; i < len(bars); i++ {
		if !bars[i-1].Time.Before(bars[i].Time) {
			return false
		}
	}
	return true
}

// SliceBars returns the bars whose timestamps fall inside r. The input must be ascending.
func SliceBars(bars []Bar, r DateRange) []Bar {
	lo := sort.Search(len(bars), func(i int) bool { return !bars[i].Time.Before(r.Start) })
	hi := sort.Search(len(bars), func(i int) bool { return !bars[i].Time.Before(r.Until()) })
	if lo >= hi {
		return nil
	}
	out := make([]Bar, hi-lo)
	copy(out, bars[lo:hi])
	return out
}

// Closes extracts close prices.
func Closes(bars []Bar) []float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes
}
