package model

import (
	"strings"
	"time"
)

// ScanStatus is the outcome of resolving one symbol.
type ScanStatus string

const (
	StatusOK     ScanStatus = "ok"
	StatusStale  ScanStatus = "stale"
	StatusFailed ScanStatus = "failed"
)

// ScanRequest is constructed once per symbol per scan invocation.
type ScanRequest struct {
	Symbol   string    `validate:"required"`
	Interval Interval  `validate:"required"`
	Range    DateRange `validate:"required"`
}

// NewScanRequest normalizes the symbol.
func NewScanRequest(symbol string, interval Interval, rng DateRange) ScanRequest {
	return ScanRequest{Symbol: strings.ToUpper(strings.TrimSpace(symbol)), Interval: interval, Range: rng}
}

// ScanResult is the per-symbol output of a scan. Exactly one exists per requested symbol.
type ScanResult struct {
	Request  ScanRequest
	Symbol   string
	Status   ScanStatus
	Bars     []Bar
	CacheHit bool
	Err      error
	Latency  time.Duration
}

// Error returns the failure or warning detail, or "" when there is none.
func (r ScanResult) Error() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Usable reports whether the result carries a dataset.
func (r ScanResult) Usable() bool {
	return r.Status != StatusFailed && len(r.Bars) > 0
}

// ScanRun groups the results of one scan invocation.
type ScanRun struct {
	ID         string
	Universe   string
	Interval   Interval
	StartedAt  time.Time
	FinishedAt time.Time
	Results    []ScanResult
}

// Counts tallies results by status.
func (r *ScanRun) Counts() map[ScanStatus]int {
	counts := map[ScanStatus]int{}
	for _, res := range r.Results {
		counts[res.Status]++
	}
	return counts
}
