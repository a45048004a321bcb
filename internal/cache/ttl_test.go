package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPolicyTTL(t *testing.T) {
	p := NewPolicy(map[string]time.Duration{
		"1d":      4 * time.Hour,
		"1h":      30 * time.Minute,
		"5m":      5 * time.Minute,
		"options": 15 * time.Minute,
		"broken":  0,
	})

	tests := []struct {
		interval string
		want     time.Duration
	}{
		{"1d", 4 * time.Hour},
		{"1h", 30 * time.Minute},
		{"5m", 5 * time.Minute},
		{"options:2024-03-08", 15 * time.Minute},
		{"options:nearest", 15 * time.Minute},
		{"1wk", 5 * time.Minute},
		{"broken", 5 * time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.interval, func(t *testing.T) {
			assert.Equal(t, tt.want, p.TTL(tt.interval))
		})
	}
}

func TestPolicyDefaults(t *testing.T) {
	p := NewPolicy(nil)
	assert.Equal(t, 4*time.Hour, p.TTL("1d"))
	assert.Equal(t, 5*time.Minute, p.TTL("30m"))
}

func TestEntryExpiry(t *testing.T) {
	fetched := time.Date(2024, 3, 6, 10, 0, 0, 0, time.UTC)
	e := &Entry{FetchedAt: fetched, TTL: time.Hour}

	assert.False(t, e.Expired(fetched.Add(time.Hour)))
	assert.True(t, e.Expired(fetched.Add(time.Hour+time.Nanosecond)))
}

func TestFilterMatches(t *testing.T) {
	chain := Key{Symbol: "AMD", Interval: "options:2024-03-08"}
	bars := Key{Symbol: "AMD", Interval: "1d"}

	assert.True(t, Filter{}.matches(chain))
	assert.True(t, Filter{Interval: "options"}.matches(chain))
	assert.False(t, Filter{Interval: "options"}.matches(bars))
	assert.False(t, Filter{Symbol: "AAPL"}.matches(bars))
	assert.True(t, Filter{Symbol: "AMD", Interval: "1d"}.matches(bars))
}
