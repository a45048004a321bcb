// Package cache keeps a freshness-bounded local copy of price bars and option chains
// and resolves scan requests against it before falling back to the data source.
package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"MarketFortress/internal/errors"
	"MarketFortress/internal/model"
)

// Kind distinguishes the payload an entry holds.
type Kind string

const (
	KindBars  Kind = "bars"
	KindChain Kind = "chain"
)

const chainPrefix = "options"

// Key identifies an entry. Interval is a bar interval or "options:YYYY-MM-DD" for chains.
type Key struct {
	Symbol   string
	Interval string
}

func (k Key) String() string { return k.Symbol + "/" + k.Interval }

// BarsKey builds the key for a bar series.
func BarsKey(symbol string, interval model.Interval) Key {
	return Key{Symbol: symbol, Interval: string(interval)}
}

// ChainKey builds the key for an option chain; a zero expiration means the nearest one.
func ChainKey(symbol string, expiration time.Time) Key {
	if expiration.IsZero() {
		return Key{Symbol: symbol, Interval: chainPrefix + ":nearest"}
	}
	return Key{Symbol: symbol, Interval: chainPrefix + ":" + expiration.Format(time.DateOnly)}
}

// PolicyInterval maps a key interval to the TTL table entry that governs it.
func PolicyInterval(interval string) string {
	if strings.HasPrefix(interval, chainPrefix+":") {
		return chainPrefix
	}
	return interval
}

// Entry is one cached dataset. Writes replace the whole entry.
type Entry struct {
	Symbol    string                 `json:"symbol"`
	Interval  string                 `json:"interval"`
	Kind      Kind                   `json:"kind"`
	Bars      []model.Bar            `json:"bars,omitempty"`
	Chain     []model.OptionContract `json:"chain,omitempty"`
	Range     model.DateRange        `json:"range"`
	FetchedAt time.Time              `json:"fetched_at"`
	TTL       time.Duration          `json:"ttl"`
	Source    string                 `json:"source"`
}

func (e *Entry) Key() Key { return Key{Symbol: e.Symbol, Interval: e.Interval} }

// ExpiresAt is the staleness boundary.
func (e *Entry) ExpiresAt() time.Time { return e.FetchedAt.Add(e.TTL) }

// Expired reports whether now is past FetchedAt+TTL.
func (e *Entry) Expired(now time.Time) bool { return now.After(e.ExpiresAt()) }

// Validate checks the payload invariants. Violations are CacheCorruption.
func (e *Entry) Validate() error {
	switch e.Kind {
	case KindBars:
		if len(e.Bars) == 0 {
			return errors.Newf(errors.ErrCodeCacheCorruption, "entry %s has no bars", e.Key())
		}
		if !model.BarsAscending(e.Bars) {
			return errors.Newf(errors.ErrCodeCacheCorruption, "entry %s bars are not ascending", e.Key())
		}
	case KindChain:
		if len(e.Chain) == 0 {
			return errors.Newf(errors.ErrCodeCacheCorruption, "entry %s has no contracts", e.Key())
		}
	default:
		return errors.Newf(errors.ErrCodeCacheCorruption, "entry %s has unknown kind %q", e.Key(), e.Kind)
	}
	return nil
}

func (e *Entry) clone() *Entry {
	c := *e
	c.Bars = append([]model.Bar(nil), e.Bars...)
	c.Chain = append([]model.OptionContract(nil), e.Chain...)
	return &c
}

// Filter selects entries for Clear. Empty fields match everything; Interval "options" matches every chain.
type Filter struct {
	Symbol   string
	Interval string
}

func (f Filter) matches(k Key) bool {
	if f.Symbol != "" && f.Symbol != k.Symbol {
		return false
	}
	if f.Interval == "" || f.Interval == k.Interval {
		return true
	}
	return f.Interval == chainPrefix && PolicyInterval(k.Interval) == chainPrefix
}

// Stats summarizes the store contents.
type Stats struct {
	Entries      int64
	BarEntries   int64
	ChainEntries int64
	Symbols      int64
	SizeBytes    int64
	Oldest       time.Time
	Newest       time.Time
}

func (s Stats) String() string {
	return fmt.Sprintf("%d entries (%d bars, %d chains) across %d symbols, %d bytes",
		s.Entries, s.BarEntries, s.ChainEntries, s.Symbols, s.SizeBytes)
}

// Store is durable keyed storage for entries.
// Get returns nil, nil for absent keys and a CacheCorruption error for unreadable entries.
type Store interface {
	Get(ctx context.Context, key Key) (*Entry, error)
	Put(ctx context.Context, entry *Entry) error
	Delete(ctx context.Context, key Key) error
	Clear(ctx context.Context, filter Filter) (int64, error)
	Stats(ctx context.Context) (Stats, error)
	Close() error
}
