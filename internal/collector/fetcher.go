package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"

	"go.uber.org/zap"

	"MarketFortress/internal/config"
	"MarketFortress/internal/errors"
	"MarketFortress/internal/model"
)

// Fetcher is the data source adapter contract.
// Transport, auth and decode failures are returned as SourceError; "no data" is an empty slice.
type Fetcher interface {
	FetchBars(ctx context.Context, symbol string, start, end time.Time, interval model.Interval) ([]model.Bar, error)
	// FetchOptionChain returns puts and calls for the expiration closest to the one
	// requested, or the nearest listed expiration when expiration is zero.
	FetchOptionChain(ctx context.Context, symbol string, expiration time.Time) ([]model.OptionContract, error)
	Name() string
}

// New builds the fetcher selected by data_source.provider.
func New(cfg *config.Config, log *zap.Logger) (Fetcher, error) {
	ds := cfg.DataSource
	var f Fetcher
	switch ds.Provider {
	case "", "yahoo":
		f = NewYahooFetcher(cfg.Proxy)
	case "polygon":
		p, err := NewPolygonFetcher(ds.APIKey)
		if err != nil {
			return nil, err
		}
		f = p
	case "rest":
		f = NewRESTFetcher(ds.BaseURL, ds.APIKey, cfg.Proxy)
	case "mock":
		f = &MockFetcher{Price: 100}
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidConfiguration, "unknown data source provider %q", ds.Provider)
	}
	log.Info("data source selected", zap.String("provider", f.Name()))
	return f, nil
}

func newHTTPClient(proxyURL string) *http.Client {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &http.Client{
		Timeout:   30 * time.Second,
		Transport: transport,
	}
}

func sourceErr(source, symbol string, err error) error {
	return errors.Wrap(errors.ErrCodeSourceError, fmt.Sprintf("%s: %s", source, symbol), err)
}

// normalizeBars sorts, drops duplicate timestamps and trims to [start, until).
func normalizeBars(bars []model.Bar, start, until time.Time) []model.Bar {
	model.SortBars(bars)
	out := make([]model.Bar, 0, len(bars))
	for i, b := range bars {
		if i > 0 && b.Time.Equal(bars[i-1].Time) {
			continue
		}
		if b.Time.Before(start) || !b.Time.Before(until) {
			continue
		}
		out = append(out, b)
	}
	return out
}

// closestExpiration picks the listed expiration nearest to target; zero target means the first one.
func closestExpiration(listed []time.Time, target time.Time) (time.Time, bool) {
	if len(listed) == 0 {
		return time.Time{}, false
	}
	sorted := append([]time.Time(nil), listed...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })
	if target.IsZero() {
		return sorted[0], true
	}
	best := sorted[0]
	bestDiff := absDuration(best.Sub(target))
	for _, t := range sorted[1:] {
		if d := absDuration(t.Sub(target)); d < bestDiff {
			best, bestDiff = t, d
		}
	}
	return best, true
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
