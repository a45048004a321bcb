package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"MarketFortress/internal/model"
)

// RESTFetcher implements Fetcher against a self-hosted bar service.
type RESTFetcher struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// NewRESTFetcher creates a new fetcher with optional proxy support.
func NewRESTFetcher(baseURL, apiKey, proxyURL string) *RESTFetcher {
	return &RESTFetcher{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client:  newHTTPClient(proxyURL),
	}
}

func (f *RESTFetcher) Name() string { return "rest" }

// restBar is the expected JSON shape from the bar service.
type restBar struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

type restOption struct {
	Symbol            string  `json:"symbol"`
	Type              string  `json:"type"`
	Strike            float64 `json:"strike"`
	Bid               float64 `json:"bid"`
	Ask               float64 `json:"ask"`
	Last              float64 `json:"last"`
	Volume            float64 `json:"volume"`
	OpenInterest      float64 `json:"open_interest"`
	ImpliedVolatility float64 `json:"implied_volatility"`
	Expiration        string  `json:"expiration"`
}

func (f *RESTFetcher) FetchBars(ctx context.Context, symbol string, start, end time.Time, interval model.Interval) ([]model.Bar, error) {
	until := model.Day(end).AddDate(0, 0, 1)
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", string(interval))
	q.Set("from", fmt.Sprint(start.Unix()))
	q.Set("to", fmt.Sprint(until.Unix()))

	var raw []restBar
	err := f.get(ctx, symbol, "/api/v1/bars?"+q.Encode(), &raw)
	if err != nil && interval == model.Interval1wk {
		// Fallback: fetch daily bars and aggregate to weekly
		daily, dailyErr := f.FetchBars(ctx, symbol, start, end, model.Interval1d)
		if dailyErr != nil {
			return nil, fmt.Errorf("weekly fetch failed: %w; daily fallback also failed: %w", err, dailyErr)
		}
		return aggregateDailyToWeekly(daily), nil
	}
	if err != nil {
		return nil, err
	}

	bars := make([]model.Bar, len(raw))
	for i, rb := range raw {
		bars[i] = model.Bar{
			Time:   time.Unix(rb.Timestamp, 0).UTC(),
			Open:   rb.Open,
			High:   rb.High,
			Low:    rb.Low,
			Close:  rb.Close,
			Volume: rb.Volume,
		}
	}
	return normalizeBars(bars, start, until), nil
}

func (f *RESTFetcher) FetchOptionChain(ctx context.Context, symbol string, expiration time.Time) ([]model.OptionContract, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	if !expiration.IsZero() {
		q.Set("expiration", expiration.Format(time.DateOnly))
	}

	var raw []restOption
	if err := f.get(ctx, symbol, "/api/v1/options?"+q.Encode(), &raw); err != nil {
		return nil, err
	}
	contracts := make([]model.OptionContract, 0, len(raw))
	for _, ro := range raw {
		exp, err := time.Parse(time.DateOnly, ro.Expiration)
		if err != nil {
			return nil, sourceErr(f.Name(), symbol, fmt.Errorf("decode expiration %q: %w", ro.Expiration, err))
		}
		contracts = append(contracts, model.OptionContract{
			Symbol:            ro.Symbol,
			Underlying:        symbol,
			Type:              model.OptionType(ro.Type),
			Strike:            ro.Strike,
			Bid:               ro.Bid,
			Ask:               ro.Ask,
			Last:              ro.Last,
			Volume:            ro.Volume,
			OpenInterest:      ro.OpenInterest,
			ImpliedVolatility: ro.ImpliedVolatility,
			Expiration:        exp,
		})
	}
	return contracts, nil
}

func (f *RESTFetcher) get(ctx context.Context, symbol, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.BaseURL+path, nil)
	if err != nil {
		return sourceErr(f.Name(), symbol, err)
	}
	if f.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.APIKey)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return sourceErr(f.Name(), symbol, fmt.Errorf("fetch: %w", err))
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return sourceErr(f.Name(), symbol, fmt.Errorf("status %d, body: %s", resp.StatusCode, truncate(body, 200)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return sourceErr(f.Name(), symbol, fmt.Errorf("decode: %w", err))
	}
	return nil
}

// aggregateDailyToWeekly converts daily bars into weekly bars (ISO weeks).
func aggregateDailyToWeekly(daily []model.Bar) []model.Bar {
	if len(daily) == 0 {
		return nil
	}
	var weekly []model.Bar
	week := daily[0]
	for _, d := range daily[1:] {
		y, w := d.Time.ISOWeek()
		cy, cw := week.Time.ISOWeek()
		if y != cy || w != cw {
			weekly = append(weekly, week)
			week = d
			continue
		}
		if d.High > week.High {
			week.High = d.High
		}
		if d.Low < week.Low {
			week.Low = d.Low
		}
		week.Close = d.Close
		week.Volume += d.Volume
	}
	return append(weekly, week)
}
