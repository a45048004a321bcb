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

// YahooFetcher implements Fetcher using Yahoo Finance public API.
type YahooFetcher struct {
	Client    *http.Client
	BaseURL   string
	SymbolMap map[string]string // maps internal symbol to Yahoo ticker
}

// NewYahooFetcher creates a new Yahoo Finance fetcher.
func NewYahooFetcher(proxyURL string) *YahooFetcher {
	return &YahooFetcher{
		Client:  newHTTPClient(proxyURL),
		BaseURL: "https://query1.finance.yahoo.com",
		SymbolMap: map[string]string{
			"SPX500": "^GSPC",
			"SPX":    "^GSPC",
			"SP500":  "^GSPC",
		},
	}
}

func (f *YahooFetcher) Name() string { return "yahoo" }

func (f *YahooFetcher) yahooSymbol(symbol string) string {
	if mapped, ok := f.SymbolMap[symbol]; ok {
		return mapped
	}
	return symbol
}

// yahooChart is the response structure from Yahoo Finance chart API.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *yahooError `json:"error"`
	} `json:"chart"`
}

type yahooError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// yahooOptions is the response structure from the Yahoo Finance options API.
type yahooOptions struct {
	OptionChain struct {
		Result []struct {
			ExpirationDates []int64 `json:"expirationDates"`
			Options         []struct {
				ExpirationDate int64         `json:"expirationDate"`
				Calls          []yahooOption `json:"calls"`
				Puts           []yahooOption `json:"puts"`
			} `json:"options"`
		} `json:"result"`
		Error *yahooError `json:"error"`
	} `json:"optionChain"`
}

type yahooOption struct {
	ContractSymbol    string  `json:"contractSymbol"`
	Strike            float64 `json:"strike"`
	Bid               float64 `json:"bid"`
	Ask               float64 `json:"ask"`
	LastPrice         float64 `json:"lastPrice"`
	Volume            float64 `json:"volume"`
	OpenInterest      float64 `json:"openInterest"`
	ImpliedVolatility float64 `json:"impliedVolatility"`
	Expiration        int64   `json:"expiration"`
}

func at(vals []*float64, i int) float64 {
	if i >= len(vals) || vals[i] == nil {
		return 0
	}
	return *vals[i]
}

// get decodes the response into out. found is false when Yahoo does not know the symbol.
func (f *YahooFetcher) get(ctx context.Context, symbol, u string, out any) (found bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, sourceErr(f.Name(), symbol, err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := f.Client.Do(req)
	if err != nil {
		return false, sourceErr(f.Name(), symbol, fmt.Errorf("fetch: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, sourceErr(f.Name(), symbol, fmt.Errorf("read body: %w", err))
	}
	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, sourceErr(f.Name(), symbol, fmt.Errorf("status %d, body: %s", resp.StatusCode, truncate(body, 200)))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return false, sourceErr(f.Name(), symbol, fmt.Errorf("decode: %w", err))
	}
	return true, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}

// FetchBars fetches bars in [start, end] using period1/period2.
func (f *YahooFetcher) FetchBars(ctx context.Context, symbol string, start, end time.Time, interval model.Interval) ([]model.Bar, error) {
	q := url.Values{}
	q.Set("interval", string(interval))
	q.Set("period1", fmt.Sprint(start.Unix()))
	until := model.Day(end).AddDate(0, 0, 1)
	q.Set("period2", fmt.Sprint(until.Unix()))
	u := fmt.Sprintf("%s/v8/finance/chart/%s?%s", f.BaseURL, url.PathEscape(f.yahooSymbol(symbol)), q.Encode())

	var chart yahooChart
	if found, err := f.get(ctx, symbol, u, &chart); err != nil || !found {
		return nil, err
	}
	if chart.Chart.Error != nil {
		if chart.Chart.Error.Code == "Not Found" {
			return nil, nil
		}
		return nil, sourceErr(f.Name(), symbol, fmt.Errorf("api error: %s", chart.Chart.Error.Description))
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, nil
	}

	result := chart.Chart.Result[0]
	quote := result.Indicators.Quote[0]
	bars := make([]model.Bar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		o, h, l, c := at(quote.Open, i), at(quote.High, i), at(quote.Low, i), at(quote.Close, i)
		if o == 0 && h == 0 && l == 0 && c == 0 {
			continue // skip null bars (holidays etc.)
		}
		bars = append(bars, model.Bar{
			Time:   time.Unix(ts, 0).UTC(),
			Open:   o,
			High:   h,
			Low:    l,
			Close:  c,
			Volume: at(quote.Volume, i),
		})
	}
	return normalizeBars(bars, start, until), nil
}

// FetchOptionChain lists expirations first, then fetches the chain for the closest one.
func (f *YahooFetcher) FetchOptionChain(ctx context.Context, symbol string, expiration time.Time) ([]model.OptionContract, error) {
	base := fmt.Sprintf("%s/v7/finance/options/%s", f.BaseURL, url.PathEscape(f.yahooSymbol(symbol)))

	var listing yahooOptions
	if found, err := f.get(ctx, symbol, base, &listing); err != nil || !found {
		return nil, err
	}
	if listing.OptionChain.Error != nil {
		return nil, sourceErr(f.Name(), symbol, fmt.Errorf("api error: %s", listing.OptionChain.Error.Description))
	}
	if len(listing.OptionChain.Result) == 0 {
		return nil, nil
	}

	listed := make([]time.Time, 0, len(listing.OptionChain.Result[0].ExpirationDates))
	for _, ts := range listing.OptionChain.Result[0].ExpirationDates {
		listed = append(listed, time.Unix(ts, 0).UTC())
	}
	chosen, ok := closestExpiration(listed, expiration)
	if !ok {
		return nil, nil
	}

	var chain yahooOptions
	if found, err := f.get(ctx, symbol, fmt.Sprintf("%s?date=%d", base, chosen.Unix()), &chain); err != nil || !found {
		return nil, err
	}
	if len(chain.OptionChain.Result) == 0 || len(chain.OptionChain.Result[0].Options) == 0 {
		return nil, nil
	}

	opts := chain.OptionChain.Result[0].Options[0]
	contracts := make([]model.OptionContract, 0, len(opts.Puts)+len(opts.Calls))
	for _, o := range opts.Puts {
		contracts = append(contracts, o.toContract(symbol, model.OptionPut, chosen))
	}
	for _, o := range opts.Calls {
		contracts = append(contracts, o.toContract(symbol, model.OptionCall, chosen))
	}
	return contracts, nil
}

func (o yahooOption) toContract(underlying string, typ model.OptionType, fallback time.Time) model.OptionContract {
	exp := fallback
	if o.Expiration > 0 {
		exp = time.Unix(o.Expiration, 0).UTC()
	}
	return model.OptionContract{
		Symbol:            o.ContractSymbol,
		Underlying:        underlying,
		Type:              typ,
		Strike:            o.Strike,
		Bid:               o.Bid,
		Ask:               o.Ask,
		Last:              o.LastPrice,
		Volume:            o.Volume,
		OpenInterest:      o.OpenInterest,
		ImpliedVolatility: o.ImpliedVolatility,
		Expiration:        model.Day(exp),
	}
}
