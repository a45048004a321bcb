package collector

import (
	"context"
	"fmt"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"

	"MarketFortress/internal/errors"
	"MarketFortress/internal/model"
)

// AggsIterator is the subset of the polygon iterator used for aggregates.
type AggsIterator interface {
	Next() bool
	Item() models.Agg
	Err() error
}

// OptionsIterator is the subset of the polygon iterator used for chain snapshots.
type OptionsIterator interface {
	Next() bool
	Item() models.OptionContractSnapshot
	Err() error
}

// PolygonAPIClient is the subset of the polygon REST client the fetcher needs.
type PolygonAPIClient interface {
	ListAggs(ctx context.Context, params *models.ListAggsParams, opts ...models.RequestOption) AggsIterator
	ListOptionsChainSnapshot(ctx context.Context, params *models.ListOptionsChainParams, opts ...models.RequestOption) OptionsIterator
}

type polygonClientAdapter struct {
	client *polygon.Client
}

func (a *polygonClientAdapter) ListAggs(ctx context.Context, params *models.ListAggsParams, opts ...models.RequestOption) AggsIterator {
	return a.client.ListAggs(ctx, params, opts...)
}

func (a *polygonClientAdapter) ListOptionsChainSnapshot(ctx context.Context, params *models.ListOptionsChainParams, opts ...models.RequestOption) OptionsIterator {
	return a.client.ListOptionsChainSnapshot(ctx, params, opts...)
}

// PolygonFetcher implements Fetcher using the polygon.io REST API.
type PolygonFetcher struct {
	apiClient PolygonAPIClient
}

// NewPolygonFetcher creates a fetcher backed by the official polygon client.
func NewPolygonFetcher(apiKey string) (*PolygonFetcher, error) {
	if apiKey == "" {
		return nil, errors.New(errors.ErrCodeInvalidConfiguration, "polygon api key is required")
	}
	return NewPolygonFetcherWithAPI(&polygonClientAdapter{client: polygon.New(apiKey)}), nil
}

// NewPolygonFetcherWithAPI creates a fetcher around any PolygonAPIClient.
func NewPolygonFetcherWithAPI(api PolygonAPIClient) *PolygonFetcher {
	return &PolygonFetcher{apiClient: api}
}

func (f *PolygonFetcher) Name() string { return "polygon" }

func polygonTimespan(interval model.Interval) (int, models.Timespan, error) {
	switch interval {
	case model.Interval5m:
		return 5, models.Minute, nil
	case model.Interval15m:
		return 15, models.Minute, nil
	case model.Interval1h:
		return 1, models.Hour, nil
	case model.Interval1d:
		return 1, models.Day, nil
	case model.Interval1wk:
		return 1, models.Week, nil
	default:
		return 0, "", errors.Newf(errors.ErrCodeInvalidRequest, "polygon: unsupported interval %q", interval)
	}
}

func (f *PolygonFetcher) FetchBars(ctx context.Context, symbol string, start, end time.Time, interval model.Interval) ([]model.Bar, error) {
	multiplier, timespan, err := polygonTimespan(interval)
	if err != nil {
		return nil, err
	}
	until := model.Day(end).AddDate(0, 0, 1)

	//nolint:exhaustruct // third-party struct with many optional fields
	params := models.ListAggsParams{
		Ticker:     symbol,
		Multiplier: multiplier,
		Timespan:   timespan,
		From:       models.Millis(start),
		To:         models.Millis(until.Add(-time.Millisecond)),
	}.WithLimit(50000)

	iter := f.apiClient.ListAggs(ctx, params)
	var bars []model.Bar
	for iter.Next() {
		agg := iter.Item()
		bars = append(bars, model.Bar{
			Time:   time.Time(agg.Timestamp).UTC(),
			Open:   agg.Open,
			High:   agg.High,
			Low:    agg.Low,
			Close:  agg.Close,
			Volume: agg.Volume,
		})
	}
	if err := iter.Err(); err != nil {
		return nil, sourceErr(f.Name(), symbol, fmt.Errorf("iterate aggregates: %w", err))
	}
	return normalizeBars(bars, start, until), nil
}

// FetchOptionChain reads the chain snapshot; when an expiration is given only that date is requested.
func (f *PolygonFetcher) FetchOptionChain(ctx context.Context, symbol string, expiration time.Time) ([]model.OptionContract, error) {
	//nolint:exhaustruct // third-party struct with many optional fields
	params := &models.ListOptionsChainParams{UnderlyingAsset: symbol}
	if !expiration.IsZero() {
		d := models.Date(model.Day(expiration))
		params.ExpirationDateEQ = &d
	}

	iter := f.apiClient.ListOptionsChainSnapshot(ctx, params)
	var all []model.OptionContract
	for iter.Next() {
		all = append(all, snapshotToContract(symbol, iter.Item()))
	}
	if err := iter.Err(); err != nil {
		return nil, sourceErr(f.Name(), symbol, fmt.Errorf("iterate option chain: %w", err))
	}

	// Without a filter the snapshot spans every expiration; keep the nearest.
	listed := make([]time.Time, 0, len(all))
	for _, c := range all {
		listed = append(listed, c.Expiration)
	}
	chosen, ok := closestExpiration(listed, expiration)
	if !ok {
		return nil, nil
	}
	out := all[:0]
	for _, c := range all {
		if c.Expiration.Equal(chosen) {
			out = append(out, c)
		}
	}
	return out, nil
}

func snapshotToContract(underlying string, s models.OptionContractSnapshot) model.OptionContract {
	typ := model.OptionCall
	if s.Details.ContractType == "put" {
		typ = model.OptionPut
	}
	return model.OptionContract{
		Symbol:            s.Details.Ticker,
		Underlying:        underlying,
		Type:              typ,
		Strike:            s.Details.StrikePrice,
		Bid:               s.LastQuote.Bid,
		Ask:               s.LastQuote.Ask,
		Last:              s.Day.Close,
		Volume:            s.Day.Volume,
		OpenInterest:      s.OpenInterest,
		ImpliedVolatility: s.ImpliedVolatility,
		Expiration:        model.Day(time.Time(s.Details.ExpirationDate)),
	}
}
