package collector

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/polygon-io/client-go/rest/models"
	"github.com/stretchr/testify/suite"

	"MarketFortress/internal/errors"
	"MarketFortress/internal/model"
)

type mockAggsIterator struct {
	aggs  []models.Agg
	index int
	err   error
}

func (m *mockAggsIterator) Next() bool {
	if m.index < len(m.aggs) {
		m.index++
		return true
	}
	return false
}

func (m *mockAggsIterator) Item() models.Agg { return m.aggs[m.index-1] }
func (m *mockAggsIterator) Err() error       { return m.err }

type mockOptionsIterator struct {
	snaps []models.OptionContractSnapshot
	index int
	err   error
}

func (m *mockOptionsIterator) Next() bool {
	if m.index < len(m.snaps) {
		m.index++
		return true
	}
	return false
}

func (m *mockOptionsIterator) Item() models.OptionContractSnapshot { return m.snaps[m.index-1] }
func (m *mockOptionsIterator) Err() error                          { return m.err }

// mockPolygonAPIClient implements PolygonAPIClient for testing.
type mockPolygonAPIClient struct {
	aggs        *mockAggsIterator
	options     *mockOptionsIterator
	aggParams   *models.ListAggsParams
	chainParams *models.ListOptionsChainParams
}

func (m *mockPolygonAPIClient) ListAggs(_ context.Context, params *models.ListAggsParams, _ ...models.RequestOption) AggsIterator {
	m.aggParams = params
	return m.aggs
}

func (m *mockPolygonAPIClient) ListOptionsChainSnapshot(_ context.Context, params *models.ListOptionsChainParams, _ ...models.RequestOption) OptionsIterator {
	m.chainParams = params
	return m.options
}

type PolygonFetcherTestSuite struct {
	suite.Suite
}

func TestPolygonFetcherSuite(t *testing.T) {
	suite.Run(t, new(PolygonFetcherTestSuite))
}

func (s *PolygonFetcherTestSuite) TestNewPolygonFetcher_RequiresKey() {
	_, err := NewPolygonFetcher("")
	s.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))

	f, err := NewPolygonFetcher("test-api-key")
	s.NoError(err)
	s.Equal("polygon", f.Name())
}

func (s *PolygonFetcherTestSuite) TestFetchBars() {
	t1 := day("2024-03-04").Add(5 * time.Hour)
	t2 := day("2024-03-05").Add(5 * time.Hour)
	api := &mockPolygonAPIClient{aggs: &mockAggsIterator{aggs: []models.Agg{
		{Timestamp: models.Millis(t2), Open: 2, High: 3, Low: 1, Close: 2.5, Volume: 20},
		{Timestamp: models.Millis(t1), Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10},
	}}}
	f := NewPolygonFetcherWithAPI(api)

	bars, err := f.FetchBars(context.Background(), "AAPL", day("2024-03-01"), day("2024-03-05"), model.Interval1d)
	s.Require().NoError(err)
	s.Require().Len(bars, 2)
	s.True(model.BarsAscending(bars))
	s.Equal(1.5, bars[0].Close)
	s.Equal("AAPL", api.aggParams.Ticker)
	s.Equal(models.Day, api.aggParams.Timespan)
	s.Equal(1, api.aggParams.Multiplier)
}

func (s *PolygonFetcherTestSuite) TestFetchBars_IteratorErrorIsSourceError() {
	api := &mockPolygonAPIClient{aggs: &mockAggsIterator{err: stderrors.New("rate limited")}}
	_, err := NewPolygonFetcherWithAPI(api).FetchBars(context.Background(), "AAPL", day("2024-03-01"), day("2024-03-05"), model.Interval1h)
	s.True(errors.HasCode(err, errors.ErrCodeSourceError))
	s.Contains(err.Error(), "rate limited")
}

func (s *PolygonFetcherTestSuite) TestFetchBars_UnsupportedInterval() {
	api := &mockPolygonAPIClient{aggs: &mockAggsIterator{}}
	_, err := NewPolygonFetcherWithAPI(api).FetchBars(context.Background(), "AAPL", day("2024-03-01"), day("2024-03-05"), model.Interval("3d"))
	s.True(errors.HasCode(err, errors.ErrCodeInvalidRequest))
}

func (s *PolygonFetcherTestSuite) TestFetchOptionChain_KeepsNearestExpiration() {
	snap := func(typ string, strike float64, exp string, bid float64) models.OptionContractSnapshot {
		var c models.OptionContractSnapshot
		c.Details.ContractType = typ
		c.Details.StrikePrice = strike
		c.Details.ExpirationDate = models.Date(day(exp))
		c.Details.Ticker = "O:AAPL" + exp
		c.LastQuote.Bid = bid
		c.LastQuote.Ask = bid + 0.1
		return c
	}
	api := &mockPolygonAPIClient{options: &mockOptionsIterator{snaps: []models.OptionContractSnapshot{
		snap("put", 170, "2024-03-15", 1.1),
		snap("put", 170, "2024-03-08", 0.6),
		snap("call", 180, "2024-03-08", 0.4),
	}}}

	chain, err := NewPolygonFetcherWithAPI(api).FetchOptionChain(context.Background(), "AAPL", time.Time{})
	s.Require().NoError(err)
	s.Require().Len(chain, 2)
	for _, c := range chain {
		s.Equal(day("2024-03-08"), c.Expiration)
	}
	s.Equal(model.OptionPut, chain[0].Type)
	s.Equal(0.6, chain[0].Bid)
	s.Nil(api.chainParams.ExpirationDateEQ)
}

func (s *PolygonFetcherTestSuite) TestFetchOptionChain_FiltersByDate() {
	api := &mockPolygonAPIClient{options: &mockOptionsIterator{}}
	chain, err := NewPolygonFetcherWithAPI(api).FetchOptionChain(context.Background(), "AAPL", day("2024-03-15"))
	s.NoError(err)
	s.Empty(chain)
	s.Require().NotNil(api.chainParams.ExpirationDateEQ)
	s.Equal(day("2024-03-15"), time.Time(*api.chainParams.ExpirationDateEQ))
}
