package cache

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"MarketFortress/internal/collector"
	"MarketFortress/internal/errors"
	"MarketFortress/internal/model"
)

type ManagerTestSuite struct {
	suite.Suite
	store   *MemoryStore
	fetcher *collector.MockFetcher
	now     time.Time
	sleeps  []time.Duration
	manager *Manager
}

func TestManagerSuite(t *testing.T) {
	suite.Run(t, new(ManagerTestSuite))
}

func (s *ManagerTestSuite) SetupTest() {
	s.store = NewMemoryStore()
	s.fetcher = &collector.MockFetcher{Price: 100}
	s.now = time.Date(2024, 3, 6, 15, 0, 0, 0, time.UTC)
	s.sleeps = nil
	s.manager = NewManager(s.store, s.fetcher, NewPolicy(nil), zap.NewNop(), Options{
		RetryBackoff: 250 * time.Millisecond,
		Now:          func() time.Time { return s.now },
		Sleep: func(_ context.Context, d time.Duration) error {
			s.sleeps = append(s.sleeps, d)
			return nil
		},
	})
}

func (s *ManagerTestSuite) request(symbol string) model.ScanRequest {
	return model.NewScanRequest(symbol, model.Interval1d, model.NewDateRange(s.now, 30))
}

func (s *ManagerTestSuite) TestResolveWithinTTL_SingleAdapterCall() {
	ctx := context.Background()

	first, err := s.manager.Resolve(ctx, s.request("AAPL"))
	s.Require().NoError(err)
	s.Equal(model.StatusOK, first.Status)
	s.False(first.CacheHit)
	s.NotEmpty(first.Bars)

	s.now = s.now.Add(3 * time.Hour)
	second, err := s.manager.Resolve(ctx, s.request("AAPL"))
	s.Require().NoError(err)
	s.True(second.CacheHit)
	s.Equal(first.Bars, second.Bars)
	s.Equal(int64(1), s.fetcher.BarCalls())
}

func (s *ManagerTestSuite) TestResolvePastTTL_RefetchReplacesEntry() {
	ctx := context.Background()
	_, err := s.manager.Resolve(ctx, s.request("AAPL"))
	s.Require().NoError(err)

	replacement := []model.Bar{
		{Time: time.Date(2024, 3, 6, 14, 30, 0, 0, time.UTC), Open: 1, High: 1, Low: 1, Close: 1},
	}
	s.fetcher.Bars = map[string][]model.Bar{"AAPL": replacement}
	s.now = s.now.Add(4*time.Hour + time.Second)

	res, err := s.manager.Resolve(ctx, s.request("AAPL"))
	s.Require().NoError(err)
	s.False(res.CacheHit)
	s.Equal(replacement, res.Bars)
	s.Equal(int64(2), s.fetcher.BarCalls())

	stored, err := s.store.Get(ctx, BarsKey("AAPL", model.Interval1d))
	s.Require().NoError(err)
	s.Equal(replacement, stored.Bars)
	s.Equal(s.now, stored.FetchedAt)
}

func (s *ManagerTestSuite) TestResolveUncoveredRange_IsMiss() {
	ctx := context.Background()
	_, err := s.manager.Resolve(ctx, s.request("AAPL"))
	s.Require().NoError(err)

	wider := model.NewScanRequest("AAPL", model.Interval1d, model.NewDateRange(s.now, 90))
	res, err := s.manager.Resolve(ctx, wider)
	s.Require().NoError(err)
	s.False(res.CacheHit)
	s.Equal(int64(2), s.fetcher.BarCalls())

	// The narrower window is now covered by the wider entry.
	res, err = s.manager.Resolve(ctx, s.request("AAPL"))
	s.Require().NoError(err)
	s.True(res.CacheHit)
	s.Equal(int64(2), s.fetcher.BarCalls())
}

func (s *ManagerTestSuite) TestAdapterFailure_ServesStale() {
	ctx := context.Background()
	fresh, err := s.manager.Resolve(ctx, s.request("AAPL"))
	s.Require().NoError(err)

	s.fetcher.Err = stderrors.New("connection reset")
	s.now = s.now.Add(5 * time.Hour)

	res, err := s.manager.Resolve(ctx, s.request("AAPL"))
	s.Require().NoError(err)
	s.Equal(model.StatusStale, res.Status)
	s.Equal(fresh.Bars, res.Bars)
	s.ErrorContains(res.Warning, "connection reset")
}

func (s *ManagerTestSuite) TestAdapterFailure_NoPriorIsDataUnavailable() {
	s.fetcher.Err = stderrors.New("connection reset")

	res, err := s.manager.Resolve(context.Background(), s.request("AAPL"))
	s.Require().Error(err)
	s.True(errors.HasCode(err, errors.ErrCodeDataUnavailable))
	s.Equal(model.StatusFailed, res.Status)
	s.Empty(s.sleeps, "plain errors are not retried")
}

func (s *ManagerTestSuite) TestAdapterFailure_StaleOutsideRangeIsDataUnavailable() {
	ctx := context.Background()
	jan := model.DateRange{Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), End: time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)}
	s.Require().NoError(s.store.Put(ctx, &Entry{
		Symbol:    "AAPL",
		Interval:  "1d",
		Kind:      KindBars,
		Bars:      []model.Bar{{Time: jan.Start.Add(14 * time.Hour), Close: 1}, {Time: jan.End.Add(14 * time.Hour), Close: 2}},
		Range:     jan,
		FetchedAt: s.now.Add(-5 * time.Hour),
		TTL:       4 * time.Hour,
	}))
	s.fetcher.Err = stderrors.New("down")

	res, err := s.manager.Resolve(ctx, model.NewScanRequest("AAPL", model.Interval1d, model.NewDateRange(s.now, 10)))
	s.Require().Error(err)
	s.True(errors.HasCode(err, errors.ErrCodeDataUnavailable))
	s.Equal(model.StatusFailed, res.Status)
	s.Empty(res.Bars)

	st, err := s.manager.Stats(ctx)
	s.Require().NoError(err)
	s.Zero(st.Stale)
	s.Equal(int64(1), st.Failures)
}

func (s *ManagerTestSuite) TestStoreWriteFailure_ReportedAsWarning() {
	m := NewManager(failingPutStore{NewMemoryStore()}, s.fetcher, NewPolicy(nil), zap.NewNop(), Options{
		Now: func() time.Time { return s.now },
	})

	res, err := m.Resolve(context.Background(), s.request("AAPL"))
	s.Require().NoError(err)
	s.Equal(model.StatusOK, res.Status)
	s.NotEmpty(res.Bars)
	s.ErrorContains(res.Warning, "disk full")

	exp := time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC)
	s.fetcher.Chain = map[string][]model.OptionContract{
		"AAPL": {{Symbol: "AAPL240308P00100000", Underlying: "AAPL", Type: model.OptionPut, Strike: 100, Bid: 1, Ask: 1.1, Expiration: exp}},
	}
	chain, err := m.ResolveChain(context.Background(), "AAPL", exp)
	s.Require().NoError(err)
	s.Equal(model.StatusOK, chain.Status)
	s.ErrorContains(chain.Warning, "disk full")
}

type failingPutStore struct {
	*MemoryStore
}

func (failingPutStore) Put(context.Context, *Entry) error {
	return stderrors.New("disk full")
}

func (s *ManagerTestSuite) TestSourceError_RetriedOnce() {
	s.fetcher.Err = errors.New(errors.ErrCodeSourceError, "503")

	_, err := s.manager.Resolve(context.Background(), s.request("AAPL"))
	s.True(errors.HasCode(err, errors.ErrCodeDataUnavailable))
	s.True(errors.HasCode(err, errors.ErrCodeSourceError))
	s.Equal(int64(2), s.fetcher.BarCalls())
	s.Equal([]time.Duration{250 * time.Millisecond}, s.sleeps)
}

func (s *ManagerTestSuite) TestEmptyPayload_NotCached() {
	s.fetcher.Bars = map[string][]model.Bar{"EMPTY": {}}

	_, err := s.manager.Resolve(context.Background(), s.request("EMPTY"))
	s.True(errors.HasCode(err, errors.ErrCodeDataUnavailable))

	st, err := s.store.Stats(context.Background())
	s.Require().NoError(err)
	s.Zero(st.Entries)
}

func (s *ManagerTestSuite) TestCorruptEntry_Refetched() {
	ctx := context.Background()
	t0 := time.Date(2024, 3, 4, 14, 30, 0, 0, time.UTC)
	s.Require().NoError(s.store.Put(ctx, &Entry{
		Symbol:    "AAPL",
		Interval:  "1d",
		Kind:      KindBars,
		Bars:      []model.Bar{{Time: t0.Add(24 * time.Hour)}, {Time: t0}},
		Range:     model.NewDateRange(s.now, 30),
		FetchedAt: s.now,
		TTL:       4 * time.Hour,
	}))

	res, err := s.manager.Resolve(ctx, s.request("AAPL"))
	s.Require().NoError(err)
	s.Equal(model.StatusOK, res.Status)
	s.False(res.CacheHit)
	s.Equal(int64(1), s.fetcher.BarCalls())

	stored, err := s.store.Get(ctx, BarsKey("AAPL", model.Interval1d))
	s.Require().NoError(err)
	s.True(model.BarsAscending(stored.Bars))
}

func (s *ManagerTestSuite) TestInvalidRequest() {
	_, err := s.manager.Resolve(context.Background(), model.ScanRequest{Interval: model.Interval1d})
	s.True(errors.HasCode(err, errors.ErrCodeInvalidRequest))
	s.Zero(s.fetcher.BarCalls())
}

func (s *ManagerTestSuite) TestResolveChain() {
	ctx := context.Background()
	exp := time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC)
	s.fetcher.Chain = map[string][]model.OptionContract{
		"AMD": {{Symbol: "AMD240308P00150000", Underlying: "AMD", Type: model.OptionPut, Strike: 150, Bid: 1, Ask: 1.1, Expiration: exp}},
	}

	first, err := s.manager.ResolveChain(ctx, "AMD", exp)
	s.Require().NoError(err)
	s.False(first.CacheHit)
	s.Len(first.Contracts, 1)

	s.now = s.now.Add(10 * time.Minute)
	second, err := s.manager.ResolveChain(ctx, "AMD", exp)
	s.Require().NoError(err)
	s.True(second.CacheHit)
	s.Equal(int64(1), s.fetcher.ChainCalls())

	s.now = s.now.Add(6 * time.Minute)
	s.fetcher.Err = stderrors.New("down")
	third, err := s.manager.ResolveChain(ctx, "AMD", exp)
	s.Require().NoError(err)
	s.Equal(model.StatusStale, third.Status)
	s.Equal(int64(2), s.fetcher.ChainCalls())
}

func (s *ManagerTestSuite) TestInvalidateAndStats() {
	ctx := context.Background()
	for _, sym := range []string{"AAPL", "MSFT"} {
		_, err := s.manager.Resolve(ctx, s.request(sym))
		s.Require().NoError(err)
	}
	_, err := s.manager.Resolve(ctx, s.request("AAPL"))
	s.Require().NoError(err)

	st, err := s.manager.Stats(ctx)
	s.Require().NoError(err)
	s.Equal(int64(2), st.Store.Entries)
	s.Equal(int64(1), st.Hits)
	s.Equal(int64(2), st.Misses)

	n, err := s.manager.Invalidate(ctx, Filter{Symbol: "AAPL"})
	s.Require().NoError(err)
	s.Equal(int64(1), n)

	_, err = s.manager.Resolve(ctx, s.request("AAPL"))
	s.Require().NoError(err)
	s.Equal(int64(3), s.fetcher.BarCalls())
}
