package scanner

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"MarketFortress/internal/cache"
	"MarketFortress/internal/collector"
	"MarketFortress/internal/errors"
	"MarketFortress/internal/model"
)

type resolverFunc func(ctx context.Context, req model.ScanRequest) (cache.Resolution, error)

func (f resolverFunc) Resolve(ctx context.Context, req model.ScanRequest) (cache.Resolution, error) {
	return f(ctx, req)
}

func okBars() []model.Bar {
	return []model.Bar{{Time: time.Date(2024, 3, 4, 14, 30, 0, 0, time.UTC), Close: 1}}
}

func symbols(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("SYM%02d", i)
	}
	return out
}

var testRange = model.NewDateRange(time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC), 30)

type ScannerTestSuite struct {
	suite.Suite
	fetcher *collector.MockFetcher
	manager *cache.Manager
}

func TestScannerSuite(t *testing.T) {
	suite.Run(t, new(ScannerTestSuite))
}

func (s *ScannerTestSuite) SetupTest() {
	s.fetcher = &collector.MockFetcher{Price: 100}
	s.manager = cache.NewManager(cache.NewMemoryStore(), s.fetcher, cache.NewPolicy(nil), zap.NewNop(), cache.Options{
		RetryBackoff: time.Millisecond,
	})
}

func (s *ScannerTestSuite) TestKFailures_OneResultPerSymbol() {
	syms := symbols(12)
	s.fetcher.Err = stderrors.New("upstream down")
	s.fetcher.ErrSymbols = []string{"SYM01", "SYM05", "SYM11"}

	sc := New(s.manager, Options{MaxConcurrency: 4}, zap.NewNop())
	results := sc.Scan(context.Background(), syms, model.Interval1d, testRange)

	s.Require().Len(results, len(syms))
	failed := 0
	for i, r := range results {
		s.Equal(syms[i], r.Symbol, "results keep input order")
		if r.Status == model.StatusFailed {
			failed++
			s.Contains([]string{"SYM01", "SYM05", "SYM11"}, r.Symbol)
			s.True(errors.HasCode(r.Err, errors.ErrCodeDataUnavailable))
		} else {
			s.Equal(model.StatusOK, r.Status)
			s.NotEmpty(r.Bars)
		}
	}
	s.Equal(3, failed)
}

func (s *ScannerTestSuite) TestInFlightNeverExceedsMaxConcurrency() {
	s.fetcher.Delay = 15 * time.Millisecond

	sc := New(s.manager, Options{MaxConcurrency: 3}, zap.NewNop())
	results := sc.Scan(context.Background(), symbols(10), model.Interval1d, testRange)

	s.Len(results, 10)
	s.LessOrEqual(s.fetcher.MaxInFlight(), int64(3))
	s.Positive(s.fetcher.MaxInFlight())
}

func (s *ScannerTestSuite) TestSecondScanHitsCache() {
	sc := New(s.manager, Options{MaxConcurrency: 5}, zap.NewNop())
	syms := symbols(5)

	first := sc.Scan(context.Background(), syms, model.Interval1d, testRange)
	second := sc.Scan(context.Background(), syms, model.Interval1d, testRange)

	for i := range syms {
		s.False(first[i].CacheHit)
		s.True(second[i].CacheHit)
	}
	s.Equal(int64(5), s.fetcher.BarCalls())
}

func (s *ScannerTestSuite) TestRunAssignsID() {
	sc := New(s.manager, Options{}, zap.NewNop())
	run := sc.Run(context.Background(), "custom", []string{"aapl", " msft "}, model.Interval1d, testRange)

	s.NotEmpty(run.ID)
	s.Equal("custom", run.Universe)
	s.Equal(2, run.Counts()[model.StatusOK])
	s.Equal("AAPL", run.Results[0].Symbol)
	s.Equal("MSFT", run.Results[1].Symbol)
	s.False(run.FinishedAt.Before(run.StartedAt))
}

func TestBatchDelay_OnlyAfterBatchesWithMisses(t *testing.T) {
	var mu sync.Mutex
	var sleeps int
	hits := map[string]bool{"SYM00": true, "SYM01": true, "SYM04": true}

	resolver := resolverFunc(func(_ context.Context, req model.ScanRequest) (cache.Resolution, error) {
		return cache.Resolution{Bars: okBars(), Status: model.StatusOK, CacheHit: hits[req.Symbol]}, nil
	})
	sc := New(resolver, Options{
		MaxConcurrency: 2,
		BatchDelay:     time.Second,
		Sleep: func(context.Context, time.Duration) error {
			mu.Lock()
			sleeps++
			mu.Unlock()
			return nil
		},
	}, zap.NewNop())

	// batches: [00 01] all hits, [02 03] misses, [04] last batch
	results := sc.Scan(context.Background(), symbols(5), model.Interval1d, testRange)
	require.Len(t, results, 5)
	assert.Equal(t, 1, sleeps)
}

func TestPanicBecomesFailedResult(t *testing.T) {
	resolver := resolverFunc(func(_ context.Context, req model.ScanRequest) (cache.Resolution, error) {
		if req.Symbol == "SYM02" {
			panic("nil map write")
		}
		return cache.Resolution{Bars: okBars(), Status: model.StatusOK}, nil
	})

	results := New(resolver, Options{MaxConcurrency: 2}, zap.NewNop()).Scan(context.Background(), symbols(4), model.Interval1d, testRange)
	require.Len(t, results, 4)
	assert.Equal(t, model.StatusFailed, results[2].Status)
	assert.Contains(t, results[2].Error(), "nil map write")
	assert.Equal(t, model.StatusOK, results[3].Status)
}

func TestFetchTimeout(t *testing.T) {
	resolver := resolverFunc(func(ctx context.Context, req model.ScanRequest) (cache.Resolution, error) {
		if req.Symbol == "SYM01" {
			<-ctx.Done()
			return cache.Resolution{Status: model.StatusFailed}, ctx.Err()
		}
		return cache.Resolution{Bars: okBars(), Status: model.StatusOK}, nil
	})

	sc := New(resolver, Options{MaxConcurrency: 3, FetchTimeout: 20 * time.Millisecond}, zap.NewNop())
	results := sc.Scan(context.Background(), symbols(3), model.Interval1d, testRange)

	assert.Equal(t, model.StatusOK, results[0].Status)
	assert.Equal(t, model.StatusFailed, results[1].Status)
	assert.ErrorIs(t, results[1].Err, context.DeadlineExceeded)
	assert.Contains(t, results[1].Error(), "timed out")
	assert.Equal(t, model.StatusOK, results[2].Status)
}

func TestCancellation_InFlightFinishesRestFail(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	resolver := resolverFunc(func(fctx context.Context, req model.ScanRequest) (cache.Resolution, error) {
		if req.Symbol == "SYM00" {
			cancel()
			// The in-flight fetch must not observe the scan's cancellation.
			select {
			case <-fctx.Done():
				return cache.Resolution{Status: model.StatusFailed}, fctx.Err()
			case <-time.After(10 * time.Millisecond):
			}
		}
		return cache.Resolution{Bars: okBars(), Status: model.StatusOK}, nil
	})

	results := New(resolver, Options{MaxConcurrency: 2}, zap.NewNop()).Scan(ctx, symbols(6), model.Interval1d, testRange)
	require.Len(t, results, 6)
	assert.Equal(t, model.StatusOK, results[0].Status)
	assert.Equal(t, model.StatusOK, results[1].Status)
	for _, r := range results[2:] {
		assert.Equal(t, model.StatusFailed, r.Status)
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
}

func TestEmptyUniverse(t *testing.T) {
	sc := New(resolverFunc(func(context.Context, model.ScanRequest) (cache.Resolution, error) {
		t.Fatal("resolver should not be called")
		return cache.Resolution{}, nil
	}), Options{}, zap.NewNop())
	assert.Empty(t, sc.Scan(context.Background(), nil, model.Interval1d, testRange))
}
