package collector

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"MarketFortress/internal/config"
	"MarketFortress/internal/errors"
	"MarketFortress/internal/model"
)

func TestMockFetcher_GeneratesWeekdayBars(t *testing.T) {
	m := &MockFetcher{Price: 50}
	bars, err := m.FetchBars(context.Background(), "AAPL", day("2024-03-01"), day("2024-03-08"), model.Interval1d)
	require.NoError(t, err)
	assert.Len(t, bars, 6) // Fri, Mon-Fri
	assert.True(t, model.BarsAscending(bars))
	assert.Equal(t, 1, m.CallsFor("AAPL"))
	assert.Equal(t, int64(1), m.BarCalls())
}

func TestMockFetcher_FailsListedSymbols(t *testing.T) {
	boom := stderrors.New("boom")
	m := &MockFetcher{Price: 50, Err: boom, ErrSymbols: []string{"BAD"}}

	_, err := m.FetchBars(context.Background(), "BAD", day("2024-03-01"), day("2024-03-08"), model.Interval1d)
	assert.ErrorIs(t, err, boom)

	_, err = m.FetchBars(context.Background(), "GOOD", day("2024-03-01"), day("2024-03-08"), model.Interval1d)
	assert.NoError(t, err)
}

func TestMockFetcher_ChainPicksClosestExpiration(t *testing.T) {
	m := &MockFetcher{Chain: map[string][]model.OptionContract{
		"AMD": {
			{Type: model.OptionPut, Strike: 150, Expiration: day("2024-03-08")},
			{Type: model.OptionPut, Strike: 150, Expiration: day("2024-03-15")},
		},
	}}
	chain, err := m.FetchOptionChain(context.Background(), "AMD", day("2024-03-14"))
	require.NoError(t, err)
	require.Len(t, chain, 1)
	assert.Equal(t, day("2024-03-15"), chain[0].Expiration)

	chain, err = m.FetchOptionChain(context.Background(), "AMD", time.Time{})
	require.NoError(t, err)
	require.Len(t, chain, 1)
	assert.Equal(t, day("2024-03-08"), chain[0].Expiration)
}

func TestMockFetcher_DelayHonoursContext(t *testing.T) {
	m := &MockFetcher{Delay: time.Second}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := m.FetchBars(ctx, "AAPL", day("2024-03-01"), day("2024-03-08"), model.Interval1d)
	assert.True(t, errors.HasCode(err, errors.ErrCodeSourceError))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNew_SelectsProvider(t *testing.T) {
	tests := []struct {
		provider string
		apiKey   string
		want     string
		wantErr  bool
	}{
		{provider: "yahoo", want: "yahoo"},
		{provider: "mock", want: "mock"},
		{provider: "rest", want: "rest"},
		{provider: "polygon", apiKey: "k", want: "polygon"},
		{provider: "polygon", wantErr: true},
		{provider: "bloomberg", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			cfg := &config.Config{}
			cfg.DataSource.Provider = tt.provider
			cfg.DataSource.APIKey = tt.apiKey
			cfg.DataSource.BaseURL = "http://localhost:1"

			f, err := New(cfg, zap.NewNop())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.Name())
		})
	}
}

func TestClosestExpiration(t *testing.T) {
	listed := []time.Time{day("2024-03-15"), day("2024-03-08"), day("2024-03-22")}

	got, ok := closestExpiration(listed, time.Time{})
	require.True(t, ok)
	assert.Equal(t, day("2024-03-08"), got)

	got, _ = closestExpiration(listed, day("2024-03-20"))
	assert.Equal(t, day("2024-03-22"), got)

	_, ok = closestExpiration(nil, day("2024-03-20"))
	assert.False(t, ok)
}
