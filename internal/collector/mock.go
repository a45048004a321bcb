package collector

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"MarketFortress/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	Price float64
	Bars  map[string][]model.Bar
	Chain map[string][]model.OptionContract
	// Err, when set, is returned by every call for the listed symbols (or all symbols if empty).
	Err        error
	ErrSymbols []string
	Delay      time.Duration

	barCalls   atomic.Int64
	chainCalls atomic.Int64
	inFlight   atomic.Int64
	maxFlight  atomic.Int64
	mu         sync.Mutex
	calls      map[string]int
}

func (m *MockFetcher) Name() string { return "mock" }

// BarCalls reports how many FetchBars calls were made.
func (m *MockFetcher) BarCalls() int64 { return m.barCalls.Load() }

// ChainCalls reports how many FetchOptionChain calls were made.
func (m *MockFetcher) ChainCalls() int64 { return m.chainCalls.Load() }

// CallsFor reports FetchBars calls for one symbol.
func (m *MockFetcher) CallsFor(symbol string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[symbol]
}

// MaxInFlight reports the highest number of concurrent calls observed.
func (m *MockFetcher) MaxInFlight() int64 { return m.maxFlight.Load() }

func (m *MockFetcher) enter(ctx context.Context) error {
	n := m.inFlight.Add(1)
	for {
		cur := m.maxFlight.Load()
		if n <= cur || m.maxFlight.CompareAndSwap(cur, n) {
			break
		}
	}
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (m *MockFetcher) failing(symbol string) bool {
	if m.Err == nil {
		return false
	}
	if len(m.ErrSymbols) == 0 {
		return true
	}
	for _, s := range m.ErrSymbols {
		if s == symbol {
			return true
		}
	}
	return false
}

func (m *MockFetcher) FetchBars(ctx context.Context, symbol string, start, end time.Time, _ model.Interval) ([]model.Bar, error) {
	m.barCalls.Add(1)
	m.mu.Lock()
	if m.calls == nil {
		m.calls = map[string]int{}
	}
	m.calls[symbol]++
	m.mu.Unlock()

	defer m.inFlight.Add(-1)
	if err := m.enter(ctx); err != nil {
		return nil, sourceErr(m.Name(), symbol, err)
	}
	if m.failing(symbol) {
		return nil, m.Err
	}
	if bars, ok := m.Bars[symbol]; ok {
		out := make([]model.Bar, len(bars))
		copy(out, bars)
		return out, nil
	}
	return generateMockBars(m.Price, start, end), nil
}

func (m *MockFetcher) FetchOptionChain(ctx context.Context, symbol string, expiration time.Time) ([]model.OptionContract, error) {
	m.chainCalls.Add(1)
	defer m.inFlight.Add(-1)
	if err := m.enter(ctx); err != nil {
		return nil, sourceErr(m.Name(), symbol, err)
	}
	if m.failing(symbol) {
		return nil, m.Err
	}
	chain := m.Chain[symbol]
	var listed []time.Time
	for _, c := range chain {
		listed = append(listed, c.Expiration)
	}
	chosen, ok := closestExpiration(listed, expiration)
	if !ok {
		return nil, nil
	}
	var out []model.OptionContract
	for _, c := range chain {
		if c.Expiration.Equal(chosen) {
			out = append(out, c)
		}
	}
	return out, nil
}

// generateMockBars produces one daily bar per weekday in [start, end].
func generateMockBars(basePrice float64, start, end time.Time) []model.Bar {
	if basePrice == 0 {
		basePrice = 100
	}
	var bars []model.Bar
	i := 0
	for d := model.Day(start); !d.After(model.Day(end)); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		p := basePrice * (1 + float64(i%20-10)*0.002)
		bars = append(bars, model.Bar{
			Time:   d.Add(14*time.Hour + 30*time.Minute),
			Open:   p * 0.999,
			High:   p * 1.005,
			Low:    p * 0.995,
			Close:  p,
			Volume: 1000000,
		})
		i++
	}
	return bars
}
