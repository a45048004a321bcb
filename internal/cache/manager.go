package cache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"MarketFortress/internal/collector"
	"MarketFortress/internal/errors"
	"MarketFortress/internal/model"
)

// Resolution is the outcome of resolving bars for one request.
type Resolution struct {
	Bars      []model.Bar
	Status    model.ScanStatus
	CacheHit  bool
	FetchedAt time.Time
	// Warning carries the adapter failure behind a stale result, or a cache write failure behind a fresh one.
	Warning error
}

// ChainResolution is the outcome of resolving an option chain.
type ChainResolution struct {
	Contracts []model.OptionContract
	Status    model.ScanStatus
	CacheHit  bool
	FetchedAt time.Time
	Warning   error
}

// ManagerStats combines store contents with resolve counters since start.
type ManagerStats struct {
	Store    Stats
	Hits     int64
	Misses   int64
	Stale    int64
	Failures int64
}

// Options tunes a Manager. Zero values take defaults.
type Options struct {
	RetryBackoff time.Duration
	Now          func() time.Time
	Sleep        func(ctx context.Context, d time.Duration) error
}

// Manager resolves requests against the store and falls back to the fetcher on a miss.
type Manager struct {
	store    Store
	fetcher  collector.Fetcher
	policy   Policy
	log      *zap.Logger
	validate *validator.Validate

	backoff time.Duration
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error

	hits, misses, stale, failures atomic.Int64
}

func NewManager(store Store, fetcher collector.Fetcher, policy Policy, log *zap.Logger, opts Options) *Manager {
	m := &Manager{
		store:    store,
		fetcher:  fetcher,
		policy:   policy,
		log:      log,
		validate: validator.New(),
		backoff:  opts.RetryBackoff,
		now:      opts.Now,
		sleep:    opts.Sleep,
	}
	if m.backoff == 0 {
		m.backoff = 500 * time.Millisecond
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.sleep == nil {
		m.sleep = sleepCtx
	}
	return m
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Resolve returns bars for req, from the cache when fresh and covering, otherwise from the fetcher.
func (m *Manager) Resolve(ctx context.Context, req model.ScanRequest) (Resolution, error) {
	if err := m.validate.Struct(req); err != nil {
		return Resolution{Status: model.StatusFailed}, errors.Wrap(errors.ErrCodeInvalidRequest, "invalid scan request", err)
	}
	key := BarsKey(req.Symbol, req.Interval)
	log := m.log.With(zap.String("symbol", req.Symbol), zap.String("interval", string(req.Interval)))

	prior := m.lookup(ctx, key, log)
	now := m.now()
	if prior != nil && !prior.Expired(now) && prior.Range.Covers(req.Range) {
		m.hits.Add(1)
		log.Debug("cache hit", zap.Time("fetched_at", prior.FetchedAt))
		return Resolution{
			Bars:      model.SliceBars(prior.Bars, req.Range),
			Status:    model.StatusOK,
			CacheHit:  true,
			FetchedAt: prior.FetchedAt,
		}, nil
	}
	m.misses.Add(1)

	bars, err := m.fetchBars(ctx, req)
	if err == nil && len(bars) == 0 {
		err = errors.Newf(errors.ErrCodeDataUnavailable, "%s returned no bars for %s %s", m.fetcher.Name(), req.Symbol, req.Range)
	}
	if err != nil {
		if prior != nil {
			if bars := model.SliceBars(prior.Bars, req.Range); len(bars) > 0 {
				m.stale.Add(1)
				log.Warn("serving stale cache entry", zap.Time("fetched_at", prior.FetchedAt), zap.Error(err))
				return Resolution{
					Bars:      bars,
					Status:    model.StatusStale,
					FetchedAt: prior.FetchedAt,
					Warning:   err,
				}, nil
			}
			log.Debug("stale entry has no bars in range", zap.Stringer("cached", prior.Range))
		}
		m.failures.Add(1)
		if errors.HasCode(err, errors.ErrCodeDataUnavailable) {
			return Resolution{Status: model.StatusFailed}, err
		}
		return Resolution{Status: model.StatusFailed}, errors.Wrapf(errors.ErrCodeDataUnavailable, err, "no data for %s %s", req.Symbol, req.Interval)
	}

	entry := &Entry{
		Symbol:    req.Symbol,
		Interval:  string(req.Interval),
		Kind:      KindBars,
		Bars:      bars,
		Range:     req.Range,
		FetchedAt: now,
		TTL:       m.policy.TTL(string(req.Interval)),
		Source:    m.fetcher.Name(),
	}
	werr := m.write(ctx, entry, log)
	return Resolution{
		Bars:      model.SliceBars(bars, req.Range),
		Status:    model.StatusOK,
		FetchedAt: now,
		Warning:   werr,
	}, nil
}

// ResolveChain applies the same policy to the option chain for one expiration.
func (m *Manager) ResolveChain(ctx context.Context, symbol string, expiration time.Time) (ChainResolution, error) {
	key := ChainKey(symbol, expiration)
	log := m.log.With(zap.String("symbol", symbol), zap.String("interval", key.Interval))

	prior := m.lookup(ctx, key, log)
	now := m.now()
	if prior != nil && !prior.Expired(now) {
		m.hits.Add(1)
		return ChainResolution{Contracts: prior.Chain, Status: model.StatusOK, CacheHit: true, FetchedAt: prior.FetchedAt}, nil
	}
	m.misses.Add(1)

	chain, err := withRetry(ctx, m, func(ctx context.Context) ([]model.OptionContract, error) {
		return m.fetcher.FetchOptionChain(ctx, symbol, expiration)
	})
	if err == nil && len(chain) == 0 {
		err = errors.Newf(errors.ErrCodeDataUnavailable, "%s returned no contracts for %s", m.fetcher.Name(), key)
	}
	if err != nil {
		if prior != nil && len(prior.Chain) > 0 {
			m.stale.Add(1)
			log.Warn("serving stale option chain", zap.Time("fetched_at", prior.FetchedAt), zap.Error(err))
			return ChainResolution{Contracts: prior.Chain, Status: model.StatusStale, FetchedAt: prior.FetchedAt, Warning: err}, nil
		}
		m.failures.Add(1)
		if errors.HasCode(err, errors.ErrCodeDataUnavailable) {
			return ChainResolution{Status: model.StatusFailed}, err
		}
		return ChainResolution{Status: model.StatusFailed}, errors.Wrapf(errors.ErrCodeDataUnavailable, err, "no option chain for %s", key)
	}

	entry := &Entry{
		Symbol:    symbol,
		Interval:  key.Interval,
		Kind:      KindChain,
		Chain:     chain,
		FetchedAt: now,
		TTL:       m.policy.TTL(key.Interval),
		Source:    m.fetcher.Name(),
	}
	werr := m.write(ctx, entry, log)
	return ChainResolution{Contracts: chain, Status: model.StatusOK, FetchedAt: now, Warning: werr}, nil
}

// write stores a fresh entry. A failure leaves the data usable and is reported as a warning.
func (m *Manager) write(ctx context.Context, entry *Entry, log *zap.Logger) error {
	if err := m.store.Put(ctx, entry); err != nil {
		log.Warn("cache write failed", zap.Error(err))
		return fmt.Errorf("cache write failed: %w", err)
	}
	return nil
}

// lookup treats unreadable entries and store errors as misses.
func (m *Manager) lookup(ctx context.Context, key Key, log *zap.Logger) *Entry {
	entry, err := m.store.Get(ctx, key)
	if err != nil {
		if errors.HasCode(err, errors.ErrCodeCacheCorruption) {
			log.Warn("corrupt cache entry, refetching", zap.Error(err))
		} else {
			log.Warn("cache read failed", zap.Error(err))
		}
		return nil
	}
	return entry
}

func (m *Manager) fetchBars(ctx context.Context, req model.ScanRequest) ([]model.Bar, error) {
	return withRetry(ctx, m, func(ctx context.Context) ([]model.Bar, error) {
		return m.fetcher.FetchBars(ctx, req.Symbol, req.Range.Start, req.Range.End, req.Interval)
	})
}

// withRetry retries a SourceError once after the backoff.
func withRetry[T any](ctx context.Context, m *Manager, call func(context.Context) (T, error)) (T, error) {
	out, err := call(ctx)
	if err == nil || !errors.HasCode(err, errors.ErrCodeSourceError) {
		return out, err
	}
	m.log.Debug("source error, retrying", zap.Duration("backoff", m.backoff), zap.Error(err))
	if serr := m.sleep(ctx, m.backoff); serr != nil {
		return out, err
	}
	return call(ctx)
}

// Invalidate removes matching entries.
func (m *Manager) Invalidate(ctx context.Context, filter Filter) (int64, error) {
	n, err := m.store.Clear(ctx, filter)
	if err != nil {
		return 0, err
	}
	m.log.Info("cache invalidated", zap.String("symbol", filter.Symbol), zap.String("interval", filter.Interval), zap.Int64("removed", n))
	return n, nil
}

func (m *Manager) Stats(ctx context.Context) (ManagerStats, error) {
	st, err := m.store.Stats(ctx)
	if err != nil {
		return ManagerStats{}, err
	}
	return ManagerStats{
		Store:    st,
		Hits:     m.hits.Load(),
		Misses:   m.misses.Load(),
		Stale:    m.stale.Load(),
		Failures: m.failures.Load(),
	}, nil
}
