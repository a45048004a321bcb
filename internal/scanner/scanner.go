// Package scanner resolves a universe of symbols through the cache with bounded concurrency.
package scanner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"MarketFortress/internal/cache"
	"MarketFortress/internal/errors"
	"MarketFortress/internal/model"
)

// Resolver is the cache manager as seen by the scanner.
type Resolver interface {
	Resolve(ctx context.Context, req model.ScanRequest) (cache.Resolution, error)
}

// Options tunes a scan. Zero values take defaults.
type Options struct {
	MaxConcurrency int
	BatchDelay     time.Duration
	FetchTimeout   time.Duration
	Sleep          func(ctx context.Context, d time.Duration) error
}

// Scanner fans requests out in batches of at most MaxConcurrency.
type Scanner struct {
	resolver Resolver
	opts     Options
	log      *zap.Logger
}

func New(resolver Resolver, opts Options, log *zap.Logger) *Scanner {
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 10
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 30 * time.Second
	}
	if opts.Sleep == nil {
		opts.Sleep = func(ctx context.Context, d time.Duration) error {
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-t.C:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return &Scanner{resolver: resolver, opts: opts, log: log}
}

// Run scans symbols and wraps the results in a ScanRun with a fresh ID.
func (s *Scanner) Run(ctx context.Context, universe string, symbols []string, interval model.Interval, rng model.DateRange) *model.ScanRun {
	run := &model.ScanRun{
		ID:        uuid.NewString(),
		Universe:  universe,
		Interval:  interval,
		StartedAt: time.Now(),
	}
	log := s.log.With(zap.String("run_id", run.ID), zap.String("universe", universe))
	log.Info("scan started",
		zap.Int("symbols", len(symbols)),
		zap.String("interval", string(interval)),
		zap.Stringer("range", rng),
	)

	run.Results = s.scan(ctx, log, symbols, interval, rng)
	run.FinishedAt = time.Now()

	counts := run.Counts()
	log.Info("scan finished",
		zap.Int("ok", counts[model.StatusOK]),
		zap.Int("stale", counts[model.StatusStale]),
		zap.Int("failed", counts[model.StatusFailed]),
		zap.Duration("latency", run.FinishedAt.Sub(run.StartedAt)),
	)
	return run
}

// Scan returns exactly one result per input symbol, in input order.
func (s *Scanner) Scan(ctx context.Context, symbols []string, interval model.Interval, rng model.DateRange) []model.ScanResult {
	return s.scan(ctx, s.log, symbols, interval, rng)
}

func (s *Scanner) scan(ctx context.Context, log *zap.Logger, symbols []string, interval model.Interval, rng model.DateRange) []model.ScanResult {
	results := make([]model.ScanResult, len(symbols))
	size := s.opts.MaxConcurrency

	next := 0
	for next < len(symbols) {
		if ctx.Err() != nil {
			break
		}
		end := min(next+size, len(symbols))

		var g errgroup.Group
		g.SetLimit(size)
		for i := next; i < end; i++ {
			i := i
			req := model.NewScanRequest(symbols[i], interval, rng)
			g.Go(func() error {
				results[i] = s.scanOne(ctx, log, req)
				return nil
			})
		}
		_ = g.Wait()

		missed := false
		for _, r := range results[next:end] {
			if !r.CacheHit {
				missed = true
				break
			}
		}
		next = end

		if missed && next < len(symbols) && s.opts.BatchDelay > 0 {
			if err := s.opts.Sleep(ctx, s.opts.BatchDelay); err != nil {
				break
			}
		}
	}

	if next < len(symbols) {
		cause := errors.Wrap(errors.ErrCodeDataUnavailable, "scan cancelled before dispatch", context.Cause(ctx))
		log.Warn("scan cancelled", zap.Int("undispatched", len(symbols)-next))
		for i := next; i < len(symbols); i++ {
			req := model.NewScanRequest(symbols[i], interval, rng)
			results[i] = model.ScanResult{Request: req, Symbol: req.Symbol, Status: model.StatusFailed, Err: cause}
		}
	}
	return results
}

// scanOne resolves one symbol. In-flight fetches are detached from scan cancellation
// but bounded by the per-fetch timeout.
func (s *Scanner) scanOne(ctx context.Context, log *zap.Logger, req model.ScanRequest) (res model.ScanResult) {
	start := time.Now()
	res = model.ScanResult{Request: req, Symbol: req.Symbol}
	log = log.With(zap.String("symbol", req.Symbol))

	defer func() {
		if r := recover(); r != nil {
			res.Status = model.StatusFailed
			res.Bars = nil
			res.Err = errors.Newf(errors.ErrCodeUnknown, "panic resolving %s: %v", req.Symbol, r)
			log.Error("resolve panicked", zap.Any("panic", r))
		}
		res.Latency = time.Since(start)
	}()

	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.FetchTimeout)
	defer cancel()

	resolution, err := s.resolver.Resolve(fctx, req)
	if err != nil {
		res.Status = model.StatusFailed
		res.Err = err
		if fctx.Err() == context.DeadlineExceeded {
			res.Err = fmt.Errorf("fetch timed out after %s: %w", s.opts.FetchTimeout, err)
		}
		log.Warn("resolve failed", zap.Error(res.Err), zap.Duration("latency", time.Since(start)))
		return res
	}

	res.Status = resolution.Status
	res.Bars = resolution.Bars
	res.CacheHit = resolution.CacheHit
	res.Err = resolution.Warning
	log.Debug("resolved",
		zap.String("status", string(res.Status)),
		zap.Bool("cache_hit", res.CacheHit),
		zap.Int("bars", len(res.Bars)),
		zap.Duration("latency", time.Since(start)),
	)
	return res
}
