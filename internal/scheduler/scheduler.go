package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"MarketFortress/internal/cache"
	"MarketFortress/internal/calculator"
	"MarketFortress/internal/errors"
	"MarketFortress/internal/model"
	"MarketFortress/internal/notifier"
	"MarketFortress/internal/recorder"
	"MarketFortress/internal/scanner"
	"MarketFortress/internal/strategy"
	"MarketFortress/internal/universe"
	"MarketFortress/internal/wheel"
)

// Notifier delivers formatted reports. A nil Notifier disables notifications.
type Notifier interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// Settings are the scan and wheel parameters taken from config.
type Settings struct {
	Universe     string
	Interval     model.Interval
	LookbackDays int
	Indicators   calculator.Params
	Thresholds   strategy.Thresholds
	WheelSymbols []string
	PutLimits    map[string]float64
	Now          func() time.Time
}

// Scheduler runs scan and wheel cycles on demand or from cron.
type Scheduler struct {
	Cron     *cron.Cron
	Scanner  *scanner.Scanner
	Cache    *cache.Manager
	Universe *universe.Manager
	Wheel    *wheel.Manager
	Recorder recorder.Recorder
	Notifier Notifier
	Settings Settings
	Ctx      context.Context

	log *zap.Logger
}

// ScanReport is the outcome of one scan cycle.
type ScanReport struct {
	Run     *model.ScanRun
	Signals []model.Signal
}

// NewScheduler creates a Scheduler. Jobs still running when their next tick fires are skipped.
func NewScheduler(ctx context.Context, sc *scanner.Scanner, cm *cache.Manager, um *universe.Manager, wm *wheel.Manager,
	rec recorder.Recorder, n Notifier, settings Settings, log *zap.Logger) *Scheduler {
	if settings.Now == nil {
		settings.Now = time.Now
	}
	if settings.Interval == "" {
		settings.Interval = model.Interval1d
	}
	if settings.LookbackDays <= 0 {
		settings.LookbackDays = 60
	}
	cl := cronLogger{log.Sugar()}
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds(), cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		Scanner:  sc,
		Cache:    cm,
		Universe: um,
		Wheel:    wm,
		Recorder: rec,
		Notifier: n,
		Settings: settings,
		Ctx:      ctx,
		log:      log,
	}
}

// cronLogger routes cron's own logging through zap.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}

// RegisterAll registers the scan and wheel jobs. An empty spec leaves that job unscheduled.
func (s *Scheduler) RegisterAll(scanCron, wheelCron string) error {
	if scanCron != "" {
		if _, err := s.Cron.AddFunc(scanCron, s.scanTask); err != nil {
			return fmt.Errorf("register scan task: %w", err)
		}
	}
	if wheelCron != "" {
		if _, err := s.Cron.AddFunc(wheelCron, s.wheelTask); err != nil {
			return fmt.Errorf("register wheel task: %w", err)
		}
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.log.Info("scheduler started", zap.Int("jobs", len(s.Cron.Entries())))
}

// Stop stops the cron scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) scanTask() {
	if _, err := s.RunScan(s.Ctx, s.Settings.Universe); err != nil {
		s.log.Error("scheduled scan failed", zap.Error(err))
		s.trySend(s.Ctx, fmt.Sprintf("❌ scan failed: %v", err))
	}
}

func (s *Scheduler) wheelTask() {
	if _, err := s.RunWheel(s.Ctx, nil); err != nil {
		s.log.Error("scheduled wheel cycle failed", zap.Error(err))
	}
}

// RunScan scans a universe, classifies every usable result, records and reports the run.
// Per-symbol failures are part of the report; only an unknown universe is an error.
func (s *Scheduler) RunScan(ctx context.Context, universeName string) (*ScanReport, error) {
	if universeName == "" {
		universeName = s.Settings.Universe
	}
	tickers, err := s.Universe.Tickers(universeName)
	if err != nil {
		return nil, err
	}

	rng := model.NewDateRange(s.Settings.Now(), s.Settings.LookbackDays)
	run := s.Scanner.Run(ctx, universeName, tickers, s.Settings.Interval, rng)
	signals := s.classify(run)

	if err := s.Recorder.RecordScan(run); err != nil {
		s.log.Error("record scan failed", zap.String("run_id", run.ID), zap.Error(err))
	}
	if err := s.Recorder.RecordSignals(run.ID, signals); err != nil {
		s.log.Error("record signals failed", zap.String("run_id", run.ID), zap.Error(err))
	}
	s.trySend(ctx, notifier.FormatScanSummary(run, signals))
	return &ScanReport{Run: run, Signals: signals}, nil
}

func (s *Scheduler) classify(run *model.ScanRun) []model.Signal {
	var signals []model.Signal
	for _, res := range run.Results {
		if !res.Usable() {
			continue
		}
		sig, err := strategy.Evaluate(res.Symbol, res.Bars, s.Settings.Indicators, s.Settings.Thresholds)
		if err != nil {
			level := zap.WarnLevel
			if errors.HasCode(err, errors.ErrCodeInsufficientData) {
				level = zap.DebugLevel
			}
			if ce := s.log.Check(level, "signal skipped"); ce != nil {
				ce.Write(zap.String("run_id", run.ID), zap.String("symbol", res.Symbol), zap.Error(err))
			}
			continue
		}
		signals = append(signals, sig)
	}
	return signals
}

// RunWheel evaluates the wheel for symbols (the configured list when empty).
// Failures for one symbol are logged and do not stop the others.
func (s *Scheduler) RunWheel(ctx context.Context, symbols []string) ([]model.WheelDecision, error) {
	if len(symbols) == 0 {
		symbols = s.Settings.WheelSymbols
	}
	if len(symbols) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidRequest, "no wheel symbols configured")
	}

	var decisions []model.WheelDecision
	for _, raw := range universe.Normalize(symbols) {
		if ctx.Err() != nil {
			break
		}
		view := s.marketView(ctx, raw)
		d, err := s.Wheel.Evaluate(ctx, raw, view)
		if err != nil {
			s.log.Error("wheel evaluation failed", zap.String("symbol", raw), zap.Error(err))
			continue
		}
		decisions = append(decisions, d)
	}

	if len(decisions) > 0 {
		s.trySend(ctx, notifier.FormatWheelDecisions(decisions))
	}
	return decisions, ctx.Err()
}

// marketView gathers the underlying price and the chains for this and next week's expirations.
func (s *Scheduler) marketView(ctx context.Context, symbol string) wheel.MarketView {
	now := s.Settings.Now()
	log := s.log.With(zap.String("symbol", symbol))
	view := wheel.MarketView{Now: now, PutLimit: s.Settings.PutLimits[symbol]}

	req := model.NewScanRequest(symbol, model.Interval1d, model.NewDateRange(now, 10))
	if res, err := s.Cache.Resolve(ctx, req); err != nil {
		log.Warn("underlying price unavailable", zap.Error(err))
	} else if n := len(res.Bars); n > 0 {
		view.Price = res.Bars[n-1].Close
	}

	seen := map[string]bool{}
	for _, exp := range wheel.CandidateExpirations(now) {
		res, err := s.Cache.ResolveChain(ctx, symbol, exp)
		if err != nil {
			log.Warn("option chain unavailable", zap.Time("expiration", exp), zap.Error(err))
			continue
		}
		for _, c := range res.Contracts {
			if seen[c.Symbol] {
				continue
			}
			seen[c.Symbol] = true
			view.Chain = append(view.Chain, c)
		}
	}
	return view
}

// HandleCommand processes a chat command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return ""
	}
	switch fields[0] {
	case "/scan":
		name := ""
		if len(fields) > 1 {
			name = fields[1]
		}
		if _, err := s.RunScan(ctx, name); err != nil {
			return fmt.Sprintf("❌ scan failed: %v", err)
		}
		return "" // the summary is sent by RunScan
	case "/wheel":
		if _, err := s.RunWheel(ctx, fields[1:]); err != nil {
			return fmt.Sprintf("❌ wheel failed: %v", err)
		}
		return ""
	case "/positions":
		positions, err := s.Wheel.Positions()
		if err != nil {
			return fmt.Sprintf("❌ %v", err)
		}
		return notifier.FormatPositions(positions)
	case "/cache":
		st, err := s.Cache.Stats(ctx)
		if err != nil {
			return fmt.Sprintf("❌ %v", err)
		}
		return notifier.FormatCacheStats(st)
	default:
		return "Commands:\n• /scan [universe]\n• /wheel [symbols...]\n• /positions\n• /cache"
	}
}

func (s *Scheduler) trySend(ctx context.Context, text string) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.SendWithRetry(ctx, text, 3); err != nil {
		s.log.Error("send notification failed", zap.Error(err))
	}
}
