package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"MarketFortress/internal/cache"
	"MarketFortress/internal/calculator"
	"MarketFortress/internal/collector"
	"MarketFortress/internal/config"
	"MarketFortress/internal/logger"
	"MarketFortress/internal/model"
	"MarketFortress/internal/notifier"
	"MarketFortress/internal/recorder"
	"MarketFortress/internal/scanner"
	"MarketFortress/internal/scheduler"
	"MarketFortress/internal/strategy"
	"MarketFortress/internal/universe"
	"MarketFortress/internal/wheel"
)

// app holds every wired component for one command invocation.
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	store    cache.Store
	cache    *cache.Manager
	universe *universe.Manager
	wheel    *wheel.Manager
	recorder recorder.Recorder
	telegram *notifier.TelegramNotifier
	sched    *scheduler.Scheduler
}

func configPath() string {
	if flagConfig != "" {
		return flagConfig
	}
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		return v
	}
	return config.DefaultPath
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath())
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newApp wires the full stack from config. Close must be called when done.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}

	a := &app{cfg: cfg, log: log}
	if err := a.wire(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context) error {
	cfg, log := a.cfg, a.log

	fetcher, err := collector.New(cfg, log)
	if err != nil {
		return fmt.Errorf("data source: %w", err)
	}

	store, err := cache.OpenSQLite(cfg.Cache.Path)
	if err != nil {
		return fmt.Errorf("opening cache: %w", err)
	}
	a.store = store
	a.cache = cache.NewManager(store, fetcher, cache.NewPolicy(cfg.Cache.TTL), log, cache.Options{
		RetryBackoff: cfg.Scanner.RetryBackoff,
	})

	a.recorder = recorder.NewNoopRecorder()
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath, log)
		if err != nil {
			log.Warn("init sqlite recorder failed, using noop", zap.Error(err))
		} else {
			a.recorder = sr
		}
	}

	positions, err := wheel.NewFileStore(cfg.Wheel.StateFile)
	if err != nil {
		return fmt.Errorf("opening wheel state: %w", err)
	}
	engine := wheel.NewEngine(wheel.Params{
		MinROI:         cfg.Wheel.MinAnnualizedROI,
		FastExitRatio:  cfg.Wheel.FastExitRatio,
		FastExitWindow: cfg.Wheel.FastExitWindow,
		ExitRatio:      cfg.Wheel.ExitRatio,
	})
	a.wheel = wheel.NewManager(engine, positions, a.recorder, log)
	a.universe = universe.NewManager(cfg.Universe.WatchlistDir, cfg.Universe.CustomWatchlist, log)

	sc := scanner.New(a.cache, scanner.Options{
		MaxConcurrency: cfg.Scanner.MaxConcurrency,
		BatchDelay:     cfg.Scanner.BatchDelay,
		FetchTimeout:   cfg.Scanner.FetchTimeout,
	}, log)

	var n scheduler.Notifier
	if cfg.NotificationsEnabled() {
		a.telegram = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, log)
		n = a.telegram
	}

	ind := cfg.Indicators
	a.sched = scheduler.NewScheduler(ctx, sc, a.cache, a.universe, a.wheel, a.recorder, n, scheduler.Settings{
		Universe:     cfg.Universe.Default,
		Interval:     model.Interval(cfg.Scanner.Interval),
		LookbackDays: cfg.Scanner.LookbackDays,
		Indicators: calculator.Params{
			RSIPeriod:   ind.RSIPeriod,
			StochK:      ind.StochK,
			StochSmooth: ind.StochSmooth,
			StochD:      ind.StochD,
			MACDFast:    ind.MACDFast,
			MACDSlow:    ind.MACDSlow,
			MACDSignal:  ind.MACDSignal,
		},
		Thresholds:   strategy.Thresholds{RSI: ind.RSIThreshold, Stoch: ind.StochThreshold},
		WheelSymbols: cfg.Wheel.Symbols,
		PutLimits:    cfg.Wheel.PutLimits,
	}, log)
	return nil
}

func (a *app) Close() {
	if a.recorder != nil {
		if err := a.recorder.Close(); err != nil {
			a.log.Warn("closing recorder", zap.Error(err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("closing cache", zap.Error(err))
		}
	}
	logger.Sync(a.log)
}
