package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"MarketFortress/internal/logger"
)

// Config holds all application configuration.
type Config struct {
	DataSource struct {
		Provider string `yaml:"provider" validate:"oneof=yahoo polygon rest mock"`
		BaseURL  string `yaml:"base_url" validate:"required_if=Provider rest"`
		APIKey   string `yaml:"api_key" validate:"required_if=Provider polygon"`
	} `yaml:"data_source"`
	Cache struct {
		Path string                   `yaml:"path" validate:"required"`
		TTL  map[string]time.Duration `yaml:"ttl" validate:"required,min=1"`
	} `yaml:"cache"`
	Scanner struct {
		MaxConcurrency int           `yaml:"max_concurrency" validate:"min=1,max=64"`
		BatchDelay     time.Duration `yaml:"batch_delay" validate:"gte=0"`
		FetchTimeout   time.Duration `yaml:"fetch_timeout" validate:"gt=0"`
		RetryBackoff   time.Duration `yaml:"retry_backoff" validate:"gte=0"`
		Interval       string        `yaml:"interval" validate:"required"`
		LookbackDays   int           `yaml:"lookback_days" validate:"min=1"`
	} `yaml:"scanner"`
	Universe struct {
		Default         string `yaml:"default" validate:"required"`
		WatchlistDir    string `yaml:"watchlist_dir"`
		CustomWatchlist string `yaml:"custom_watchlist"`
	} `yaml:"universe"`
	Indicators struct {
		RSIPeriod      int     `yaml:"rsi_period" validate:"min=2"`
		StochK         int     `yaml:"stoch_k" validate:"min=1"`
		StochD         int     `yaml:"stoch_d" validate:"min=1"`
		StochSmooth    int     `yaml:"stoch_smooth" validate:"min=1"`
		MACDFast       int     `yaml:"macd_fast" validate:"min=1"`
		MACDSlow       int     `yaml:"macd_slow" validate:"gtfield=MACDFast"`
		MACDSignal     int     `yaml:"macd_signal" validate:"min=1"`
		RSIThreshold   float64 `yaml:"rsi_threshold" validate:"gte=0,lte=100"`
		StochThreshold float64 `yaml:"stoch_threshold" validate:"gte=0,lte=100"`
	} `yaml:"indicators"`
	Wheel struct {
		MinAnnualizedROI float64            `yaml:"min_annualized_roi" validate:"gt=0"`
		FastExitRatio    float64            `yaml:"fast_exit_ratio" validate:"gt=0,lte=1"`
		FastExitWindow   time.Duration      `yaml:"fast_exit_window" validate:"gt=0"`
		ExitRatio        float64            `yaml:"exit_ratio" validate:"gt=0,lte=1,gtefield=FastExitRatio"`
		Symbols          []string           `yaml:"symbols"`
		PutLimits        map[string]float64 `yaml:"put_limits"`
		StateFile        string             `yaml:"state_file" validate:"required"`
	} `yaml:"wheel"`
	Schedule struct {
		ScanCron  string `yaml:"scan_cron"`
		WheelCron string `yaml:"wheel_cron"`
	} `yaml:"schedule"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id" validate:"required_with=BotToken"`
	} `yaml:"telegram"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Log   logger.Config `yaml:"log"`
	Proxy string        `yaml:"proxy"`
}

// DefaultPath is used when neither --config nor CONFIG_PATH is set.
const DefaultPath = "configs/config.yaml"

// Load reads config from a YAML file, then applies environment variable overrides and defaults.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("FORTRESS_PROVIDER"); v != "" {
		cfg.DataSource.Provider = v
	}
	if v := os.Getenv("FORTRESS_BASE_URL"); v != "" {
		cfg.DataSource.BaseURL = v
	}
	if v := os.Getenv("FORTRESS_API_KEY"); v != "" {
		cfg.DataSource.APIKey = v
	}
	if v := os.Getenv("POLYGON_API_KEY"); v != "" && cfg.DataSource.APIKey == "" {
		cfg.DataSource.APIKey = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("CACHE_PATH"); v != "" {
		cfg.Cache.Path = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = strings.ToLower(v)
	}
}

func applyDefaults(cfg *Config) {
	if cfg.DataSource.Provider == "" {
		cfg.DataSource.Provider = "yahoo"
		if cfg.DataSource.BaseURL != "" {
			cfg.DataSource.Provider = "rest"
		}
	}
	if cfg.Cache.Path == "" {
		cfg.Cache.Path = filepath.Join(xdg.CacheHome, "fortress", "cache.db")
	}
	if len(cfg.Cache.TTL) == 0 {
		cfg.Cache.TTL = map[string]time.Duration{
			"1d":      4 * time.Hour,
			"1h":      30 * time.Minute,
			"5m":      5 * time.Minute,
			"options": 15 * time.Minute,
		}
	}
	if cfg.Scanner.MaxConcurrency == 0 {
		cfg.Scanner.MaxConcurrency = 10
	}
	if cfg.Scanner.BatchDelay == 0 {
		cfg.Scanner.BatchDelay = 100 * time.Millisecond
	}
	if cfg.Scanner.FetchTimeout == 0 {
		cfg.Scanner.FetchTimeout = 30 * time.Second
	}
	if cfg.Scanner.RetryBackoff == 0 {
		cfg.Scanner.RetryBackoff = 500 * time.Millisecond
	}
	if cfg.Scanner.Interval == "" {
		cfg.Scanner.Interval = "1d"
	}
	if cfg.Scanner.LookbackDays == 0 {
		cfg.Scanner.LookbackDays = 60
	}
	if cfg.Universe.Default == "" {
		cfg.Universe.Default = "custom"
	}
	if cfg.Universe.WatchlistDir == "" {
		cfg.Universe.WatchlistDir = "universe/watchlists"
	}
	if cfg.Universe.CustomWatchlist == "" {
		cfg.Universe.CustomWatchlist = filepath.Join(cfg.Universe.WatchlistDir, "default.yaml")
	}

	ind := &cfg.Indicators
	if ind.RSIPeriod == 0 {
		ind.RSIPeriod = 7
	}
	if ind.StochK == 0 {
		ind.StochK = 14
	}
	if ind.StochD == 0 {
		ind.StochD = 3
	}
	if ind.StochSmooth == 0 {
		ind.StochSmooth = 3
	}
	if ind.MACDFast == 0 {
		ind.MACDFast = 12
	}
	if ind.MACDSlow == 0 {
		ind.MACDSlow = 26
	}
	if ind.MACDSignal == 0 {
		ind.MACDSignal = 9
	}
	if ind.RSIThreshold == 0 {
		ind.RSIThreshold = 50
	}
	if ind.StochThreshold == 0 {
		ind.StochThreshold = 50
	}

	w := &cfg.Wheel
	if w.MinAnnualizedROI == 0 {
		w.MinAnnualizedROI = 30
	}
	if w.FastExitRatio == 0 {
		w.FastExitRatio = 0.80
	}
	if w.FastExitWindow == 0 {
		w.FastExitWindow = 24 * time.Hour
	}
	if w.ExitRatio == 0 {
		w.ExitRatio = 0.90
	}
	if w.StateFile == "" {
		w.StateFile = "data/wheel_state.json"
	}
	for i, s := range w.Symbols {
		w.Symbols[i] = strings.ToUpper(strings.TrimSpace(s))
	}

	if cfg.Schedule.ScanCron == "" {
		cfg.Schedule.ScanCron = "0 35 9 * * 1-5"
	}
	if cfg.Schedule.WheelCron == "" {
		cfg.Schedule.WheelCron = "0 0 10,15 * * 1-5"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/fortress.db"
	}
}

// Validate checks struct constraints and the TTL table.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	// Intervals missing from the table fall back to the shortest TTL, so only sign is checked.
	for interval, ttl := range c.Cache.TTL {
		if ttl <= 0 {
			return fmt.Errorf("cache.ttl[%s] must be positive", interval)
		}
	}
	return nil
}

// NotificationsEnabled reports whether Telegram credentials are present.
func (c *Config) NotificationsEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}
