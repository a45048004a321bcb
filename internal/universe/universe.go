// Package universe resolves universe names to ticker lists: built-in presets or YAML watchlists.
package universe

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"MarketFortress/internal/errors"
)

// Watchlist is the on-disk YAML format.
type Watchlist struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description,omitempty"`
	Tickers     []string `yaml:"tickers"`
}

// Info describes one available universe.
type Info struct {
	Name  string
	Type  string // preset | custom
	Path  string
	Count int
}

var presets = map[string][]string{
	// Top 50 S&P 500 components by weight.
	"sp500": {
		"AAPL", "MSFT", "AMZN", "NVDA", "GOOGL", "META", "GOOG", "BRK.B",
		"UNH", "XOM", "LLY", "JPM", "JNJ", "V", "PG", "MA", "AVGO", "HD",
		"CVX", "MRK", "ABBV", "COST", "PEP", "KO", "ADBE", "WMT", "MCD",
		"CSCO", "CRM", "BAC", "PFE", "ACN", "TMO", "NFLX", "AMD", "LIN",
		"ORCL", "ABT", "DHR", "DIS", "CMCSA", "VZ", "INTC", "WFC", "PM",
		"NEE", "TXN", "RTX", "UPS", "HON",
	},
	"nasdaq100": {
		"AAPL", "MSFT", "AMZN", "NVDA", "GOOGL", "META", "GOOG", "AVGO",
		"TSLA", "ADBE", "COST", "PEP", "CSCO", "NFLX", "AMD", "CMCSA",
		"INTC", "TMUS", "TXN", "QCOM", "AMGN", "HON", "INTU", "AMAT",
		"ISRG", "BKNG", "SBUX", "MDLZ", "GILD", "ADI",
	},
	"dow30": {
		"AAPL", "AMGN", "AXP", "BA", "CAT", "CRM", "CSCO", "CVX", "DIS",
		"DOW", "GS", "HD", "HON", "IBM", "INTC", "JNJ", "JPM", "KO",
		"MCD", "MMM", "MRK", "MSFT", "NKE", "PG", "TRV", "UNH", "V",
		"VZ", "WBA", "WMT",
	},
}

// Manager loads presets and watchlists.
type Manager struct {
	dir    string
	custom string
	log    *zap.Logger
}

// NewManager creates a manager reading watchlists from dir; custom is the file backing the "custom" universe.
func NewManager(dir, custom string, log *zap.Logger) *Manager {
	return &Manager{dir: dir, custom: custom, log: log}
}

// Tickers returns the normalized ticker list for a universe name.
func (m *Manager) Tickers(name string) ([]string, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if list, ok := presets[name]; ok {
		return Normalize(list), nil
	}

	path := m.custom
	if name != "custom" {
		path = filepath.Join(m.dir, name+".yaml")
	}
	wl, err := load(path)
	if err != nil {
		return nil, err
	}
	tickers := Normalize(wl.Tickers)
	m.log.Info("watchlist loaded", zap.String("universe", name), zap.String("path", path), zap.Int("tickers", len(tickers)))
	return tickers, nil
}

func load(path string) (*Watchlist, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errors.Newf(errors.ErrCodeInvalidRequest, "watchlist not found: %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("read watchlist: %w", err)
	}
	var wl Watchlist
	if err := yaml.Unmarshal(data, &wl); err != nil {
		return nil, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "parse watchlist %s", path)
	}
	if wl.Name == "" {
		wl.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return &wl, nil
}

// Save writes a watchlist named name into the watchlist directory.
func (m *Manager) Save(name string, tickers []string, description string) (string, error) {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return "", fmt.Errorf("create watchlist dir: %w", err)
	}
	path := filepath.Join(m.dir, strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")+".yaml")
	data, err := yaml.Marshal(Watchlist{Name: name, Description: description, Tickers: Normalize(tickers)})
	if err != nil {
		return "", fmt.Errorf("marshal watchlist: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write watchlist: %w", err)
	}
	m.log.Info("watchlist saved", zap.String("name", name), zap.String("path", path), zap.Int("tickers", len(tickers)))
	return path, nil
}

// List returns presets followed by the watchlists found on disk. Unreadable files are skipped.
func (m *Manager) List() ([]Info, error) {
	names := make([]string, 0, len(presets))
	for n := range presets {
		names = append(names, n)
	}
	sort.Strings(names)

	infos := make([]Info, 0, len(names))
	for _, n := range names {
		infos = append(infos, Info{Name: n, Type: "preset", Count: len(presets[n])})
	}

	paths, err := filepath.Glob(filepath.Join(m.dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	for _, p := range paths {
		wl, err := load(p)
		if err != nil {
			m.log.Warn("skipping watchlist", zap.String("path", p), zap.Error(err))
			continue
		}
		infos = append(infos, Info{
			Name:  strings.TrimSuffix(filepath.Base(p), ".yaml"),
			Type:  "custom",
			Path:  p,
			Count: len(Normalize(wl.Tickers)),
		})
	}
	return infos, nil
}

// Normalize upper-cases, trims and de-duplicates tickers, keeping first-seen order.
func Normalize(tickers []string) []string {
	seen := make(map[string]struct{}, len(tickers))
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
