package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketFortress/internal/wheel"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	watchlists := filepath.Join(dir, "watchlists")
	require.NoError(t, os.MkdirAll(watchlists, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(watchlists, "test.yaml"), []byte("name: test\ntickers: [aapl, msft]\n"), 0o644))

	cfg := fmt.Sprintf(`data_source:
  provider: mock
cache:
  path: %[1]s/cache.db
scanner:
  batch_delay: 1ms
universe:
  default: test
  watchlist_dir: %[2]s
wheel:
  state_file: %[1]s/wheel.json
  symbols: [AAPL]
database:
  sqlite_path: %[1]s/fortress.db
log:
  level: error
`, dir, watchlists)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return path
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		flagConfig, flagUniverse, flagMinStrength = "", "", 0
		flagClearSymbol, flagClearInterval = "", ""
	})
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestScanCommand(t *testing.T) {
	cfg := writeConfig(t)

	out := execute(t, "scan", "--config", cfg)
	assert.Contains(t, out, "2 symbols, ok 2")
	assert.Contains(t, out, "AAPL")
	assert.Contains(t, out, "MSFT")

	out = execute(t, "cache", "stats", "--config", cfg)
	assert.Contains(t, out, "Entries: 2 (bars 2, option chains 0)")

	out = execute(t, "cache", "clear", "--symbol", "aapl", "--config", cfg)
	assert.Contains(t, out, "Removed 1 entry.")
}

func TestWheelCommand(t *testing.T) {
	cfg := writeConfig(t)

	out := execute(t, "wheel", "--config", cfg)
	assert.Contains(t, out, "AAPL")
	assert.Contains(t, out, "no_action")

	out = execute(t, "wheel", "positions", "--config", cfg)
	assert.Contains(t, out, "No positions.")
}

func TestUniverseList(t *testing.T) {
	cfg := writeConfig(t)
	out := execute(t, "universe", "list", "--config", cfg)
	assert.Contains(t, out, "sp500")
	assert.Contains(t, out, "test")
}

func TestParseEvent(t *testing.T) {
	tests := []struct {
		in   string
		want wheel.EventKind
		err  bool
	}{
		{"assigned", wheel.EventAssigned, false},
		{"EXPIRED", wheel.EventExpired, false},
		{"called-away", wheel.EventCalledAway, false},
		{"rolled", "", true},
	}
	for _, tt := range tests {
		got, err := parseEvent(tt.in)
		if tt.err {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "2.0 KB", formatBytes(2048))
	assert.Equal(t, "1.5 MB", formatBytes(3<<19))
}
