package recorder

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"MarketFortress/internal/model"
)

// SQLiteRecorder persists history to a SQLite database.
type SQLiteRecorder struct {
	db  *sql.DB
	mu  sync.Mutex
	log *zap.Logger
}

// NewSQLiteRecorder opens (or creates) the database and runs migrations.
func NewSQLiteRecorder(dbPath string, log *zap.Logger) (*SQLiteRecorder, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL so dashboards can read while scans write.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, log: log}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info("sqlite recorder opened", zap.String("path", dbPath))
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS scan_runs (
			id          TEXT PRIMARY KEY,
			universe    TEXT,
			interval    TEXT,
			started_at  INTEGER NOT NULL,
			finished_at INTEGER NOT NULL,
			symbols     INTEGER,
			ok          INTEGER,
			stale       INTEGER,
			failed      INTEGER,
			cache_hits  INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scan_runs_started ON scan_runs(started_at)`,

		`CREATE TABLE IF NOT EXISTS scan_results (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id     TEXT NOT NULL,
			symbol     TEXT NOT NULL,
			status     TEXT NOT NULL,
			cache_hit  INTEGER,
			bars       INTEGER,
			latency_ms INTEGER,
			error      TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scan_results_run ON scan_results(run_id)`,

		`CREATE TABLE IF NOT EXISTS signals (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id      TEXT,
			timestamp   INTEGER NOT NULL,
			symbol      TEXT NOT NULL,
			type        TEXT NOT NULL,
			strength    REAL,
			rsi         REAL,
			stoch_k     REAL,
			stoch_d     REAL,
			macd        REAL,
			macd_signal REAL,
			macd_hist   REAL,
			close       REAL,
			reason      TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_signals_symbol_ts ON signals(symbol, timestamp)`,

		`CREATE TABLE IF NOT EXISTS wheel_transitions (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp       INTEGER NOT NULL,
			symbol          TEXT NOT NULL,
			action          TEXT NOT NULL,
			from_state      TEXT,
			to_state        TEXT,
			contract        TEXT,
			strike          REAL,
			premium         REAL,
			roi             REAL,
			exit_rule       TEXT,
			realized_profit REAL,
			max_profit      REAL,
			reason          TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_wheel_symbol_ts ON wheel_transitions(symbol, timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// RecordScan writes the run summary and one row per result in a single transaction.
func (r *SQLiteRecorder) RecordScan(run *model.ScanRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts := run.Counts()
	hits := 0
	for _, res := range run.Results {
		if res.CacheHit {
			hits++
		}
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT OR REPLACE INTO scan_runs
		(id, universe, interval, started_at, finished_at, symbols, ok, stale, failed, cache_hits)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		run.ID, run.Universe, string(run.Interval),
		run.StartedAt.Unix(), run.FinishedAt.Unix(), len(run.Results),
		counts[model.StatusOK], counts[model.StatusStale], counts[model.StatusFailed], hits,
	)
	if err != nil {
		return fmt.Errorf("insert scan run: %w", err)
	}

	for _, res := range run.Results {
		_, err := tx.Exec(`INSERT INTO scan_results
			(run_id, symbol, status, cache_hit, bars, latency_ms, error)
			VALUES (?,?,?,?,?,?,?)`,
			run.ID, res.Symbol, string(res.Status), boolInt(res.CacheHit),
			len(res.Bars), res.Latency.Milliseconds(), res.Error(),
		)
		if err != nil {
			return fmt.Errorf("insert scan result %s: %w", res.Symbol, err)
		}
	}
	return tx.Commit()
}

func (r *SQLiteRecorder) RecordSignals(runID string, signals []model.Signal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, s := range signals {
		_, err := tx.Exec(`INSERT INTO signals
			(run_id, timestamp, symbol, type, strength, rsi, stoch_k, stoch_d, macd, macd_signal, macd_hist, close, reason)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
			runID, s.At.Unix(), s.Symbol, string(s.Type), s.Strength,
			s.RSI, s.StochK, s.StochD, s.MACD, s.MACDSignal, s.MACDHist, s.Close, s.Reason,
		)
		if err != nil {
			return fmt.Errorf("insert signal %s: %w", s.Symbol, err)
		}
	}
	return tx.Commit()
}

func (r *SQLiteRecorder) RecordWheelTransition(d *model.WheelDecision) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		contract        string
		strike, premium float64
	)
	if d.Contract != nil {
		contract, strike, premium = d.Contract.Symbol, d.Contract.Strike, d.Contract.Bid
	}

	_, err := r.db.Exec(`INSERT INTO wheel_transitions
		(timestamp, symbol, action, from_state, to_state, contract, strike, premium, roi, exit_rule, realized_profit, max_profit, reason)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		d.At.Unix(), d.Symbol, string(d.Action), string(d.From), string(d.To),
		contract, strike, premium, d.ROI, string(d.Exit),
		d.Position.RealizedProfit, d.Position.MaxProfit, d.Reason,
	)
	return err
}

func (r *SQLiteRecorder) Close() error {
	r.log.Info("closing sqlite recorder")
	return r.db.Close()
}
