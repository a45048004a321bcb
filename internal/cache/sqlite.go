package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"MarketFortress/internal/errors"
	"MarketFortress/internal/model"
)

// SQLiteStore persists one row per key holding the whole JSON payload.
type SQLiteStore struct {
	readDB  *sql.DB
	writeDB *sql.DB
}

// OpenSQLite opens (or creates) the cache database at dbPath.
func OpenSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}

	writeDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening write db: %w", err)
	}
	writeDB.SetMaxOpenConns(1)

	if _, err := writeDB.Exec("PRAGMA journal_mode=WAL"); err != nil {
		writeDB.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &SQLiteStore{writeDB: writeDB}
	if err := s.init(); err != nil {
		s.Close()
		return nil, err
	}

	readDB, err := sql.Open("sqlite", dbPath+"?mode=ro")
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("opening read db: %w", err)
	}
	s.readDB = readDB
	return s, nil
}

func (s *SQLiteStore) init() error {
	_, err := s.writeDB.Exec(`
		CREATE TABLE IF NOT EXISTS cache_entries (
			symbol      TEXT NOT NULL,
			interval    TEXT NOT NULL,
			kind        TEXT NOT NULL,
			payload     BLOB NOT NULL,
			range_start INTEGER NOT NULL DEFAULT 0,
			range_end   INTEGER NOT NULL DEFAULT 0,
			fetched_at  INTEGER NOT NULL,
			ttl_ns      INTEGER NOT NULL,
			source      TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (symbol, interval)
		);
		CREATE INDEX IF NOT EXISTS idx_cache_fetched ON cache_entries(fetched_at);
	`)
	if err != nil {
		return fmt.Errorf("initializing schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	var errs []error
	if s.readDB != nil {
		errs = append(errs, s.readDB.Close())
	}
	if s.writeDB != nil {
		errs = append(errs, s.writeDB.Close())
	}
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, key Key) (*Entry, error) {
	var (
		kind               string
		payload            []byte
		rangeStart, rangeE int64
		fetchedAt, ttl     int64
		source             string
	)
	err := s.readDB.QueryRowContext(ctx, `
		SELECT kind, payload, range_start, range_end, fetched_at, ttl_ns, source
		FROM cache_entries WHERE symbol = ? AND interval = ?`,
		key.Symbol, key.Interval,
	).Scan(&kind, &payload, &rangeStart, &rangeE, &fetchedAt, &ttl, &source)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading entry %s: %w", key, err)
	}

	e := &Entry{
		Symbol:    key.Symbol,
		Interval:  key.Interval,
		Kind:      Kind(kind),
		Range:     model.DateRange{Start: time.Unix(rangeStart, 0).UTC(), End: time.Unix(rangeE, 0).UTC()},
		FetchedAt: time.Unix(0, fetchedAt).UTC(),
		TTL:       time.Duration(ttl),
		Source:    source,
	}
	switch e.Kind {
	case KindBars:
		err = json.Unmarshal(payload, &e.Bars)
	case KindChain:
		err = json.Unmarshal(payload, &e.Chain)
	}
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeCacheCorruption, err, "decoding entry %s", key)
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *SQLiteStore) Put(ctx context.Context, entry *Entry) error {
	var (
		payload []byte
		err     error
	)
	switch entry.Kind {
	case KindBars:
		payload, err = json.Marshal(entry.Bars)
	case KindChain:
		payload, err = json.Marshal(entry.Chain)
	default:
		return errors.Newf(errors.ErrCodeInvalidRequest, "unknown entry kind %q", entry.Kind)
	}
	if err != nil {
		return fmt.Errorf("encoding entry %s: %w", entry.Key(), err)
	}

	tx, err := s.writeDB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO cache_entries (symbol, interval, kind, payload, range_start, range_end, fetched_at, ttl_ns, source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, interval) DO UPDATE SET
			kind = excluded.kind,
			payload = excluded.payload,
			range_start = excluded.range_start,
			range_end = excluded.range_end,
			fetched_at = excluded.fetched_at,
			ttl_ns = excluded.ttl_ns,
			source = excluded.source`,
		entry.Symbol, entry.Interval, string(entry.Kind), payload,
		entry.Range.Start.Unix(), entry.Range.End.Unix(),
		entry.FetchedAt.UnixNano(), int64(entry.TTL), entry.Source,
	)
	if err != nil {
		return fmt.Errorf("upserting entry %s: %w", entry.Key(), err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) Delete(ctx context.Context, key Key) error {
	_, err := s.writeDB.ExecContext(ctx, `DELETE FROM cache_entries WHERE symbol = ? AND interval = ?`, key.Symbol, key.Interval)
	return err
}

func (s *SQLiteStore) Clear(ctx context.Context, filter Filter) (int64, error) {
	query := `DELETE FROM cache_entries WHERE 1 = 1`
	var args []interface{}
	if filter.Symbol != "" {
		query += ` AND symbol = ?`
		args = append(args, filter.Symbol)
	}
	switch {
	case filter.Interval == chainPrefix:
		query += ` AND interval LIKE ?`
		args = append(args, chainPrefix+":%")
	case filter.Interval != "":
		query += ` AND interval = ?`
		args = append(args, filter.Interval)
	}

	res, err := s.writeDB.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("clearing cache: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	var (
		st             Stats
		oldest, newest sql.NullInt64
	)
	err := s.readDB.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(kind = 'bars'), 0),
			COALESCE(SUM(kind = 'chain'), 0),
			COUNT(DISTINCT symbol),
			COALESCE(SUM(LENGTH(payload)), 0),
			MIN(fetched_at),
			MAX(fetched_at)
		FROM cache_entries`,
	).Scan(&st.Entries, &st.BarEntries, &st.ChainEntries, &st.Symbols, &st.SizeBytes, &oldest, &newest)
	if err != nil {
		return Stats{}, fmt.Errorf("reading cache stats: %w", err)
	}
	if oldest.Valid {
		st.Oldest = time.Unix(0, oldest.Int64).UTC()
	}
	if newest.Valid {
		st.Newest = time.Unix(0, newest.Int64).UTC()
	}
	return st, nil
}
