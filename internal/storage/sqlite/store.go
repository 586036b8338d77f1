// Package sqlite persists crawl output in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/JakeFAU/pitch-ingest/internal/crawler"
	"github.com/JakeFAU/pitch-ingest/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS urls (
	url TEXT NOT NULL,
	expanded_table_url TEXT NOT NULL,
	pitcher_id TEXT NOT NULL,
	pitcher_name TEXT NOT NULL,
	game_id TEXT NOT NULL,
	day TEXT NOT NULL,
	month TEXT NOT NULL,
	year TEXT NOT NULL,
	PRIMARY KEY (pitcher_id, game_id)
);
CREATE INDEX IF NOT EXISTS urls_year_month_idx ON urls (year, month);
CREATE TABLE IF NOT EXISTS full_pitches (
	pitcher_id TEXT NOT NULL,
	game_id TEXT NOT NULL,
	type_of_batters TEXT NOT NULL,
	type_of_data TEXT NOT NULL,
	pitch_type_code TEXT NOT NULL,
	pitch_type_desc TEXT NOT NULL,
	velo REAL NOT NULL,
	h_break REAL NOT NULL,
	v_break REAL NOT NULL,
	count REAL NOT NULL,
	strikes REAL NOT NULL,
	swings REAL NOT NULL,
	whiffs REAL NOT NULL,
	bib REAL NOT NULL,
	snip REAL NOT NULL,
	lwts REAL NOT NULL,
	PRIMARY KEY (pitcher_id, game_id, pitch_type_code, type_of_batters)
);`

const selectURLs = `SELECT url, expanded_table_url, pitcher_id, pitcher_name, game_id, day, month, year
FROM urls
WHERE year = ? AND month = ?
ORDER BY game_id, pitcher_id`

var insert = storage.Insert{
	Prefix:      "INSERT OR IGNORE INTO",
	Placeholder: func(int) string { return "?" },
}

// Config locates the database file.
type Config struct {
	Path      string
	BatchSize int
}

// Store implements crawler.Store on SQLite.
type Store struct {
	db        *sql.DB
	batchSize int
}

// Open opens or creates the database at cfg.Path and creates the tables.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, errors.New("store.sqlite_path is required")
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.Path+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One writer; month batches are written sequentially anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return &Store{db: db, batchSize: cfg.BatchSize}, nil
}

// InsertURLs writes records in one transaction, ignoring existing keys.
func (s *Store) InsertURLs(ctx context.Context, records []crawler.URLRecord) (int64, error) {
	return insertAll(ctx, s, crawler.TableURLs, storage.URLColumns, records, storage.URLArgs)
}

// InsertPitchStats writes rows in one transaction, ignoring existing keys.
func (s *Store) InsertPitchStats(ctx context.Context, stats []crawler.PitchStat) (int64, error) {
	return insertAll(ctx, s, crawler.TableFullPitches, storage.PitchColumns, stats, storage.PitchArgs)
}

// SelectURLs returns the urls rows of one month.
func (s *Store) SelectURLs(ctx context.Context, year, month string) ([]crawler.URLRecord, error) {
	rows, err := s.db.QueryContext(ctx, selectURLs, year, month)
	if err != nil {
		return nil, fmt.Errorf("select urls: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []crawler.URLRecord
	for rows.Next() {
		var rec crawler.URLRecord
		if err := rows.Scan(
			&rec.URL,
			&rec.ExpandedURL,
			&rec.PitcherID,
			&rec.PitcherName,
			&rec.GameID,
			&rec.Day,
			&rec.Month,
			&rec.Year,
		); err != nil {
			return nil, fmt.Errorf("scan url row: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate url rows: %w", err)
	}
	return out, nil
}

// CountRows returns the number of rows in table.
func (s *Store) CountRows(ctx context.Context, table string) (int64, error) {
	if table != crawler.TableURLs && table != crawler.TableFullPitches {
		return 0, fmt.Errorf("unknown table %q", table)
	}
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

func insertAll[T any](
	ctx context.Context,
	s *Store,
	table string,
	columns []string,
	items []T,
	args func(T) []any,
) (int64, error) {
	if len(items) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin %s insert: %w", table, err)
	}
	defer func() { _ = tx.Rollback() }()

	var inserted int64
	for _, chunk := range storage.Chunks(len(items), s.batchSize) {
		batch := items[chunk[0]:chunk[1]]
		values := make([]any, 0, len(batch)*len(columns))
		for _, item := range batch {
			values = append(values, args(item)...)
		}
		res, err := tx.ExecContext(ctx, insert.Statement(table, columns, len(batch)), values...)
		if err != nil {
			return 0, fmt.Errorf("insert %s: %w", table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("rows affected %s: %w", table, err)
		}
		inserted += n
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit %s insert: %w", table, err)
	}
	return inserted, nil
}
