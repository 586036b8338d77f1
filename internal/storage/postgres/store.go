// Package postgres persists crawl output in Postgres.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

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
	velo DOUBLE PRECISION NOT NULL,
	h_break DOUBLE PRECISION NOT NULL,
	v_break DOUBLE PRECISION NOT NULL,
	count DOUBLE PRECISION NOT NULL,
	strikes DOUBLE PRECISION NOT NULL,
	swings DOUBLE PRECISION NOT NULL,
	whiffs DOUBLE PRECISION NOT NULL,
	bib DOUBLE PRECISION NOT NULL,
	snip DOUBLE PRECISION NOT NULL,
	lwts DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (pitcher_id, game_id, pitch_type_code, type_of_batters)
);`

const selectURLs = `SELECT url, expanded_table_url, pitcher_id, pitcher_name, game_id, day, month, year
FROM urls
WHERE year = $1 AND month = $2
ORDER BY game_id, pitcher_id`

var insert = storage.Insert{
	Prefix:      "INSERT INTO",
	Suffix:      "ON CONFLICT DO NOTHING",
	Placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
}

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	BatchSize       int
}

type pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

// Store implements crawler.Store on a pgx pool.
type Store struct {
	pool      pool
	batchSize int
}

// New connects to Postgres and creates the tables if needed.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, errors.New("store.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s := &Store{pool: p, batchSize: cfg.BatchSize}
	if err := s.EnsureSchema(ctx); err != nil {
		p.Close()
		return nil, err
	}
	return s, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(p pool, batchSize int) (*Store, error) {
	if p == nil {
		return nil, errors.New("pool is required")
	}
	return &Store{pool: p, batchSize: batchSize}, nil
}

// EnsureSchema creates the urls and full_pitches tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
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
	rows, err := s.pool.Query(ctx, selectURLs, year, month)
	if err != nil {
		return nil, fmt.Errorf("select urls: %w", err)
	}
	defer rows.Close()

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

// Close releases the underlying pool resources.
func (s *Store) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

func insertAll[T any](
	ctx context.Context,
	s *Store,
	table string,
	columns []string,
	items []T,
	args func(T) []any,
) (inserted int64, err error) {
	if len(items) == 0 {
		return 0, nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin %s insert: %w", table, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	for _, chunk := range storage.Chunks(len(items), s.batchSize) {
		batch := items[chunk[0]:chunk[1]]
		values := make([]any, 0, len(batch)*len(columns))
		for _, item := range batch {
			values = append(values, args(item)...)
		}
		tag, err := tx.Exec(ctx, insert.Statement(table, columns, len(batch)), values...)
		if err != nil {
			return 0, fmt.Errorf("insert %s: %w", table, err)
		}
		inserted += tag.RowsAffected()
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit %s insert: %w", table, err)
	}
	committed = true
	return inserted, nil
}
