package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/pitch-ingest/internal/crawler"
	"github.com/JakeFAU/pitch-ingest/internal/storage"
)

func sampleURLs() []crawler.URLRecord {
	return []crawler.URLRecord{
		{URL: "u1", ExpandedURL: "e1", PitcherID: "p1", PitcherName: "Harvey, Matt", GameID: "g1", Day: "7", Month: "4", Year: "2016"},
		{URL: "u2", ExpandedURL: "e2", PitcherID: "p2", PitcherName: "Familia, Jeurys", GameID: "g1", Day: "7", Month: "4", Year: "2016"},
		{URL: "u3", ExpandedURL: "e3", PitcherID: "p3", PitcherName: "Colon, Bartolo", GameID: "g2", Day: "8", Month: "4", Year: "2016"},
	}
}

func urlArgs(records []crawler.URLRecord) []any {
	var out []any
	for _, rec := range records {
		out = append(out, storage.URLArgs(rec)...)
	}
	return out
}

func TestInsertURLsChunksInOneTransaction(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, 2)
	require.NoError(t, err)
	records := sampleURLs()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO urls \(url, expanded_table_url, .*\) VALUES \(\$1, .*\), \(\$9, .*\) ON CONFLICT DO NOTHING`).
		WithArgs(urlArgs(records[:2])...).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectExec(`INSERT INTO urls .* VALUES \(\$1, .*\$8\) ON CONFLICT DO NOTHING`).
		WithArgs(urlArgs(records[2:])...).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectCommit()

	inserted, err := store.InsertURLs(context.Background(), records)
	require.NoError(t, err)
	assert.Equal(t, int64(2), inserted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertPitchStatsRollsBackOnError(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, 0)
	require.NoError(t, err)
	stat := crawler.PitchStat{
		PitcherID: "p1", GameID: "g1", BatterSide: crawler.BatterSideLeft, DataSource: crawler.DataSourceMLBAM,
		PitchTypeCode: "FF", PitchTypeDesc: "4-Seam Fastball", Velo: 95.2, HBreak: 3.1, VBreak: -8.4, Count: 42,
		Strikes: 30, Swings: 25, Whiffs: 10, BIB: 5, Snip: 2, LWTS: 1.23,
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO full_pitches .* ON CONFLICT DO NOTHING`).
		WithArgs(storage.PitchArgs(stat)...).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err = store.InsertPitchStats(context.Background(), []crawler.PitchStat{stat})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert full_pitches")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertEmptyBatchIsNoop(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, 0)
	require.NoError(t, err)
	inserted, err := store.InsertURLs(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, inserted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSelectURLs(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, 0)
	require.NoError(t, err)
	want := sampleURLs()[:2]

	rows := mock.NewRows(storage.URLColumns)
	for _, rec := range want {
		rows.AddRow(storage.URLArgs(rec)...)
	}
	mock.ExpectQuery(`SELECT url, expanded_table_url, .* FROM urls WHERE year = \$1 AND month = \$2`).
		WithArgs("2016", "4").
		WillReturnRows(rows)

	got, err := store.SelectURLs(context.Background(), "2016", "4")
	require.NoError(t, err)
	assert.Equal(t, want, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, 0)
	require.NoError(t, err)
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS urls`).WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewRequiresDSN(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{})
	require.Error(t, err)
	_, err = NewWithPool(nil, 0)
	require.Error(t, err)
}
