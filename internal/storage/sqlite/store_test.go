package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/pitch-ingest/internal/crawler"
)

func openTemp(t *testing.T, batchSize int) *Store {
	t.Helper()
	s, err := Open(context.Background(), Config{
		Path:      filepath.Join(t.TempDir(), "db", "pitches.db"),
		BatchSize: batchSize,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func aprilURLs(n int) []crawler.URLRecord {
	out := make([]crawler.URLRecord, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, crawler.URLRecord{
			URL:         fmt.Sprintf("http://pfx.test/pfx.php?pitchSel=p%d", i),
			ExpandedURL: fmt.Sprintf("http://pfx.test/tabdel_expanded.php?pitchSel=p%d", i),
			PitcherID:   fmt.Sprintf("p%03d", i),
			PitcherName: fmt.Sprintf("Pitcher %d", i),
			GameID:      "g1",
			Day:         "7",
			Month:       "4",
			Year:        "2016",
		})
	}
	return out
}

func TestInsertURLsTwiceKeepsRowCount(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openTemp(t, 3)
	batch := aprilURLs(7)

	first, err := s.InsertURLs(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, int64(7), first)
	afterFirst, err := s.CountRows(ctx, crawler.TableURLs)
	require.NoError(t, err)

	second, err := s.InsertURLs(ctx, batch)
	require.NoError(t, err)
	assert.Zero(t, second)
	afterSecond, err := s.CountRows(ctx, crawler.TableURLs)
	require.NoError(t, err)
	assert.Equal(t, afterFirst, afterSecond)
}

func TestSelectURLsFiltersByMonth(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openTemp(t, 0)
	batch := aprilURLs(2)
	may := batch[1]
	may.PitcherID = "p999"
	may.Month = "5"
	_, err := s.InsertURLs(ctx, append(batch, may))
	require.NoError(t, err)

	got, err := s.SelectURLs(ctx, "2016", "4")
	require.NoError(t, err)
	assert.Equal(t, batch, got)

	none, err := s.SelectURLs(ctx, "2019", "4")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestInsertPitchStatsIgnoresKeyCollisions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openTemp(t, 0)
	ff := crawler.PitchStat{
		PitcherID: "p1", GameID: "g1", BatterSide: crawler.BatterSideLeft, DataSource: crawler.DataSourceMLBAM,
		PitchTypeCode: "FF", PitchTypeDesc: "4-Seam Fastball", Velo: 95.2, HBreak: 3.1, VBreak: -8.4,
		Count: 42, Strikes: 30, Swings: 25, Whiffs: 10, BIB: 5, Snip: 2, LWTS: 1.23,
	}
	sameKeyOtherSource := ff
	sameKeyOtherSource.DataSource = crawler.DataSourcePitchInfo
	rhb := ff
	rhb.BatterSide = crawler.BatterSideRight

	n, err := s.InsertPitchStats(ctx, []crawler.PitchStat{ff, sameKeyOtherSource, rhb})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	count, err := s.CountRows(ctx, crawler.TableFullPitches)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestCountRowsRejectsUnknownTable(t *testing.T) {
	t.Parallel()

	_, err := openTemp(t, 0).CountRows(context.Background(), "sqlite_master")
	require.Error(t, err)
}

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), Config{})
	require.Error(t, err)
}
