package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/pitch-ingest/internal/crawler"
)

func urlRecord(game, pitcher, month string) crawler.URLRecord {
	return crawler.URLRecord{
		URL:         "http://example.test/pfx.php?game=" + game + "&pitchSel=" + pitcher,
		PitcherID:   pitcher,
		PitcherName: "Pitcher " + pitcher,
		GameID:      game,
		Day:         "7",
		Month:       month,
		Year:        "2016",
	}
}

func TestStoreInsertURLsIgnoresDuplicates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewStore()
	batch := []crawler.URLRecord{urlRecord("g2", "p1", "4"), urlRecord("g1", "p2", "4"), urlRecord("g1", "p1", "5")}

	n, err := s.InsertURLs(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	changed := urlRecord("g2", "p1", "4")
	changed.PitcherName = "Renamed"
	n, err = s.InsertURLs(ctx, append(batch, changed))
	require.NoError(t, err)
	assert.Zero(t, n)

	april, err := s.SelectURLs(ctx, "2016", "4")
	require.NoError(t, err)
	require.Len(t, april, 2)
	assert.Equal(t, "g1", april[0].GameID)
	assert.Equal(t, "Pitcher p1", april[1].PitcherName)

	urls, _ := s.Counts()
	assert.Equal(t, 3, urls)
}

func TestStoreInsertPitchStatsKey(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewStore()
	base := crawler.PitchStat{PitcherID: "p1", GameID: "g1", PitchTypeCode: "FF", BatterSide: crawler.BatterSideLeft, DataSource: crawler.DataSourceMLBAM}
	other := base
	other.DataSource = crawler.DataSourcePitchInfo
	right := base
	right.BatterSide = crawler.BatterSideRight

	n, err := s.InsertPitchStats(ctx, []crawler.PitchStat{base, other, right})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	stats := s.PitchStats()
	require.Len(t, stats, 2)
	for _, st := range stats {
		assert.Equal(t, crawler.DataSourceMLBAM, st.DataSource)
	}
}

func TestStoreClosed(t *testing.T) {
	t.Parallel()

	s := NewStore()
	require.NoError(t, s.Close())
	_, err := s.InsertURLs(context.Background(), nil)
	require.Error(t, err)
	_, err = s.SelectURLs(context.Background(), "2016", "4")
	require.Error(t, err)
}
