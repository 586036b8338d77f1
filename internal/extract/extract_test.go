package extract

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/pitch-ingest/internal/crawler"
)

func loadFixture(t *testing.T, name string) []byte {
	t.Helper()
	body, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return body
}

func TestGameIDs(t *testing.T) {
	t.Parallel()

	doc, err := Parse(loadFixture(t, "game_list.html"))
	require.NoError(t, err)
	assert.Equal(t, []string{"350101", "350102"}, GameIDs(doc))
}

func TestGameIDsAbsentControl(t *testing.T) {
	t.Parallel()

	doc, err := Parse([]byte("<html><body><p>No games scheduled</p></body></html>"))
	require.NoError(t, err)
	assert.Empty(t, GameIDs(doc))
}

func TestPitchers(t *testing.T) {
	t.Parallel()

	doc, err := Parse(loadFixture(t, "pitcher_list.html"))
	require.NoError(t, err)
	assert.Equal(t, []crawler.Pitcher{
		{ID: "453286", Name: "Scherzer, Max"},
		{ID: "123", Name: "John Smith"},
		{ID: "502042", Name: "Gray, Sonny"},
	}, Pitchers(doc))
}

func TestPitchersAbsentControl(t *testing.T) {
	t.Parallel()

	doc, err := Parse(loadFixture(t, "game_list.html"))
	require.NoError(t, err)
	assert.Empty(t, Pitchers(doc))
}

func TestPitcherName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		label string
		want  string
	}{
		{label: "123 - John Smith", want: "John Smith"},
		{label: "Scherzer, Max - WSH", want: "Scherzer, Max"},
		{label: "  Gray, Sonny  ", want: "Gray, Sonny"},
		{label: "123", want: "123"},
		{label: "Smith-Jones, Ann - BOS", want: "Smith"},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			assert.Equal(t, tt.want, PitcherName(tt.label))
		})
	}
}

func TestDataSourceOf(t *testing.T) {
	t.Parallel()

	assert.Equal(t, crawler.DataSourceMLBAM, DataSourceOf("Pitch classifications: Automatic MLBAM Gameday Algorithm"))
	assert.Equal(t, crawler.DataSourcePitchInfo, DataSourceOf("Classifications by PITCH INFO"))
	assert.Equal(t, crawler.DataSourceUnknown, DataSourceOf("Something else"))
}

func TestPitchRows(t *testing.T) {
	t.Parallel()

	doc, err := Parse(loadFixture(t, "split_lhb.html"))
	require.NoError(t, err)
	key := crawler.SplitKey{PitcherID: "453286", GameID: "350101", Side: crawler.BatterSideLeft, URL: "http://example.test/pfx.php&sp_type=2"}

	stats, errs := PitchRows(doc, key)
	require.Len(t, stats, 2)

	want := crawler.PitchStat{
		PitcherID:     "453286",
		GameID:        "350101",
		BatterSide:    crawler.BatterSideLeft,
		DataSource:    crawler.DataSourceMLBAM,
		PitchTypeCode: "FF",
		PitchTypeDesc: "4-Seam Fastball",
		Velo:          95.2,
		HBreak:        3.1,
		VBreak:        -8.4,
		Count:         42,
		Strikes:       30,
		Swings:        25,
		Whiffs:        10,
		BIB:           5,
		Snip:          2,
		LWTS:          1.23,
	}
	if diff := cmp.Diff(want, stats[0], cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("first row mismatch (-want +got):\n%s", diff)
	}

	sl := stats[1]
	assert.Equal(t, "SL", sl.PitchTypeCode)
	assert.InDelta(t, -0.40, sl.LWTS, 1e-9)

	// Changeup lacks "(", curveball has a non-numeric count, sinker is short.
	require.Len(t, errs, 3)
	for _, err := range errs {
		var ee *crawler.ExtractionError
		require.ErrorAs(t, err, &ee)
		assert.Equal(t, key.URL, ee.URL)
	}
	assert.True(t, errors.Is(errs[0], crawler.ErrMalformedCell))
	assert.True(t, errors.Is(errs[1], crawler.ErrMalformedCell))
	assert.True(t, errors.Is(errs[2], crawler.ErrMissingCell))
}

func TestPitchRowsNegativeCountDropped(t *testing.T) {
	t.Parallel()

	html := `<table>
<tr><td>PITCH INFO</td></tr>
<tr><td>header</td></tr>
<tr><td>FF (Fourseam)</td><td>94.0</td><td>1</td><td>1</td><td>-3</td><td>1/2</td><td>1/1</td><td>0/1</td><td>0</td><td>0/0</td><td>0</td></tr>
<tr><td>SI (Sinker)</td><td>92.0</td><td>1</td><td>1</td><td>3</td><td>1/2</td><td>1/1</td><td>0/1</td><td>0</td><td>0/0</td><td>0</td></tr>
<tr><td>footer</td></tr>
</table>`
	doc, err := Parse([]byte(html))
	require.NoError(t, err)

	stats, errs := PitchRows(doc, crawler.SplitKey{PitcherID: "1", GameID: "2", Side: crawler.BatterSideRight})
	require.Len(t, stats, 1)
	assert.Equal(t, "SI", stats[0].PitchTypeCode)
	assert.Equal(t, crawler.DataSourcePitchInfo, stats[0].DataSource)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], crawler.ErrNegativeValue)
}

func TestPitchRowsNoTable(t *testing.T) {
	t.Parallel()

	doc, err := Parse([]byte("<html><body>Error: no data</body></html>"))
	require.NoError(t, err)

	stats, errs := PitchRows(doc, crawler.SplitKey{URL: "u", Side: crawler.BatterSideLeft})
	assert.Empty(t, stats)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], crawler.ErrNoTable)
}

func TestPitchRowsHeaderOnly(t *testing.T) {
	t.Parallel()

	doc, err := Parse([]byte(`<table><tr><td>Automatic MLBAM Gameday Algorithm</td></tr><tr><td>h</td></tr><tr><td>total</td></tr></table>`))
	require.NoError(t, err)

	stats, errs := PitchRows(doc, crawler.SplitKey{Side: crawler.BatterSideLeft})
	assert.Empty(t, stats)
	assert.Empty(t, errs)
}

func TestPitchRowsUnknownBatterSide(t *testing.T) {
	t.Parallel()

	doc, err := Parse(loadFixture(t, "split_lhb.html"))
	require.NoError(t, err)

	stats, errs := PitchRows(doc, crawler.SplitKey{URL: "u", Side: "SHB"})
	assert.Empty(t, stats)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], crawler.ErrBatterSide)
}
