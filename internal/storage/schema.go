// Package storage holds the relational layout shared by the SQL stores.
package storage

import (
	"strings"

	"github.com/JakeFAU/pitch-ingest/internal/crawler"
)

// DefaultBatchSize is the number of rows written per INSERT statement.
const DefaultBatchSize = 500

// URLColumns lists the urls columns in insert and scan order.
var URLColumns = []string{
	"url",
	"expanded_table_url",
	"pitcher_id",
	"pitcher_name",
	"game_id",
	"day",
	"month",
	"year",
}

// PitchColumns lists the full_pitches columns in insert order.
var PitchColumns = []string{
	"pitcher_id",
	"game_id",
	"type_of_batters",
	"type_of_data",
	"pitch_type_code",
	"pitch_type_desc",
	"velo",
	"h_break",
	"v_break",
	"count",
	"strikes",
	"swings",
	"whiffs",
	"bib",
	"snip",
	"lwts",
}

// URLArgs returns the insert arguments of rec in URLColumns order.
func URLArgs(rec crawler.URLRecord) []any {
	return []any{
		rec.URL,
		rec.ExpandedURL,
		rec.PitcherID,
		rec.PitcherName,
		rec.GameID,
		rec.Day,
		rec.Month,
		rec.Year,
	}
}

// PitchArgs returns the insert arguments of st in PitchColumns order.
func PitchArgs(st crawler.PitchStat) []any {
	return []any{
		st.PitcherID,
		st.GameID,
		string(st.BatterSide),
		string(st.DataSource),
		st.PitchTypeCode,
		st.PitchTypeDesc,
		st.Velo,
		st.HBreak,
		st.VBreak,
		st.Count,
		st.Strikes,
		st.Swings,
		st.Whiffs,
		st.BIB,
		st.Snip,
		st.LWTS,
	}
}

// Insert describes one dialect's multi-row insert.
type Insert struct {
	// Prefix precedes the table name, e.g. "INSERT INTO" or "INSERT OR IGNORE INTO".
	Prefix string
	// Suffix follows the VALUES list, e.g. "ON CONFLICT DO NOTHING".
	Suffix string
	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder func(n int) string
}

// Statement renders an insert of rows rows into table.
func (in Insert) Statement(table string, columns []string, rows int) string {
	var b strings.Builder
	b.WriteString(in.Prefix)
	b.WriteByte(' ')
	b.WriteString(table)
	b.WriteString(" (")
	b.WriteString(strings.Join(columns, ", "))
	b.WriteString(") VALUES ")
	n := 1
	for r := 0; r < rows; r++ {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for c := range columns {
			if c > 0 {
				b.WriteString(", ")
			}
			b.WriteString(in.Placeholder(n))
			n++
		}
		b.WriteByte(')')
	}
	if in.Suffix != "" {
		b.WriteByte(' ')
		b.WriteString(in.Suffix)
	}
	return b.String()
}

// Chunks splits n items into [start, end) ranges of at most size.
func Chunks(n, size int) [][2]int {
	if size < 1 {
		size = DefaultBatchSize
	}
	var out [][2]int
	for start := 0; start < n; start += size {
		end := min(start+size, n)
		out = append(out, [2]int{start, end})
	}
	return out
}
