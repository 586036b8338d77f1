// Package crawler defines core types shared across subsystems.
package crawler

import (
	"net/http"
	"time"
)

// BatterSide identifies the handedness split a stat row belongs to.
type BatterSide string

// Batter handedness values persisted in full_pitches.type_of_batters.
const (
	BatterSideLeft  BatterSide = "LHB"
	BatterSideRight BatterSide = "RHB"
)

// Valid reports whether s is one of the two known splits.
func (s BatterSide) Valid() bool {
	return s == BatterSideLeft || s == BatterSideRight
}

// DataSource identifies which classification produced a stat table.
type DataSource string

// Data source values persisted in full_pitches.type_of_data.
const (
	DataSourceMLBAM     DataSource = "mlb_am"
	DataSourcePitchInfo DataSource = "pitch_info"
	DataSourceUnknown   DataSource = "NA"
)

// Table names reported in batch events and metrics.
const (
	TableURLs        = "urls"
	TableFullPitches = "full_pitches"
)

// DateUnit is one calendar cell of the crawl range. Values are kept as the
// strings used in query parameters; no calendar validation happens here.
type DateUnit struct {
	Year  string `json:"year"`
	Month string `json:"month"`
	Day   string `json:"day"`
}

// Pitcher is one entry of a game's pitcher select control.
type Pitcher struct {
	ID   string
	Name string
}

// URLRecord is one crawlable pitcher appearance. Natural key: (PitcherID, GameID).
type URLRecord struct {
	URL         string `json:"url" db:"url"`
	ExpandedURL string `json:"expanded_table_url" db:"expanded_table_url"`
	PitcherID   string `json:"pitcher_id" db:"pitcher_id"`
	PitcherName string `json:"pitcher_name" db:"pitcher_name"`
	GameID      string `json:"game_id" db:"game_id"`
	Day         string `json:"day" db:"day"`
	Month       string `json:"month" db:"month"`
	Year        string `json:"year" db:"year"`
}

// Key returns the natural key of the record.
func (r URLRecord) Key() URLKey {
	return URLKey{PitcherID: r.PitcherID, GameID: r.GameID}
}

// URLKey is the natural key of the urls relation.
type URLKey struct {
	PitcherID string
	GameID    string
}

// PitchStat is one pitch-type row of a handedness split table.
// Natural key: (PitcherID, GameID, PitchTypeCode, BatterSide).
type PitchStat struct {
	PitcherID     string     `json:"pitcher_id" db:"pitcher_id"`
	GameID        string     `json:"game_id" db:"game_id"`
	BatterSide    BatterSide `json:"type_of_batters" db:"type_of_batters"`
	DataSource    DataSource `json:"type_of_data" db:"type_of_data"`
	PitchTypeCode string     `json:"pitch_type_code" db:"pitch_type_code"`
	PitchTypeDesc string     `json:"pitch_type_desc" db:"pitch_type_desc"`
	Velo          float64    `json:"velo" db:"velo"`
	HBreak        float64    `json:"h_break" db:"h_break"`
	VBreak        float64    `json:"v_break" db:"v_break"`
	Count         float64    `json:"count" db:"count"`
	Strikes       float64    `json:"strikes" db:"strikes"`
	Swings        float64    `json:"swings" db:"swings"`
	Whiffs        float64    `json:"whiffs" db:"whiffs"`
	BIB           float64    `json:"bib" db:"bib"`
	Snip          float64    `json:"snip" db:"snip"`
	LWTS          float64    `json:"lwts" db:"lwts"`
}

// Key returns the natural key of the row.
func (p PitchStat) Key() PitchKey {
	return PitchKey{
		PitcherID:     p.PitcherID,
		GameID:        p.GameID,
		PitchTypeCode: p.PitchTypeCode,
		BatterSide:    p.BatterSide,
	}
}

// PitchKey is the natural key of the full_pitches relation.
type PitchKey struct {
	PitcherID     string
	GameID        string
	PitchTypeCode string
	BatterSide    BatterSide
}

// SplitKey identifies the split page a set of stat rows was parsed from.
type SplitKey struct {
	PitcherID string
	GameID    string
	Side      BatterSide
	URL       string
}

// Page is the raw result of a successful fetch.
type Page struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// BatchEvent is published after a month's batch has been written.
type BatchEvent struct {
	RunID    string    `json:"run_id"`
	Table    string    `json:"table"`
	Year     string    `json:"year"`
	Month    string    `json:"month"`
	Rows     int       `json:"rows"`
	Inserted int64     `json:"inserted"`
	At       time.Time `json:"at"`
}

// Attributes returns message attributes that let subscribers filter events
// without decoding the payload.
func (e BatchEvent) Attributes() map[string]string {
	return map[string]string{
		"run_id": e.RunID,
		"table":  e.Table,
		"year":   e.Year,
		"month":  e.Month,
	}
}
