package crawler

import "fmt"

// Default endpoints of the pitch f/x tool.
const (
	DefaultBaseURL         = "http://www.brooksbaseball.net/pfxVB/pfx.php"
	DefaultExpandedBaseURL = "http://www.brooksbaseball.net/pfxVB/tabdel_expanded.php"
)

// Handedness split query values appended to detail URLs.
const (
	splitParamLeft  = "&sp_type=2"
	splitParamRight = "&sp_type=3"
)

// URLBuilder formats the query-string URLs of the crawled site. Components are
// inserted verbatim; malformed input yields a malformed URL that fails later
// when the fetched page is parsed.
type URLBuilder struct {
	BaseURL         string
	ExpandedBaseURL string
}

// NewURLBuilder returns a builder, falling back to the default endpoints.
func NewURLBuilder(baseURL, expandedBaseURL string) URLBuilder {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if expandedBaseURL == "" {
		expandedBaseURL = DefaultExpandedBaseURL
	}
	return URLBuilder{BaseURL: baseURL, ExpandedBaseURL: expandedBaseURL}
}

// SplitURL is a detail URL narrowed to one batter handedness.
type SplitURL struct {
	URL  string
	Side BatterSide
}

// GameListURL returns the page listing the games of a day.
func (b URLBuilder) GameListURL(d DateUnit) string {
	return fmt.Sprintf("%s?month=%s&day=%s&year=%s&prevDate=%s&league=mlb",
		b.BaseURL, d.Month, d.Day, d.Year, prevDate(d))
}

// PitcherListURL returns the page listing the pitchers of a game.
func (b URLBuilder) PitcherListURL(d DateUnit, gameID string) string {
	return b.GameListURL(d) + "&game=" + gameID
}

// DetailURL returns the stat page of one pitcher in one game.
func (b URLBuilder) DetailURL(d DateUnit, gameID, pitcherID string) string {
	return fmt.Sprintf("%s?month=%s&day=%s&year=%s&game=%s&pitchSel=%s&prevDate=%s&prevGame=%s&league=mlb",
		b.BaseURL, d.Month, d.Day, d.Year, gameID, pitcherID, prevDate(d), gameID)
}

// ExpandedURL returns the tab-delimited expanded table of one appearance.
func (b URLBuilder) ExpandedURL(gameID, pitcherID string) string {
	return fmt.Sprintf("%s?pitchSel=%s&game=%s&s_type=&h_size=500&v_size=700",
		b.ExpandedBaseURL, pitcherID, gameID)
}

// Record assembles the URLRecord of a pitcher appearance.
func (b URLBuilder) Record(d DateUnit, gameID string, p Pitcher) URLRecord {
	return URLRecord{
		URL:         b.DetailURL(d, gameID, p.ID),
		ExpandedURL: b.ExpandedURL(gameID, p.ID),
		PitcherID:   p.ID,
		PitcherName: p.Name,
		GameID:      gameID,
		Day:         d.Day,
		Month:       d.Month,
		Year:        d.Year,
	}
}

// SplitURLs returns the left- and right-handed batter variants of a detail URL.
func SplitURLs(detailURL string) [2]SplitURL {
	return [2]SplitURL{
		{URL: detailURL + splitParamLeft, Side: BatterSideLeft},
		{URL: detailURL + splitParamRight, Side: BatterSideRight},
	}
}

// DateUnits lists the given days of one month.
func DateUnits(year, month string, days []string) []DateUnit {
	out := make([]DateUnit, 0, len(days))
	for _, day := range days {
		out = append(out, DateUnit{Year: year, Month: month, Day: day})
	}
	return out
}

func prevDate(d DateUnit) string {
	return d.Month + d.Day
}
