// Package extract turns fetched pitch f/x pages into game ids, pitchers and
// pitch statistic rows.
package extract

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/pitch-ingest/internal/crawler"
)

// Markers found in the first cell of the stat table.
const (
	markerMLBAM     = "Automatic MLBAM Gameday Algorithm"
	markerPitchInfo = "PITCH INFO"
)

// statCells is the number of cells a data row must carry.
const statCells = 11

// Parse builds a queryable document from a page body.
func Parse(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// GameIDs returns the trimmed option values of the game select control in
// document order, skipping blank values. A page without the control has no games.
func GameIDs(doc *goquery.Document) []string {
	var ids []string
	doc.Find(`select[name="game"]`).First().Find("option").Each(func(_ int, s *goquery.Selection) {
		if v, ok := s.Attr("value"); ok && strings.TrimSpace(v) != "" {
			ids = append(ids, strings.TrimSpace(v))
		}
	})
	return ids
}

// Pitchers returns the entries of the pitchSel control. The option value is the
// pitcher id and the display text yields the name.
func Pitchers(doc *goquery.Document) []crawler.Pitcher {
	var pitchers []crawler.Pitcher
	doc.Find(`select[name="pitchSel"]`).First().Find("option").Each(func(_ int, s *goquery.Selection) {
		id, ok := s.Attr("value")
		id = strings.TrimSpace(id)
		if !ok || id == "" {
			return
		}
		pitchers = append(pitchers, crawler.Pitcher{ID: id, Name: PitcherName(s.Text())})
	})
	return pitchers
}

// PitcherName extracts the name from an option label such as "Smith, John - NYY"
// or "123 - John Smith".
func PitcherName(label string) string {
	parts := strings.SplitN(label, "-", 3)
	first := strings.TrimSpace(parts[0])
	// Labels that lead with the numeric player id carry the name after it.
	if len(parts) > 1 && isDigits(first) {
		return strings.TrimSpace(parts[1])
	}
	return first
}

// DataSourceOf classifies the header text of a stat table.
func DataSourceOf(header string) crawler.DataSource {
	switch {
	case strings.Contains(header, markerMLBAM):
		return crawler.DataSourceMLBAM
	case strings.Contains(header, markerPitchInfo):
		return crawler.DataSourcePitchInfo
	default:
		return crawler.DataSourceUnknown
	}
}

// PitchRows parses the first table of a split page. The first two rows are
// headers and the last row is a footer. Rows that cannot be parsed are dropped
// and reported as *crawler.ExtractionError values; the remaining rows are kept.
func PitchRows(doc *goquery.Document, key crawler.SplitKey) ([]crawler.PitchStat, []error) {
	if !key.Side.Valid() {
		return nil, []error{&crawler.ExtractionError{URL: key.URL, Row: -1, Err: crawler.ErrBatterSide}}
	}
	table := doc.Find("table").First()
	if table.Length() == 0 {
		return nil, []error{&crawler.ExtractionError{URL: key.URL, Row: -1, Err: crawler.ErrNoTable}}
	}
	rows := table.Find("tr")
	if rows.Length() == 0 {
		return nil, []error{&crawler.ExtractionError{URL: key.URL, Row: -1, Err: crawler.ErrNoTable}}
	}
	source := DataSourceOf(rows.First().Find("td").First().Text())

	var (
		stats []crawler.PitchStat
		errs  []error
	)
	for i := 2; i < rows.Length()-1; i++ {
		cells := cellTexts(rows.Eq(i))
		stat, err := parseRow(cells)
		if err != nil {
			errs = append(errs, &crawler.ExtractionError{URL: key.URL, Row: i, Err: err})
			continue
		}
		stat.PitcherID = key.PitcherID
		stat.GameID = key.GameID
		stat.BatterSide = key.Side
		stat.DataSource = source
		stats = append(stats, stat)
	}
	return stats, errs
}

func cellTexts(row *goquery.Selection) []string {
	cells := row.Find("td")
	out := make([]string, 0, cells.Length())
	cells.Each(func(_ int, s *goquery.Selection) {
		out = append(out, s.Text())
	})
	return out
}

func parseRow(cells []string) (crawler.PitchStat, error) {
	if len(cells) < statCells {
		return crawler.PitchStat{}, fmt.Errorf("%w: got %d of %d", crawler.ErrMissingCell, len(cells), statCells)
	}
	code, desc, err := pitchType(cells[0])
	if err != nil {
		return crawler.PitchStat{}, err
	}

	p := &rowParser{}
	stat := crawler.PitchStat{
		PitchTypeCode: code,
		PitchTypeDesc: desc,
		Velo:          p.count("velo", before(cells[1], "(")),
		HBreak:        p.signed("h_break", cells[2]),
		VBreak:        p.signed("v_break", cells[3]),
		Count:         p.count("count", cells[4]),
		Strikes:       p.count("strikes", before(cells[5], "/")),
		Swings:        p.count("swings", before(cells[6], "/")),
		Whiffs:        p.count("whiffs", before(cells[7], "/")),
		BIB:           p.count("bib", before(cells[8], "(")),
		Snip:          p.count("snip", before(cells[9], "/")),
		LWTS:          p.signed("lwts", cells[10]),
	}
	if p.err != nil {
		return crawler.PitchStat{}, p.err
	}
	return stat, nil
}

// pitchType splits "FF (4-Seam Fastball)" into its code and description.
func pitchType(cell string) (string, string, error) {
	parts := strings.Split(cell, "(")
	if len(parts) < 2 {
		return "", "", fmt.Errorf("%w: pitch type %q", crawler.ErrMalformedCell, strings.TrimSpace(cell))
	}
	code := strings.TrimSpace(parts[0])
	if code == "" {
		return "", "", fmt.Errorf("%w: empty pitch type code", crawler.ErrMalformedCell)
	}
	desc := strings.TrimSpace(strings.ReplaceAll(parts[1], ")", ""))
	return code, desc, nil
}

// rowParser keeps the first numeric failure of a row.
type rowParser struct {
	err error
}

func (p *rowParser) signed(field, text string) float64 {
	if p.err != nil {
		return 0
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		p.err = fmt.Errorf("%w: %s %q", crawler.ErrMalformedCell, field, strings.TrimSpace(text))
		return 0
	}
	return v
}

func (p *rowParser) count(field, text string) float64 {
	v := p.signed(field, text)
	if p.err == nil && v < 0 {
		p.err = fmt.Errorf("%w: %s %v", crawler.ErrNegativeValue, field, v)
	}
	return v
}

func before(s, sep string) string {
	head, _, _ := strings.Cut(s, sep)
	return strings.TrimSpace(head)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
