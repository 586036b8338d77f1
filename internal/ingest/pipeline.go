// Package ingest drives the two crawl passes: building the urls index from
// the game and pitcher lists, and building full_pitches from the split pages.
package ingest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/pitch-ingest/internal/crawler"
	"github.com/JakeFAU/pitch-ingest/internal/dispatcher"
	"github.com/JakeFAU/pitch-ingest/internal/extract"
	"github.com/JakeFAU/pitch-ingest/internal/id/uuid"
	"github.com/JakeFAU/pitch-ingest/internal/metrics"
)

// Fan-out stages, used as pool names and metric labels.
const (
	StageDays     = "days"
	StageGames    = "games"
	StagePitchers = "pitchers"
	StageRecords  = "records"
	StageSplits   = "splits"
)

// Record kinds reported to the extraction metrics.
const (
	kindGame      = "game"
	kindPitcher   = "pitcher"
	kindPitchStat = "pitch_stat"
)

// Config tunes the pipeline.
type Config struct {
	// Concurrency bounds the top-level fan-out of each month.
	Concurrency int
	// NestedConcurrency bounds each fan-out started inside a top-level worker.
	NestedConcurrency int
	// Topic receives batch events when a publisher is set.
	Topic string
}

// maxRuns bounds the pass history kept for Runs.
const maxRuns = 32

// Summary reports what one pass did.
type Summary struct {
	RunID         string    `json:"run_id"`
	Table         string    `json:"table"`
	Started       time.Time `json:"started"`
	Finished      time.Time `json:"finished"`
	Months        int       `json:"months"`
	Fetched       int64     `json:"fetched"`
	Records       int       `json:"records"`
	Inserted      int64     `json:"inserted"`
	FailedBatches int       `json:"failed_batches"`
}

// Pipeline crawls the site month by month and persists each month's batch.
// A Pipeline runs one pass at a time.
type Pipeline struct {
	fetcher   crawler.Fetcher
	store     crawler.Store
	urls      crawler.URLBuilder
	publisher crawler.Publisher
	ids       crawler.IDGenerator
	cfg       Config
	logger    *zap.Logger
	now       func() time.Time
	fetched   atomic.Int64

	mu   sync.Mutex
	runs []Summary
}

// New constructs a Pipeline. publisher may be nil.
func New(
	fetcher crawler.Fetcher,
	store crawler.Store,
	urls crawler.URLBuilder,
	publisher crawler.Publisher,
	cfg Config,
	logger *zap.Logger,
) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = dispatcher.DefaultSize
	}
	if cfg.NestedConcurrency < 1 {
		cfg.NestedConcurrency = 1
	}
	return &Pipeline{
		fetcher:   fetcher,
		store:     store,
		urls:      urls,
		publisher: publisher,
		ids:       uuid.New(),
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// BuildURLIndex discovers every pitcher appearance for the given range and
// writes one urls batch per (year, month).
func (p *Pipeline) BuildURLIndex(ctx context.Context, years, months, days []string) Summary {
	sum, logger := p.begin(crawler.TableURLs)
	for _, year := range years {
		for _, month := range months {
			if ctx.Err() != nil {
				logger.Warn("run stopped", zap.Error(ctx.Err()))
				return p.finish(sum)
			}
			mlog := logger.With(zap.String("year", year), zap.String("month", month))
			pool := dispatcher.New(StageDays, p.cfg.Concurrency, mlog)
			records := dispatcher.Map(ctx, pool, crawler.DateUnits(year, month, days),
				func(ctx context.Context, d crawler.DateUnit) ([]crawler.URLRecord, error) {
					return p.discoverDay(ctx, d, mlog.With(zap.String("day", d.Day)))
				})

			sum.Months++
			sum.Records += len(records)
			mlog.Info("month discovered", zap.Int("records", len(records)))
			if len(records) == 0 {
				continue
			}
			inserted, err := p.store.InsertURLs(ctx, records)
			p.persisted(ctx, &sum, mlog, crawler.TableURLs, year, month, len(records), inserted, err)
		}
	}
	return p.finish(sum)
}

// BuildPitchIndex reads the stored urls of each (year, month), fetches both
// handedness splits per record and writes one full_pitches batch per month.
func (p *Pipeline) BuildPitchIndex(ctx context.Context, years, months []string) Summary {
	sum, logger := p.begin(crawler.TableFullPitches)
	for _, year := range years {
		for _, month := range months {
			if ctx.Err() != nil {
				logger.Warn("run stopped", zap.Error(ctx.Err()))
				return p.finish(sum)
			}
			mlog := logger.With(zap.String("year", year), zap.String("month", month))
			records, err := p.store.SelectURLs(ctx, year, month)
			if err != nil {
				sum.Months++
				sum.FailedBatches++
				metrics.ObserveBatchFailure(crawler.TableFullPitches)
				mlog.Error("select urls failed", zap.Error(err))
				continue
			}

			pool := dispatcher.New(StageRecords, p.cfg.Concurrency, mlog)
			stats := dispatcher.Map(ctx, pool, records,
				func(ctx context.Context, rec crawler.URLRecord) ([]crawler.PitchStat, error) {
					return p.pitchesFor(ctx, rec, mlog.With(
						zap.String("game_id", rec.GameID),
						zap.String("pitcher_id", rec.PitcherID),
					))
				})

			sum.Months++
			sum.Records += len(stats)
			mlog.Info("month extracted", zap.Int("urls", len(records)), zap.Int("records", len(stats)))
			if len(stats) == 0 {
				continue
			}
			inserted, err := p.store.InsertPitchStats(ctx, stats)
			p.persisted(ctx, &sum, mlog, crawler.TableFullPitches, year, month, len(stats), inserted, err)
		}
	}
	return p.finish(sum)
}

// discoverDay finds the games of one day, then the pitchers of each game.
func (p *Pipeline) discoverDay(ctx context.Context, d crawler.DateUnit, logger *zap.Logger) ([]crawler.URLRecord, error) {
	doc, err := p.fetchDoc(ctx, StageDays, p.urls.GameListURL(d))
	if err != nil {
		return nil, err
	}
	games := extract.GameIDs(doc)
	metrics.ObserveExtracted(kindGame, len(games))
	if len(games) == 0 {
		logger.Debug("no games")
		return nil, nil
	}

	pool := dispatcher.New(StageGames, p.cfg.NestedConcurrency, logger)
	return dispatcher.Map(ctx, pool, games, func(ctx context.Context, gameID string) ([]crawler.URLRecord, error) {
		doc, err := p.fetchDoc(ctx, StagePitchers, p.urls.PitcherListURL(d, gameID))
		if err != nil {
			return nil, err
		}
		pitchers := extract.Pitchers(doc)
		metrics.ObserveExtracted(kindPitcher, len(pitchers))
		records := make([]crawler.URLRecord, 0, len(pitchers))
		for _, pitcher := range pitchers {
			records = append(records, p.urls.Record(d, gameID, pitcher))
		}
		return records, nil
	}), nil
}

// pitchesFor fetches the LHB and RHB pages of one appearance.
func (p *Pipeline) pitchesFor(ctx context.Context, rec crawler.URLRecord, logger *zap.Logger) ([]crawler.PitchStat, error) {
	splits := crawler.SplitURLs(rec.URL)
	pool := dispatcher.New(StageSplits, p.cfg.NestedConcurrency, logger)
	return dispatcher.Map(ctx, pool, splits[:], func(ctx context.Context, split crawler.SplitURL) ([]crawler.PitchStat, error) {
		doc, err := p.fetchDoc(ctx, StageSplits, split.URL)
		if err != nil {
			return nil, err
		}
		stats, errs := extract.PitchRows(doc, crawler.SplitKey{
			PitcherID: rec.PitcherID,
			GameID:    rec.GameID,
			Side:      split.Side,
			URL:       split.URL,
		})
		for _, rowErr := range errs {
			logger.Debug("row dropped", zap.String("batter_side", string(split.Side)), zap.Error(rowErr))
		}
		metrics.ObserveDropped(kindPitchStat, len(errs))
		metrics.ObserveExtracted(kindPitchStat, len(stats))
		return stats, nil
	}), nil
}

func (p *Pipeline) fetchDoc(ctx context.Context, stage, url string) (*goquery.Document, error) {
	start := time.Now()
	page, err := p.fetcher.Fetch(ctx, url)
	metrics.ObserveFetch(stage, err, time.Since(start))
	p.fetched.Add(1)
	if err != nil {
		return nil, err
	}
	doc, err := extract.Parse(page.Body)
	if err != nil {
		return nil, &crawler.ExtractionError{URL: url, Row: -1, Err: err}
	}
	return doc, nil
}

func (p *Pipeline) begin(table string) (Summary, *zap.Logger) {
	runID, err := p.ids.NewID()
	if err != nil {
		p.logger.Warn("run id unavailable", zap.Error(err))
	}
	p.fetched.Store(0)
	logger := p.logger.With(zap.String("run_id", runID), zap.String("table", table))
	logger.Info("run started")
	return Summary{RunID: runID, Table: table, Started: p.now().UTC()}, logger
}

func (p *Pipeline) finish(sum Summary) Summary {
	sum.Fetched = p.fetched.Load()
	sum.Finished = p.now().UTC()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.runs = append(p.runs, sum)
	if len(p.runs) > maxRuns {
		p.runs = p.runs[len(p.runs)-maxRuns:]
	}
	return sum
}

// Runs returns the most recent completed passes, oldest first.
func (p *Pipeline) Runs() []Summary {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Summary, len(p.runs))
	copy(out, p.runs)
	return out
}

// persisted records the outcome of one batch write and publishes its event.
func (p *Pipeline) persisted(
	ctx context.Context,
	sum *Summary,
	logger *zap.Logger,
	table, year, month string,
	rows int,
	inserted int64,
	err error,
) {
	if err != nil {
		sum.FailedBatches++
		metrics.ObserveBatchFailure(table)
		logger.Error("batch write failed", zap.Int("rows", rows), zap.Error(err))
		return
	}
	sum.Inserted += inserted
	metrics.ObservePersisted(table, inserted)
	logger.Info("batch written", zap.Int("rows", rows), zap.Int64("inserted", inserted))

	if p.publisher == nil {
		return
	}
	event := crawler.BatchEvent{
		RunID:    sum.RunID,
		Table:    table,
		Year:     year,
		Month:    month,
		Rows:     rows,
		Inserted: inserted,
		At:       p.now().UTC(),
	}
	if _, err := p.publisher.Publish(ctx, p.cfg.Topic, event); err != nil {
		logger.Warn("publish batch event failed", zap.Error(err))
	}
}
