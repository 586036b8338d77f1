// Package app builds the long-lived services of one crawler process from its
// configuration and tears them down again.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/pitch-ingest/internal/api"
	"github.com/JakeFAU/pitch-ingest/internal/config"
	"github.com/JakeFAU/pitch-ingest/internal/crawler"
	collyfetcher "github.com/JakeFAU/pitch-ingest/internal/fetcher/colly"
	"github.com/JakeFAU/pitch-ingest/internal/hash/sha256"
	"github.com/JakeFAU/pitch-ingest/internal/ingest"
	"github.com/JakeFAU/pitch-ingest/internal/policy/ratelimit"
	"github.com/JakeFAU/pitch-ingest/internal/publisher/pubsub"
	"github.com/JakeFAU/pitch-ingest/internal/storage/gcs"
	"github.com/JakeFAU/pitch-ingest/internal/storage/local"
	"github.com/JakeFAU/pitch-ingest/internal/storage/memory"
	"github.com/JakeFAU/pitch-ingest/internal/storage/postgres"
	"github.com/JakeFAU/pitch-ingest/internal/storage/sqlite"
)

const shutdownTimeout = 5 * time.Second

// App holds the shared services of a crawl.
type App struct {
	Config   config.Config
	Logger   *zap.Logger
	Store    crawler.Store
	Fetcher  crawler.Fetcher
	Archive  crawler.BlobStore
	Pipeline *ingest.Pipeline
	Admin    *api.Server

	closers []namedCloser
}

type namedCloser struct {
	name string
	c    io.Closer
}

// New wires every service named by cfg. On error, whatever was already built
// is closed again.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Config: cfg, Logger: logger}
	if err := a.init(ctx); err != nil {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("cleanup after failed init", zap.Error(closeErr))
		}
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	store, err := openStore(ctx, a.Config.Store)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	a.Store = store
	a.closers = append(a.closers, namedCloser{name: "store", c: store})
	a.Logger.Info("store ready", zap.String("driver", a.Config.Store.Driver))

	fetcher, err := a.buildFetcher(ctx)
	if err != nil {
		return err
	}
	a.Fetcher = fetcher

	var publisher crawler.Publisher
	if a.Config.Notify.Provider == config.ProviderPubSub {
		pub, err := pubsub.New(ctx, pubsub.Config{
			ProjectID: a.Config.Notify.ProjectID,
			Topic:     a.Config.Notify.Topic,
		})
		if err != nil {
			return fmt.Errorf("init publisher: %w", err)
		}
		publisher = pub
		a.closers = append(a.closers, namedCloser{name: "publisher", c: pub})
		a.Logger.Info("batch events enabled", zap.String("topic", a.Config.Notify.Topic))
	}

	a.Pipeline = ingest.New(
		a.Fetcher,
		a.Store,
		crawler.NewURLBuilder(a.Config.Crawl.BaseURL, a.Config.Crawl.ExpandedBaseURL),
		publisher,
		ingest.Config{
			Concurrency:       a.Config.Crawl.Concurrency,
			NestedConcurrency: a.Config.Crawl.NestedConcurrency,
			Topic:             a.Config.Notify.Topic,
		},
		a.Logger.Named("ingest"),
	)

	if a.Config.Metrics.Addr != "" {
		admin := api.NewServer(a.Store, a.Pipeline, a.Logger.Named("admin"))
		if err := admin.Start(a.Config.Metrics.Addr); err != nil {
			return fmt.Errorf("start admin server: %w", err)
		}
		a.Admin = admin
	}
	return nil
}

func openStore(ctx context.Context, cfg config.StoreConfig) (crawler.Store, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		return sqlite.Open(ctx, sqlite.Config{Path: cfg.SQLitePath, BatchSize: cfg.BatchSize})
	case config.DriverPostgres:
		return postgres.New(ctx, postgres.Config{
			DSN:             cfg.DSN,
			MaxConns:        cfg.MaxConns,
			MinConns:        cfg.MinConns,
			MaxConnLifetime: cfg.MaxConnLifetime(),
			BatchSize:       cfg.BatchSize,
		})
	case config.DriverMemory:
		return memory.NewStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// buildFetcher layers colly, the host rate limit, retries and archiving. Each
// retry waits on the limiter again.
func (a *App) buildFetcher(ctx context.Context) (crawler.Fetcher, error) {
	httpCfg := a.Config.HTTP
	var fetcher crawler.Fetcher = collyfetcher.New(collyfetcher.Config{
		UserAgent: httpCfg.UserAgent,
		Timeout:   httpCfg.Timeout(),
	})
	if httpCfg.RequestsPerSecond > 0 {
		fetcher = crawler.NewThrottledFetcher(fetcher, ratelimit.New(ratelimit.Config{
			RequestsPerSecond: httpCfg.RequestsPerSecond,
			Burst:             httpCfg.Burst,
		}))
	}
	if httpCfg.MaxRetries > 0 {
		fetcher = crawler.NewRetryingFetcher(fetcher, crawler.NewExponentialRetryPolicy(
			httpCfg.MaxRetries, httpCfg.BackoffInitial(), httpCfg.BackoffMax()))
	}

	blobs, err := a.openArchive(ctx)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	if blobs != nil {
		a.Archive = blobs
		fetcher = crawler.NewArchivingFetcher(fetcher, blobs, sha256.New(),
			a.Config.Archive.Prefix, a.Logger.Named("archive"))
	}
	return fetcher, nil
}

func (a *App) openArchive(ctx context.Context) (crawler.BlobStore, error) {
	cfg := a.Config.Archive
	switch cfg.Provider {
	case config.ProviderMemory:
		return memory.NewBlobStore(), nil
	case config.ProviderLocal:
		return local.New(local.Config{BaseDir: cfg.BaseDir})
	case config.ProviderGCS:
		store, err := gcs.Open(ctx, gcs.Config{Bucket: cfg.GCSBucket})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, namedCloser{name: "archive", c: store})
		return store, nil
	case config.ProviderNone, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown archive provider %q", cfg.Provider)
	}
}

// Close stops the admin server and closes every service in reverse order of
// creation. All errors are returned joined.
func (a *App) Close() error {
	var errs []error
	if a.Admin != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := a.Admin.Shutdown(ctx); err != nil {
			a.Logger.Warn("admin shutdown failed", zap.Error(err))
			errs = append(errs, err)
		}
		cancel()
		a.Admin = nil
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		nc := a.closers[i]
		if err := nc.c.Close(); err != nil {
			a.Logger.Warn("close failed", zap.String("service", nc.name), zap.Error(err))
			errs = append(errs, fmt.Errorf("close %s: %w", nc.name, err))
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
