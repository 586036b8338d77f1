package crawler

import (
	"context"
	"io"
	"time"
)

// Fetcher fetches a URL and returns the raw page. Implementations return a
// *FetchError for every non-200 response or transport failure.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Page, error)
}

// Store persists crawl output. Inserts ignore rows whose natural key already
// exists and never fail a batch because of such a collision.
type Store interface {
	InsertURLs(ctx context.Context, records []URLRecord) (int64, error)
	InsertPitchStats(ctx context.Context, stats []PitchStat) (int64, error)
	SelectURLs(ctx context.Context, year, month string) ([]URLRecord, error)
	Close() error
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// Publisher pushes batch completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// RetryPolicy decides whether and when a failed fetch is attempted again.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}

// Waiter blocks until a request to url may proceed.
type Waiter interface {
	Wait(ctx context.Context, url string) error
}

// Hasher computes digests for archive keys.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// IDGenerator issues run identifiers.
type IDGenerator interface {
	NewID() (string, error)
}
