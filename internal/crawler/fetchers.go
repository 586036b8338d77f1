package crawler

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/pitch-ingest/internal/metrics"
)

// pauseController abstracts how a decorator waits between attempts.
type pauseController interface {
	Pause(ctx context.Context, delay time.Duration)
}

type timerPauseController struct{}

func (p *timerPauseController) Pause(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// RetryingFetcher retries failed fetches according to a RetryPolicy.
type RetryingFetcher struct {
	next   Fetcher
	policy RetryPolicy
	pauser pauseController
}

// NewRetryingFetcher wraps next. A nil policy disables retries.
func NewRetryingFetcher(next Fetcher, policy RetryPolicy) *RetryingFetcher {
	return &RetryingFetcher{
		next:   next,
		policy: policy,
		pauser: &timerPauseController{},
	}
}

// Fetch calls the wrapped fetcher until it succeeds or the policy gives up.
// The last error is returned unchanged.
func (f *RetryingFetcher) Fetch(ctx context.Context, url string) (Page, error) {
	for attempt := 0; ; attempt++ {
		page, err := f.next.Fetch(ctx, url)
		if err == nil {
			return page, nil
		}
		if f.policy == nil || !f.policy.ShouldRetry(err, attempt) {
			return Page{}, err
		}
		metrics.ObserveRetry()
		f.pauser.Pause(ctx, f.policy.Backoff(attempt))
		if ctx.Err() != nil {
			return Page{}, err
		}
	}
}

// ThrottledFetcher waits on a Waiter before every fetch.
type ThrottledFetcher struct {
	next    Fetcher
	limiter Waiter
}

// NewThrottledFetcher wraps next with limiter.
func NewThrottledFetcher(next Fetcher, limiter Waiter) *ThrottledFetcher {
	return &ThrottledFetcher{next: next, limiter: limiter}
}

// Fetch waits for the limiter, then fetches.
func (f *ThrottledFetcher) Fetch(ctx context.Context, url string) (Page, error) {
	if err := f.limiter.Wait(ctx, url); err != nil {
		return Page{}, &FetchError{URL: url, Err: err}
	}
	return f.next.Fetch(ctx, url)
}

// ArchivingFetcher copies every successfully fetched body into a BlobStore.
type ArchivingFetcher struct {
	next   Fetcher
	blobs  BlobStore
	hasher Hasher
	prefix string
	logger *zap.Logger
}

// NewArchivingFetcher wraps next. Archive failures are logged, never returned.
func NewArchivingFetcher(next Fetcher, blobs BlobStore, hasher Hasher, prefix string, logger *zap.Logger) *ArchivingFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if prefix == "" {
		prefix = "pages"
	}
	return &ArchivingFetcher{
		next:   next,
		blobs:  blobs,
		hasher: hasher,
		prefix: prefix,
		logger: logger,
	}
}

// Fetch fetches url and archives the body on success.
func (f *ArchivingFetcher) Fetch(ctx context.Context, url string) (Page, error) {
	page, err := f.next.Fetch(ctx, url)
	if err != nil {
		return page, err
	}
	key, err := f.objectPath(url)
	if err != nil {
		f.logger.Warn("archive key failed", zap.String("url", url), zap.Error(err))
		return page, nil
	}
	uri, err := f.blobs.PutObject(ctx, key, "text/html; charset=utf-8", bytes.NewReader(page.Body))
	if err != nil {
		f.logger.Warn("archive page failed", zap.String("url", url), zap.Error(err))
		return page, nil
	}
	f.logger.Debug("page archived", zap.String("url", url), zap.String("uri", uri))
	return page, nil
}

func (f *ArchivingFetcher) objectPath(url string) (string, error) {
	hash, err := f.hasher.Hash([]byte(url))
	if err != nil {
		return "", fmt.Errorf("hash url: %w", err)
	}
	return path.Join(f.prefix, hash+".html"), nil
}
