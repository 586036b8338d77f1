// Package dispatcher fans work out over a bounded pool of goroutines.
package dispatcher

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/pitch-ingest/internal/crawler"
	"github.com/JakeFAU/pitch-ingest/internal/metrics"
)

// DefaultSize is the pool size used when none is configured.
const DefaultSize = 20

// WorkerFunc processes one item and returns its results in order.
type WorkerFunc[T, R any] func(ctx context.Context, item T) ([]R, error)

// Pool bounds how many worker invocations run at once for one fan-out stage.
// A Pool is cheap; create one per unit of work and drop it afterwards.
type Pool struct {
	stage    string
	size     int
	logger   *zap.Logger
	failures atomic.Int64
}

// New creates a Pool. Sizes below one fall back to DefaultSize.
func New(stage string, size int, logger *zap.Logger) *Pool {
	if size < 1 {
		size = DefaultSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{stage: stage, size: size, logger: logger}
}

// Stage returns the label the pool reports under.
func (p *Pool) Stage() string {
	return p.stage
}

// Size returns the maximum number of concurrent invocations.
func (p *Pool) Size() int {
	return p.size
}

// Failures returns how many invocations failed or panicked so far.
func (p *Pool) Failures() int64 {
	return p.failures.Load()
}

// Map runs worker over items with at most p.Size() invocations in flight and
// returns the flattened results in item order. A failed or panicking worker
// contributes no results; its siblings keep running. Items not yet started
// when ctx is done are skipped.
func Map[T, R any](ctx context.Context, p *Pool, items []T, worker WorkerFunc[T, R]) []R {
	if len(items) == 0 {
		return nil
	}
	results := make([][]R, len(items))

	var g errgroup.Group
	g.SetLimit(p.size)
	for i, item := range items {
		if ctx.Err() != nil {
			p.logger.Debug("fan-out stopped", zap.String("stage", p.stage), zap.Int("skipped", len(items)-i))
			break
		}
		g.Go(func() error {
			results[i] = invoke(ctx, p, i, item, worker)
			return nil
		})
	}
	_ = g.Wait()

	total := 0
	for _, r := range results {
		total += len(r)
	}
	out := make([]R, 0, total)
	for _, r := range results {
		out = append(out, r...)
	}
	return out
}

func invoke[T, R any](ctx context.Context, p *Pool, index int, item T, worker WorkerFunc[T, R]) (out []R) {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()
	defer func() {
		if r := recover(); r != nil {
			p.fail(index, fmt.Errorf("worker panic: %v", r))
			out = nil
		}
	}()

	res, err := worker(ctx, item)
	if err != nil {
		p.fail(index, err)
		return nil
	}
	return res
}

func (p *Pool) fail(index int, err error) {
	p.failures.Add(1)
	metrics.ObserveWorkerFailure(p.stage)
	fields := []zap.Field{
		zap.String("stage", p.stage),
		zap.Int("item", index),
		zap.Error(err),
	}
	if code := crawler.StatusCode(err); code != 0 {
		fields = append(fields, zap.Int("status_code", code))
	}
	p.logger.Warn("worker failed", fields...)
}
