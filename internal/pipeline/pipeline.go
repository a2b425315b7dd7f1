// Package pipeline implements NewsPipeline: the top-level orchestrator that
// walks every configured source and market, discovers trending items, builds
// articles in parallel, and persists the successful subset.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/the-globe-v2/news-scraper/internal/domain/entity"
	"github.com/the-globe-v2/news-scraper/internal/runid"
)

// Source is the subset of newssource.Source's contract Pipeline depends on.
type Source interface {
	Trending(ctx context.Context, market string) ([]entity.DiscoveryItem, error)
	AvailableMarkets() []string
	Name() string
}

// ArticleBuilder is the subset of articlebuilder.Builder's contract Pipeline
// depends on. A non-empty failureReason on a nil Article/error result is the
// failure_reason recorded to the Store's failed_articles collection.
type ArticleBuilder interface {
	Build(ctx context.Context, item entity.DiscoveryItem) (article *entity.Article, failureReason string, err error)
}

// Store is the subset of the persistence adapter's contract Pipeline
// depends on.
type Store interface {
	Exists(ctx context.Context, url string) bool
	BulkInsert(ctx context.Context, articles []entity.Article) (insertedIDs []string, errs []BulkError)
	RecordFailedArticle(ctx context.Context, url, reason string, failedAt time.Time)
}

// BulkError is one failed document from a Store.BulkInsert call.
type BulkError struct {
	Index  int
	URL    string
	ErrMsg string
}

// Pipeline is the NewsPipeline orchestrator.
type Pipeline struct {
	sources []Source
	builder ArticleBuilder
	store   Store
	workers int
	logger  *slog.Logger
}

// New constructs a Pipeline. workers sets the per-market build worker pool
// size (MAX_SCRAPING_WORKERS).
func New(sources []Source, builder ArticleBuilder, store Store, workers int, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if workers < 1 {
		workers = 1
	}
	return &Pipeline{sources: sources, builder: builder, store: store, workers: workers, logger: logger}
}

// Run walks every source's markets sequentially (spec §5: "Markets are not
// processed in parallel — deliberately, to simplify rate-limit interaction
// with news APIs"), building and inserting articles for each, and returns
// the ids of every article successfully inserted across the whole run. A
// single market's failure is logged and does not abort the run.
func (p *Pipeline) Run(ctx context.Context) ([]string, error) {
	runID := uuid.New().String()
	logger := p.logger.With(slog.String("run_id", runID))
	logger.Info("pipeline run starting", slog.Int("sources", len(p.sources)))

	ctx = runid.WithRunID(ctx, runID)

	var insertedIDs []string

	for _, source := range p.sources {
		for _, market := range source.AvailableMarkets() {
			ids, err := p.runMarket(ctx, logger, source, market)
			if err != nil {
				logger.Warn("market processing failed, continuing",
					slog.String("source", source.Name()), slog.String("market", market), slog.Any("error", err))
				continue
			}
			insertedIDs = append(insertedIDs, ids...)
		}
	}

	logger.Info("pipeline run complete", slog.Int("inserted", len(insertedIDs)))
	return insertedIDs, nil
}

// runMarket discovers, builds, and persists articles for a single
// (source, market) pair, logging the per-market metrics spec §4.6 requires.
func (p *Pipeline) runMarket(ctx context.Context, logger *slog.Logger, source Source, market string) ([]string, error) {
	items, err := source.Trending(ctx, market)
	if err != nil {
		return nil, err
	}

	built := p.parallelBuild(ctx, items)

	inserted, bulkErrs := p.store.BulkInsert(ctx, built)
	for _, be := range bulkErrs {
		logger.Warn("bulk insert document failed",
			slog.String("market", market), slog.Int("index", be.Index), slog.String("url", be.URL), slog.String("error", be.ErrMsg))
	}

	logMarketMetrics(logger, source.Name(), market, len(items), len(built), len(inserted))
	return inserted, nil
}

// parallelBuild implements build_one/parallel_build: a worker pool of size
// p.workers, deduplicating against the store before delegating to the
// ArticleBuilder, collecting non-nil results in completion order.
func (p *Pipeline) parallelBuild(ctx context.Context, items []entity.DiscoveryItem) []entity.Article {
	sem := make(chan struct{}, p.workers)
	var collected collectedArticles
	eg, egCtx := errgroup.WithContext(ctx)

	for _, it := range items {
		item := it
		eg.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()

			if p.store.Exists(egCtx, item.URL) {
				return nil
			}

			article, failureReason, err := p.builder.Build(egCtx, item)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				p.logger.Warn("build_one failed", slog.String("url", item.URL), slog.Any("error", err))
				return nil
			}
			if article == nil {
				if failureReason != "" {
					p.store.RecordFailedArticle(egCtx, item.URL, failureReason, time.Now())
				}
				return nil
			}

			collected.append(*article)
			return nil
		})
	}

	// A build failure never aborts its siblings (spec §5: "no cross-task
	// cancellation"); only context cancellation propagates, and even then
	// whatever already completed is still returned.
	_ = eg.Wait()
	return collected.items
}

// collectedArticles accumulates built articles from the worker pool under a
// mutex (spec §5: "Telemetry counters ... must be atomic or lock-protected;
// a per-counter mutex is sufficient given low contention" — the same
// reasoning applies to this result accumulator).
type collectedArticles struct {
	mu    sync.Mutex
	items []entity.Article
}

func (c *collectedArticles) append(a entity.Article) {
	c.mu.Lock()
	c.items = append(c.items, a)
	c.mu.Unlock()
}

func logMarketMetrics(logger *slog.Logger, sourceName, market string, discovered, built, inserted int) {
	buildRate := percentage(built, discovered, "0.00%")
	insertRate := percentage(inserted, built, "N/A")

	logger.Info("market processing complete",
		slog.String("source", sourceName),
		slog.String("market", market),
		slog.Int("total_discovered", discovered),
		slog.Int("articles_built", built),
		slog.Int("articles_inserted", inserted),
		slog.String("build_success_rate", buildRate),
		slog.String("insert_success_rate", insertRate),
	)
}

// percentage renders n/d as a "%.2f%%" string (spec.md: "build_success_rate=100.00%,
// insert_success_rate=100.00%"), falling back to zeroValue when d is 0.
func percentage(n, d int, zeroValue string) string {
	if d == 0 {
		return zeroValue
	}
	return fmt.Sprintf("%.2f%%", float64(n)/float64(d)*100)
}
