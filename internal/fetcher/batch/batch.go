// Package batch fetches a level's titles on a bounded worker pool.
package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/wikiharvest/internal/crawler"
	"github.com/JakeFAU/wikiharvest/internal/metrics"
)

// DefaultWorkers is the pool width when none is configured.
const DefaultWorkers = 4

// Options configures a Fetcher.
type Options struct {
	Workers int
	// MiniBatch > 1 groups titles into multi-title API calls when the client
	// supports them.
	MiniBatch int
}

// Result is the merged outcome of one batch.
type Result struct {
	// Articles are ordered by the title they were requested under.
	Articles []crawler.Article
	// Failed maps titles whose fetch errored to the error.
	Failed map[crawler.Title]error
	// Missing lists titles the server reported as nonexistent.
	Missing []crawler.Title
}

// Fetcher runs fetches concurrently. Each item is isolated: an error is
// recorded against its title and never stops the siblings.
type Fetcher struct {
	client crawler.Fetcher
	opts   Options
	logger *zap.Logger
}

// New builds a Fetcher.
func New(client crawler.Fetcher, opts Options, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.MiniBatch <= 0 {
		opts.MiniBatch = 1
	}
	return &Fetcher{client: client, opts: opts, logger: logger.Named("batch")}
}

// outcome is what one unit of work produced for one chunk of titles.
type outcome struct {
	titles   []crawler.Title
	articles []crawler.Article
	err      error
}

// FetchAll fetches titles and merges the outcomes once every worker is done.
// The only error returned is the context's.
func (f *Fetcher) FetchAll(ctx context.Context, titles []crawler.Title) (Result, error) {
	start := time.Now()
	sorted := append([]crawler.Title(nil), titles...)
	crawler.SortTitles(sorted)
	chunks := f.chunk(sorted)
	outcomes := make([]outcome, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.opts.Workers)
	for i, chunk := range chunks {
		g.Go(func() error {
			outcomes[i] = f.fetchChunk(gctx, chunk)
			return nil
		})
	}
	_ = g.Wait()
	metrics.ObserveBatch(time.Since(start))

	res := merge(outcomes)
	f.logger.Info("batch fetched",
		zap.Int("titles", len(sorted)),
		zap.Int("articles", len(res.Articles)),
		zap.Int("missing", len(res.Missing)),
		zap.Int("failed", len(res.Failed)),
		zap.Duration("duration", time.Since(start)),
	)
	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("fetch batch: %w", err)
	}
	return res, nil
}

func (f *Fetcher) chunk(titles []crawler.Title) [][]crawler.Title {
	size := 1
	if _, ok := f.client.(crawler.MultiFetcher); ok {
		size = f.opts.MiniBatch
	}
	var chunks [][]crawler.Title
	for start := 0; start < len(titles); start += size {
		chunks = append(chunks, titles[start:min(start+size, len(titles))])
	}
	return chunks
}

func (f *Fetcher) fetchChunk(ctx context.Context, titles []crawler.Title) (out outcome) {
	ctx, span := otel.Tracer("github.com/JakeFAU/wikiharvest/internal/fetcher/batch").Start(ctx, "batch.fetch",
		trace.WithAttributes(
			attribute.String("wikiharvest.first_title", string(titles[0])),
			attribute.Int("wikiharvest.titles", len(titles)),
		))
	defer func() {
		if out.err != nil && !errors.Is(out.err, crawler.ErrNotFound) {
			span.RecordError(out.err)
			span.SetStatus(codes.Error, out.err.Error())
		}
		span.End()
	}()

	if len(titles) == 1 {
		a, err := f.client.Fetch(ctx, titles[0])
		if err != nil {
			return outcome{titles: titles, err: err}
		}
		return outcome{titles: titles, articles: []crawler.Article{a}}
	}
	multi := f.client.(crawler.MultiFetcher)
	articles, err := multi.FetchMany(ctx, titles)
	return outcome{titles: titles, articles: articles, err: err}
}

// merge runs after the pool has drained, so it needs no locking.
func merge(outcomes []outcome) Result {
	res := Result{Failed: make(map[crawler.Title]error)}
	for _, o := range outcomes {
		if o.err != nil {
			if errors.Is(o.err, crawler.ErrNotFound) {
				res.Missing = append(res.Missing, o.titles...)
				metrics.ObserveFetch("missing", 0)
				continue
			}
			for _, t := range o.titles {
				res.Failed[t] = &crawler.FetchError{Title: t, Err: o.err}
				metrics.ObserveFetch("failed", 0)
			}
			continue
		}
		found := crawler.NewTitleSet()
		for _, a := range o.articles {
			found.Add(a.RequestedTitle())
			res.Articles = append(res.Articles, a)
			metrics.ObserveFetch("ok", len(a.Text))
		}
		for _, t := range o.titles {
			if !found.Has(t) {
				res.Missing = append(res.Missing, t)
				metrics.ObserveFetch("missing", 0)
			}
		}
	}
	return res
}
