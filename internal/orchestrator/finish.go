package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/wikiharvest/internal/crawler"
	"github.com/JakeFAU/wikiharvest/internal/frontier"
	"github.com/JakeFAU/wikiharvest/internal/metrics"
)

// finish persists the run. It runs on a context detached from cancellation
// so an interrupted run still saves what completed batches produced.
func (o *Orchestrator) finish(ctx context.Context, r *run, runErr error) (Summary, error) {
	ctx = context.WithoutCancel(ctx)
	if runErr != nil {
		o.logger.Warn("crawl interrupted, saving completed batches", zap.String("run_id", r.id), zap.Error(runErr))
	}

	articles := make([]crawler.Article, 0, len(r.harvested))
	for _, h := range r.harvested {
		articles = append(articles, h.article)
	}

	var blobURI string
	if len(articles) > 0 && o.deps.Content != nil {
		uri, err := o.deps.Content.Write(ctx, articles)
		if err != nil {
			// Without the content the frontier must not claim these titles.
			err = fmt.Errorf("write content: %w", err)
			o.recordFinish(ctx, r, errors.Join(runErr, err))
			return o.summarize(r), errors.Join(runErr, err)
		}
		blobURI = uri
		o.index(ctx, r, uri)
		o.publish(ctx, r, uri, len(articles))
	}

	snap := r.store.Snapshot()
	if err := o.deps.Repository.Save(ctx, snap); err != nil {
		err = fmt.Errorf("save frontier: %w", err)
		o.recordFinish(ctx, r, errors.Join(runErr, err))
		return o.summarize(r), errors.Join(runErr, err)
	}

	r.summary.BlobURI = blobURI
	o.recordFinish(ctx, r, runErr)
	summary := o.summarize(r)
	o.logger.Info("crawl finished",
		zap.String("run_id", r.id),
		zap.String("state", r.store.State().String()),
		zap.Int("harvested", summary.Harvested),
		zap.Int("duplicates", summary.Duplicates),
		zap.Int("failed", summary.Failed),
		zap.Int("missing", summary.Missing),
		zap.Int("crawled", summary.Counts.Crawled),
		zap.Int("pending", summary.Counts.Pending),
		zap.Int("next_pending", summary.Counts.NextPending),
	)
	return summary, runErr
}

// saveIdle saves the frontier of a run that found nothing to fetch. Loading
// prunes settled titles and seeding may discard seeds, so the state can still
// differ from what was loaded.
func (o *Orchestrator) saveIdle(ctx context.Context, store *frontier.Store) (Summary, error) {
	state := store.State()
	summary := Summary{State: state, Reason: state.Reason, Level: store.Level(), Counts: store.Counts()}
	if err := o.deps.Repository.Save(context.WithoutCancel(ctx), store.Snapshot()); err != nil {
		return summary, errors.Join(crawler.ErrNoWorkAvailable, fmt.Errorf("save frontier: %w", err))
	}
	return summary, crawler.ErrNoWorkAvailable
}

func (o *Orchestrator) summarize(r *run) Summary {
	s := r.summary
	s.State = r.store.State()
	s.Reason = s.State.Reason
	s.Level = r.store.Level()
	s.Counts = r.store.Counts()
	s.Harvested = len(r.harvested)
	recordFrontierSizes(s.Counts, s.Level)
	return s
}

func recordFrontierSizes(c frontier.Counts, level int) {
	metrics.SetLevel(level)
	metrics.SetFrontierSize("crawled", c.Crawled)
	metrics.SetFrontierSize("pending", c.Pending)
	metrics.SetFrontierSize("next_pending", c.NextPending)
	metrics.SetFrontierSize("discarded", c.Discarded)
	metrics.SetFrontierSize("redirected", c.Redirected)
	metrics.SetFrontierSize("held", c.Held)
}

func (o *Orchestrator) index(ctx context.Context, r *run, uri string) {
	if o.deps.Index == nil {
		return
	}
	records := make([]crawler.HarvestRecord, 0, len(r.harvested))
	for _, h := range r.harvested {
		rec := crawler.HarvestRecord{
			RunID:       r.id,
			Title:       h.article.Title,
			PageID:      h.article.PageID,
			RevisionID:  h.article.RevisionID,
			Level:       h.level,
			BlobURI:     uri,
			HarvestedAt: h.at,
		}
		if o.deps.Hasher != nil {
			sum, err := o.deps.Hasher.Hash([]byte(h.article.Text))
			if err != nil {
				o.logger.Warn("hash content", zap.String("title", h.article.Title.String()), zap.Error(err))
			}
			rec.ContentHash = sum
		}
		records = append(records, rec)
	}
	if err := o.deps.Index.RecordHarvest(ctx, records); err != nil {
		o.logger.Warn("record harvest index", zap.String("run_id", r.id), zap.Error(err))
	}
}

func (o *Orchestrator) publish(ctx context.Context, r *run, uri string, count int) {
	if o.deps.Publisher == nil {
		return
	}
	event := crawler.HarvestEvent{
		RunID:        r.id,
		BlobURI:      uri,
		ArticleCount: count,
		Level:        r.store.Level(),
		WrittenAt:    o.deps.Clock.Now(),
	}
	if _, err := o.deps.Publisher.Publish(ctx, HarvestWrittenEvent, event); err != nil {
		o.logger.Warn("publish harvest event", zap.String("run_id", r.id), zap.Error(err))
	}
}

func (o *Orchestrator) recordFinish(ctx context.Context, r *run, runErr error) {
	if o.deps.Runs == nil {
		return
	}
	state := r.store.State()
	err := o.deps.Runs.FinishRun(ctx, r.id, o.deps.Clock.Now(), string(state.Reason), r.store.Counts().Crawled, runErr)
	if err != nil {
		o.logger.Warn("record run finish", zap.String("run_id", r.id), zap.Error(err))
	}
}
