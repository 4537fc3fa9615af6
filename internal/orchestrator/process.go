package orchestrator

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/wikiharvest/internal/crawler"
	"github.com/JakeFAU/wikiharvest/internal/fetcher/batch"
	"github.com/JakeFAU/wikiharvest/internal/metrics"
	"github.com/JakeFAU/wikiharvest/internal/redirect"
)

// fetch runs one batch and settles the titles that produced no article.
func (o *Orchestrator) fetch(ctx context.Context, r *run, titles []crawler.Title) (batch.Result, error) {
	res, err := o.deps.Fetcher.FetchAll(ctx, titles)
	if err != nil {
		return batch.Result{}, fmt.Errorf("fetch batch: %w", err)
	}
	r.summary.Batches++

	failed := crawler.NewTitleSet()
	for t, ferr := range res.Failed {
		failed.Add(t)
		o.logger.Warn("fetch failed, holding title for a later run", zap.String("title", t.String()), zap.Error(ferr))
	}
	r.store.Hold(failed.Sorted()...)
	r.summary.Failed += failed.Len()
	metrics.ObserveTitles(metrics.OutcomeHeld, failed.Len())

	for _, t := range res.Missing {
		r.store.MarkCrawled(t, crawler.NoPageID)
	}
	r.summary.Missing += len(res.Missing)
	return res, nil
}

// dedup drops articles whose page id was already harvested. The title they
// were requested under is settled so it is not fetched again.
func (o *Orchestrator) dedup(r *run, articles []crawler.Article) []crawler.Article {
	kept := make([]crawler.Article, 0, len(articles))
	for _, a := range articles {
		if a.PageID == crawler.NoPageID || r.store.RegisterIfNewPageID(a.PageID) {
			kept = append(kept, a)
			continue
		}
		requested := a.RequestedTitle()
		if a.IsServerRedirect() {
			r.store.MarkRedirected(requested)
		} else {
			r.store.MarkCrawled(requested, a.PageID)
		}
		r.summary.Duplicates++
		metrics.ObserveDuplicatePage()
		o.logger.Debug("duplicate page id",
			zap.String("title", requested.String()),
			zap.Int64("page_id", int64(a.PageID)),
		)
	}
	return kept
}

// resolve classifies redirects and records the kept articles as crawled.
func (o *Orchestrator) resolve(r *run, articles []crawler.Article) redirect.Resolution {
	res := redirect.Resolve(articles)
	sources := res.Sources.Sorted()
	r.store.MarkRedirected(sources...)
	metrics.ObserveTitles(metrics.OutcomeRedirected, len(sources))
	now := o.deps.Clock.Now()
	for _, a := range res.Kept {
		r.store.MarkCrawled(a.Title, a.PageID)
		r.harvested = append(r.harvested, harvest{article: a, level: r.store.Level(), at: now})
	}
	return res
}

// settleLeftovers marks requested titles that were answered under another
// name as redirected so they leave Pending.
func (o *Orchestrator) settleLeftovers(r *run, titles []crawler.Title) {
	pending := crawler.NewTitleSet(r.store.Pending()...)
	for _, t := range titles {
		if pending.Has(t) {
			o.logger.Debug("title answered under another name", zap.String("title", t.String()))
			r.store.MarkRedirected(t)
		}
	}
}

// filterNew drops known titles, discards inadmissible ones and returns the
// admissible remainder.
func (o *Orchestrator) filterNew(r *run, candidates crawler.TitleSet) crawler.TitleSet {
	fresh := r.store.Unknown(candidates).Sorted()
	admitted, rejected := o.deps.Filter.FilterMany(fresh)
	r.store.Discard(rejected...)
	metrics.ObserveTitles(metrics.OutcomeDiscarded, len(rejected))
	return crawler.NewTitleSet(admitted...)
}

func (o *Orchestrator) admit(r *run, titles []crawler.Title) {
	admitted, overflow := r.store.Admit(titles)
	metrics.ObserveTitles(metrics.OutcomeAdmitted, len(admitted))
	o.deferTitles(r, overflow)
}

func (o *Orchestrator) admitOrHold(r *run, titles []crawler.Title) {
	admitted, overflow := r.store.Admit(titles)
	metrics.ObserveTitles(metrics.OutcomeAdmitted, len(admitted))
	r.store.Hold(overflow...)
	metrics.ObserveTitles(metrics.OutcomeHeld, len(overflow))
}

func (o *Orchestrator) deferTitles(r *run, titles []crawler.Title) {
	metrics.ObserveTitles(metrics.OutcomeDeferred, len(r.store.Defer(titles)))
}

// processBatch fetches one leveled batch and feeds what it found back into
// the frontier.
func (o *Orchestrator) processBatch(ctx context.Context, r *run, titles []crawler.Title) error {
	ctx, span := o.startBatchSpan(ctx, "orchestrator.batch", r, titles)
	defer span.End()
	res, err := o.fetch(ctx, r, titles)
	if err != nil {
		return err
	}
	resolution := o.resolve(r, o.dedup(r, res.Articles))
	o.settleLeftovers(r, titles)

	links := crawler.NewTitleSet()
	transclusions := crawler.NewTitleSet()
	for _, a := range resolution.Kept {
		l, tr := o.deps.Extractor.Links(a, o.cfg.Restricted)
		links.Union(l)
		transclusions.Union(tr)
	}

	candidates := crawler.NewTitleSet().Union(links).Union(resolution.Destinations).Union(transclusions)
	admissible := o.filterNew(r, candidates)

	if o.cfg.TransclusionMerge == crawler.MergeAggressive {
		current := transclusions.Minus(resolution.Destinations)
		var now []crawler.Title
		for _, t := range admissible.Sorted() {
			if current.Has(t) {
				now = append(now, t)
			}
		}
		o.admit(r, now)
	}
	// Links, redirect destinations and conservative transclusions wait for
	// the next level. Titles admitted above are known and skipped.
	o.deferTitles(r, admissible.Sorted())

	o.logger.Info("batch done",
		zap.Int("level", r.store.Level()),
		zap.Int("requested", len(titles)),
		zap.Int("kept", len(resolution.Kept)),
		zap.Int("redirects", resolution.Sources.Len()),
		zap.Int("discovered", admissible.Len()),
		zap.Int("crawled", r.store.Counts().Crawled),
	)
	return nil
}

// processSeedBatch fetches the seed pages and extracts their seed links.
func (o *Orchestrator) processSeedBatch(ctx context.Context, r *run, titles []crawler.Title) error {
	ctx, span := o.startBatchSpan(ctx, "orchestrator.seed_batch", r, titles)
	defer span.End()
	res, err := o.fetch(ctx, r, titles)
	if err != nil {
		return err
	}
	resolution := o.resolve(r, o.dedup(r, res.Articles))
	o.settleLeftovers(r, titles)

	discovered := crawler.NewTitleSet()
	for _, a := range resolution.Kept {
		discovered.Union(o.deps.Extractor.SeedLinks(a.Text, o.cfg.SeedSectionTargets))
		_, tr := o.deps.Extractor.Links(a, o.cfg.Restricted)
		discovered.Union(tr)
	}

	admissible := o.filterNew(r, crawler.NewTitleSet().Union(discovered).Union(resolution.Destinations))
	destinations := admissible.Minus(discovered)
	// Discoveries all wait in Pending for the next leveled run; those over
	// capacity are held there rather than pushed a level down.
	o.admitOrHold(r, admissible.Minus(destinations).Sorted())
	if o.cfg.RedirectsToPending {
		o.admit(r, destinations.Sorted())
	} else {
		o.deferTitles(r, destinations.Sorted())
	}

	o.logger.Info("seed batch done",
		zap.Int("requested", len(titles)),
		zap.Int("kept", len(resolution.Kept)),
		zap.Int("discovered", admissible.Len()),
		zap.Int("pending", len(r.store.Pending())),
	)
	return nil
}
