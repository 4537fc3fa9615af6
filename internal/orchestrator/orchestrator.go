// Package orchestrator drives a crawl: it loads the frontier, fetches the
// current level in batches, classifies what came back and admits the titles
// discovered along the way, then persists everything once the run ends.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/wikiharvest/internal/crawler"
	"github.com/JakeFAU/wikiharvest/internal/fetcher/batch"
	"github.com/JakeFAU/wikiharvest/internal/filter"
	"github.com/JakeFAU/wikiharvest/internal/frontier"
	"github.com/JakeFAU/wikiharvest/internal/metrics"
)

// HarvestWrittenEvent is the event name published for each content blob.
const HarvestWrittenEvent = "harvest.written"

// Repository loads and saves the frontier.
type Repository interface {
	Load(ctx context.Context) (frontier.Snapshot, error)
	Save(ctx context.Context, snap frontier.Snapshot) error
}

// BatchFetcher fetches one batch of titles.
type BatchFetcher interface {
	FetchAll(ctx context.Context, titles []crawler.Title) (batch.Result, error)
}

// LinkExtractor finds the titles an article points at.
type LinkExtractor interface {
	Links(article crawler.Article, restricted bool) (links, transclusions crawler.TitleSet)
	SeedLinks(text string, targets []string) crawler.TitleSet
}

// ContentSink persists harvested articles and returns where they went.
type ContentSink interface {
	Write(ctx context.Context, articles []crawler.Article) (string, error)
}

// RunRecorder tracks runs outside the frontier files.
type RunRecorder interface {
	StartRun(ctx context.Context, runID string, level int, startedAt time.Time) error
	FinishRun(ctx context.Context, runID string, finishedAt time.Time, reason string, crawled int, runErr error) error
}

// Deps are the collaborators of an Orchestrator. Repository, Fetcher,
// Extractor and Filter are required; the rest are optional.
type Deps struct {
	Repository Repository
	Fetcher    BatchFetcher
	Extractor  LinkExtractor
	Filter     filter.TitleFilter
	Content    ContentSink
	Index      crawler.HarvestIndex
	Runs       RunRecorder
	Publisher  crawler.Publisher
	Hasher     crawler.Hasher
	Clock      crawler.Clock
	IDs        crawler.IDGenerator
	Logger     *zap.Logger
	// Tracer defaults to the global OpenTelemetry tracer provider.
	Tracer trace.Tracer
}

// Config holds the per-run crawl settings.
type Config struct {
	// MaxPages is how many new titles a run may add to Crawled.
	MaxPages int
	// MaxLevels is how many levels a leveled run may crawl.
	MaxLevels  int
	Restricted bool
	// TransclusionMerge decides whether transcluded titles join the current
	// level or wait for the next one.
	TransclusionMerge crawler.TransclusionMerge
	// ForceSeedTitles skips the title filter for seed titles.
	ForceSeedTitles bool
	// SeedSectionTargets names the sections whose list items seed the crawl.
	SeedSectionTargets []string
	// RedirectsToPending admits redirect destinations found while seeding
	// into Pending instead of NextPending.
	RedirectsToPending bool
}

// Summary describes a finished run.
type Summary struct {
	RunID      string          `json:"run_id"`
	StartLevel int             `json:"start_level"`
	State      frontier.State  `json:"-"`
	Reason     frontier.Reason `json:"reason"`
	Level      int             `json:"level"`
	Counts     frontier.Counts `json:"counts"`
	Harvested  int             `json:"harvested"`
	Duplicates int             `json:"duplicates"`
	Failed     int             `json:"failed"`
	Missing    int             `json:"missing"`
	Batches    int             `json:"batches"`
	BlobURI    string          `json:"blob_uri,omitempty"`
}

// Orchestrator runs crawls against one frontier.
type Orchestrator struct {
	deps   Deps
	cfg    Config
	logger *zap.Logger
	tracer trace.Tracer
}

// New validates deps and cfg and returns an Orchestrator.
func New(deps Deps, cfg Config) (*Orchestrator, error) {
	switch {
	case deps.Repository == nil:
		return nil, fmt.Errorf("orchestrator: repository is required")
	case deps.Fetcher == nil:
		return nil, fmt.Errorf("orchestrator: fetcher is required")
	case deps.Extractor == nil:
		return nil, fmt.Errorf("orchestrator: extractor is required")
	}
	if deps.Filter == nil {
		deps.Filter = filter.AdmitAll
	}
	if deps.Clock == nil {
		deps.Clock = systemClock{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if cfg.MaxPages < 1 {
		return nil, &crawler.ConfigError{Key: "crawler.max_pages", Reason: "must be at least 1"}
	}
	if cfg.MaxLevels < 1 {
		return nil, &crawler.ConfigError{Key: "crawler.max_levels", Reason: "must be at least 1"}
	}
	if cfg.TransclusionMerge == "" {
		cfg.TransclusionMerge = crawler.MergeConservative
	}
	if !cfg.TransclusionMerge.Valid() {
		return nil, &crawler.ConfigError{
			Key:    "crawler.transclusion_merge",
			Reason: fmt.Sprintf("must be %q or %q", crawler.MergeAggressive, crawler.MergeConservative),
		}
	}
	tracer := deps.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	return &Orchestrator{deps: deps, cfg: cfg, logger: deps.Logger.Named("orchestrator"), tracer: tracer}, nil
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// run is the mutable state of one invocation.
type run struct {
	id        string
	store     *frontier.Store
	startedAt time.Time
	summary   Summary
	harvested []harvest
}

type harvest struct {
	article crawler.Article
	level   int
	at      time.Time
}

func (o *Orchestrator) newRun(ctx context.Context, store *frontier.Store) *run {
	id := ""
	if o.deps.IDs != nil {
		var err error
		if id, err = o.deps.IDs.NewID(); err != nil {
			o.logger.Warn("generate run id", zap.Error(err))
		}
	}
	if id == "" {
		id = fmt.Sprintf("run-%d", o.deps.Clock.Now().UnixNano())
	}
	r := &run{
		id:        id,
		store:     store,
		startedAt: o.deps.Clock.Now(),
		summary:   Summary{RunID: id, StartLevel: store.Level()},
	}
	if o.deps.Runs != nil {
		if err := o.deps.Runs.StartRun(ctx, id, store.Level(), r.startedAt); err != nil {
			o.logger.Warn("record run start", zap.String("run_id", id), zap.Error(err))
		}
	}
	return r
}

// startLevel returns the level the loaded snapshot will be crawled at: the
// persisted level, or the next one when only NextPending has work.
func startLevel(snap frontier.Snapshot) int {
	level := max(snap.Level, 1)
	crawled := crawler.NewTitleSet()
	for t := range snap.Crawled {
		crawled.Add(t)
	}
	if snap.Pending.Minus(crawled, snap.Discarded, snap.Redirected).Len() > 0 {
		return level
	}
	if snap.NextPending.Minus(crawled, snap.Discarded, snap.Redirected).Len() > 0 {
		return level + 1
	}
	return level
}

// Run performs a leveled crawl. It returns crawler.ErrNoWorkAvailable when
// the frontier has nothing left to fetch.
func (o *Orchestrator) Run(ctx context.Context) (Summary, error) {
	return o.traced(ctx, "orchestrator.Run", o.runLeveled)
}

func (o *Orchestrator) runLeveled(ctx context.Context) (Summary, error) {
	snap, err := o.deps.Repository.Load(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("load frontier: %w", err)
	}
	// Levels are persisted as absolute depth; MaxLevels counts the levels
	// this run may crawl starting from the first one it fetches.
	store := frontier.New(frontier.Options{
		Capacity:  frontier.CapacityFor(snap, o.cfg.MaxPages),
		MaxLevels: startLevel(snap) + o.cfg.MaxLevels - 1,
		Mode:      frontier.ModeLeveled,
	})
	store.Load(snap)
	if len(store.Pending()) == 0 && len(store.NextPending()) > 0 {
		if err := store.AdvanceLevel(); err != nil {
			return Summary{}, fmt.Errorf("advance level: %w", err)
		}
	}
	if held := store.Rebalance(); len(held) > 0 {
		o.logger.Info("holding titles over capacity", zap.Int("held", len(held)), zap.Int("capacity", store.Capacity()))
		metrics.ObserveTitles(metrics.OutcomeHeld, len(held))
	}
	if len(store.Pending()) == 0 {
		o.logger.Warn("no new titles to crawl", zap.String("state", store.State().String()))
		return o.saveIdle(ctx, store)
	}

	r := o.newRun(ctx, store)
	o.logger.Info("starting crawl",
		zap.String("run_id", r.id),
		zap.Int("level", store.Level()),
		zap.Int("pending", len(store.Pending())),
		zap.Int("capacity", store.Capacity()),
	)
	loopErr := o.loop(ctx, r)
	return o.finish(ctx, r, loopErr)
}

func (o *Orchestrator) loop(ctx context.Context, r *run) error {
	store := r.store
	for !store.State().Terminal() {
		if err := ctx.Err(); err != nil {
			return err
		}
		metrics.SetLevel(store.Level())
		pending := store.Pending()
		if len(pending) == 0 {
			if err := store.AdvanceLevel(); err != nil {
				return fmt.Errorf("advance level: %w", err)
			}
			o.logger.Info("level finished", zap.String("state", store.State().String()), zap.Int("next", len(store.Pending())))
			continue
		}
		if err := o.processBatch(ctx, r, pending); err != nil {
			return err
		}
		if store.CheckCapacity() {
			o.logger.Info("capacity reached", zap.Int("capacity", store.Capacity()))
		}
		if err := store.CheckInvariants(); err != nil {
			return fmt.Errorf("frontier invariant: %w", err)
		}
	}
	return nil
}

// Seed performs a seeding run over seeds: one batch, discoveries kept in
// Pending for the next leveled run.
func (o *Orchestrator) Seed(ctx context.Context, seeds []crawler.Title) (Summary, error) {
	return o.traced(ctx, "orchestrator.Seed", func(ctx context.Context) (Summary, error) {
		return o.seed(ctx, seeds)
	})
}

func (o *Orchestrator) seed(ctx context.Context, seeds []crawler.Title) (Summary, error) {
	snap, err := o.deps.Repository.Load(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("load frontier: %w", err)
	}
	store := frontier.New(frontier.Options{
		Capacity:  frontier.CapacityFor(snap, o.cfg.MaxPages),
		MaxLevels: o.cfg.MaxLevels,
		Mode:      frontier.ModeSeeding,
	})
	store.Load(snap)

	candidates := store.Unknown(crawler.NewTitleSet(seeds...)).Sorted()
	if !o.cfg.ForceSeedTitles {
		admitted, rejected := o.deps.Filter.FilterMany(candidates)
		store.Discard(rejected...)
		metrics.ObserveTitles(metrics.OutcomeDiscarded, len(rejected))
		candidates = admitted
	}
	admitted, overflow := store.Admit(candidates)
	store.Hold(overflow...)
	metrics.ObserveTitles(metrics.OutcomeHeld, len(overflow))
	if len(admitted) == 0 {
		o.logger.Warn("no new seed titles to crawl", zap.Int("seeds", len(seeds)))
		return o.saveIdle(ctx, store)
	}

	r := o.newRun(ctx, store)
	o.logger.Info("starting seeding run",
		zap.String("run_id", r.id),
		zap.Int("seeds", len(admitted)),
		zap.Int("held", len(overflow)),
	)
	seedErr := o.processSeedBatch(ctx, r, admitted)
	if seedErr == nil {
		store.FinishSeeding()
	}
	return o.finish(ctx, r, seedErr)
}
