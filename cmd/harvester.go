package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/wikiharvest/internal/clock/system"
	"github.com/JakeFAU/wikiharvest/internal/config"
	"github.com/JakeFAU/wikiharvest/internal/crawler"
	"github.com/JakeFAU/wikiharvest/internal/extract"
	"github.com/JakeFAU/wikiharvest/internal/fetcher/batch"
	"github.com/JakeFAU/wikiharvest/internal/fetcher/mediawiki"
	"github.com/JakeFAU/wikiharvest/internal/filter"
	"github.com/JakeFAU/wikiharvest/internal/hash/sha256"
	"github.com/JakeFAU/wikiharvest/internal/id/uuid"
	"github.com/JakeFAU/wikiharvest/internal/orchestrator"
	"github.com/JakeFAU/wikiharvest/internal/persistence"
	"github.com/JakeFAU/wikiharvest/internal/policy/ratelimit"
	"github.com/JakeFAU/wikiharvest/internal/publisher/pubsub"
	"github.com/JakeFAU/wikiharvest/internal/storage"
	"github.com/JakeFAU/wikiharvest/internal/storage/postgres"
)

// harvester is a fully wired orchestrator plus the resources it holds open.
type harvester struct {
	*orchestrator.Orchestrator
	closers []func()
}

func (h *harvester) Close() {
	for i := len(h.closers) - 1; i >= 0; i-- {
		h.closers[i]()
	}
}

// newHarvester connects every collaborator named by cfg. Optional sinks
// (Postgres, Pub/Sub) are skipped when unconfigured.
func newHarvester(ctx context.Context, cfg config.Config, logger *zap.Logger) (_ *harvester, err error) {
	h := &harvester{}
	defer func() {
		if err != nil {
			h.Close()
		}
	}()

	dir := cfg.Output.CrawlDir()
	limiter := ratelimit.New(ratelimit.Config{
		RequestsPerSecond: cfg.Wiki.RequestsPerSecond,
		Burst:             cfg.Wiki.Burst,
	})
	client, err := mediawiki.New(mediawiki.Config{
		Endpoint:    cfg.Wiki.APIEndpoint,
		UserAgent:   cfg.Wiki.UserAgent,
		Timeout:     cfg.Wiki.Timeout(),
		MaxRetries:  cfg.Wiki.MaxRetries,
		MaxBodySize: cfg.Wiki.MaxBodyBytes,
	}, limiter, logger.Named("mediawiki"))
	if err != nil {
		return nil, fmt.Errorf("init mediawiki client: %w", err)
	}

	titleFilter, err := filter.New(cfg.Filter)
	if err != nil {
		return nil, fmt.Errorf("init title filter: %w", err)
	}

	blobs, err := storage.Open(ctx, storage.Config{
		Backend: cfg.Output.Storage,
		Dir:     dir,
		Bucket:  cfg.Output.GCSBucket,
		Prefix:  cfg.Output.GCSPrefix,
	}, logger.Named("storage"))
	if err != nil {
		return nil, err
	}
	h.closers = append(h.closers, func() {
		if cerr := blobs.Close(); cerr != nil {
			logger.Warn("Failed to close blob store", zap.Error(cerr))
		}
	})

	content, err := persistence.NewContentWriter(blobs, cfg.Output.ContentPrefix,
		persistence.Compression(cfg.Output.Compression), logger.Named("content"))
	if err != nil {
		return nil, err
	}

	deps := orchestrator.Deps{
		Repository: persistence.NewFileRepository(dir, logger.Named("repository")),
		Fetcher: batch.New(client, batch.Options{
			Workers:   cfg.Crawler.Workers,
			MiniBatch: cfg.Crawler.MiniBatch,
		}, logger.Named("batch")),
		Extractor: extract.NewExtractor(logger.Named("extract")),
		Filter:    titleFilter,
		Content:   content,
		Hasher:    sha256.New(),
		Clock:     system.New(),
		IDs:       uuid.New(),
		Logger:    logger.Named("orchestrator"),
	}

	if cfg.DB.DSN != "" {
		index, err := postgres.New(ctx, postgres.Config{
			DSN:       cfg.DB.DSN,
			Table:     cfg.DB.Table,
			RunsTable: cfg.DB.RunsTable,
			MaxConns:  cfg.DB.MaxConns,
		})
		if err != nil {
			return nil, fmt.Errorf("init harvest index: %w", err)
		}
		h.closers = append(h.closers, index.Close)
		deps.Index = index
		deps.Runs = index
	}

	if cfg.PubSub.Topic != "" {
		pub, err := pubsub.New(ctx, pubsub.Config{
			ProjectID: cfg.PubSub.ProjectID,
			TopicID:   cfg.PubSub.Topic,
		}, logger.Named("pubsub"))
		if err != nil {
			return nil, fmt.Errorf("init publisher: %w", err)
		}
		h.closers = append(h.closers, func() {
			if cerr := pub.Close(); cerr != nil {
				logger.Warn("Failed to close publisher", zap.Error(cerr))
			}
		})
		deps.Publisher = pub
	}

	orch, err := orchestrator.New(deps, orchestrator.Config{
		MaxPages:           cfg.Crawler.MaxPages,
		MaxLevels:          cfg.Crawler.MaxLevels,
		Restricted:         cfg.Crawler.Restricted,
		TransclusionMerge:  crawler.TransclusionMerge(cfg.Crawler.TransclusionMerge),
		ForceSeedTitles:    cfg.Crawler.ForceSeedTitles,
		SeedSectionTargets: cfg.Seed.SectionTargets,
		RedirectsToPending: cfg.Seed.RedirectsToPending,
	})
	if err != nil {
		return nil, err
	}
	h.Orchestrator = orch
	return h, nil
}
