// Package cmd defines and implements the CLI commands for the wikiharvest executable.
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/wikiharvest/internal/config"
	"github.com/JakeFAU/wikiharvest/internal/crawler"
	"github.com/JakeFAU/wikiharvest/internal/metrics"
	"github.com/JakeFAU/wikiharvest/internal/orchestrator"
	"github.com/JakeFAU/wikiharvest/internal/persistence"
	"github.com/JakeFAU/wikiharvest/internal/telemetry"
)

// dirLayout names crawl directories created by seeding runs without --dir.
const dirLayout = "20060102-150405"

type crawlOptions struct {
	seed          bool
	seedFile      string
	restricted    bool
	maxPages      int
	levels        int
	basePath      string
	dir           string
	transclusions string
	forceSeeds    bool
}

// newCrawlCmd creates the 'crawl' subcommand.
func newCrawlCmd() *cobra.Command {
	opts := &crawlOptions{}
	cmd := &cobra.Command{
		Use:   "crawl [seed titles...]",
		Short: "Crawl the next levels of a harvest",
		Long: `Continues the crawl stored in the crawl directory, fetching pending
titles level by level until the page or level limit is reached. With --seed a
new crawl is started from the titles in the seed file and any titles given as
arguments.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCrawl(cmd, opts, args)
		},
	}

	f := cmd.Flags()
	f.BoolVarP(&opts.seed, "seed", "s", false, "seed a crawl instead of continuing one")
	f.StringVar(&opts.seedFile, "seed-file", "", "seed titles file (default <dir>/seed_titles.txt)")
	f.BoolVarP(&opts.restricted, "restricted", "r", false, "follow only See also sections and {{Main}}/{{See also}} hatnotes")
	f.IntVarP(&opts.maxPages, "maxpages", "m", 100, fmt.Sprintf("new pages to crawl (1..%d)", config.MaxPagesLimit))
	f.IntVarP(&opts.levels, "levels", "l", 2, fmt.Sprintf("levels to crawl (1..%d)", config.MaxLevelsLimit))
	f.StringVarP(&opts.basePath, "basepath", "b", "output", "base output directory")
	f.StringVarP(&opts.dir, "dir", "d", "", "crawl directory under the base path (default: a timestamp when seeding)")
	f.StringVar(&opts.transclusions, "transclusions", string(crawler.MergeConservative), "transcluded title merge: aggressive or conservative")
	f.BoolVar(&opts.forceSeeds, "force-seeds", false, "admit seed titles the title filter rejects")

	return cmd
}

// applyCrawlFlags overrides cfg with the flags set on the command line.
func applyCrawlFlags(cmd *cobra.Command, opts *crawlOptions, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("restricted") {
		cfg.Crawler.Restricted = opts.restricted
	}
	if f.Changed("maxpages") {
		cfg.Crawler.MaxPages = opts.maxPages
	}
	if f.Changed("levels") {
		cfg.Crawler.MaxLevels = opts.levels
	}
	if f.Changed("basepath") {
		cfg.Output.BasePath = opts.basePath
	}
	if f.Changed("dir") {
		cfg.Output.Dir = opts.dir
	}
	if f.Changed("transclusions") {
		cfg.Crawler.TransclusionMerge = opts.transclusions
	}
	if f.Changed("force-seeds") {
		cfg.Crawler.ForceSeedTitles = opts.forceSeeds
	}
	if f.Changed("seed-file") {
		cfg.Seed.File = opts.seedFile
	}
}

// prepareCrawlDir picks the crawl directory and checks it can be used.
func prepareCrawlDir(cfg *config.Config, seeding bool, now time.Time) error {
	if cfg.Output.Dir == "" {
		if !seeding {
			return &crawler.ConfigError{Key: "output.dir", Reason: "--dir is required to continue a crawl"}
		}
		cfg.Output.Dir = now.UTC().Format(dirLayout)
	}
	dir := cfg.Output.CrawlDir()
	if seeding {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create crawl directory: %w", err)
		}
		return nil
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return &crawler.ConfigError{Key: "output.dir", Reason: fmt.Sprintf("crawl directory %s does not exist", dir)}
	}
	return nil
}

func seedTitles(cfg config.Config, args []string) ([]crawler.Title, error) {
	path := cfg.Seed.File
	if path == "" {
		path = filepath.Join(cfg.Output.CrawlDir(), persistence.SeedFile)
	}
	set, err := persistence.ReadTitlesFile(path)
	if err != nil {
		return nil, err
	}
	for _, arg := range args {
		if t := crawler.NormalizeTitle(arg); t != "" {
			set.Add(t)
		}
	}
	return set.Sorted(), nil
}

func runCrawl(cmd *cobra.Command, opts *crawlOptions, args []string) error {
	a, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	if len(args) > 0 && !opts.seed {
		return &crawler.ConfigError{Key: "seed", Reason: "seed titles require --seed"}
	}

	cfg := a.cfg
	applyCrawlFlags(cmd, opts, &cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := prepareCrawlDir(&cfg, opts.seed, time.Now()); err != nil {
		return err
	}
	logger := a.logger.With(zap.String("dir", cfg.Output.CrawlDir()))

	tp, err := telemetry.InitTracerProvider(cmd.Context(), "wikiharvest", buildVersion(), logger)
	if err != nil {
		return err
	}
	defer func() {
		if serr := tp.Shutdown(context.WithoutCancel(cmd.Context())); serr != nil {
			logger.Warn("Failed to flush traces", zap.Error(serr))
		}
	}()

	h, err := newHarvester(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer h.Close()
	if cfg.Metrics.Textfile != "" {
		defer func() {
			if werr := metrics.WriteTextfile(cfg.Metrics.Textfile); werr != nil {
				logger.Warn("Failed to write metrics textfile", zap.Error(werr))
			}
		}()
	}

	var summary orchestrator.Summary
	if opts.seed {
		seeds, serr := seedTitles(cfg, args)
		if serr != nil {
			return serr
		}
		logger.Info("Seeding crawl", zap.Int("seeds", len(seeds)))
		summary, err = h.Seed(cmd.Context(), seeds)
	} else {
		summary, err = h.Run(cmd.Context())
	}
	if err != nil {
		if !errors.Is(err, crawler.ErrNoWorkAvailable) {
			logger.Error("Crawl failed", zap.Error(err))
		}
		return err
	}

	logger.Info("Crawl command finished.",
		zap.String("run_id", summary.RunID),
		zap.String("reason", string(summary.Reason)),
		zap.Int("level", summary.Level),
		zap.Int("harvested", summary.Harvested),
	)
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}
