package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/wikiharvest/internal/crawler"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://en.wikipedia.org/w/api.php", cfg.Wiki.APIEndpoint)
	assert.Equal(t, 30*time.Second, cfg.Wiki.Timeout())
	assert.Equal(t, 100, cfg.Crawler.MaxPages)
	assert.Equal(t, 2, cfg.Crawler.MaxLevels)
	assert.Equal(t, 1, cfg.Crawler.MiniBatch)
	assert.Equal(t, string(crawler.MergeConservative), cfg.Crawler.TransclusionMerge)
	assert.Equal(t, "local", cfg.Output.Storage)
	assert.Equal(t, "output", cfg.Output.CrawlDir())
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadWithFileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
wiki:
  api_endpoint: https://de.wikipedia.org/w/api.php
  user_agent: test-agent
  timeout_seconds: 5
  requests_per_second: 2
crawler:
  max_pages: 250
  max_levels: 4
  restricted: true
  workers: 8
  mini_batch: 20
  transclusion_merge: aggressive
seed:
  section_targets: ["See also", "Related"]
  redirects_to_pending: true
filter:
  exclude_namespaces: ["Talk"]
  deny_patterns: ["^Draft"]
  skip_lists: true
output:
  base_path: /tmp/harvest
  dir: animals
  compression: zstd
  storage: gcs
  gcs_bucket: bucket
db:
  dsn: postgres://localhost/wiki
pubsub:
  project_id: proj
  topic: harvests
logging:
  development: true
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://de.wikipedia.org/w/api.php", cfg.Wiki.APIEndpoint)
	assert.Equal(t, "test-agent", cfg.Wiki.UserAgent)
	assert.Equal(t, 5*time.Second, cfg.Wiki.Timeout())
	assert.InDelta(t, 2.0, cfg.Wiki.RequestsPerSecond, 0.001)
	assert.Equal(t, 250, cfg.Crawler.MaxPages)
	assert.Equal(t, 4, cfg.Crawler.MaxLevels)
	assert.True(t, cfg.Crawler.Restricted)
	assert.Equal(t, 20, cfg.Crawler.MiniBatch)
	assert.Equal(t, "aggressive", cfg.Crawler.TransclusionMerge)
	assert.Equal(t, []string{"See also", "Related"}, cfg.Seed.SectionTargets)
	assert.True(t, cfg.Seed.RedirectsToPending)
	assert.Equal(t, []string{"Talk"}, cfg.Filter.ExcludeNamespaces)
	assert.Equal(t, []string{"^Draft"}, cfg.Filter.DenyPatterns)
	assert.True(t, cfg.Filter.SkipLists)
	assert.Equal(t, filepath.Join("/tmp/harvest", "animals"), cfg.Output.CrawlDir())
	assert.Equal(t, "zstd", cfg.Output.Compression)
	assert.Equal(t, "bucket", cfg.Output.GCSBucket)
	assert.Equal(t, "postgres://localhost/wiki", cfg.DB.DSN)
	assert.Equal(t, "harvested_pages", cfg.DB.Table)
	assert.Equal(t, "harvests", cfg.PubSub.Topic)
	assert.True(t, cfg.Logging.Development)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("WIKIHARVEST_CRAWLER_MAX_PAGES", "7")
	t.Setenv("WIKIHARVEST_OUTPUT_STORAGE", "memory")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Crawler.MaxPages)
	assert.Equal(t, "memory", cfg.Output.Storage)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func validConfig(t *testing.T) Config {
	t.Helper()
	cfg, err := Load("")
	require.NoError(t, err)
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		key    string
	}{
		{name: "relative endpoint", mutate: func(c *Config) { c.Wiki.APIEndpoint = "/w/api.php" }, key: "wiki.api_endpoint"},
		{name: "zero timeout", mutate: func(c *Config) { c.Wiki.TimeoutSeconds = 0 }, key: "wiki.timeout_seconds"},
		{name: "negative retries", mutate: func(c *Config) { c.Wiki.MaxRetries = -1 }, key: "wiki.max_retries"},
		{name: "max pages zero", mutate: func(c *Config) { c.Crawler.MaxPages = 0 }, key: "crawler.max_pages"},
		{name: "max pages too high", mutate: func(c *Config) { c.Crawler.MaxPages = MaxPagesLimit + 1 }, key: "crawler.max_pages"},
		{name: "max levels too high", mutate: func(c *Config) { c.Crawler.MaxLevels = MaxLevelsLimit + 1 }, key: "crawler.max_levels"},
		{name: "no workers", mutate: func(c *Config) { c.Crawler.Workers = 0 }, key: "crawler.workers"},
		{name: "mini batch too big", mutate: func(c *Config) { c.Crawler.MiniBatch = MaxMiniBatch + 1 }, key: "crawler.mini_batch"},
		{name: "merge", mutate: func(c *Config) { c.Crawler.TransclusionMerge = "eager" }, key: "crawler.transclusion_merge"},
		{name: "compression", mutate: func(c *Config) { c.Output.Compression = "bz2" }, key: "output.compression"},
		{name: "storage", mutate: func(c *Config) { c.Output.Storage = "s3" }, key: "output.storage"},
		{name: "gcs bucket", mutate: func(c *Config) { c.Output.Storage = "gcs" }, key: "output.gcs_bucket"},
		{name: "pubsub half set", mutate: func(c *Config) { c.PubSub.Topic = "t" }, key: "pubsub.topic"},
		{name: "log level", mutate: func(c *Config) { c.Logging.Level = "loud" }, key: "logging.level"},
		{name: "deny pattern", mutate: func(c *Config) { c.Filter.DenyPatterns = []string{"("} }, key: "filter.deny_patterns"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(&cfg)

			err := cfg.Validate()
			var cfgErr *crawler.ConfigError
			require.True(t, errors.As(err, &cfgErr), "got %v", err)
			assert.Equal(t, tt.key, cfgErr.Key)
		})
	}
}
