// Package config loads and validates harvester configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/JakeFAU/wikiharvest/internal/crawler"
	"github.com/JakeFAU/wikiharvest/internal/filter"
	"github.com/JakeFAU/wikiharvest/internal/persistence"
)

// EnvPrefix is the prefix of environment overrides, e.g. WIKIHARVEST_WIKI_API_ENDPOINT.
const EnvPrefix = "WIKIHARVEST"

// Bounds of the crawl size flags.
const (
	MaxPagesLimit  = 1000
	MaxLevelsLimit = 10
	// MaxMiniBatch is the most titles the API accepts in one query.
	MaxMiniBatch = 50
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Wiki    WikiConfig    `mapstructure:"wiki"`
	Crawler CrawlerConfig `mapstructure:"crawler"`
	Seed    SeedConfig    `mapstructure:"seed"`
	Filter  filter.Config `mapstructure:"filter"`
	Output  OutputConfig  `mapstructure:"output"`
	DB      DBConfig      `mapstructure:"db"`
	PubSub  PubSubConfig  `mapstructure:"pubsub"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// WikiConfig points the client at a MediaWiki Action API.
type WikiConfig struct {
	APIEndpoint       string  `mapstructure:"api_endpoint"`
	UserAgent         string  `mapstructure:"user_agent"`
	TimeoutSeconds    int     `mapstructure:"timeout_seconds"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
	MaxRetries        int     `mapstructure:"max_retries"`
	MaxBodyBytes      int     `mapstructure:"max_body_bytes"`
}

// Timeout returns the request timeout as a duration.
func (w WikiConfig) Timeout() time.Duration {
	return time.Duration(w.TimeoutSeconds) * time.Second
}

// CrawlerConfig governs the crawl loop.
type CrawlerConfig struct {
	MaxPages          int    `mapstructure:"max_pages"`
	MaxLevels         int    `mapstructure:"max_levels"`
	Restricted        bool   `mapstructure:"restricted"`
	Workers           int    `mapstructure:"workers"`
	MiniBatch         int    `mapstructure:"mini_batch"`
	TransclusionMerge string `mapstructure:"transclusion_merge"`
	ForceSeedTitles   bool   `mapstructure:"force_seed_titles"`
}

// SeedConfig controls seeding runs.
type SeedConfig struct {
	// File defaults to seed_titles.txt inside the crawl directory.
	File               string   `mapstructure:"file"`
	SectionTargets     []string `mapstructure:"section_targets"`
	RedirectsToPending bool     `mapstructure:"redirects_to_pending"`
}

// OutputConfig sets where state and content are written.
type OutputConfig struct {
	BasePath      string `mapstructure:"base_path"`
	Dir           string `mapstructure:"dir"`
	ContentPrefix string `mapstructure:"content_prefix"`
	Compression   string `mapstructure:"compression"`
	Storage       string `mapstructure:"storage"`
	GCSBucket     string `mapstructure:"gcs_bucket"`
	GCSPrefix     string `mapstructure:"gcs_prefix"`
}

// CrawlDir returns the directory holding the frontier files.
func (o OutputConfig) CrawlDir() string {
	return filepath.Join(o.BasePath, o.Dir)
}

// DBConfig controls the optional Postgres harvest index.
type DBConfig struct {
	DSN       string `mapstructure:"dsn"`
	Table     string `mapstructure:"table"`
	RunsTable string `mapstructure:"runs_table"`
	MaxConns  int32  `mapstructure:"max_conns"`
}

// PubSubConfig holds metadata for harvest notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// MetricsConfig controls the Prometheus textfile written at exit.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// ServerConfig controls the status server.
type ServerConfig struct {
	Addr   string `mapstructure:"addr"`
	APIKey string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features and the level.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("wiki.api_endpoint", "https://en.wikipedia.org/w/api.php")
	v.SetDefault("wiki.user_agent", "wikiharvest/0.1 (https://github.com/JakeFAU/wikiharvest)")
	v.SetDefault("wiki.timeout_seconds", 30)
	v.SetDefault("wiki.requests_per_second", 5.0)
	v.SetDefault("wiki.burst", 1)
	v.SetDefault("wiki.max_retries", 2)
	v.SetDefault("wiki.max_body_bytes", 32<<20)
	v.SetDefault("crawler.max_pages", 100)
	v.SetDefault("crawler.max_levels", 2)
	v.SetDefault("crawler.restricted", false)
	v.SetDefault("crawler.workers", 4)
	v.SetDefault("crawler.mini_batch", 1)
	v.SetDefault("crawler.transclusion_merge", string(crawler.MergeConservative))
	v.SetDefault("crawler.force_seed_titles", false)
	v.SetDefault("seed.redirects_to_pending", false)
	v.SetDefault("filter.skip_lists", false)
	v.SetDefault("output.base_path", "output")
	v.SetDefault("output.content_prefix", persistence.DefaultContentPrefix)
	v.SetDefault("output.compression", string(persistence.CompressionNone))
	v.SetDefault("output.storage", "local")
	v.SetDefault("db.table", "harvested_pages")
	v.SetDefault("db.runs_table", "harvest_runs")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
}

func invalid(key, format string, args ...any) error {
	return &crawler.ConfigError{Key: key, Reason: fmt.Sprintf(format, args...)}
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	u, err := url.Parse(c.Wiki.APIEndpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return invalid("wiki.api_endpoint", "must be an absolute URL, got %q", c.Wiki.APIEndpoint)
	}
	if c.Wiki.TimeoutSeconds <= 0 {
		return invalid("wiki.timeout_seconds", "must be > 0")
	}
	if c.Wiki.MaxRetries < 0 {
		return invalid("wiki.max_retries", "must be >= 0")
	}
	if c.Crawler.MaxPages < 1 || c.Crawler.MaxPages > MaxPagesLimit {
		return invalid("crawler.max_pages", "must be in 1..%d, got %d", MaxPagesLimit, c.Crawler.MaxPages)
	}
	if c.Crawler.MaxLevels < 1 || c.Crawler.MaxLevels > MaxLevelsLimit {
		return invalid("crawler.max_levels", "must be in 1..%d, got %d", MaxLevelsLimit, c.Crawler.MaxLevels)
	}
	if c.Crawler.Workers <= 0 {
		return invalid("crawler.workers", "must be > 0")
	}
	if c.Crawler.MiniBatch < 1 || c.Crawler.MiniBatch > MaxMiniBatch {
		return invalid("crawler.mini_batch", "must be in 1..%d", MaxMiniBatch)
	}
	if !crawler.TransclusionMerge(c.Crawler.TransclusionMerge).Valid() {
		return invalid("crawler.transclusion_merge", "must be %q or %q", crawler.MergeAggressive, crawler.MergeConservative)
	}
	if !persistence.Compression(c.Output.Compression).Valid() {
		return invalid("output.compression", "unsupported value %q", c.Output.Compression)
	}
	switch c.Output.Storage {
	case "local", "memory":
	case "gcs":
		if c.Output.GCSBucket == "" {
			return invalid("output.gcs_bucket", "is required when output.storage is gcs")
		}
	default:
		return invalid("output.storage", "must be local, gcs or memory, got %q", c.Output.Storage)
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.Topic == "") {
		return invalid("pubsub.topic", "pubsub.project_id and pubsub.topic must be set together")
	}
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return invalid("logging.level", "unknown level %q", c.Logging.Level)
	}
	if _, err := filter.New(c.Filter); err != nil {
		return invalid("filter.deny_patterns", "%v", err)
	}
	return nil
}
