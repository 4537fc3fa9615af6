// Package postgres indexes harvested pages and crawl runs in Postgres.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/wikiharvest/internal/crawler"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Run statuses stored in the runs table.
const (
	RunRunning   = "running"
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// Config controls the Postgres connection pool used for the harvest index.
type Config struct {
	DSN             string        `mapstructure:"dsn"`
	Table           string        `mapstructure:"table"`
	RunsTable       string        `mapstructure:"runs_table"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

type pool interface {
	Begin(context.Context) (pgx.Tx, error)
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// HarvestStore writes one row per harvested page and one row per run.
type HarvestStore struct {
	pool      pool
	table     string
	runsTable string
}

var _ crawler.HarvestIndex = (*HarvestStore)(nil)

func tableNames(cfg Config) (string, string, error) {
	table, runs := cfg.Table, cfg.RunsTable
	if table == "" {
		table = "harvested_pages"
	}
	if runs == "" {
		runs = "harvest_runs"
	}
	for _, name := range []string{table, runs} {
		if !validTableName.MatchString(name) {
			return "", "", fmt.Errorf("invalid table name %q", name)
		}
	}
	return table, runs, nil
}

// New connects a pool using cfg.
func New(ctx context.Context, cfg Config) (*HarvestStore, error) {
	if cfg.DSN == "" {
		return nil, &crawler.ConfigError{Key: "db.dsn", Reason: "is required"}
	}
	table, runs, err := tableNames(cfg)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &HarvestStore{pool: p, table: table, runsTable: runs}, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(p pool, cfg Config) (*HarvestStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	table, runs, err := tableNames(cfg)
	if err != nil {
		return nil, err
	}
	return &HarvestStore{pool: p, table: table, runsTable: runs}, nil
}

// Close releases the underlying pool resources.
func (s *HarvestStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// RecordHarvest inserts all records in one transaction. Re-harvesting the
// same page in the same run updates the existing row.
func (s *HarvestStore) RecordHarvest(ctx context.Context, records []crawler.HarvestRecord) (err error) {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin harvest insert: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
			}
		}
	}()

	query := fmt.Sprintf(`
INSERT INTO %s (
	run_id,
	title,
	page_id,
	revision_id,
	level,
	blob_uri,
	content_hash,
	harvested_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8
)
ON CONFLICT (run_id, page_id) DO UPDATE
SET revision_id = EXCLUDED.revision_id, blob_uri = EXCLUDED.blob_uri, content_hash = EXCLUDED.content_hash`, s.table)

	for _, rec := range records {
		if rec.RunID == "" {
			return fmt.Errorf("record %q: run id is required", rec.Title)
		}
		_, err = tx.Exec(ctx, query,
			rec.RunID,
			string(rec.Title),
			int64(rec.PageID),
			rec.RevisionID,
			rec.Level,
			rec.BlobURI,
			rec.ContentHash,
			rec.HarvestedAt,
		)
		if err != nil {
			return fmt.Errorf("insert harvest %q: %w", rec.Title, err)
		}
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit harvest insert: %w", err)
	}
	return nil
}

// StartRun records the start of a crawl run.
func (s *HarvestStore) StartRun(ctx context.Context, runID string, level int, startedAt time.Time) error {
	query := fmt.Sprintf(`
INSERT INTO %s (id, started_at, start_level, status)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO NOTHING`, s.runsTable)
	if _, err := s.pool.Exec(ctx, query, runID, startedAt, level, RunRunning); err != nil {
		return fmt.Errorf("start run: %w", err)
	}
	return nil
}

// FinishRun marks a run finished with its terminal reason and optional error.
func (s *HarvestStore) FinishRun(
	ctx context.Context,
	runID string,
	finishedAt time.Time,
	reason string,
	crawled int,
	runErr error,
) error {
	status := RunSucceeded
	var errMsg *string
	if runErr != nil {
		status = RunFailed
		msg := runErr.Error()
		errMsg = &msg
	}
	query := fmt.Sprintf(`
UPDATE %s
SET finished_at = $1, status = $2, reason = $3, crawled = $4, error_message = $5
WHERE id = $6`, s.runsTable)
	tag, err := s.pool.Exec(ctx, query, finishedAt, status, reason, crawled, errMsg, runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("finish run %s: %w", runID, crawler.ErrNotFound)
	}
	return nil
}
