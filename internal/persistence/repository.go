package persistence

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/wikiharvest/internal/crawler"
	"github.com/JakeFAU/wikiharvest/internal/frontier"
)

// State file names inside a crawl directory.
const (
	CrawledFile     = "crawled_titles.txt"
	PendingFile     = "pending_titles.txt"
	NextPendingFile = "next_pending_titles.txt"
	DiscardedFile   = "discarded_titles.txt"
	RedirectedFile  = "redirected_titles.txt"
	PageIDsFile     = "page_ids.txt"
	LevelFile       = "level.txt"
	SeedFile        = "seed_titles.txt"
)

// Repository loads and saves frontier snapshots.
type Repository interface {
	Load(ctx context.Context) (frontier.Snapshot, error)
	Save(ctx context.Context, snap frontier.Snapshot) error
}

// FileRepository keeps the frontier as plain text files in Dir.
type FileRepository struct {
	Dir    string
	logger *zap.Logger
}

var _ Repository = (*FileRepository)(nil)

// NewFileRepository returns a repository rooted at dir.
func NewFileRepository(dir string, logger *zap.Logger) *FileRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileRepository{Dir: dir, logger: logger.Named("persistence")}
}

func (r *FileRepository) open(name string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(r.Dir, name)) // #nosec G304 -- fixed file names under the crawl dir
	if errors.Is(err, os.ErrNotExist) {
		return io.NopCloser(strings.NewReader("")), nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return f, nil
}

func (r *FileRepository) readSet(name string) (crawler.TitleSet, error) {
	f, err := r.open(name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	set, err := ReadTitles(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return set, nil
}

// Load reads every state file. Missing files load as empty sets and a
// missing level file loads as level 0.
func (r *FileRepository) Load(_ context.Context) (frontier.Snapshot, error) {
	snap := frontier.NewSnapshot()

	sets := []struct {
		name string
		dst  *crawler.TitleSet
	}{
		{PendingFile, &snap.Pending},
		{NextPendingFile, &snap.NextPending},
		{DiscardedFile, &snap.Discarded},
		{RedirectedFile, &snap.Redirected},
	}
	for _, s := range sets {
		set, err := r.readSet(s.name)
		if err != nil {
			return frontier.Snapshot{}, err
		}
		*s.dst = set
	}

	f, err := r.open(CrawledFile)
	if err != nil {
		return frontier.Snapshot{}, err
	}
	snap.Crawled, err = ReadCrawled(f)
	_ = f.Close()
	if err != nil {
		return frontier.Snapshot{}, fmt.Errorf("read %s: %w", CrawledFile, err)
	}

	f, err = r.open(PageIDsFile)
	if err != nil {
		return frontier.Snapshot{}, err
	}
	snap.PageIDs, err = ReadPageIDs(f)
	_ = f.Close()
	if err != nil {
		return frontier.Snapshot{}, fmt.Errorf("read %s: %w", PageIDsFile, err)
	}

	raw, err := os.ReadFile(filepath.Join(r.Dir, LevelFile))
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return frontier.Snapshot{}, fmt.Errorf("read %s: %w", LevelFile, err)
	default:
		level, convErr := strconv.Atoi(strings.TrimSpace(string(raw)))
		if convErr != nil {
			return frontier.Snapshot{}, fmt.Errorf("parse %s: %w", LevelFile, convErr)
		}
		snap.Level = level
	}

	r.logger.Debug("loaded frontier",
		zap.String("dir", r.Dir),
		zap.Int("crawled", len(snap.Crawled)),
		zap.Int("pending", snap.Pending.Len()),
		zap.Int("next_pending", snap.NextPending.Len()),
		zap.Int("level", snap.Level),
	)
	return snap, nil
}

// Save writes every state file to a temporary name first and renames them
// into place only after all writes succeeded. A failed write leaves the
// previous state untouched. Each rename is atomic but the set of renames is
// not: a crash between two of them leaves a mix of old and new files. The
// level file is renamed last so a torn save never reports the new level.
func (r *FileRepository) Save(_ context.Context, snap frontier.Snapshot) error {
	if err := os.MkdirAll(r.Dir, 0o750); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	files := make(map[string]*bytes.Buffer, 7)
	encode := func(name string, fn func(io.Writer) error) error {
		buf := &bytes.Buffer{}
		if err := fn(buf); err != nil {
			return fmt.Errorf("encode %s: %w", name, err)
		}
		files[name] = buf
		return nil
	}
	encoders := []struct {
		name string
		fn   func(io.Writer) error
	}{
		{CrawledFile, func(w io.Writer) error { return WriteCrawled(w, snap.Crawled) }},
		{PendingFile, func(w io.Writer) error { return WriteTitles(w, snap.Pending) }},
		{NextPendingFile, func(w io.Writer) error { return WriteTitles(w, snap.NextPending) }},
		{DiscardedFile, func(w io.Writer) error { return WriteTitles(w, snap.Discarded) }},
		{RedirectedFile, func(w io.Writer) error { return WriteTitles(w, snap.Redirected) }},
		{PageIDsFile, func(w io.Writer) error { return WritePageIDs(w, snap.PageIDs) }},
		{LevelFile, func(w io.Writer) error {
			_, err := fmt.Fprintf(w, "%d\n", snap.Level)
			return err
		}},
	}
	for _, e := range encoders {
		if err := encode(e.name, e.fn); err != nil {
			return err
		}
	}

	temps := make(map[string]string, len(files))
	cleanup := func() {
		for _, tmp := range temps {
			_ = os.Remove(tmp)
		}
	}
	for name, buf := range files {
		tmp, err := os.CreateTemp(r.Dir, "."+name+".*.tmp")
		if err != nil {
			cleanup()
			return fmt.Errorf("create temp for %s: %w", name, err)
		}
		temps[name] = tmp.Name()
		_, writeErr := tmp.Write(buf.Bytes())
		closeErr := tmp.Close()
		if writeErr != nil || closeErr != nil {
			cleanup()
			return fmt.Errorf("write temp for %s: %w", name, errors.Join(writeErr, closeErr))
		}
	}

	for _, e := range encoders {
		name, tmp := e.name, temps[e.name]
		if err := os.Rename(tmp, filepath.Join(r.Dir, name)); err != nil {
			cleanup()
			return fmt.Errorf("replace %s: %w", name, err)
		}
	}

	r.logger.Info("saved frontier",
		zap.String("dir", r.Dir),
		zap.Int("crawled", len(snap.Crawled)),
		zap.Int("pending", snap.Pending.Len()),
		zap.Int("next_pending", snap.NextPending.Len()),
		zap.Int("level", snap.Level),
	)
	return nil
}
