// Package persistence stores the frontier between runs and writes harvested
// content as numbered blobs.
package persistence

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/JakeFAU/wikiharvest/internal/crawler"
)

// maxLineSize bounds a single title line.
const maxLineSize = 1 << 20

func scanLines(r io.Reader, fn func(line string) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if err := fn(line); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("scan lines: %w", err)
	}
	return nil
}

// ReadTitles reads one title per line. Blank lines are skipped and every
// title is normalized.
func ReadTitles(r io.Reader) (crawler.TitleSet, error) {
	set := crawler.NewTitleSet()
	err := scanLines(r, func(line string) error {
		set.Add(crawler.NormalizeTitle(line))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return set, nil
}

// WriteTitles writes the set one title per line in sorted order.
func WriteTitles(w io.Writer, set crawler.TitleSet) error {
	bw := bufio.NewWriter(w)
	for _, t := range set.Sorted() {
		if _, err := bw.WriteString(string(t) + "\n"); err != nil {
			return fmt.Errorf("write title: %w", err)
		}
	}
	return bw.Flush()
}

// ReadTitlesFile reads a title list from disk. A missing file yields an
// empty set.
func ReadTitlesFile(path string) (crawler.TitleSet, error) {
	f, err := os.Open(path) // #nosec G304 -- path comes from operator configuration
	if errors.Is(err, os.ErrNotExist) {
		return crawler.NewTitleSet(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	set, err := ReadTitles(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return set, nil
}

// ReadCrawled reads "title<TAB>pageid" lines. Lines without a page id load
// with crawler.NoPageID.
func ReadCrawled(r io.Reader) (map[crawler.Title]crawler.PageID, error) {
	out := make(map[crawler.Title]crawler.PageID)
	err := scanLines(r, func(line string) error {
		name, rawID, found := strings.Cut(line, "\t")
		t := crawler.NormalizeTitle(name)
		if t == "" {
			return nil
		}
		id := crawler.NoPageID
		if found {
			n, err := strconv.ParseInt(strings.TrimSpace(rawID), 10, 64)
			if err != nil {
				return fmt.Errorf("page id for %q: %w", t, err)
			}
			id = crawler.PageID(n)
		}
		out[t] = id
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// WriteCrawled writes crawled titles with their page ids, sorted by title.
func WriteCrawled(w io.Writer, crawled map[crawler.Title]crawler.PageID) error {
	titles := make([]crawler.Title, 0, len(crawled))
	for t := range crawled {
		titles = append(titles, t)
	}
	crawler.SortTitles(titles)
	bw := bufio.NewWriter(w)
	for _, t := range titles {
		if _, err := fmt.Fprintf(bw, "%s\t%d\n", t, crawled[t]); err != nil {
			return fmt.Errorf("write crawled title: %w", err)
		}
	}
	return bw.Flush()
}

// ReadPageIDs reads one page id per line.
func ReadPageIDs(r io.Reader) ([]crawler.PageID, error) {
	var ids []crawler.PageID
	err := scanLines(r, func(line string) error {
		n, err := strconv.ParseInt(line, 10, 64)
		if err != nil {
			return fmt.Errorf("parse page id %q: %w", line, err)
		}
		ids = append(ids, crawler.PageID(n))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// WritePageIDs writes the ids in ascending order.
func WritePageIDs(w io.Writer, ids []crawler.PageID) error {
	sorted := append([]crawler.PageID(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	bw := bufio.NewWriter(w)
	for _, id := range sorted {
		if _, err := bw.WriteString(strconv.FormatInt(int64(id), 10) + "\n"); err != nil {
			return fmt.Errorf("write page id: %w", err)
		}
	}
	return bw.Flush()
}
