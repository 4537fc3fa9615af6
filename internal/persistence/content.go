package persistence

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"github.com/JakeFAU/wikiharvest/internal/crawler"
)

// Compression selects how content blobs are encoded.
type Compression string

// Supported content compressions.
const (
	CompressionNone   Compression = "none"
	CompressionBrotli Compression = "brotli"
	CompressionGzip   Compression = "gzip"
	CompressionZstd   Compression = "zstd"
)

// Extension returns the file suffix appended after ".json".
func (c Compression) Extension() string {
	switch c {
	case CompressionBrotli:
		return ".br"
	case CompressionGzip:
		return ".gz"
	case CompressionZstd:
		return ".zst"
	default:
		return ""
	}
}

// Valid reports whether c names a supported compression. Empty means none.
func (c Compression) Valid() bool {
	switch c {
	case "", CompressionNone, CompressionBrotli, CompressionGzip, CompressionZstd:
		return true
	}
	return false
}

// DefaultContentPrefix names content blobs when no prefix is configured.
const DefaultContentPrefix = "articles"

// maxNumberingAttempts bounds retries when another writer takes a number first.
const maxNumberingAttempts = 3

// ContentRecord is one harvested article as written to a content blob.
type ContentRecord struct {
	Title      crawler.Title  `json:"title"`
	PageID     crawler.PageID `json:"pageid"`
	RevisionID int64          `json:"revid"`
	Text       string         `json:"text"`
	HTML       string         `json:"html,omitempty"`
}

// ContentWriter writes harvested articles as numbered, never overwritten blobs
// named "<prefix>.<n>.json" plus the compression suffix.
type ContentWriter struct {
	store       crawler.BlobStore
	prefix      string
	compression Compression
	logger      *zap.Logger
}

// NewContentWriter builds a writer over store.
func NewContentWriter(store crawler.BlobStore, prefix string, compression Compression, logger *zap.Logger) (*ContentWriter, error) {
	if store == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if !compression.Valid() {
		return nil, &crawler.ConfigError{Key: "output.compression", Reason: fmt.Sprintf("unsupported value %q", compression)}
	}
	if compression == "" {
		compression = CompressionNone
	}
	if prefix = strings.TrimSpace(prefix); prefix == "" {
		prefix = DefaultContentPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContentWriter{
		store:       store,
		prefix:      prefix,
		compression: compression,
		logger:      logger.Named("content"),
	}, nil
}

// NextIndex returns 1 + the highest existing blob number, or 0 when no blob
// with this prefix exists.
func (w *ContentWriter) NextIndex(ctx context.Context) (int, error) {
	names, err := w.store.List(ctx, w.prefix+".")
	if err != nil {
		return 0, fmt.Errorf("list content blobs: %w", err)
	}
	next := 0
	for _, name := range names {
		if n, ok := w.blobNumber(name); ok && n+1 > next {
			next = n + 1
		}
	}
	return next, nil
}

// blobNumber extracts n from "<prefix>.<n>.json[.ext]".
func (w *ContentWriter) blobNumber(name string) (int, bool) {
	rest, ok := strings.CutPrefix(name, w.prefix+".")
	if !ok {
		return 0, false
	}
	digits, tail, ok := strings.Cut(rest, ".")
	if !ok || !strings.HasPrefix(tail, "json") {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// Write stores articles as one blob and returns its URI. An empty batch
// writes nothing and returns an empty URI.
func (w *ContentWriter) Write(ctx context.Context, articles []crawler.Article) (string, error) {
	if len(articles) == 0 {
		return "", nil
	}
	records := make([]ContentRecord, 0, len(articles))
	for _, a := range articles {
		records = append(records, ContentRecord{
			Title:      a.Title,
			PageID:     a.PageID,
			RevisionID: a.RevisionID,
			Text:       a.Text,
			HTML:       a.HTML,
		})
	}
	body, err := w.encode(records)
	if err != nil {
		return "", err
	}

	for attempt := 0; attempt < maxNumberingAttempts; attempt++ {
		n, err := w.NextIndex(ctx)
		if err != nil {
			return "", err
		}
		name := fmt.Sprintf("%s.%d.json%s", w.prefix, n, w.compression.Extension())
		uri, err := w.store.PutObject(ctx, name, "application/json", bytes.NewReader(body))
		if errors.Is(err, crawler.ErrBlobExists) {
			w.logger.Warn("content blob number taken, retrying", zap.String("name", name))
			continue
		}
		if err != nil {
			return "", fmt.Errorf("put content blob: %w", err)
		}
		w.logger.Info("wrote content blob",
			zap.String("uri", uri),
			zap.Int("articles", len(records)),
			zap.Int("bytes", len(body)),
		)
		return uri, nil
	}
	return "", fmt.Errorf("put content blob: %w", crawler.ErrBlobExists)
}

func (w *ContentWriter) encode(records []ContentRecord) ([]byte, error) {
	var buf bytes.Buffer
	var (
		out     io.Writer = &buf
		closeFn           = func() error { return nil }
	)
	switch w.compression {
	case CompressionBrotli:
		bw := brotli.NewWriterLevel(&buf, brotli.DefaultCompression)
		out, closeFn = bw, bw.Close
	case CompressionGzip:
		gw := gzip.NewWriter(&buf)
		out, closeFn = gw, gw.Close
	case CompressionZstd:
		zw, err := zstd.NewWriter(&buf)
		if err != nil {
			return nil, fmt.Errorf("create zstd encoder: %w", err)
		}
		out, closeFn = zw, zw.Close
	}
	if err := json.NewEncoder(out).Encode(records); err != nil {
		_ = closeFn()
		return nil, fmt.Errorf("encode content: %w", err)
	}
	if err := closeFn(); err != nil {
		return nil, fmt.Errorf("finish compression: %w", err)
	}
	return buf.Bytes(), nil
}
