// Package storage selects the blob store that receives harvested content.
// This abstraction allows the crawl to be independent of a specific backend
// (Google Cloud Storage, the local filesystem, or memory for tests).
package storage

import (
	"context"
	"fmt"
	"strings"

	gstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/JakeFAU/wikiharvest/internal/crawler"
	"github.com/JakeFAU/wikiharvest/internal/storage/gcs"
	"github.com/JakeFAU/wikiharvest/internal/storage/local"
	"github.com/JakeFAU/wikiharvest/internal/storage/memory"
)

// Supported backends.
const (
	BackendLocal  = "local"
	BackendGCS    = "gcs"
	BackendMemory = "memory"
)

// Config selects and configures a blob store backend.
type Config struct {
	Backend string
	// Dir is the crawl directory for the local backend.
	Dir string
	// Bucket and Prefix configure the gcs backend.
	Bucket string
	Prefix string
	// ClientOptions are passed to the GCS client.
	ClientOptions []option.ClientOption
}

// Store is an opened blob store plus the function releasing its resources.
type Store struct {
	crawler.BlobStore
	close func() error
}

// Close releases the backend's resources.
func (s *Store) Close() error {
	if s == nil || s.close == nil {
		return nil
	}
	return s.close()
}

// Open builds the configured backend. For gcs the bucket is checked up front so
// a bad configuration fails before any article is fetched.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	if backend == "" {
		backend = BackendLocal
	}
	switch backend {
	case BackendLocal:
		blobs, err := local.New(local.Config{BaseDir: cfg.Dir})
		if err != nil {
			return nil, fmt.Errorf("open local blob store: %w", err)
		}
		return &Store{BlobStore: blobs}, nil
	case BackendMemory:
		return &Store{BlobStore: memory.NewBlobStore()}, nil
	case BackendGCS:
		return openGCS(ctx, cfg, logger)
	default:
		return nil, &crawler.ConfigError{Key: "output.storage", Reason: fmt.Sprintf("unknown backend %q", cfg.Backend)}
	}
}

func openGCS(ctx context.Context, cfg Config, logger *zap.Logger) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, &crawler.ConfigError{Key: "output.gcs_bucket", Reason: "is required for the gcs backend"}
	}
	client, err := gstorage.NewClient(ctx, cfg.ClientOptions...)
	if err != nil {
		return nil, fmt.Errorf("create GCS client: %w", err)
	}
	if _, err := client.Bucket(cfg.Bucket).Attrs(ctx); err != nil {
		if closeErr := client.Close(); closeErr != nil {
			logger.Warn("close GCS client after bucket check failure", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("get GCS bucket %q attributes: %w", cfg.Bucket, err)
	}
	blobs, err := gcs.New(client, gcs.Config{Bucket: cfg.Bucket, Prefix: cfg.Prefix})
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	logger.Info("using GCS blob store", zap.String("bucket", cfg.Bucket), zap.String("prefix", cfg.Prefix))
	return &Store{BlobStore: blobs, close: client.Close}, nil
}
