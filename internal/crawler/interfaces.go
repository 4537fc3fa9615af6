package crawler

import (
	"context"
	"io"
	"time"
)

// Fetcher retrieves a single article by title. Missing pages yield ErrNotFound.
type Fetcher interface {
	Fetch(ctx context.Context, title Title) (Article, error)
}

// MultiFetcher retrieves many articles in one logical request. Implementations
// merge paginated continuation responses by page id before returning.
type MultiFetcher interface {
	Fetcher
	FetchMany(ctx context.Context, titles []Title) ([]Article, error)
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, body io.Reader) (string, error)
	// List returns the object paths under prefix, relative to the store root.
	List(ctx context.Context, prefix string) ([]string, error)
}

// HarvestRecord is one harvested page as indexed by a HarvestIndex.
type HarvestRecord struct {
	RunID       string
	Title       Title
	PageID      PageID
	RevisionID  int64
	Level       int
	BlobURI     string
	ContentHash string
	HarvestedAt time.Time
}

// HarvestIndex records harvested pages outside the content blobs.
type HarvestIndex interface {
	RecordHarvest(ctx context.Context, records []HarvestRecord) error
}

// HarvestEvent announces a newly written content blob.
type HarvestEvent struct {
	RunID        string    `json:"run_id"`
	BlobURI      string    `json:"blob_uri"`
	ArticleCount int       `json:"article_count"`
	Level        int       `json:"level"`
	WrittenAt    time.Time `json:"written_at"`
}

// Publisher pushes harvest events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher computes content digests.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
