package crawler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned by ObjectStore reads and deletes of missing objects.
var ErrNotFound = errors.New("object not found")

// Fetcher fetches a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// ListingClient fetches one page of a topic listing.
type ListingClient interface {
	FetchListing(ctx context.Context, pageURL string) (ListingPage, error)
}

// ArticleClient fetches the content entries of one article.
type ArticleClient interface {
	FetchArticle(ctx context.Context, articleURL string) ([]json.RawMessage, error)
}

// BlobStore writes artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// ObjectStore is a BlobStore that can also read back and remove what it wrote.
// PutObject must never leave a partially written object visible.
// GetObject and DeleteObject report missing objects with ErrNotFound.
type ObjectStore interface {
	BlobStore
	GetObject(ctx context.Context, path string) ([]byte, error)
	DeleteObject(ctx context.Context, path string) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// Metrics receives crawl outcome observations.
type Metrics interface {
	ObserveListing(topic string, status string)
	ObserveArticle(topic string, status string)
	ObserveRetry(kind string, status string)
}

// Metric status and kind labels.
const (
	StatusStored  = "stored"
	StatusSkipped = "skipped"
	StatusFailed  = "failed"
	StatusOK      = "ok"

	KindListing = "listing"
	KindArticle = "article"
)

type noopMetrics struct{}

func (noopMetrics) ObserveListing(string, string) {}
func (noopMetrics) ObserveArticle(string, string) {}
func (noopMetrics) ObserveRetry(string, string)   {}
