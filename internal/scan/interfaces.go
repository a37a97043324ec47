package scan

import (
	"context"
	"io"
	"time"
)

// JobStore persists job records between Advance calls. Get returns
// ErrJobNotFound when no record exists for the id.
type JobStore interface {
	Get(ctx context.Context, jobID string) (Job, error)
	Put(ctx context.Context, job Job) error
}

// ResultSink turns accumulated results into the downloadable artifact and
// returns a reference to it.
type ResultSink interface {
	Write(ctx context.Context, jobID string, results []FetchResult, matchedOnly bool) (string, error)
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Fetcher fetches a URL and returns the body plus metadata. A non-nil
// error means no response was received.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces job IDs.
type IDGenerator interface {
	NewID() (string, error)
}
