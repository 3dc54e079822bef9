package advisory

import (
	"context"
	"io"
	"time"
)

// Fetcher retrieves a URL and returns the raw body.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Response, error)
}

// Response is the result of a Fetcher call.
type Response struct {
	URL        string
	StatusCode int
	Body       []byte
	// ContentType is the served media type, when known.
	ContentType string
	Duration    time.Duration
}

// Ledger records which advisories were already processed.
type Ledger interface {
	Seen(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string) error
}

// Notifier delivers a Message to its recipients.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// Publisher pushes delivery events to a message bus.
type Publisher interface {
	Publish(ctx context.Context, event Event) (string, error)
}

// Object is one archived advisory asset.
type Object struct {
	Path        string
	ContentType string
	// Metadata is attached to the stored object by backends that support it.
	Metadata map[string]string
	Body     io.Reader
}

// BlobStore writes artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, obj Object) (string, error)
}

// Hasher computes and checks content digests.
type Hasher interface {
	Hash(data []byte) (string, error)
	Verify(data []byte, digest string) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
