package ports

import (
	"context"
	"time"
)

// ArtifactStore is the storage contract shared by the local and cloud
// backends. Keys are slash-separated ("{slug}/manifest.json"); writes replace
// the whole object and create any parent structure implicitly.
type ArtifactStore interface {
	Provider() string

	// EnsureLayout prepares the backend once at startup. Idempotent.
	EnsureLayout(ctx context.Context) error

	WriteText(ctx context.Context, key, content, contentType string) error
	// WriteBytes stores data verbatim. Uploaded media always goes here.
	WriteBytes(ctx context.Context, key string, data []byte, contentType string) error

	// ReadText and ReadBytes return a NOT_FOUND error when key is absent.
	ReadText(ctx context.Context, key string) (string, error)
	ReadBytes(ctx context.Context, key string) ([]byte, error)

	// Exists never fails; backend errors count as "absent".
	Exists(ctx context.Context, key string) bool

	// List returns every key under prefix, recursively, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
	// ListNamespaces returns the distinct first path segments, sorted.
	ListNamespaces(ctx context.Context) ([]string, error)
}

// Statter is implemented by backends that can tell an absent object from one
// they failed to look up. Stat returns (false, nil) only when key is absent.
type Statter interface {
	Stat(ctx context.Context, key string) (bool, error)
}

type SignedURLOutput struct {
	URL       string
	ExpiresAt time.Time
}

// URLSigner issues time-limited read-only URLs for one stored object.
// Backends that cannot sign simply do not implement it.
type URLSigner interface {
	SignedURL(ctx context.Context, key string, ttl time.Duration) (SignedURLOutput, error)
}
