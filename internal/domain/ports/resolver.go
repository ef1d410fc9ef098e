package ports

import (
	"context"
	"time"

	"galleryrip/internal/domain"
)

// ResolvedImage is the outcome of host resolution: the final downloadable URL
// and a display name for the file.
type ResolvedImage struct {
	URL  string
	Name string
}

// Resolver turns an image's source URL into a final download URL. One
// resolver exists per host.
type Resolver interface {
	HostName() string
	HostID() domain.HostID
	IsSupported(url string) bool
	Resolve(ctx context.Context, image domain.ImageRecord) (ResolvedImage, error)
}

// ResolverRegistry is the fixed set of resolvers built at startup.
type ResolverRegistry interface {
	ResolverFor(url string) (Resolver, bool)
	HostIDs() []domain.HostID
	HostName(id domain.HostID) string
}

// FetchResult describes a body streamed to a temporary file.
type FetchResult struct {
	TempPath string
	MimeType string
	Size     int64 // Content-Length as declared by the server, -1 if absent
}

// FetchOptions tunes a single fetch.
type FetchOptions struct {
	Timeout time.Duration
	// Progress is invoked with the byte delta of every chunk written.
	Progress func(delta int64)
}

// Fetcher downloads a resolved URL into a temporary file, classifying the
// response mime type. It is shared by all resolvers.
type Fetcher interface {
	Fetch(ctx context.Context, url string, opts FetchOptions) (FetchResult, error)
}
