// Package instagram fetches public profile metadata and media through
// Instagram's web profile endpoint. Only publicly visible content is
// reachable; stories require an authenticated session and always come back
// empty here.
package instagram

import (
	"context"
	"errors"
	"time"

	"github.com/gramvault/gramvault/internal/model"
)

// ErrProvider wraps every upstream failure (network, malformed response,
// private or missing profile) so the pipeline can treat them uniformly.
var ErrProvider = errors.New("instagram provider")

// MediaKind classifies one downloadable item.
type MediaKind string

const (
	KindImage MediaKind = "image"
	KindVideo MediaKind = "video"
	KindStory MediaKind = "story"
)

// MediaItem is a single unit of media to fetch. Sidecar posts are flattened
// into one MediaItem per child before the pipeline ever sees them.
type MediaItem struct {
	ID           string
	Kind         MediaKind
	URL          string
	ThumbnailURL string
	Caption      string
	TakenAt      time.Time
	Filename     string
}

// Provider is the surface the pipeline consumes. Tests substitute a fake.
type Provider interface {
	FetchProfile(ctx context.Context, sourceURL string) (*model.ProfileData, error)
	ListMedia(ctx context.Context, sourceURL string, contentType model.ContentType) ([]MediaItem, error)
	DownloadMedia(ctx context.Context, items []MediaItem, quality model.Quality, destDir string) ([]string, error)
}
