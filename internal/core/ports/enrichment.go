package ports

import (
	"context"
	"errors"
	"fmt"

	"github.com/ewilliams-labs/resonance/internal/core/domain"
)

// ErrNoConfidentMatch indicates search results did not meet the confidence threshold.
var ErrNoConfidentMatch = errors.New("no confident match")

// NoConfidentMatchError provides context for a failed artist match.
type NoConfidentMatchError struct {
	Artist string
}

func (e NoConfidentMatchError) Error() string {
	if e.Artist == "" {
		return ErrNoConfidentMatch.Error()
	}
	return fmt.Sprintf("no confident match found for artist %q", e.Artist)
}

func (e NoConfidentMatchError) Is(target error) bool {
	return target == ErrNoConfidentMatch
}

// GenreProvider looks up artist genres from a remote catalog.
type GenreProvider interface {
	ArtistGenres(ctx context.Context, artist string) ([]string, error)
}

// FeatureProvider fetches audio features from a remote catalog.
type FeatureProvider interface {
	AudioFeatures(ctx context.Context, trackIDs []string) (map[string]domain.RawTrackFeatures, error)
}

// Cache is a correctness-neutral read-through cache. Implementations must be
// safe for concurrent use.
type Cache[V any] interface {
	Get(key string) (V, bool)
	Set(key string, value V)
	Evict(key string)
}

// Versioned tags a cached value with the store generation it was read at.
type Versioned[V any] struct {
	Generation int64
	Value      V
}

// Enricher queues background enrichment. Both methods are non-blocking and
// report whether the job was accepted.
type Enricher interface {
	EnqueueArtistGenres(artist string) bool
	EnqueueTrackEnergy(trackID, previewURL string) bool
}
