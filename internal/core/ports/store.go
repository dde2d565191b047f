package ports

import (
	"context"
	"time"

	"github.com/ewilliams-labs/resonance/internal/core/domain"
)

// EventStore is the read side of the listening store. Implementations return
// a domain transient-store error for retryable contention.
type EventStore interface {
	// GetEvents returns a user's events with PlayedAt in [since, until]. A zero
	// since or until leaves that side open. With no sources every source matches.
	GetEvents(ctx context.Context, userID string, since, until time.Time, sources ...domain.Source) ([]domain.ListeningEvent, error)
	GetTrackFeatures(ctx context.Context, trackIDs []string) (map[string]domain.RawTrackFeatures, error)
	GetArtistGenres(ctx context.Context, artists []string) (map[string][]string, error)
	// GetCatalogSample returns up to limit tracks not in exclude, ordered by
	// popularity descending. With genres set only tracks whose artist carries
	// one of them are returned; without genres only tracks with complete
	// features are returned.
	GetCatalogSample(ctx context.Context, exclude []string, limit int, genres []string) ([]domain.RawTrackFeatures, error)
	// Generation returns a counter that increases with every committed change
	// to tracks or artist genres, including changes made by other processes
	// sharing the store.
	Generation(ctx context.Context) (int64, error)
}

// EventWriter is the ingestion side of the listening store.
type EventWriter interface {
	UpsertTracks(ctx context.Context, tracks []domain.RawTrackFeatures) (int, error)
	// AppendEvents inserts events and ignores duplicates of
	// (user_id, track_id, played_at). It returns the number inserted.
	AppendEvents(ctx context.Context, events []domain.ListeningEvent) (int, error)
	SaveArtistGenres(ctx context.Context, artist string, genres []string) error
	UpdateTrackEnergy(ctx context.Context, trackID string, energy float64) error
}
