package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ewilliams-labs/resonance/internal/core/domain"
	"github.com/ewilliams-labs/resonance/internal/metrics"
)

// ErrIngestionDisabled is returned by Ingest when no writer is configured.
var ErrIngestionDisabled = errors.New("service: ingestion is not configured")

// Ingest upserts the batch's tracks and appends its events for userID.
// Events already stored for the same (user, track, played_at) are skipped.
// Events with an empty UserID are attributed to userID.
func (s *Insights) Ingest(ctx context.Context, userID string, batch domain.IngestBatch) (domain.IngestResult, error) {
	const op = "Ingest"
	if s.writer == nil {
		return domain.IngestResult{}, ErrIngestionDisabled
	}
	if strings.TrimSpace(userID) == "" {
		return domain.IngestResult{}, domain.NewValidationError(op, "user_id must not be empty")
	}
	if err := s.validate.Var(userID, "max=128,printascii"); err != nil {
		return domain.IngestResult{}, domain.NewValidationError(op, "user_id must be printable ASCII of at most 128 characters")
	}

	events := make([]domain.ListeningEvent, len(batch.Events))
	for i, e := range batch.Events {
		if e.UserID == "" {
			e.UserID = userID
		}
		if err := checkEvent(e, userID); err != nil {
			return domain.IngestResult{}, domain.NewValidationError(op, fmt.Sprintf("event %d: %v", i, err))
		}
		e.PlayedAt = e.PlayedAt.UTC()
		events[i] = e
	}
	for i, t := range batch.Tracks {
		if strings.TrimSpace(t.TrackID) == "" {
			return domain.IngestResult{}, domain.NewValidationError(op, fmt.Sprintf("track %d: track_id is required", i))
		}
	}

	res := domain.IngestResult{BatchID: uuid.NewString(), ReceivedAt: s.now().UTC()}

	if len(batch.Tracks) > 0 {
		batch.Tracks = s.fillFeatures(ctx, batch.Tracks)
		n, err := retryStore(ctx, s, "upsert_tracks", func() (int, error) {
			return s.writer.UpsertTracks(ctx, batch.Tracks)
		})
		if err != nil {
			return domain.IngestResult{}, fmt.Errorf("service: upsert tracks: %w", err)
		}
		res.TracksUpserted = n
		for _, t := range batch.Tracks {
			s.features.Evict(t.TrackID)
		}
	}

	for artist, genres := range batch.ArtistGenres {
		if err := s.SaveArtistGenres(ctx, artist, genres); err != nil {
			return domain.IngestResult{}, err
		}
	}

	if len(events) > 0 {
		n, err := retryStore(ctx, s, "append_events", func() (int, error) {
			return s.writer.AppendEvents(ctx, events)
		})
		if err != nil {
			return domain.IngestResult{}, fmt.Errorf("service: append events: %w", err)
		}
		res.EventsInserted = n
		res.EventsSkipped = len(events) - n
	}
	metrics.RecordIngest(res.EventsInserted, res.EventsSkipped)

	s.queueEnrichment(ctx, batch)

	s.logger(ctx).Info().
		Str("user_id", userID).
		Str("batch_id", res.BatchID).
		Int("tracks", res.TracksUpserted).
		Int("inserted", res.EventsInserted).
		Int("skipped", res.EventsSkipped).
		Msg("batch ingested")
	return res, nil
}

func checkEvent(e domain.ListeningEvent, userID string) error {
	if e.UserID != userID {
		return fmt.Errorf("user_id %q does not match %q", e.UserID, userID)
	}
	if strings.TrimSpace(e.TrackID) == "" {
		return errors.New("track_id is required")
	}
	if e.PlayedAt.IsZero() {
		return errors.New("played_at is required")
	}
	if _, err := domain.ParseSource(string(e.Source)); err != nil {
		return err
	}
	return nil
}

// fillFeatures asks the feature provider for tracks missing any taste-vector
// feature. Provider failures leave the batch unchanged; fields the batch
// already carries win over fetched ones.
func (s *Insights) fillFeatures(ctx context.Context, tracks []domain.RawTrackFeatures) []domain.RawTrackFeatures {
	if s.provider == nil {
		return tracks
	}
	var ids []string
	for _, t := range tracks {
		if !t.Normalize().Complete {
			ids = append(ids, t.TrackID)
		}
	}
	if len(ids) == 0 {
		return tracks
	}
	fetched, err := s.provider.AudioFeatures(ctx, ids)
	if err != nil {
		s.logger(ctx).Warn().Err(err).Int("tracks", len(ids)).Msg("audio feature lookup failed, storing batch as is")
		return tracks
	}

	out := make([]domain.RawTrackFeatures, len(tracks))
	for i, t := range tracks {
		out[i] = t
		f, ok := fetched[t.TrackID]
		if !ok {
			continue
		}
		out[i] = mergeFeatures(t, f)
	}
	return out
}

func mergeFeatures(dst, src domain.RawTrackFeatures) domain.RawTrackFeatures {
	pick := func(a, b *float64) *float64 {
		if a != nil {
			return a
		}
		return b
	}
	pickInt := func(a, b *int) *int {
		if a != nil {
			return a
		}
		return b
	}
	dst.Danceability = pick(dst.Danceability, src.Danceability)
	dst.Energy = pick(dst.Energy, src.Energy)
	dst.Valence = pick(dst.Valence, src.Valence)
	dst.Acousticness = pick(dst.Acousticness, src.Acousticness)
	dst.Instrumentalness = pick(dst.Instrumentalness, src.Instrumentalness)
	dst.Liveness = pick(dst.Liveness, src.Liveness)
	dst.Speechiness = pick(dst.Speechiness, src.Speechiness)
	dst.Tempo = pick(dst.Tempo, src.Tempo)
	dst.Loudness = pick(dst.Loudness, src.Loudness)
	dst.Key = pickInt(dst.Key, src.Key)
	dst.Mode = pickInt(dst.Mode, src.Mode)
	dst.DurationMs = pickInt(dst.DurationMs, src.DurationMs)
	return dst
}

// queueEnrichment asks the enricher for genres of batch artists the store has
// none for, and for preview-based energy of tracks missing it.
func (s *Insights) queueEnrichment(ctx context.Context, batch domain.IngestBatch) {
	if s.enricher == nil || len(batch.Tracks) == 0 {
		return
	}

	for _, t := range batch.Tracks {
		if t.Energy == nil && t.PreviewURL != "" {
			s.enricher.EnqueueTrackEnergy(t.TrackID, t.PreviewURL)
		}
	}

	known := make(map[string]struct{}, len(batch.ArtistGenres))
	for a := range batch.ArtistGenres {
		known[genreKey(a)] = struct{}{}
	}
	var artists []string
	seen := make(map[string]struct{})
	for _, t := range batch.Tracks {
		k := genreKey(t.Artist)
		if k == "" {
			continue
		}
		if _, ok := known[k]; ok {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		artists = append(artists, strings.TrimSpace(t.Artist))
	}
	if len(artists) == 0 {
		return
	}
	stored, err := s.artistGenres(ctx, artists)
	if err != nil {
		s.logger(ctx).Warn().Err(err).Msg("skipping genre enrichment")
		return
	}
	for _, a := range artists {
		if _, ok := stored[a]; !ok {
			s.enricher.EnqueueArtistGenres(a)
		}
	}
}

// SaveArtistGenres stores genres for an artist and drops its cached entry.
func (s *Insights) SaveArtistGenres(ctx context.Context, artist string, genres []string) error {
	if s.writer == nil {
		return ErrIngestionDisabled
	}
	_, err := retryStore(ctx, s, "save_artist_genres", func() (struct{}, error) {
		return struct{}{}, s.writer.SaveArtistGenres(ctx, artist, genres)
	})
	if err != nil {
		return fmt.Errorf("service: save genres for %q: %w", artist, err)
	}
	s.genres.Evict(genreKey(artist))
	return nil
}

// UpdateTrackEnergy stores an estimated energy for a track that has none and
// drops its cached features.
func (s *Insights) UpdateTrackEnergy(ctx context.Context, trackID string, energy float64) error {
	if s.writer == nil {
		return ErrIngestionDisabled
	}
	_, err := retryStore(ctx, s, "update_track_energy", func() (struct{}, error) {
		return struct{}{}, s.writer.UpdateTrackEnergy(ctx, trackID, domain.Clamp01(energy))
	})
	if err != nil {
		return fmt.Errorf("service: update energy for %s: %w", trackID, err)
	}
	s.features.Evict(trackID)
	return nil
}
