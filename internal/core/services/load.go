package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/ewilliams-labs/resonance/internal/core/domain"
	"github.com/ewilliams-labs/resonance/internal/core/ports"
	"github.com/ewilliams-labs/resonance/internal/metrics"
)

// retryStore runs fn with bounded exponential backoff. Only transient store
// errors are retried; anything else fails on the first attempt.
func retryStore[T any](ctx context.Context, s *Insights, op string, fn func() (T, error)) (T, error) {
	rc := s.cfg.Retry
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = rc.BaseDelay
	eb.Multiplier = rc.Multiplier
	eb.RandomizationFactor = 0
	eb.MaxElapsedTime = 0
	eb.Reset()

	var b backoff.BackOff = backoff.WithMaxRetries(eb, uint64(rc.MaxAttempts-1))
	b = backoff.WithContext(b, ctx)

	attempt := 0
	return backoff.RetryNotifyWithData(func() (T, error) {
		attempt++
		v, err := fn()
		if err != nil && !errors.Is(err, domain.ErrTransientStore) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, b, func(err error, next time.Duration) {
		metrics.RecordStoreRetry(op)
		s.logger(ctx).Warn().
			Err(err).
			Str("op", op).
			Int("attempt", attempt).
			Int("max_attempts", rc.MaxAttempts).
			Dur("delay", next).
			Msg("transient store error, retrying")
	})
}

// generation returns the store generation cache entries are checked against.
// It must be read before the rows it tags so a concurrent write leaves those
// rows marked stale.
func (s *Insights) generation(ctx context.Context) (int64, error) {
	if !s.versioned {
		return 0, nil
	}
	return retryStore(ctx, s, "generation", func() (int64, error) {
		return s.store.Generation(ctx)
	})
}

// lookup returns the entry for key when it was read at generation gen.
// Entries from an older generation are evicted.
func lookup[V any](c ports.Cache[ports.Versioned[V]], key string, gen int64) (V, bool) {
	e, ok := c.Get(key)
	if ok && e.Generation == gen {
		return e.Value, true
	}
	if ok && e.Generation < gen {
		c.Evict(key)
	}
	var zero V
	return zero, false
}

// loadPlays reads events and joins them with normalized track features.
func (s *Insights) loadPlays(ctx context.Context, userID string, since, until time.Time, sources ...domain.Source) ([]domain.Play, error) {
	events, err := retryStore(ctx, s, "get_events", func() ([]domain.ListeningEvent, error) {
		return s.store.GetEvents(ctx, userID, since, until, sources...)
	})
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(events))
	seen := make(map[string]struct{}, len(events))
	for _, e := range events {
		if _, ok := seen[e.TrackID]; !ok {
			seen[e.TrackID] = struct{}{}
			ids = append(ids, e.TrackID)
		}
	}
	features, err := s.trackFeatures(ctx, ids)
	if err != nil {
		return nil, err
	}

	plays := make([]domain.Play, len(events))
	for i, e := range events {
		plays[i] = domain.Play{ListeningEvent: e, Track: features[e.TrackID]}
	}
	return plays, nil
}

// trackFeatures resolves every id to normalized features, substituting the
// neutral default for tracks the store does not know.
func (s *Insights) trackFeatures(ctx context.Context, ids []string) (map[string]domain.TrackFeatures, error) {
	gen, err := s.generation(ctx)
	if err != nil {
		return nil, err
	}
	raw := make(map[string]domain.RawTrackFeatures, len(ids))
	var missing []string
	for _, id := range ids {
		if f, ok := lookup(s.features, id, gen); ok {
			raw[id] = f
			continue
		}
		missing = append(missing, id)
	}

	if len(missing) > 0 {
		fetched, err := retryStore(ctx, s, "get_track_features", func() (map[string]domain.RawTrackFeatures, error) {
			return s.store.GetTrackFeatures(ctx, missing)
		})
		if err != nil {
			return nil, err
		}
		for id, f := range fetched {
			s.features.Set(id, ports.Versioned[domain.RawTrackFeatures]{Generation: gen, Value: f})
			raw[id] = f
		}
	}

	out := make(map[string]domain.TrackFeatures, len(ids))
	for _, id := range ids {
		f, ok := raw[id]
		if !ok {
			out[id] = domain.DefaultTrackFeatures(id)
			continue
		}
		f.TrackID = id
		out[id] = f.Normalize()
	}
	return out, nil
}

// artistGenres returns genres keyed by the requested artist names. Artists
// without known genres are absent from the result and are never cached.
func (s *Insights) artistGenres(ctx context.Context, artists []string) (map[string][]string, error) {
	gen, err := s.generation(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]string, len(artists))
	var missing []string
	for _, a := range artists {
		if g, ok := lookup(s.genres, genreKey(a), gen); ok {
			out[a] = g
			continue
		}
		missing = append(missing, a)
	}
	if len(missing) == 0 {
		return out, nil
	}

	fetched, err := retryStore(ctx, s, "get_artist_genres", func() (map[string][]string, error) {
		return s.store.GetArtistGenres(ctx, missing)
	})
	if err != nil {
		return nil, err
	}
	byKey := make(map[string][]string, len(fetched))
	for name, g := range fetched {
		byKey[genreKey(name)] = g
	}
	for _, a := range missing {
		if g := byKey[genreKey(a)]; len(g) > 0 {
			s.genres.Set(genreKey(a), ports.Versioned[[]string]{Generation: gen, Value: g})
			out[a] = g
		}
	}
	return out, nil
}

func (s *Insights) catalog(ctx context.Context, exclude, genres []string) ([]domain.TrackFeatures, error) {
	gen, err := s.generation(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog sample: %w", err)
	}
	limit := s.cfg.Engine.Recommend.CandidateLimit
	rows, err := retryStore(ctx, s, "get_catalog_sample", func() ([]domain.RawTrackFeatures, error) {
		return s.store.GetCatalogSample(ctx, exclude, limit, genres)
	})
	if err != nil {
		return nil, fmt.Errorf("catalog sample: %w", err)
	}
	out := make([]domain.TrackFeatures, len(rows))
	for i, r := range rows {
		s.features.Set(r.TrackID, ports.Versioned[domain.RawTrackFeatures]{Generation: gen, Value: r})
		out[i] = r.Normalize()
	}
	return out, nil
}

// distinctTracksAndArtists returns each track once in first-seen order and the
// artists of those plays ordered by play count, then name.
func distinctTracksAndArtists(plays []domain.Play) ([]domain.TrackFeatures, []string) {
	tracks := make([]domain.TrackFeatures, 0, len(plays))
	seen := make(map[string]struct{}, len(plays))
	counts := make(map[string]int)
	display := make(map[string]string)
	for _, p := range plays {
		if _, ok := seen[p.TrackID]; !ok {
			seen[p.TrackID] = struct{}{}
			tracks = append(tracks, p.Track)
		}
		name := strings.TrimSpace(p.Track.Artist)
		if name == "" {
			continue
		}
		k := genreKey(name)
		counts[k]++
		if _, ok := display[k]; !ok {
			display[k] = name
		}
	}

	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	artists := make([]string, len(keys))
	for i, k := range keys {
		artists[i] = display[k]
	}
	return tracks, artists
}

func genreKey(artist string) string {
	return strings.ToLower(strings.TrimSpace(artist))
}
