package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/ewilliams-labs/resonance/internal/core/domain"
)

const trackColumns = `t.track_id, t.name, t.artist, t.album, t.preview_url, t.duration_ms, t.popularity,
	t.danceability, t.energy, t.valence, t.acousticness, t.instrumentalness,
	t.liveness, t.speechiness, t.tempo, t.loudness, t.musical_key, t.mode`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrack(r rowScanner) (domain.RawTrackFeatures, error) {
	var f domain.RawTrackFeatures
	var duration, popularity, key, mode sql.NullInt64
	var dance, energy, valence, acoustic, instrumental, live, speech, tempo, loudness sql.NullFloat64
	if err := r.Scan(
		&f.TrackID, &f.Name, &f.Artist, &f.Album, &f.PreviewURL, &duration, &popularity,
		&dance, &energy, &valence, &acoustic, &instrumental,
		&live, &speech, &tempo, &loudness, &key, &mode,
	); err != nil {
		return domain.RawTrackFeatures{}, err
	}
	f.DurationMs = intPtr(duration)
	f.Popularity = intPtr(popularity)
	f.Danceability = floatPtr(dance)
	f.Energy = floatPtr(energy)
	f.Valence = floatPtr(valence)
	f.Acousticness = floatPtr(acoustic)
	f.Instrumentalness = floatPtr(instrumental)
	f.Liveness = floatPtr(live)
	f.Speechiness = floatPtr(speech)
	f.Tempo = floatPtr(tempo)
	f.Loudness = floatPtr(loudness)
	f.Key = intPtr(key)
	f.Mode = intPtr(mode)
	return f, nil
}

// GetTrackFeatures returns the stored rows for trackIDs. Unknown ids are absent.
func (a *Adapter) GetTrackFeatures(ctx context.Context, trackIDs []string) (map[string]domain.RawTrackFeatures, error) {
	const op = "get_track_features"
	out := make(map[string]domain.RawTrackFeatures, len(trackIDs))
	if len(trackIDs) == 0 {
		return out, nil
	}
	list, err := jsonList(trackIDs)
	if err != nil {
		return nil, fmt.Errorf("sqlite: %s: encode ids: %w", op, err)
	}

	rows, err := a.db.QueryContext(ctx, `
		SELECT `+trackColumns+`
		FROM tracks t
		WHERE t.track_id IN (SELECT value FROM json_each(?))
	`, list)
	if err != nil {
		return nil, storeErr(op, err)
	}
	defer rows.Close()

	for rows.Next() {
		f, err := scanTrack(rows)
		if err != nil {
			return nil, storeErr(op, err)
		}
		out[f.TrackID] = f
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(op, err)
	}
	return out, nil
}

// GetCatalogSample returns up to limit tracks outside exclude, most popular
// first. With genres only tracks by an artist tagged with one of them match;
// without genres only tracks carrying every taste-vector feature match.
func (a *Adapter) GetCatalogSample(ctx context.Context, exclude []string, limit int, genres []string) ([]domain.RawTrackFeatures, error) {
	const op = "get_catalog_sample"
	if limit <= 0 {
		return []domain.RawTrackFeatures{}, nil
	}
	excluded, err := jsonList(exclude)
	if err != nil {
		return nil, fmt.Errorf("sqlite: %s: encode exclude: %w", op, err)
	}

	var query string
	args := []any{excluded}
	if len(genres) > 0 {
		lowered := make([]string, len(genres))
		for i, g := range genres {
			lowered[i] = strings.ToLower(strings.TrimSpace(g))
		}
		wanted, err := jsonList(lowered)
		if err != nil {
			return nil, fmt.Errorf("sqlite: %s: encode genres: %w", op, err)
		}
		query = `
		SELECT ` + trackColumns + `
		FROM tracks t
		WHERE t.track_id NOT IN (SELECT value FROM json_each(?))
			AND EXISTS (
				SELECT 1 FROM artist_genres g
				WHERE g.artist_key = lower(trim(t.artist))
					AND lower(g.genre) IN (SELECT value FROM json_each(?))
			)
		ORDER BY IFNULL(t.popularity, 0) DESC, t.track_id ASC
		LIMIT ?`
		args = append(args, wanted, limit)
	} else {
		query = `
		SELECT ` + trackColumns + `
		FROM tracks t
		WHERE t.track_id NOT IN (SELECT value FROM json_each(?))
			AND t.danceability IS NOT NULL
			AND t.energy IS NOT NULL
			AND t.valence IS NOT NULL
			AND t.acousticness IS NOT NULL
			AND t.tempo IS NOT NULL
		ORDER BY IFNULL(t.popularity, 0) DESC, t.track_id ASC
		LIMIT ?`
		args = append(args, limit)
	}

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr(op, err)
	}
	defer rows.Close()

	out := []domain.RawTrackFeatures{}
	for rows.Next() {
		f, err := scanTrack(rows)
		if err != nil {
			return nil, storeErr(op, err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(op, err)
	}
	return out, nil
}

// UpsertTracks inserts or updates track rows. A feature missing from the
// incoming row keeps its stored value.
func (a *Adapter) UpsertTracks(ctx context.Context, tracks []domain.RawTrackFeatures) (int, error) {
	const op = "upsert_tracks"
	if len(tracks) == 0 {
		return 0, nil
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, storeErr(op, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO tracks (
			track_id, name, artist, album, preview_url, duration_ms, popularity,
			danceability, energy, valence, acousticness, instrumentalness,
			liveness, speechiness, tempo, loudness, musical_key, mode
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(track_id) DO UPDATE SET
			name = CASE WHEN excluded.name = '' THEN tracks.name ELSE excluded.name END,
			artist = CASE WHEN excluded.artist = '' THEN tracks.artist ELSE excluded.artist END,
			album = CASE WHEN excluded.album = '' THEN tracks.album ELSE excluded.album END,
			preview_url = CASE WHEN excluded.preview_url = '' THEN tracks.preview_url ELSE excluded.preview_url END,
			duration_ms = COALESCE(excluded.duration_ms, tracks.duration_ms),
			popularity = COALESCE(excluded.popularity, tracks.popularity),
			danceability = COALESCE(excluded.danceability, tracks.danceability),
			energy = COALESCE(excluded.energy, tracks.energy),
			valence = COALESCE(excluded.valence, tracks.valence),
			acousticness = COALESCE(excluded.acousticness, tracks.acousticness),
			instrumentalness = COALESCE(excluded.instrumentalness, tracks.instrumentalness),
			liveness = COALESCE(excluded.liveness, tracks.liveness),
			speechiness = COALESCE(excluded.speechiness, tracks.speechiness),
			tempo = COALESCE(excluded.tempo, tracks.tempo),
			loudness = COALESCE(excluded.loudness, tracks.loudness),
			musical_key = COALESCE(excluded.musical_key, tracks.musical_key),
			mode = COALESCE(excluded.mode, tracks.mode),
			updated_at = CURRENT_TIMESTAMP
	`)
	if err != nil {
		return 0, storeErr(op, err)
	}
	defer stmt.Close()

	for _, t := range tracks {
		if _, err := stmt.ExecContext(
			ctx,
			t.TrackID,
			t.Name,
			t.Artist,
			t.Album,
			t.PreviewURL,
			nullInt(t.DurationMs),
			nullInt(t.Popularity),
			nullFloat(t.Danceability),
			nullFloat(t.Energy),
			nullFloat(t.Valence),
			nullFloat(t.Acousticness),
			nullFloat(t.Instrumentalness),
			nullFloat(t.Liveness),
			nullFloat(t.Speechiness),
			nullFloat(t.Tempo),
			nullFloat(t.Loudness),
			nullInt(t.Key),
			nullInt(t.Mode),
		); err != nil {
			return 0, storeErr(op, fmt.Errorf("track %s: %w", t.TrackID, err))
		}
	}
	if err := bumpGeneration(ctx, tx); err != nil {
		return 0, storeErr(op, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, storeErr(op, err)
	}
	return len(tracks), nil
}

// UpdateTrackEnergy sets energy only on a track that has none stored.
func (a *Adapter) UpdateTrackEnergy(ctx context.Context, trackID string, energy float64) error {
	const op = "update_track_energy"
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr(op, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"UPDATE tracks SET energy = ?, updated_at = CURRENT_TIMESTAMP WHERE track_id = ? AND energy IS NULL",
		energy, trackID,
	)
	if err != nil {
		return storeErr(op, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		a.log.Debug().Str("track_id", trackID).Msg("energy already known, estimate ignored")
		return nil
	}
	if err := bumpGeneration(ctx, tx); err != nil {
		return storeErr(op, err)
	}
	if err := tx.Commit(); err != nil {
		return storeErr(op, err)
	}
	return nil
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
