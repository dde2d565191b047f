package sqlite

import (
	"context"
	"fmt"
	"strings"
)

// GetArtistGenres returns genres keyed by the requested artist names. Names
// match case-insensitively; artists with no stored genres are absent.
func (a *Adapter) GetArtistGenres(ctx context.Context, artists []string) (map[string][]string, error) {
	const op = "get_artist_genres"
	out := make(map[string][]string, len(artists))
	if len(artists) == 0 {
		return out, nil
	}

	requested := make(map[string][]string, len(artists))
	keys := make([]string, 0, len(artists))
	for _, name := range artists {
		k := artistKey(name)
		if k == "" {
			continue
		}
		if _, ok := requested[k]; !ok {
			keys = append(keys, k)
		}
		requested[k] = append(requested[k], name)
	}
	if len(keys) == 0 {
		return out, nil
	}
	list, err := jsonList(keys)
	if err != nil {
		return nil, fmt.Errorf("sqlite: %s: encode artists: %w", op, err)
	}

	rows, err := a.db.QueryContext(ctx, `
		SELECT artist_key, genre
		FROM artist_genres
		WHERE artist_key IN (SELECT value FROM json_each(?))
		ORDER BY artist_key, position
	`, list)
	if err != nil {
		return nil, storeErr(op, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, genre string
		if err := rows.Scan(&key, &genre); err != nil {
			return nil, storeErr(op, err)
		}
		for _, name := range requested[key] {
			out[name] = append(out[name], genre)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(op, err)
	}
	return out, nil
}

// SaveArtistGenres replaces the genres stored for artist. Blank and repeated
// genres are dropped; the remaining order is kept.
func (a *Adapter) SaveArtistGenres(ctx context.Context, artist string, genres []string) error {
	const op = "save_artist_genres"
	key := artistKey(artist)
	if key == "" {
		return nil
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr(op, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM artist_genres WHERE artist_key = ?", key); err != nil {
		return storeErr(op, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO artist_genres (artist_key, artist, genre, position)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(artist_key, genre) DO NOTHING
	`)
	if err != nil {
		return storeErr(op, err)
	}
	defer stmt.Close()

	pos := 0
	for _, g := range genres {
		g = strings.ToLower(strings.TrimSpace(g))
		if g == "" {
			continue
		}
		res, err := stmt.ExecContext(ctx, key, strings.TrimSpace(artist), g, pos)
		if err != nil {
			return storeErr(op, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			pos++
		}
	}
	if err := bumpGeneration(ctx, tx); err != nil {
		return storeErr(op, err)
	}

	if err := tx.Commit(); err != nil {
		return storeErr(op, err)
	}
	a.log.Debug().Str("artist", artist).Int("genres", pos).Msg("artist genres saved")
	return nil
}
