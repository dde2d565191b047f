package spotify

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/ewilliams-labs/resonance/internal/core/domain"
	"github.com/ewilliams-labs/resonance/internal/core/ports"
)

const (
	artistSearchLimit = 5
	// Spotify caps audio-features at 100 ids per request.
	featureBatchSize = 100
)

// ArtistGenres searches for artist and returns the genres of the best
// confident match. A search with no confident match returns an error matching
// ports.ErrNoConfidentMatch.
func (c *Client) ArtistGenres(ctx context.Context, artist string) ([]string, error) {
	name := strings.TrimSpace(artist)
	if name == "" {
		return nil, fmt.Errorf("spotify adapter: %w", ports.NoConfidentMatchError{})
	}

	query := url.Values{}
	query.Set("q", fallbackIfEmpty(normalizeArtistName(name), name))
	query.Set("type", "artist")
	query.Set("limit", strconv.Itoa(artistSearchLimit))
	if c.market != "" {
		query.Set("market", c.market)
	}

	var body struct {
		Artists struct {
			Items []spotifyArtist `json:"items"`
		} `json:"artists"`
	}
	if err := c.getJSON(ctx, "search", "/search", query, &body); err != nil {
		return nil, fmt.Errorf("spotify adapter: artist %q: %w", name, err)
	}

	best, score, ok := bestArtistMatch(name, body.Artists.Items)
	if !ok {
		return nil, fmt.Errorf("spotify adapter: %w", ports.NoConfidentMatchError{Artist: name})
	}
	c.log.Debug().Str("artist", name).Str("match", best.Name).Float64("score", score).Int("genres", len(best.Genres)).Msg("artist matched")

	genres := make([]string, 0, len(best.Genres))
	for _, g := range best.Genres {
		if g = strings.TrimSpace(g); g != "" {
			genres = append(genres, g)
		}
	}
	return genres, nil
}

// AudioFeatures fetches features for trackIDs in batches. Tracks Spotify has
// no analysis for are absent from the result.
func (c *Client) AudioFeatures(ctx context.Context, trackIDs []string) (map[string]domain.RawTrackFeatures, error) {
	result := make(map[string]domain.RawTrackFeatures, len(trackIDs))
	for start := 0; start < len(trackIDs); start += featureBatchSize {
		end := min(start+featureBatchSize, len(trackIDs))

		query := url.Values{}
		query.Set("ids", strings.Join(trackIDs[start:end], ","))

		var body struct {
			// Unknown ids come back as null entries.
			AudioFeatures []*spotifyAudioFeatures `json:"audio_features"`
		}
		if err := c.getJSON(ctx, "audio_features", "/audio-features", query, &body); err != nil {
			return nil, err
		}

		for _, f := range body.AudioFeatures {
			if f == nil || f.ID == "" {
				continue
			}
			if f.allZero() {
				c.log.Debug().Str("track_id", f.ID).Msg("skipping placeholder audio features")
				continue
			}
			result[f.ID] = f.toDomain()
		}
	}
	return result, nil
}
