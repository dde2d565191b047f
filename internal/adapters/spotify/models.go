package spotify

import "github.com/ewilliams-labs/resonance/internal/core/domain"

// spotifyArtist is an artist object from the search endpoint.
type spotifyArtist struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Genres     []string `json:"genres"`
	Popularity int      `json:"popularity"`
}

// spotifyAudioFeatures is one entry of the audio-features endpoint.
type spotifyAudioFeatures struct {
	ID               string  `json:"id"`
	Danceability     float64 `json:"danceability"`
	Energy           float64 `json:"energy"`
	Valence          float64 `json:"valence"`
	Acousticness     float64 `json:"acousticness"`
	Instrumentalness float64 `json:"instrumentalness"`
	Liveness         float64 `json:"liveness"`
	Speechiness      float64 `json:"speechiness"`
	Tempo            float64 `json:"tempo"`
	Loudness         float64 `json:"loudness"`
	Key              int     `json:"key"`
	Mode             int     `json:"mode"`
	DurationMs       int     `json:"duration_ms"`
}

// allZero reports a placeholder entry; Spotify returns these for tracks it
// has not analyzed.
func (f spotifyAudioFeatures) allZero() bool {
	return f.Danceability == 0 &&
		f.Energy == 0 &&
		f.Valence == 0 &&
		f.Tempo == 0 &&
		f.Instrumentalness == 0 &&
		f.Acousticness == 0
}

func (f spotifyAudioFeatures) toDomain() domain.RawTrackFeatures {
	r := domain.RawTrackFeatures{
		TrackID:          f.ID,
		Danceability:     &f.Danceability,
		Energy:           &f.Energy,
		Valence:          &f.Valence,
		Acousticness:     &f.Acousticness,
		Instrumentalness: &f.Instrumentalness,
		Liveness:         &f.Liveness,
		Speechiness:      &f.Speechiness,
		Tempo:            &f.Tempo,
		Loudness:         &f.Loudness,
		Mode:             &f.Mode,
	}
	// -1 means no key was detected.
	if f.Key >= 0 {
		r.Key = &f.Key
	}
	if f.DurationMs > 0 {
		r.DurationMs = &f.DurationMs
	}
	return r
}
