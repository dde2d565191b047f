package domain

import "math"

// Neutral values substituted when a feature is missing from the store.
const (
	DefaultUnitFeature = 0.5
	DefaultTempo       = 120.0
	DefaultLoudness    = -10.0
	DefaultKey         = 0
	DefaultMode        = 1
)

// RawTrackFeatures is a track row as the store returns it. Nil pointers mark
// features the store does not have.
type RawTrackFeatures struct {
	TrackID    string
	Name       string
	Artist     string
	Album      string
	PreviewURL string
	DurationMs *int
	Popularity *int

	Danceability     *float64
	Energy           *float64
	Valence          *float64
	Acousticness     *float64
	Instrumentalness *float64
	Liveness         *float64
	Speechiness      *float64
	Tempo            *float64
	Loudness         *float64
	Key              *int
	Mode             *int
}

// TrackFeatures is a fully populated, range-valid feature record. Scoring code
// only ever sees this type.
type TrackFeatures struct {
	TrackID    string `json:"track_id"`
	Name       string `json:"name"`
	Artist     string `json:"artist"`
	Album      string `json:"album"`
	PreviewURL string `json:"preview_url,omitempty"`
	DurationMs int    `json:"duration_ms"`
	Popularity int    `json:"popularity"`

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

	// Complete reports whether every taste-vector feature (danceability,
	// energy, valence, acousticness, tempo) came from the store rather than
	// a default.
	Complete bool `json:"complete"`
}

// Normalize substitutes neutral defaults for missing features and clamps the
// rest into their documented ranges.
func (r RawTrackFeatures) Normalize() TrackFeatures {
	f := TrackFeatures{
		TrackID:    r.TrackID,
		Name:       r.Name,
		Artist:     r.Artist,
		Album:      r.Album,
		PreviewURL: r.PreviewURL,

		Danceability:     unitOrDefault(r.Danceability),
		Energy:           unitOrDefault(r.Energy),
		Valence:          unitOrDefault(r.Valence),
		Acousticness:     unitOrDefault(r.Acousticness),
		Instrumentalness: unitOrDefault(r.Instrumentalness),
		Liveness:         unitOrDefault(r.Liveness),
		Speechiness:      unitOrDefault(r.Speechiness),
		Tempo:            DefaultTempo,
		Loudness:         DefaultLoudness,
		Key:              DefaultKey,
		Mode:             DefaultMode,
	}

	if r.DurationMs != nil && *r.DurationMs > 0 {
		f.DurationMs = *r.DurationMs
	}
	if r.Popularity != nil {
		f.Popularity = clampInt(*r.Popularity, 0, 100)
	}
	if r.Tempo != nil && isFinite(*r.Tempo) && *r.Tempo > 0 {
		f.Tempo = *r.Tempo
	}
	if r.Loudness != nil && isFinite(*r.Loudness) {
		f.Loudness = math.Min(*r.Loudness, 0)
	}
	if r.Key != nil && *r.Key >= 0 && *r.Key <= 11 {
		f.Key = *r.Key
	}
	if r.Mode != nil && (*r.Mode == 0 || *r.Mode == 1) {
		f.Mode = *r.Mode
	}

	f.Complete = present(r.Danceability) && present(r.Energy) && present(r.Valence) &&
		present(r.Acousticness) && present(r.Tempo)

	return f
}

// DefaultTrackFeatures is the record used for a track the store cannot resolve.
func DefaultTrackFeatures(trackID string) TrackFeatures {
	return RawTrackFeatures{TrackID: trackID}.Normalize()
}

func unitOrDefault(v *float64) float64 {
	if !present(v) {
		return DefaultUnitFeature
	}
	return Clamp01(*v)
}

func present(v *float64) bool {
	return v != nil && isFinite(*v)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Clamp01 bounds v to [0, 1].
func Clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
