package domain

import "time"

// ScoreVector holds the five behavioral scores, each reported on a 0-100 scale.
type ScoreVector struct {
	Variety     float64 `json:"variety"`
	Discovery   float64 `json:"discovery"`
	Consistency float64 `json:"consistency"`
	Mood        float64 `json:"mood"`
	TimePattern float64 `json:"time_pattern"`
}

// AlbumAffinity describes how album-oriented the listening is. Rates are
// reported on a 0-100 scale.
type AlbumAffinity struct {
	CompletionRate  float64 `json:"completion_rate"`
	SequentialScore float64 `json:"sequential_score"`
	AlbumFocused    bool    `json:"album_focused"`
	ListeningStyle  string  `json:"listening_style"`
}

// ArchetypeScore is one ranked archetype candidate (score 0-100).
type ArchetypeScore struct {
	Name        string  `json:"name"`
	Score       float64 `json:"score"`
	Description string  `json:"description"`
}

// MoodSummary is the mean valence/energy of the analyzed plays with a
// quadrant label.
type MoodSummary struct {
	Label   string  `json:"label"`
	Valence float64 `json:"valence"`
	Energy  float64 `json:"energy"`
}

// PersonalityResult is the output of the personality classifier.
type PersonalityResult struct {
	UserID      string           `json:"user_id"`
	Scores      ScoreVector      `json:"scores"`
	Album       AlbumAffinity    `json:"album_affinity"`
	Primary     ArchetypeScore   `json:"primary_type"`
	Secondary   ArchetypeScore   `json:"secondary_type"`
	Ranking     []ArchetypeScore `json:"ranking"`
	Mood        MoodSummary      `json:"mood"`
	TopGenres   []string         `json:"top_genres"`
	Description string           `json:"description"`
	EventCount  int              `json:"event_count"`
	IsDefault   bool             `json:"is_default"`
}

// Severity is a four-step tier derived from a threshold ladder.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMild     Severity = "mild"
	SeverityModerate Severity = "moderate"
	SeverityHigh     Severity = "high"
)

// Rank orders severities from low (0) to high (3).
func (s Severity) Rank() int {
	switch s {
	case SeverityMild:
		return 1
	case SeverityModerate:
		return 2
	case SeverityHigh:
		return 3
	}
	return 0
}

// IndicatorResult is the outcome of one stress indicator.
type IndicatorResult struct {
	Frequency  float64  `json:"frequency"`
	Severity   Severity `json:"severity"`
	Confidence float64  `json:"confidence"`
	Detail     string   `json:"detail"`
	// HappyRepetitive is only populated by the repetitive-behavior indicator.
	HappyRepetitive int `json:"happy_repetitive,omitempty"`
}

// DailyStressPoint is one day of the stress timeline.
type DailyStressPoint struct {
	Date       string  `json:"date"`
	AvgEnergy  float64 `json:"avg_energy"`
	AvgValence float64 `json:"avg_valence"`
	ValenceStd float64 `json:"valence_std"`
	EventCount int     `json:"event_count"`
	Score      float64 `json:"score"`
}

// TriggerKind identifies the contextual factor a trigger was mined from.
type TriggerKind string

const (
	TriggerTemporal TriggerKind = "temporal"
	TriggerArtist   TriggerKind = "artist"
)

// PersonalTrigger associates a contextual factor with stress-like listening.
type PersonalTrigger struct {
	Kind    TriggerKind `json:"kind"`
	Factor  string      `json:"factor"`
	Message string      `json:"message"`
}

// WellnessRecommendation is a structured suggestion tied to a fired indicator.
type WellnessRecommendation struct {
	Indicator   string `json:"indicator,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Action      string `json:"action"`
}

// StressResult is the output of the stress/wellness detector.
type StressResult struct {
	UserID          string                     `json:"user_id"`
	Score           float64                    `json:"score"`
	Level           string                     `json:"level"`
	Indicators      map[string]IndicatorResult `json:"indicators"`
	Timeline        []DailyStressPoint         `json:"timeline"`
	Triggers        []PersonalTrigger          `json:"triggers"`
	Recommendations []WellnessRecommendation   `json:"recommendations"`
	Confidence      float64                    `json:"confidence"`
	WindowDays      int                        `json:"window_days"`
	EventCount      int                        `json:"event_count"`
}

// Recommendation is one ranked catalog track.
type Recommendation struct {
	TrackID            string  `json:"track_id"`
	Name               string  `json:"name"`
	Artist             string  `json:"artist"`
	Album              string  `json:"album"`
	Popularity         int     `json:"popularity"`
	Similarity         float64 `json:"similarity"`
	Score              float64 `json:"score"`
	Reason             string  `json:"reason"`
	FromFavoriteGenres bool    `json:"from_favorite_genres"`
}

// IngestBatch is a set of tracks and events to append to the store.
type IngestBatch struct {
	Tracks       []RawTrackFeatures
	Events       []ListeningEvent
	ArtistGenres map[string][]string
}

// IngestResult reports what an ingestion call changed.
type IngestResult struct {
	BatchID        string    `json:"batch_id"`
	TracksUpserted int       `json:"tracks_upserted"`
	EventsInserted int       `json:"events_inserted"`
	EventsSkipped  int       `json:"events_skipped"`
	ReceivedAt     time.Time `json:"received_at"`
}
