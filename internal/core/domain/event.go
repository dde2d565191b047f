package domain

import (
	"fmt"
	"time"
)

// Source identifies how a listening event was observed.
type Source string

const (
	SourcePlayed         Source = "played"
	SourceRecentlyPlayed Source = "recently_played"
	SourceCurrent        Source = "current"
	SourceSaved          Source = "saved"
	SourceTopShort       Source = "top_short"
	SourceTopMedium      Source = "top_medium"
	SourceTopLong        Source = "top_long"
)

// ListeningSources are the sources that represent an actual play.
var ListeningSources = []Source{SourcePlayed, SourceRecentlyPlayed, SourceCurrent}

// TopSources are the sources backed by the provider's top-track rankings.
var TopSources = []Source{SourceTopShort, SourceTopMedium, SourceTopLong}

// ParseSource validates a source string.
func ParseSource(s string) (Source, error) {
	switch src := Source(s); src {
	case SourcePlayed, SourceRecentlyPlayed, SourceCurrent, SourceSaved,
		SourceTopShort, SourceTopMedium, SourceTopLong:
		return src, nil
	}
	return "", fmt.Errorf("domain: unknown event source %q", s)
}

// ListeningEvent is one observation of a user and a track. The triple
// (UserID, TrackID, PlayedAt) is unique within the store.
type ListeningEvent struct {
	UserID   string    `json:"user_id"`
	TrackID  string    `json:"track_id"`
	PlayedAt time.Time `json:"played_at"`
	Source   Source    `json:"source"`
}

// Play is a listening event joined with the normalized features of its track.
type Play struct {
	ListeningEvent
	Track TrackFeatures
}

// ArtistGenreMap maps an artist to the genres it is tagged with and the number
// of the user's plays that contributed to each.
type ArtistGenreMap map[string]map[string]int

// Artist is a top artist with its known genres.
type Artist struct {
	Name   string   `json:"name"`
	Genres []string `json:"genres"`
}
