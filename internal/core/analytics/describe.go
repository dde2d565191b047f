package analytics

import (
	"fmt"
	"strings"

	"github.com/ewilliams-labs/resonance/internal/core/domain"
)

var styleSentences = map[string]string{
	StyleAlbumPurist:   "You tend to play albums in order, start to finish.",
	StyleAlbumExplorer: "You dig into albums, often coming back for more than one track.",
	StyleTrackHopper:   "You jump between tracks rather than staying with one record.",
	StyleMoodCurator:   "You pick tracks to fit the moment more than the album they come from.",
}

// describe builds the summary text for a profile. It is a fixed template so
// the same profile always yields the same text.
func describe(res domain.PersonalityResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Primarily a %s with a %s streak. ", res.Primary.Name, res.Secondary.Name)
	b.WriteString(res.Primary.Description)
	if s, ok := styleSentences[res.Album.ListeningStyle]; ok {
		b.WriteString(" ")
		b.WriteString(s)
	}
	if len(res.TopGenres) > 0 {
		fmt.Fprintf(&b, " Your top genres: %s.", strings.Join(res.TopGenres, ", "))
	}
	fmt.Fprintf(&b, " Overall mood: %s.", res.Mood.Label)
	return b.String()
}

func describeDefault() string {
	return "Not enough listening history yet. Keep listening and check back for your music personality."
}
