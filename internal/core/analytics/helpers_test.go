package analytics

import (
	"fmt"
	"time"

	"github.com/ewilliams-labs/resonance/internal/core/domain"
)

type trackOpt func(*domain.TrackFeatures)

func withArtist(a string) trackOpt { return func(t *domain.TrackFeatures) { t.Artist = a } }
func withAlbum(a string) trackOpt  { return func(t *domain.TrackFeatures) { t.Album = a } }
func withPopularity(p int) trackOpt {
	return func(t *domain.TrackFeatures) { t.Popularity = p }
}
func withMood(energy, valence float64) trackOpt {
	return func(t *domain.TrackFeatures) { t.Energy, t.Valence = energy, valence }
}
func withVector(dance, energy, valence, acoustic, tempo float64) trackOpt {
	return func(t *domain.TrackFeatures) {
		t.Danceability, t.Energy, t.Valence, t.Acousticness, t.Tempo = dance, energy, valence, acoustic, tempo
	}
}
func incomplete() trackOpt { return func(t *domain.TrackFeatures) { t.Complete = false } }

// track builds a complete, neutral feature record.
func track(id string, opts ...trackOpt) domain.TrackFeatures {
	t := domain.DefaultTrackFeatures(id)
	t.Name = "Song " + id
	t.Artist = "Artist " + id
	t.Complete = true
	for _, o := range opts {
		o(&t)
	}
	return t
}

func play(at time.Time, t domain.TrackFeatures) domain.Play {
	return domain.Play{
		ListeningEvent: domain.ListeningEvent{
			UserID:   "u1",
			TrackID:  t.TrackID,
			PlayedAt: at,
			Source:   domain.SourcePlayed,
		},
		Track: t,
	}
}

func agitatedTrack(id string) domain.TrackFeatures {
	return track(id, withMood(0.9, 0.1))
}

func calmTrack(id string) domain.TrackFeatures {
	return track(id, withMood(0.2, 0.9))
}

func uniqueID(prefix string, i int) string {
	return fmt.Sprintf("%s-%03d", prefix, i)
}
