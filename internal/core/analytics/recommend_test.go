package analytics

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/ewilliams-labs/resonance/internal/core/domain"
)

func TestContentRecommender_EmptyHistory(t *testing.T) {
	r := NewContentRecommender(DefaultConfig())
	tests := []struct {
		name    string
		history []domain.TrackFeatures
	}{
		{name: "no history", history: nil},
		{name: "only incomplete features", history: []domain.TrackFeatures{track("h1", incomplete())}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := r.Recommend(RecommendInput{
				UserID:            "u1",
				History:           tc.history,
				PopularCandidates: []domain.TrackFeatures{track("c1")},
			})
			if got == nil || len(got) != 0 {
				t.Fatalf("got %+v, want empty non-nil slice", got)
			}
		})
	}
}

func TestContentRecommender_IdenticalCandidateHasUnitSimilarity(t *testing.T) {
	r := NewContentRecommender(DefaultConfig())
	history := []domain.TrackFeatures{track("h1", withVector(0.6, 0.7, 0.3, 0.2, 128))}
	cand := track("c1", withVector(0.6, 0.7, 0.3, 0.2, 128), withPopularity(50))

	got := r.Recommend(RecommendInput{UserID: "u1", History: history, PopularCandidates: []domain.TrackFeatures{cand}})
	if len(got) != 1 {
		t.Fatalf("got %d recommendations, want 1", len(got))
	}
	if got[0].Similarity != 1 {
		t.Fatalf("similarity = %v, want 1", got[0].Similarity)
	}
	if got[0].Score != 1.05 {
		t.Fatalf("score = %v, want 1.05", got[0].Score)
	}
	if !strings.HasPrefix(got[0].Reason, "Perfect match") || !strings.HasSuffix(got[0].Reason, "(new genre exploration)") {
		t.Fatalf("reason = %q", got[0].Reason)
	}
	if got[0].FromFavoriteGenres {
		t.Fatalf("fallback pool should not be marked as favorite genres")
	}
}

func TestContentRecommender_NeverReturnsPlayedTracks(t *testing.T) {
	r := NewContentRecommender(DefaultConfig())
	history := []domain.TrackFeatures{track("h1"), track("h2")}
	cands := []domain.TrackFeatures{
		track("h1", withPopularity(99)),
		track("c1", withPopularity(10)),
		track("h2", withPopularity(90)),
		track("c2", withPopularity(20)),
	}
	got := r.Recommend(RecommendInput{UserID: "u1", History: history, GenreCandidates: cands, K: 10})
	if len(got) != 2 {
		t.Fatalf("got %d recommendations, want 2", len(got))
	}
	for _, rec := range got {
		if rec.TrackID == "h1" || rec.TrackID == "h2" {
			t.Fatalf("recommended played track %s", rec.TrackID)
		}
		if !rec.FromFavoriteGenres || !strings.HasSuffix(rec.Reason, "(from your favorite genres)") {
			t.Fatalf("genre pool recommendation not marked: %+v", rec)
		}
	}
}

func TestContentRecommender_FallsBackToPopularCompleteTracks(t *testing.T) {
	r := NewContentRecommender(DefaultConfig())
	history := []domain.TrackFeatures{track("h1")}
	got := r.Recommend(RecommendInput{
		UserID:          "u1",
		History:         history,
		GenreCandidates: []domain.TrackFeatures{track("h1")},
		PopularCandidates: []domain.TrackFeatures{
			track("partial", incomplete(), withPopularity(100)),
			track("p1", withPopularity(80)),
		},
	})
	if len(got) != 1 || got[0].TrackID != "p1" {
		t.Fatalf("got %+v, want only p1", got)
	}
}

func TestContentRecommender_PopularityBreaksTies(t *testing.T) {
	r := NewContentRecommender(DefaultConfig())
	history := []domain.TrackFeatures{track("h1")}
	cands := []domain.TrackFeatures{
		track("low", withPopularity(10)),
		track("high", withPopularity(90)),
		track("mid", withPopularity(50)),
	}
	got := r.Recommend(RecommendInput{UserID: "u1", History: history, PopularCandidates: cands})
	var ids []string
	for _, rec := range got {
		ids = append(ids, rec.TrackID)
	}
	if want := []string{"high", "mid", "low"}; !reflect.DeepEqual(ids, want) {
		t.Fatalf("order = %v, want %v", ids, want)
	}
}

func TestContentRecommender_K(t *testing.T) {
	r := NewContentRecommender(DefaultConfig())
	history := []domain.TrackFeatures{track("h1")}
	var cands []domain.TrackFeatures
	for i := 0; i < 60; i++ {
		cands = append(cands, track(uniqueID("c", i), withPopularity(i)))
	}

	tests := []struct {
		name string
		k    int
		want int
	}{
		{name: "zero uses default", k: 0, want: 5},
		{name: "explicit", k: 3, want: 3},
		{name: "larger than pool", k: 100, want: 50},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := r.Recommend(RecommendInput{UserID: "u1", History: history, PopularCandidates: cands, K: tc.k})
			if len(got) != tc.want {
				t.Fatalf("got %d, want %d", len(got), tc.want)
			}
		})
	}
}

func TestContentRecommender_ReasonBands(t *testing.T) {
	user := []float64{1, 0, 0, 0, 0}
	r := NewContentRecommender(DefaultConfig())
	tests := []struct {
		sim  float64
		want string
	}{
		{0.95, "Perfect match"},
		{0.85, "Very similar"},
		{0.75, "Matches your preferred"},
		{0.65, "Good fit"},
		{0.2, "Might expand your horizons"},
	}
	for _, tc := range tests {
		got := r.reason(user, track("c"), tc.sim, true)
		if !strings.HasPrefix(got, tc.want) {
			t.Errorf("reason(%v) = %q, want prefix %q", tc.sim, got, tc.want)
		}
	}
}

func TestClosestDimension(t *testing.T) {
	got := closestDimension([]float64{0.5, 0.9, 0.1, 0.4, 0.6}, []float64{0.1, 0.2, 0.15, 0.9, 0.1})
	if got != "mood" {
		t.Fatalf("closest = %q, want mood", got)
	}
}

func TestTopGenres(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	plays := []domain.Play{
		play(base, track("t1", withArtist("A"))),
		play(base, track("t2", withArtist("A"))),
		play(base, track("t3", withArtist("b"))),
		play(base, track("t4", withArtist("C"))),
	}
	genres := map[string][]string{
		"A": {"indie", "rock"},
		"B": {"rock", "jazz"},
		"C": {"ambient"},
	}

	m := BuildArtistGenreMap(plays, genres)
	if m["A"]["indie"] != 2 || m["b"]["jazz"] != 1 {
		t.Fatalf("genre map = %+v", m)
	}
	got := TopGenres(m, 3)
	if want := []string{"rock", "indie", "ambient"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("top genres = %v, want %v", got, want)
	}
}
