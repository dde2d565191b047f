package analytics

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ewilliams-labs/resonance/internal/core/domain"
)

var tasteDimensions = []string{"danceability", "energy", "mood", "acousticness", "tempo"}

const (
	genreMatchSuffix   = "(from your favorite genres)"
	genreExploreSuffix = "(new genre exploration)"
)

// RecommendInput is the snapshot the recommender works on.
type RecommendInput struct {
	UserID string
	// History holds every distinct track the user has played.
	History []domain.TrackFeatures
	// GenreCandidates are catalog tracks by artists in the user's top genres.
	GenreCandidates []domain.TrackFeatures
	// PopularCandidates is the genre-agnostic fallback pool.
	PopularCandidates []domain.TrackFeatures
	K                 int
}

// ContentRecommender ranks unplayed catalog tracks against the user's taste
// centroid.
type ContentRecommender struct {
	cfg Config
}

// NewContentRecommender constructs a recommender.
func NewContentRecommender(cfg Config) *ContentRecommender {
	return &ContentRecommender{cfg: cfg}
}

// TasteVector is the mean feature vector over tracks with complete features.
// ok is false when no such track exists.
func (r *ContentRecommender) TasteVector(tracks []domain.TrackFeatures) (vec []float64, ok bool) {
	sum := make([]float64, len(tasteDimensions))
	n := 0
	for _, t := range tracks {
		if !t.Complete {
			continue
		}
		for i, v := range r.vector(t) {
			sum[i] += v
		}
		n++
	}
	if n == 0 {
		return nil, false
	}
	for i := range sum {
		sum[i] /= float64(n)
	}
	return sum, true
}

func (r *ContentRecommender) vector(t domain.TrackFeatures) []float64 {
	return []float64{t.Danceability, t.Energy, t.Valence, t.Acousticness, t.Tempo / r.cfg.Recommend.TempoScale}
}

// Recommend returns up to K ranked recommendations. An empty history or an
// empty candidate pool yields an empty, non-nil slice.
func (r *ContentRecommender) Recommend(in RecommendInput) []domain.Recommendation {
	out := []domain.Recommendation{}
	user, ok := r.TasteVector(in.History)
	if !ok {
		return out
	}

	played := make(map[string]struct{}, len(in.History))
	for _, t := range in.History {
		played[t.TrackID] = struct{}{}
	}

	pool, fromGenres := r.pool(played, in.GenreCandidates, in.PopularCandidates)
	if len(pool) == 0 {
		return out
	}

	type scored struct {
		track      domain.TrackFeatures
		similarity float64
		score      float64
	}
	ranked := make([]scored, len(pool))
	for i, t := range pool {
		sim := cosineSimilarity(user, r.vector(t))
		ranked[i] = scored{
			track:      t,
			similarity: sim,
			score:      sim + r.cfg.Recommend.PopularityWeight*float64(t.Popularity)/100,
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	k := in.K
	if k <= 0 {
		k = r.cfg.Recommend.DefaultK
	}
	if k > len(ranked) {
		k = len(ranked)
	}
	for _, s := range ranked[:k] {
		out = append(out, domain.Recommendation{
			TrackID:            s.track.TrackID,
			Name:               s.track.Name,
			Artist:             s.track.Artist,
			Album:              s.track.Album,
			Popularity:         s.track.Popularity,
			Similarity:         round(s.similarity, 4),
			Score:              round(s.score, 4),
			Reason:             r.reason(user, s.track, s.similarity, fromGenres),
			FromFavoriteGenres: fromGenres,
		})
	}
	return out
}

// pool picks the genre-restricted candidates when any survive filtering and
// otherwise the popular fallback. Both are ordered by popularity descending
// and capped at CandidateLimit.
func (r *ContentRecommender) pool(played map[string]struct{}, genre, popular []domain.TrackFeatures) ([]domain.TrackFeatures, bool) {
	if p := r.filter(played, genre, false); len(p) > 0 {
		return p, true
	}
	return r.filter(played, popular, true), false
}

func (r *ContentRecommender) filter(played map[string]struct{}, cands []domain.TrackFeatures, completeOnly bool) []domain.TrackFeatures {
	seen := make(map[string]struct{}, len(cands))
	out := make([]domain.TrackFeatures, 0, len(cands))
	for _, t := range cands {
		if _, ok := played[t.TrackID]; ok {
			continue
		}
		if _, dup := seen[t.TrackID]; dup {
			continue
		}
		if completeOnly && !t.Complete {
			continue
		}
		seen[t.TrackID] = struct{}{}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Popularity > out[j].Popularity })
	if limit := r.cfg.Recommend.CandidateLimit; len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (r *ContentRecommender) reason(user []float64, t domain.TrackFeatures, sim float64, fromGenres bool) string {
	var base string
	switch {
	case sim > 0.9:
		base = "Perfect match for your taste"
	case sim > 0.8:
		base = "Very similar to what you play"
	case sim > 0.7:
		base = "Matches your preferred " + closestDimension(user, r.vector(t))
	case sim > 0.6:
		base = "Good fit for your profile"
	default:
		base = "Might expand your horizons"
	}
	suffix := genreExploreSuffix
	if fromGenres {
		suffix = genreMatchSuffix
	}
	return fmt.Sprintf("%s %s", base, suffix)
}

// closestDimension names the taste dimension where the candidate is nearest
// the user. Ties go to the earlier dimension.
func closestDimension(user, cand []float64) string {
	best, bestDiff := 0, math.Inf(1)
	for i := range user {
		if d := math.Abs(user[i] - cand[i]); d < bestDiff {
			best, bestDiff = i, d
		}
	}
	return tasteDimensions[best]
}

// BuildArtistGenreMap counts, per artist, how many plays each of its genres
// received.
func BuildArtistGenreMap(plays []domain.Play, genres map[string][]string) domain.ArtistGenreMap {
	m := make(domain.ArtistGenreMap)
	lookup := make(map[string][]string, len(genres))
	for artist, gs := range genres {
		lookup[nameKey(artist)] = gs
	}
	for _, p := range plays {
		gs := lookup[nameKey(p.Track.Artist)]
		if len(gs) == 0 {
			continue
		}
		if m[p.Track.Artist] == nil {
			m[p.Track.Artist] = make(map[string]int)
		}
		for _, g := range gs {
			if g = strings.TrimSpace(g); g != "" {
				m[p.Track.Artist][g]++
			}
		}
	}
	return m
}

// TopGenres returns the n genres with the most plays, ties broken by name.
func TopGenres(m domain.ArtistGenreMap, n int) []string {
	totals := make(map[string]int)
	for _, gs := range m {
		for g, c := range gs {
			totals[g] += c
		}
	}
	names := make([]string, 0, len(totals))
	for g := range totals {
		names = append(names, g)
	}
	sort.Slice(names, func(i, j int) bool {
		if totals[names[i]] != totals[names[j]] {
			return totals[names[i]] > totals[names[j]]
		}
		return names[i] < names[j]
	})
	if n >= 0 && len(names) > n {
		names = names[:n]
	}
	return names
}
