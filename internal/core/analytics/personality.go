package analytics

import (
	"sort"
	"strings"

	"github.com/ewilliams-labs/resonance/internal/core/domain"
)

// Listening styles reported in AlbumAffinity.
const (
	StyleAlbumPurist   = "Album Purist"
	StyleAlbumExplorer = "Album Explorer"
	StyleTrackHopper   = "Track Hopper"
	StyleMoodCurator   = "Mood Curator"
	StyleUnknown       = "Unknown"
)

const (
	neutralScore       = 50
	defaultPrimary     = "Data Analyzer"
	defaultSecondary   = "Music Explorer"
	albumPuristType    = "Album Purist"
	maxReportedGenres  = 5
	varietyArtistShare = 0.6
	varietyGenreShare  = 0.4
	consistencyDays    = 0.4
	consistencyHours   = 0.6
	moodValenceShare   = 0.6
	moodEnergyShare    = 0.4
)

// scores are the five behavioral scores on a 0-1 scale.
type scores struct {
	variety     float64
	discovery   float64
	consistency float64
	mood        float64
	timePattern float64
}

type archetype struct {
	name        string
	description string
	score       func(s scores) float64
}

// archetypes is ranked by score; equal scores keep this declaration order,
// so reordering the table changes which archetype wins a tie.
var archetypes = []archetype{
	{
		name:        "Explorer",
		description: "You chase breadth, moving across many artists and finding new ones along the way.",
		score:       func(s scores) float64 { return 0.7*s.variety + 0.3*s.discovery },
	},
	{
		name:        "Loyalist",
		description: "You return to a trusted circle of artists and listen on a steady rhythm.",
		score:       func(s scores) float64 { return 0.6*(1-s.variety) + 0.4*s.consistency },
	},
	{
		name:        "Trendsetter",
		description: "Most of what you play sits outside your usual favorites, and your schedule stays loose.",
		score:       func(s scores) float64 { return 0.7*s.discovery + 0.3*(1-s.consistency) },
	},
	{
		name:        "Ritualist",
		description: "Music is part of your routine: the same days and the same hours, week after week.",
		score:       func(s scores) float64 { return 0.6*s.consistency + 0.4*s.timePattern },
	},
	{
		name:        "Mood Lifter",
		description: "You gravitate to bright, energetic tracks that keep spirits high.",
		score:       func(s scores) float64 { return 0.7*s.mood + 0.3*s.variety },
	},
	{
		name:        "Deep Feeler",
		description: "You lean into darker, quieter songs and stay with them.",
		score:       func(s scores) float64 { return 0.7*(1-s.mood) + 0.3*s.consistency },
	},
	{
		name:        "Eclectic",
		description: "Your listening spreads across the whole day and across many artists.",
		score:       func(s scores) float64 { return 0.5*s.variety + 0.5*(1-s.timePattern) },
	},
	{
		name:        "Curator",
		description: "You build a balanced library: varied, but chosen with care and revisited often.",
		score:       func(s scores) float64 { return 0.4*s.consistency + 0.3*(1-s.discovery) + 0.3*s.variety },
	},
}

var defaultDescriptions = map[string]string{
	defaultPrimary:   "There is not enough listening history yet to read your habits.",
	defaultSecondary: "Keep listening and your profile will take shape.",
	albumPuristType:  "You listen to records front to back and finish what you start.",
}

// PersonalityInput is the snapshot the classifier works on.
type PersonalityInput struct {
	UserID     string
	Recent     []domain.Play
	TopTracks  []domain.TrackFeatures
	TopArtists []domain.Artist
}

// PersonalityClassifier scores listening behavior and maps it to archetypes.
type PersonalityClassifier struct {
	cfg Config
}

// NewPersonalityClassifier constructs a classifier.
func NewPersonalityClassifier(cfg Config) *PersonalityClassifier {
	return &PersonalityClassifier{cfg: cfg}
}

// DefaultPersonality is the neutral profile returned for sparse input.
func DefaultPersonality(userID string) domain.PersonalityResult {
	primary := domain.ArchetypeScore{Name: defaultPrimary, Score: neutralScore, Description: defaultDescriptions[defaultPrimary]}
	secondary := domain.ArchetypeScore{Name: defaultSecondary, Score: neutralScore, Description: defaultDescriptions[defaultSecondary]}
	return domain.PersonalityResult{
		UserID: userID,
		Scores: domain.ScoreVector{
			Variety:     neutralScore,
			Discovery:   neutralScore,
			Consistency: neutralScore,
			Mood:        neutralScore,
			TimePattern: neutralScore,
		},
		Album:       domain.AlbumAffinity{ListeningStyle: StyleUnknown},
		Primary:     primary,
		Secondary:   secondary,
		Ranking:     []domain.ArchetypeScore{primary, secondary},
		Mood:        domain.MoodSummary{Label: StyleUnknown, Valence: domain.DefaultUnitFeature, Energy: domain.DefaultUnitFeature},
		TopGenres:   []string{},
		Description: describeDefault(),
		IsDefault:   true,
	}
}

// Classify computes the personality profile. Any empty input list yields
// DefaultPersonality.
func (c *PersonalityClassifier) Classify(in PersonalityInput) domain.PersonalityResult {
	if len(in.Recent) == 0 || len(in.TopTracks) == 0 || len(in.TopArtists) == 0 {
		return DefaultPersonality(in.UserID)
	}

	recent := newestChronological(in.Recent, c.cfg.Personality.RecentLimit)

	s := scores{
		variety:     c.variety(in.TopTracks, in.TopArtists),
		discovery:   discovery(recent, in.TopArtists),
		consistency: c.consistency(recent),
		mood:        moodScore(recent),
		timePattern: c.timePattern(recent),
	}
	album := c.albumAffinity(recent)

	ranking := rankArchetypes(s, album)
	mood := moodSummary(recent)

	res := domain.PersonalityResult{
		UserID: in.UserID,
		Scores: domain.ScoreVector{
			Variety:     round(s.variety*100, 2),
			Discovery:   round(s.discovery*100, 2),
			Consistency: round(s.consistency*100, 2),
			Mood:        round(s.mood*100, 2),
			TimePattern: round(s.timePattern*100, 2),
		},
		Album:      album.report(),
		Primary:    ranking[0],
		Secondary:  ranking[1],
		Ranking:    ranking,
		Mood:       mood,
		TopGenres:  topArtistGenres(in.TopArtists, maxReportedGenres),
		EventCount: len(recent),
	}
	res.Description = describe(res)
	return res
}

// variety = 0.6 * artist diversity of top tracks + 0.4 * saturated genre breadth.
func (c *PersonalityClassifier) variety(top []domain.TrackFeatures, artists []domain.Artist) float64 {
	uniqueArtists := make(map[string]struct{}, len(top))
	for _, t := range top {
		uniqueArtists[nameKey(t.Artist)] = struct{}{}
	}
	genres := make(map[string]struct{})
	for _, a := range artists {
		for _, g := range a.Genres {
			if k := nameKey(g); k != "" {
				genres[k] = struct{}{}
			}
		}
	}
	artistShare := ratio(len(uniqueArtists), len(top))
	genreShare := clamp01(float64(len(genres)) / c.cfg.Personality.GenreSaturation)
	return clamp01(varietyArtistShare*artistShare + varietyGenreShare*genreShare)
}

func discovery(recent []domain.Play, artists []domain.Artist) float64 {
	known := make(map[string]struct{}, len(artists))
	for _, a := range artists {
		known[nameKey(a.Name)] = struct{}{}
	}
	fresh := 0
	for _, p := range recent {
		if _, ok := known[nameKey(p.Track.Artist)]; !ok {
			fresh++
		}
	}
	return ratio(fresh, len(recent))
}

func (c *PersonalityClassifier) consistency(recent []domain.Play) float64 {
	loc := c.cfg.location()
	days := make([]float64, 7)
	hours := make([]float64, 24)
	for _, p := range recent {
		t := p.PlayedAt.In(loc)
		days[int(t.Weekday())]++
		hours[t.Hour()]++
	}
	return clamp01(consistencyDays*regularity(days) + consistencyHours*regularity(hours))
}

func moodScore(recent []domain.Play) float64 {
	valence := make([]float64, len(recent))
	energy := make([]float64, len(recent))
	for i, p := range recent {
		valence[i] = p.Track.Valence
		energy[i] = p.Track.Energy
	}
	return clamp01(moodValenceShare*mean(valence) + moodEnergyShare*mean(energy))
}

// timePattern rescales the hour-of-day Gini coefficient to (gini+1)/2.
func (c *PersonalityClassifier) timePattern(recent []domain.Play) float64 {
	loc := c.cfg.location()
	hours := make([]float64, 24)
	for _, p := range recent {
		hours[p.PlayedAt.In(loc).Hour()]++
	}
	return clamp01((gini(hours) + 1) / 2)
}

type albumStats struct {
	completionRate  float64
	sequentialScore float64
	focused         bool
	style           string
}

func (a albumStats) report() domain.AlbumAffinity {
	return domain.AlbumAffinity{
		CompletionRate:  round(a.completionRate*100, 2),
		SequentialScore: round(a.sequentialScore*100, 2),
		AlbumFocused:    a.focused,
		ListeningStyle:  a.style,
	}
}

func (c *PersonalityClassifier) albumAffinity(recent []domain.Play) albumStats {
	pc := c.cfg.Personality
	tracksPerAlbum := make(map[string]map[string]struct{})
	for _, p := range recent {
		key := albumKey(p.Track)
		if key == "" {
			continue
		}
		if tracksPerAlbum[key] == nil {
			tracksPerAlbum[key] = make(map[string]struct{})
		}
		tracksPerAlbum[key][p.TrackID] = struct{}{}
	}
	multi := 0
	for _, tracks := range tracksPerAlbum {
		if len(tracks) > 1 {
			multi++
		}
	}

	sequential := 0
	for i := 1; i < len(recent); i++ {
		prev, cur := albumKey(recent[i-1].Track), albumKey(recent[i].Track)
		if cur != "" && cur == prev {
			sequential++
		}
	}

	st := albumStats{
		completionRate:  ratio(multi, len(tracksPerAlbum)),
		sequentialScore: ratio(sequential, len(recent)-1),
	}
	st.focused = st.sequentialScore > pc.FocusSequential || st.completionRate > pc.FocusCompletion

	switch {
	case st.sequentialScore > pc.PuristSequential:
		st.style = StyleAlbumPurist
	case st.focused:
		st.style = StyleAlbumExplorer
	case st.sequentialScore < pc.HopperSequential:
		st.style = StyleTrackHopper
	default:
		st.style = StyleMoodCurator
	}
	return st
}

func rankArchetypes(s scores, album albumStats) []domain.ArchetypeScore {
	ranked := make([]domain.ArchetypeScore, 0, len(archetypes)+1)
	for _, a := range archetypes {
		ranked = append(ranked, domain.ArchetypeScore{
			Name:        a.name,
			Score:       round(clamp01(a.score(s))*100, 2),
			Description: a.description,
		})
	}
	if album.focused {
		ranked = append(ranked, domain.ArchetypeScore{
			Name:        albumPuristType,
			Score:       round(clamp01(0.8*album.sequentialScore+0.2*(1-s.variety))*100, 2),
			Description: defaultDescriptions[albumPuristType],
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

func moodSummary(recent []domain.Play) domain.MoodSummary {
	valence := make([]float64, len(recent))
	energy := make([]float64, len(recent))
	for i, p := range recent {
		valence[i] = p.Track.Valence
		energy[i] = p.Track.Energy
	}
	v, e := mean(valence), mean(energy)

	var label string
	switch {
	case e > 0.6 && v > 0.5:
		label = "Energetic & Upbeat"
	case e > 0.6:
		label = "Intense & Dark"
	case v > 0.5:
		label = "Chill & Happy"
	default:
		label = "Reflective & Melancholy"
	}
	return domain.MoodSummary{Label: label, Valence: round(v, 4), Energy: round(e, 4)}
}

func topArtistGenres(artists []domain.Artist, n int) []string {
	counts := make(map[string]int)
	display := make(map[string]string)
	for _, a := range artists {
		for _, g := range a.Genres {
			k := nameKey(g)
			if k == "" {
				continue
			}
			counts[k]++
			if _, ok := display[k]; !ok {
				display[k] = strings.TrimSpace(g)
			}
		}
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > n {
		keys = keys[:n]
	}
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = display[k]
	}
	return out
}

// newestChronological keeps the newest limit plays, oldest first.
func newestChronological(plays []domain.Play, limit int) []domain.Play {
	sorted := chronological(plays)
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[len(sorted)-limit:]
	}
	return sorted
}

func chronological(plays []domain.Play) []domain.Play {
	sorted := append([]domain.Play(nil), plays...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].PlayedAt.Equal(sorted[j].PlayedAt) {
			return sorted[i].PlayedAt.Before(sorted[j].PlayedAt)
		}
		return sorted[i].TrackID < sorted[j].TrackID
	})
	return sorted
}

func albumKey(t domain.TrackFeatures) string {
	album := nameKey(t.Album)
	if album == "" {
		return ""
	}
	return nameKey(t.Artist) + "\x00" + album
}

func nameKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
