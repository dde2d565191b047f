package analytics

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/ewilliams-labs/resonance/internal/core/domain"
)

// Indicator names used as keys in StressResult.Indicators.
const (
	IndicatorAgitated   = "agitated_listening"
	IndicatorRepetitive = "repetitive_behavior"
	IndicatorLateNight  = "late_night"
	IndicatorVolatility = "mood_volatility"
	IndicatorCrashes    = "energy_crashes"
)

// Stress level labels.
const (
	LevelHigh         = "High"
	LevelModerate     = "Moderate"
	LevelMild         = "Mild"
	LevelLow          = "Low"
	LevelInsufficient = "Insufficient Data"
)

const (
	defaultStressScore      = 25
	defaultStressConfidence = 20
	indicatorCount          = 5
	maxConfidence           = 0.95
	dayLayout               = "2006-01-02"
)

// StressInput is the snapshot the detector works on.
type StressInput struct {
	UserID     string
	Plays      []domain.Play
	WindowDays int
	Now        time.Time
}

// StressDetector computes stress indicators and their aggregate.
type StressDetector struct {
	cfg Config
}

// NewStressDetector constructs a detector.
func NewStressDetector(cfg Config) *StressDetector {
	return &StressDetector{cfg: cfg}
}

// DefaultStress is the fixed result for an empty window.
func DefaultStress(userID string, windowDays int) domain.StressResult {
	return domain.StressResult{
		UserID:     userID,
		Score:      defaultStressScore,
		Level:      LevelInsufficient,
		Indicators: map[string]domain.IndicatorResult{},
		Timeline:   []domain.DailyStressPoint{},
		Triggers:   []domain.PersonalTrigger{},
		Recommendations: []domain.WellnessRecommendation{{
			Title:       "Build more listening history",
			Description: "We need a few more days of listening to spot patterns in how music fits your mood.",
			Action:      "Keep listening as usual and check back in a week.",
		}},
		Confidence: defaultStressConfidence,
		WindowDays: windowDays,
	}
}

// rawIndicators are the un-normalized indicator values feeding the aggregate.
type rawIndicators struct {
	agitated   int
	stressRep  int
	lateNight  int
	volatility float64
	crashes    int
}

// Detect runs every indicator over the window ending at in.Now.
func (d *StressDetector) Detect(in StressInput) domain.StressResult {
	plays := d.window(in)
	if len(plays) == 0 {
		return DefaultStress(in.UserID, in.WindowDays)
	}

	var raw rawIndicators
	indicators := make(map[string]domain.IndicatorResult, indicatorCount)

	indicators[IndicatorAgitated], raw.agitated = d.agitated(plays)
	indicators[IndicatorRepetitive], raw.stressRep = d.repetitive(plays)
	indicators[IndicatorLateNight], raw.lateNight = d.lateNight(plays)
	indicators[IndicatorVolatility], raw.volatility = d.volatility(plays)
	indicators[IndicatorCrashes], raw.crashes = d.crashes(plays)

	score := round(d.aggregate(raw), 2)

	firing := 0
	for _, ind := range indicators {
		if ind.Frequency > 0 {
			firing++
		}
	}
	eventShare := clamp01(float64(len(plays)) / 100)
	confidence := math.Min(0.6*eventShare+0.4*float64(firing)/indicatorCount, maxConfidence) * 100

	return domain.StressResult{
		UserID:          in.UserID,
		Score:           score,
		Level:           d.level(score),
		Indicators:      indicators,
		Timeline:        d.timeline(plays),
		Triggers:        d.triggers(plays),
		Recommendations: recommendationsFor(indicators),
		Confidence:      round(confidence, 2),
		WindowDays:      in.WindowDays,
		EventCount:      len(plays),
	}
}

// window keeps plays in [now - windowDays, now], oldest first.
func (d *StressDetector) window(in StressInput) []domain.Play {
	since := in.Now.AddDate(0, 0, -in.WindowDays)
	kept := make([]domain.Play, 0, len(in.Plays))
	for _, p := range in.Plays {
		if p.PlayedAt.Before(since) || p.PlayedAt.After(in.Now) {
			continue
		}
		kept = append(kept, p)
	}
	return chronological(kept)
}

func (d *StressDetector) isAgitated(t domain.TrackFeatures) bool {
	return t.Energy > d.cfg.Stress.AgitatedEnergyMin && t.Valence < d.cfg.Stress.AgitatedValenceMax
}

func (d *StressDetector) agitated(plays []domain.Play) (domain.IndicatorResult, int) {
	th := d.cfg.Stress
	count := 0
	for _, p := range plays {
		if d.isAgitated(p.Track) {
			count++
		}
	}
	return domain.IndicatorResult{
		Frequency:  float64(count),
		Severity:   th.AgitatedLadder.Severity(float64(count)),
		Confidence: round(clamp01(float64(count)/th.AgitatedConfidenceCount), 4),
		Detail:     fmt.Sprintf("%d high-energy, low-valence plays", count),
	}, count
}

func (d *StressDetector) repetitive(plays []domain.Play) (domain.IndicatorResult, int) {
	th := d.cfg.Stress
	counts := make(map[string]int)
	tracks := make(map[string]domain.TrackFeatures)
	for _, p := range plays {
		counts[p.TrackID]++
		tracks[p.TrackID] = p.Track
	}

	repeated, stressRep, happyRep := 0, 0, 0
	for id, n := range counts {
		if n < th.RepeatMinPlays {
			continue
		}
		repeated++
		t := tracks[id]
		switch {
		case t.Valence < th.StressRepeatValenceMax && t.Energy < th.StressRepeatEnergyMax && n >= th.StressRepeatMinPlays:
			stressRep++
		case t.Valence > th.HappyRepeatValenceMin && t.Energy > th.HappyRepeatEnergyMin:
			happyRep++
		}
	}
	return domain.IndicatorResult{
		Frequency:       float64(stressRep),
		Severity:        th.RepetitiveLadder.Severity(float64(stressRep)),
		Confidence:      round(clamp01(float64(repeated)/th.RepetitiveConfidence), 4),
		Detail:          fmt.Sprintf("%d low-mood tracks on repeat, %d upbeat tracks on repeat", stressRep, happyRep),
		HappyRepetitive: happyRep,
	}, stressRep
}

func (d *StressDetector) lateNight(plays []domain.Play) (domain.IndicatorResult, int) {
	th := d.cfg.Stress
	late := make(map[int]bool, len(th.LateNightHours))
	for _, h := range th.LateNightHours {
		late[h] = true
	}
	loc := d.cfg.location()
	count := 0
	for _, p := range plays {
		if late[p.PlayedAt.In(loc).Hour()] {
			count++
		}
	}
	return domain.IndicatorResult{
		Frequency:  float64(count),
		Severity:   th.LateNightLadder.Severity(float64(count)),
		Confidence: round(clamp01(float64(count)/th.LateNightConfidence), 4),
		Detail:     fmt.Sprintf("%d plays between midnight and 4am", count),
	}, count
}

func (d *StressDetector) volatility(plays []domain.Play) (domain.IndicatorResult, float64) {
	th := d.cfg.Stress
	days := d.byDay(plays)
	means := make([]float64, 0, len(days))
	for _, day := range sortedKeys(days) {
		means = append(means, mean(valences(days[day])))
	}
	vol := stdDev(means)
	return domain.IndicatorResult{
		Frequency:  round(vol, 4),
		Severity:   th.VolatilityLadder.Severity(vol),
		Confidence: round(clamp01(float64(len(means))/th.VolatilityConfidenceDays), 4),
		Detail:     fmt.Sprintf("daily mood varies by %.2f across %d days", vol, len(means)),
	}, vol
}

// crashes counts chronologically adjacent plays whose energy jumps by more
// than CrashEnergyDelta.
func (d *StressDetector) crashes(plays []domain.Play) (domain.IndicatorResult, int) {
	th := d.cfg.Stress
	count := 0
	for i := 1; i < len(plays); i++ {
		if math.Abs(plays[i].Track.Energy-plays[i-1].Track.Energy) > th.CrashEnergyDelta {
			count++
		}
	}
	return domain.IndicatorResult{
		Frequency:  float64(count),
		Severity:   th.CrashLadder.Severity(float64(count)),
		Confidence: round(clamp01(float64(count)/th.CrashConfidence), 4),
		Detail:     fmt.Sprintf("%d abrupt energy shifts between consecutive tracks", count),
	}, count
}

func (d *StressDetector) aggregate(raw rawIndicators) float64 {
	w, c := d.cfg.Stress.Weights, d.cfg.Stress.Caps
	sum := w.Agitated*clamp01(float64(raw.agitated)/c.Agitated) +
		w.Repetitive*clamp01(float64(raw.stressRep)/c.Repetitive) +
		w.LateNight*clamp01(float64(raw.lateNight)/c.LateNight) +
		w.Volatility*clamp01(raw.volatility/c.Volatility) +
		w.Crashes*clamp01(float64(raw.crashes)/c.Crashes)
	return clamp(sum*100, 0, 100)
}

func (d *StressDetector) level(score float64) string {
	th := d.cfg.Stress
	switch {
	case score >= th.HighLevel:
		return LevelHigh
	case score >= th.ModerateLevel:
		return LevelModerate
	case score >= th.MildLevel:
		return LevelMild
	default:
		return LevelLow
	}
}

// timeline scores each day with data using the daily heuristic. This score is
// separate from the aggregate and the two are not reconciled.
func (d *StressDetector) timeline(plays []domain.Play) []domain.DailyStressPoint {
	th := d.cfg.Stress
	days := d.byDay(plays)
	points := make([]domain.DailyStressPoint, 0, len(days))
	for _, day := range sortedKeys(days) {
		dp := days[day]
		energy := make([]float64, len(dp))
		for i, p := range dp {
			energy[i] = p.Track.Energy
		}
		vals := valences(dp)
		avgE, avgV, vStd := mean(energy), mean(vals), stdDev(vals)

		var score float64
		if avgE > th.DailyEnergyMin && avgV < th.DailyValenceMax {
			score += 30
		}
		if vStd > th.DailyValenceStdMin {
			score += 25
		}
		if len(dp) > th.DailyBusyEvents {
			score += 20
		}
		points = append(points, domain.DailyStressPoint{
			Date:       day,
			AvgEnergy:  round(avgE, 4),
			AvgValence: round(avgV, 4),
			ValenceStd: round(vStd, 4),
			EventCount: len(dp),
			Score:      math.Min(score, 100),
		})
	}
	return points
}

// triggers mines hour-of-day and artist associations, temporal first.
func (d *StressDetector) triggers(plays []domain.Play) []domain.PersonalTrigger {
	th := d.cfg.Stress
	stressy := func(ps []domain.Play) bool {
		energy := make([]float64, len(ps))
		for i, p := range ps {
			energy[i] = p.Track.Energy
		}
		return mean(energy) > th.TriggerEnergyMin && mean(valences(ps)) < th.TriggerValenceMax
	}

	out := make([]domain.PersonalTrigger, 0, th.MaxTriggers)

	loc := d.cfg.location()
	byHour := make(map[int][]domain.Play)
	for _, p := range plays {
		h := p.PlayedAt.In(loc).Hour()
		byHour[h] = append(byHour[h], p)
	}
	var hours []string
	for h := 0; h < 24; h++ {
		if ps := byHour[h]; len(ps) > 0 && stressy(ps) {
			hours = append(hours, fmt.Sprintf("%02d:00", h))
		}
	}
	if len(hours) > 0 {
		out = append(out, domain.PersonalTrigger{
			Kind:    domain.TriggerTemporal,
			Factor:  strings.Join(hours, ","),
			Message: fmt.Sprintf("Your listening turns intense and low-mood around %s.", strings.Join(hours, ", ")),
		})
	}

	byArtist := make(map[string][]domain.Play)
	display := make(map[string]string)
	for _, p := range plays {
		k := nameKey(p.Track.Artist)
		if k == "" {
			continue
		}
		byArtist[k] = append(byArtist[k], p)
		if _, ok := display[k]; !ok {
			display[k] = strings.TrimSpace(p.Track.Artist)
		}
	}
	artists := make([]string, 0, len(byArtist))
	for k, ps := range byArtist {
		if len(ps) >= th.TriggerArtistMinPlays && stressy(ps) {
			artists = append(artists, k)
		}
	}
	sort.Slice(artists, func(i, j int) bool {
		ni, nj := len(byArtist[artists[i]]), len(byArtist[artists[j]])
		if ni != nj {
			return ni > nj
		}
		return artists[i] < artists[j]
	})
	for _, k := range artists {
		out = append(out, domain.PersonalTrigger{
			Kind:    domain.TriggerArtist,
			Factor:  display[k],
			Message: fmt.Sprintf("Plays of %s are often high-energy and low-mood (%d plays).", display[k], len(byArtist[k])),
		})
	}

	if len(out) > th.MaxTriggers {
		out = out[:th.MaxTriggers]
	}
	return out
}

func (d *StressDetector) byDay(plays []domain.Play) map[string][]domain.Play {
	loc := d.cfg.location()
	days := make(map[string][]domain.Play)
	for _, p := range plays {
		key := p.PlayedAt.In(loc).Format(dayLayout)
		days[key] = append(days[key], p)
	}
	return days
}

var wellnessAdvice = []struct {
	indicator string
	rec       domain.WellnessRecommendation
}{
	{IndicatorAgitated, domain.WellnessRecommendation{
		Title:       "Try a calming transition",
		Description: "A lot of your recent listening pairs high energy with low mood. Stepping down gradually works better than an abrupt switch.",
		Action:      "Queue two or three mid-tempo tracks you like before moving to calmer music.",
	}},
	{IndicatorRepetitive, domain.WellnessRecommendation{
		Title:       "Break the loop",
		Description: "A few low-mood tracks are on heavy repeat.",
		Action:      "Swap one repeated track for something from an artist you enjoy in a brighter key.",
	}},
	{IndicatorLateNight, domain.WellnessRecommendation{
		Title:       "Protect your sleep",
		Description: "You often listen between midnight and 4am, which can cut into rest.",
		Action:      "Set a wind-down playlist that ends 30 minutes before you want to be asleep.",
	}},
	{IndicatorVolatility, domain.WellnessRecommendation{
		Title:       "Stabilize your mood",
		Description: "The mood of your music swings a lot from day to day.",
		Action:      "Start each day with the same short playlist of tracks that feel steady to you.",
	}},
	{IndicatorCrashes, domain.WellnessRecommendation{
		Title:       "Smooth your transitions",
		Description: "Your queue often jumps straight from very intense to very quiet tracks and back.",
		Action:      "Turn on crossfade or order playlists so energy rises and falls gradually.",
	}},
}

func recommendationsFor(indicators map[string]domain.IndicatorResult) []domain.WellnessRecommendation {
	var recs []domain.WellnessRecommendation
	for _, a := range wellnessAdvice {
		if ind, ok := indicators[a.indicator]; ok && ind.Severity.Rank() > 0 {
			r := a.rec
			r.Indicator = a.indicator
			recs = append(recs, r)
		}
	}
	if len(recs) == 0 {
		recs = append(recs, domain.WellnessRecommendation{
			Title:       "Keep it up",
			Description: "No stress patterns stand out in your recent listening.",
			Action:      "Keep mixing the music that works for you.",
		})
	}
	return recs
}

func valences(ps []domain.Play) []float64 {
	out := make([]float64, len(ps))
	for i, p := range ps {
		out[i] = p.Track.Valence
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
