// Package analytics turns listening history into personality, stress and
// recommendation results. Every function here is a pure computation over
// already-normalized inputs; loading and defaulting happen in the service layer.
package analytics

import (
	"fmt"
	"time"

	"github.com/ewilliams-labs/resonance/internal/core/domain"
)

// Ladder holds the three ascending cutoffs of a severity ladder.
type Ladder [3]float64

// Severity maps a raw indicator value onto the ladder.
func (l Ladder) Severity(v float64) domain.Severity {
	switch {
	case v >= l[2]:
		return domain.SeverityHigh
	case v >= l[1]:
		return domain.SeverityModerate
	case v >= l[0]:
		return domain.SeverityMild
	default:
		return domain.SeverityLow
	}
}

// StressWeights are the per-indicator weights of the aggregate stress score.
type StressWeights struct {
	Agitated   float64
	Repetitive float64
	LateNight  float64
	Volatility float64
	Crashes    float64
}

// StressCaps are the raw values at which an indicator saturates.
type StressCaps struct {
	Agitated   float64
	Repetitive float64
	LateNight  float64
	Volatility float64
	Crashes    float64
}

// StressThresholds gathers every tunable number used by the stress detector.
type StressThresholds struct {
	AgitatedEnergyMin       float64
	AgitatedValenceMax      float64
	AgitatedLadder          Ladder
	AgitatedConfidenceCount float64

	RepeatMinPlays         int
	StressRepeatValenceMax float64
	StressRepeatEnergyMax  float64
	StressRepeatMinPlays   int
	HappyRepeatValenceMin  float64
	HappyRepeatEnergyMin   float64
	RepetitiveLadder       Ladder
	RepetitiveConfidence   float64

	LateNightHours      []int
	LateNightLadder     Ladder
	LateNightConfidence float64

	VolatilityLadder         Ladder
	VolatilityConfidenceDays float64

	CrashEnergyDelta float64
	CrashLadder      Ladder
	CrashConfidence  float64

	Weights StressWeights
	Caps    StressCaps

	HighLevel     float64
	ModerateLevel float64
	MildLevel     float64

	DailyEnergyMin     float64
	DailyValenceMax    float64
	DailyValenceStdMin float64
	DailyBusyEvents    int

	TriggerEnergyMin      float64
	TriggerValenceMax     float64
	TriggerArtistMinPlays int
	MaxTriggers           int
}

// DefaultStressThresholds returns the shipped stress configuration.
func DefaultStressThresholds() StressThresholds {
	return StressThresholds{
		AgitatedEnergyMin:       0.75,
		AgitatedValenceMax:      0.35,
		AgitatedLadder:          Ladder{3, 10, 20},
		AgitatedConfidenceCount: 25,

		RepeatMinPlays:         3,
		StressRepeatValenceMax: 0.4,
		StressRepeatEnergyMax:  0.5,
		StressRepeatMinPlays:   5,
		HappyRepeatValenceMin:  0.6,
		HappyRepeatEnergyMin:   0.5,
		RepetitiveLadder:       Ladder{1, 3, 6},
		RepetitiveConfidence:   5,

		LateNightHours:      []int{0, 1, 2, 3},
		LateNightLadder:     Ladder{2, 8, 15},
		LateNightConfidence: 15,

		VolatilityLadder:         Ladder{0.20, 0.25, 0.35},
		VolatilityConfidenceDays: 14,

		CrashEnergyDelta: 0.4,
		CrashLadder:      Ladder{3, 8, 15},
		CrashConfidence:  10,

		Weights: StressWeights{
			Agitated:   0.25,
			Repetitive: 0.20,
			LateNight:  0.15,
			Volatility: 0.25,
			Crashes:    0.15,
		},
		Caps: StressCaps{
			Agitated:   20,
			Repetitive: 5,
			LateNight:  15,
			Volatility: 0.4,
			Crashes:    10,
		},

		HighLevel:     70,
		ModerateLevel: 40,
		MildLevel:     20,

		DailyEnergyMin:     0.7,
		DailyValenceMax:    0.4,
		DailyValenceStdMin: 0.3,
		DailyBusyEvents:    50,

		TriggerEnergyMin:      0.7,
		TriggerValenceMax:     0.4,
		TriggerArtistMinPlays: 3,
		MaxTriggers:           3,
	}
}

// PersonalityConfig holds the personality classifier's tunables.
type PersonalityConfig struct {
	RecentLimit     int
	GenreSaturation float64

	FocusSequential  float64
	FocusCompletion  float64
	PuristSequential float64
	HopperSequential float64
}

// DefaultPersonalityConfig returns the shipped personality configuration.
func DefaultPersonalityConfig() PersonalityConfig {
	return PersonalityConfig{
		RecentLimit:      50,
		GenreSaturation:  10,
		FocusSequential:  0.4,
		FocusCompletion:  0.3,
		PuristSequential: 0.7,
		HopperSequential: 0.2,
	}
}

// RecommendConfig holds the content recommender's tunables.
type RecommendConfig struct {
	DefaultK         int
	CandidateLimit   int
	TopGenres        int
	PopularityWeight float64
	TempoScale       float64
}

// DefaultRecommendConfig returns the shipped recommender configuration.
func DefaultRecommendConfig() RecommendConfig {
	return RecommendConfig{
		DefaultK:         5,
		CandidateLimit:   50,
		TopGenres:        3,
		PopularityWeight: 0.1,
		TempoScale:       200,
	}
}

// Config bundles the engine configuration.
type Config struct {
	// Location is the time zone used for hour-of-day and day bucketing.
	Location    *time.Location
	Personality PersonalityConfig
	Stress      StressThresholds
	Recommend   RecommendConfig
}

// DefaultConfig returns the engine defaults in UTC.
func DefaultConfig() Config {
	return Config{
		Location:    time.UTC,
		Personality: DefaultPersonalityConfig(),
		Stress:      DefaultStressThresholds(),
		Recommend:   DefaultRecommendConfig(),
	}
}

// Validate checks that the configuration is internally consistent.
func (c Config) Validate() error {
	if c.Personality.RecentLimit <= 0 {
		return fmt.Errorf("analytics: personality recent limit must be positive")
	}
	if c.Personality.GenreSaturation <= 0 {
		return fmt.Errorf("analytics: genre saturation must be positive")
	}
	if c.Recommend.CandidateLimit <= 0 || c.Recommend.DefaultK <= 0 {
		return fmt.Errorf("analytics: recommend limits must be positive")
	}
	if c.Recommend.TempoScale <= 0 {
		return fmt.Errorf("analytics: tempo scale must be positive")
	}
	ladders := map[string]Ladder{
		"agitated":   c.Stress.AgitatedLadder,
		"repetitive": c.Stress.RepetitiveLadder,
		"late_night": c.Stress.LateNightLadder,
		"volatility": c.Stress.VolatilityLadder,
		"crashes":    c.Stress.CrashLadder,
	}
	for name, l := range ladders {
		if l[0] > l[1] || l[1] > l[2] {
			return fmt.Errorf("analytics: %s ladder must be ascending", name)
		}
	}
	caps := c.Stress.Caps
	if caps.Agitated <= 0 || caps.Repetitive <= 0 || caps.LateNight <= 0 || caps.Volatility <= 0 || caps.Crashes <= 0 {
		return fmt.Errorf("analytics: stress caps must be positive")
	}
	return nil
}

func (c Config) location() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}
